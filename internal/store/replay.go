package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/frameloop/internal/scheduler"
)

// Replay feeds every stored frame, in seq order, to obs as a FrameRecord.
// Stored errors come back as plain errors carrying the recorded message.
// Returns the number of frames replayed.
func (s *Store) Replay(ctx context.Context, obs scheduler.FrameObserver) (int, error) {
	frames, err := s.ReadFrames(ctx)
	if err != nil {
		return 0, fmt.Errorf("replay: %w", err)
	}
	runs, err := s.ReadRuns(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("replay: %w", err)
	}

	bySeq := make(map[int64][]scheduler.JobRun, len(frames))
	for _, r := range runs {
		jr := scheduler.JobRun{
			Root:     r.Root,
			Job:      r.Job,
			Phase:    r.Phase,
			Position: r.Position,
			Duration: r.Duration,
		}
		if r.Error != "" {
			jr.Err = errors.New(r.Error)
		}
		bySeq[r.FrameSeq] = append(bySeq[r.FrameSeq], jr)
	}

	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		obs.ObserveFrame(scheduler.FrameRecord{
			Number:    f.Number,
			Time:      f.Time,
			Delta:     f.Delta,
			Elapsed:   f.Elapsed,
			Runs:      bySeq[f.Seq],
			Throttled: f.Throttled,
		})
	}
	return len(frames), nil
}
