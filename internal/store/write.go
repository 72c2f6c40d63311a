package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/frameloop/internal/scheduler"
)

// WriteFrame appends a frame and its job runs in one transaction and returns
// the frame's sequence number.
func (s *Store) WriteFrame(ctx context.Context, rec scheduler.FrameRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write frame: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO frames (number, time_ns, delta_ns, elapsed_ns, throttled)
		VALUES (?, ?, ?, ?, ?)
	`, rec.Number, int64(rec.Time), int64(rec.Delta), int64(rec.Elapsed), rec.Throttled)
	if err != nil {
		return 0, fmt.Errorf("write frame %d: %w", rec.Number, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write frame %d: seq: %w", rec.Number, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO job_runs (frame_seq, ordinal, root, job, phase, position, duration_ns, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("write frame %d: prepare: %w", rec.Number, err)
	}
	defer stmt.Close()

	for i, run := range rec.Runs {
		var errText sql.NullString
		if run.Err != nil {
			errText = sql.NullString{String: run.Err.Error(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, seq, i, run.Root, run.Job, run.Phase, run.Position, int64(run.Duration), errText); err != nil {
			return 0, fmt.Errorf("write frame %d: job %s: %w", rec.Number, run.Job, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write frame %d: commit: %w", rec.Number, err)
	}
	return seq, nil
}

// Recorder writes every observed frame to a Store. Write failures are
// logged; the first one is kept for Err.
//
// Thread-safety: ObserveFrame may be called from the ticker goroutine while
// Err is read elsewhere.
type Recorder struct {
	store  *Store
	logger *slog.Logger

	mu  sync.Mutex
	err error
}

// Recorder returns a frame observer backed by s. A nil logger means
// slog.Default().
func (s *Store) Recorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, logger: logger.With("component", "store")}
}

// ObserveFrame implements scheduler.FrameObserver.
func (r *Recorder) ObserveFrame(rec scheduler.FrameRecord) {
	if _, err := r.store.WriteFrame(context.Background(), rec); err != nil {
		r.logger.Error("failed to record frame", "frame", rec.Number, "error", err)
		r.mu.Lock()
		if r.err == nil {
			r.err = err
		}
		r.mu.Unlock()
	}
}

// Err returns the first write failure, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
