package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/frameloop/internal/config"
	"github.com/roach88/frameloop/internal/loop"
	"github.com/roach88/frameloop/internal/phase"
	"github.com/roach88/frameloop/internal/scheduler"
	"github.com/roach88/frameloop/internal/store"
	"github.com/roach88/frameloop/internal/testutil"
)

// maxDrainFrames bounds an invalidate step. The budget is capped far below
// this, so reaching it means the loop failed to stop.
const maxDrainFrames = 10 * scheduler.MaxPendingFrames

// errScripted is returned by jobs listed in a scenario's failing list.
var errScripted = errors.New("scripted failure")

// Harness executes one scenario.
type Harness struct {
	store     *store.Store
	sched     *scheduler.Scheduler
	clock     *testutil.FakeClock
	driver    *loop.Manual
	logger    *slog.Logger
	logs      *testutil.LogBuffer
	recorder  *store.Recorder
	failing   []string
	panicking []string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and a deterministic scheduler
// 2. Apply the plan
// 3. Execute steps
// 4. Read the trace back from the store
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	if scenario.Plan == nil {
		return nil, errors.New("scenario has no plan")
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger, logs := testutil.NewLogger()
	h := &Harness{
		store:     st,
		clock:     testutil.NewFakeClock(0),
		driver:    loop.NewManual(),
		logger:    logger,
		logs:      logs,
		recorder:  st.Recorder(logger),
		failing:   scenario.Failing,
		panicking: scenario.Panicking,
	}

	opts := append(scenario.Plan.Options(),
		scheduler.WithLogger(logger),
		scheduler.WithClock(h.clock),
		scheduler.WithDriver(h.driver),
		scheduler.WithIDGenerator(scheduler.NewSequentialGenerator("")),
		scheduler.WithObserver(h.recorder),
	)
	h.sched = scheduler.New(opts...)
	defer h.sched.Reset()

	scenario.Plan.Apply(h.sched, h.jobFor, nil)

	for i, step := range scenario.Steps {
		if err := h.execute(step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Kind(), err)
		}
	}
	if err := h.recorder.Err(); err != nil {
		return nil, fmt.Errorf("failed to record trace: %w", err)
	}

	ctx := context.Background()
	result := NewResult()
	result.logs = logs.String()
	if result.Frames, err = readTrace(ctx, st); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) jobFor(spec config.JobSpec) scheduler.JobFunc {
	switch {
	case slices.Contains(h.panicking, spec.ID):
		return func(scheduler.Frame, time.Duration) error { panic("scripted panic") }
	case slices.Contains(h.failing, spec.ID):
		return func(scheduler.Frame, time.Duration) error { return errScripted }
	}
	return nil
}

func (h *Harness) execute(step Step) error {
	switch step.Kind() {
	case StepRun:
		for i := 0; i < step.Step; i++ {
			h.sched.StepAt(h.clock.Advance(step.Interval()))
		}
	case StepPause:
		if !h.sched.PauseJob(step.Pause) {
			return fmt.Errorf("unknown job %q", step.Pause)
		}
	case StepResume:
		if !h.sched.ResumeJob(step.Resume) {
			return fmt.Errorf("unknown job %q", step.Resume)
		}
	case StepAddPhase:
		h.sched.AddPhase(step.AddPhase.Name, phase.Placement{Before: step.AddPhase.Before, After: step.AddPhase.After})
	case StepInvalidate:
		h.sched.Invalidate(step.Invalidate.Frames, step.Invalidate.Stack)
		n := 0
		for h.driver.Fire(h.clock.Advance(step.Interval())) {
			if n++; n > maxDrainFrames {
				return errors.New("on-demand loop did not go idle")
			}
		}
	case StepResetTiming:
		h.sched.ResetTiming()
	default:
		return errors.New("exactly one action is required")
	}
	return nil
}

// readTrace rebuilds the frame trace from the store in execution order.
func readTrace(ctx context.Context, st *store.Store) ([]FrameTrace, error) {
	frames, err := st.ReadFrames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames: %w", err)
	}
	runs, err := st.ReadRuns(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}

	bySeq := make(map[int64]int, len(frames))
	out := make([]FrameTrace, len(frames))
	for i, f := range frames {
		bySeq[f.Seq] = i
		out[i] = FrameTrace{
			Number:    f.Number,
			Time:      f.Time,
			Delta:     f.Delta,
			Throttled: f.Throttled,
			Runs:      []RunTrace{},
		}
	}
	for _, r := range runs {
		i := bySeq[r.FrameSeq]
		out[i].Runs = append(out[i].Runs, RunTrace{Root: r.Root, Phase: r.Phase, Job: r.Job, Error: r.Error})
	}
	return out, nil
}
