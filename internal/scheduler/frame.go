package scheduler

import (
	"errors"
	"runtime/debug"
	"slices"
	"time"
)

// Frame is the per-tick context passed to job callbacks.
type Frame struct {
	// Snapshot is the root's snapshot for this tick. Nil for global hooks.
	Snapshot any

	// Time is the tick timestamp relative to the scheduler's origin, with
	// stopped spans removed.
	Time time.Duration

	// Delta is the time since the previous tick, 0 on the first.
	Delta time.Duration

	// Elapsed is the sum of all deltas.
	Elapsed time.Duration

	// Number is the 1-based frame counter.
	Number int64
}

// FrameRecord summarises one executed frame for observers.
type FrameRecord struct {
	Number    int64
	Time      time.Duration
	Delta     time.Duration
	Elapsed   time.Duration
	Runs      []JobRun
	Throttled int // jobs skipped by their rate limit
}

// JobRun records one job invocation inside a frame.
type JobRun struct {
	Root     string
	Job      string
	Phase    string
	Position int // index in the root's order for this frame
	Duration time.Duration
	Err      error
}

// FrameObserver receives a record after every executed frame. Observers
// run on the ticking goroutine after post-tick hooks.
type FrameObserver interface {
	ObserveFrame(rec FrameRecord)
}

// FrameObserverFunc adapts a function to FrameObserver.
type FrameObserverFunc func(rec FrameRecord)

// ObserveFrame implements FrameObserver.
func (f FrameObserverFunc) ObserveFrame(rec FrameRecord) { f(rec) }

// Step runs exactly one frame at the clock's current time.
//
// Step works in every mode. While the loop is running it waits for the
// driven frame in progress to finish, so the two never overlap. Calling Step
// from inside a job, hook or observer deadlocks.
func (s *Scheduler) Step() {
	s.StepAt(s.clock.Now())
}

// StepAt runs exactly one frame at the given timestamp. It serialises with
// driven frames the same way Step does.
func (s *Scheduler) StepAt(ts time.Duration) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	s.executeFrame(ts)
}

// StepJob runs one job's callback directly at the clock's current time.
func (s *Scheduler) StepJob(id string) bool {
	return s.StepJobAt(id, s.clock.Now())
}

// StepJobAt runs one job's callback directly, bypassing throttling, ordering
// and frame accounting. The job is looked up across all roots in
// registration order. Unknown ids log a warning and return false. Like
// StepAt it never overlaps a running frame.
func (s *Scheduler) StepJobAt(id string, ts time.Duration) bool {
	id = normalize(id)

	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	s.mu.Lock()
	r, j := s.findJobLocked(id, "")
	if j == nil {
		s.mu.Unlock()
		s.logger.Warn("step of unknown job", "job", id)
		return false
	}
	var delta time.Duration
	if s.timing.hasLast && ts > s.timing.last {
		delta = ts - s.timing.last
	}
	f := Frame{
		Time:    ts - s.timing.origin,
		Delta:   delta,
		Elapsed: s.timing.elapsed,
		Number:  s.timing.frame,
	}
	provider := r.snapshot
	s.mu.Unlock()

	f.Snapshot = s.takeSnapshot(r.id, provider)
	if err := invoke(j.fn, f); err != nil {
		s.reportJobError(r.id, j.id, f, err)
	}
	return true
}

// executeFrame is one tick: timing, pre hooks, every root, post hooks,
// observers. Callers hold frameMu.
func (s *Scheduler) executeFrame(ts time.Duration) FrameRecord {
	s.mu.Lock()
	f := s.advanceTimingLocked(ts)
	pre := slices.Clone(s.preHooks)
	rootIDs := slices.Clone(s.rootOrder)
	s.mu.Unlock()

	rec := FrameRecord{Number: f.Number, Time: f.Time, Delta: f.Delta, Elapsed: f.Elapsed}

	s.runHooks(pre, f, "pre")

	for _, id := range rootIDs {
		s.runRoot(id, ts, f, &rec)
	}

	s.mu.Lock()
	post := slices.Clone(s.postHooks)
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	s.runHooks(post, f, "post")

	for _, o := range observers {
		o.ObserveFrame(rec)
	}
	return rec
}

func (s *Scheduler) advanceTimingLocked(ts time.Duration) Frame {
	t := &s.timing
	var delta time.Duration
	if t.hasLast && ts > t.last {
		delta = ts - t.last
	}
	t.last, t.hasLast = ts, true
	t.frame++
	t.elapsed += delta
	return Frame{
		Time:    ts - t.origin,
		Delta:   delta,
		Elapsed: t.elapsed,
		Number:  t.frame,
	}
}

// runRoot executes one root's jobs. The order is fixed when the root is
// entered; jobs removed meanwhile are skipped.
func (s *Scheduler) runRoot(id string, ts time.Duration, f Frame, rec *FrameRecord) {
	s.mu.Lock()
	r := s.roots[id]
	if r == nil {
		s.mu.Unlock()
		return
	}
	s.rebuildLocked(r)
	jobs := slices.Clone(r.sorted)
	provider := r.snapshot
	s.mu.Unlock()

	f.Snapshot = s.takeSnapshot(id, provider)

	for pos, j := range jobs {
		s.mu.Lock()
		run := !j.removed && j.shouldRun(ts)
		if !run && !j.removed && j.enabled {
			rec.Throttled++
		}
		ph := j.phase
		s.mu.Unlock()
		if !run {
			continue
		}

		start := time.Now()
		err := invoke(j.fn, f)
		jr := JobRun{Root: id, Job: j.id, Phase: ph, Position: pos, Duration: time.Since(start)}
		if err != nil {
			jr.Err = s.reportJobError(id, j.id, f, err)
		}
		rec.Runs = append(rec.Runs, jr)
	}
}

func (s *Scheduler) takeSnapshot(rootID string, provider SnapshotFunc) (snap any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("snapshot provider panicked", "root", rootID, "panic", r)
			snap = nil
		}
	}()
	return provider()
}

// reportJobError logs a job failure and forwards it to the snapshot's
// ErrorReporter.
func (s *Scheduler) reportJobError(rootID, jobID string, f Frame, err error) error {
	jerr := &JobError{RootID: rootID, JobID: jobID, Frame: f.Number, Err: err}
	attrs := []any{"job", jobID, "root", rootID, "frame", f.Number, "error", err}
	var pe *PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, "stack", string(pe.Stack))
	}
	s.logger.Error("job failed", attrs...)

	if reporter, ok := f.Snapshot.(ErrorReporter); ok {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("error reporter panicked", "root", rootID, "panic", r)
				}
			}()
			reporter.SetError(jerr)
		}()
	}
	return jerr
}

// invoke calls fn, converting a panic into a *PanicError.
func invoke(fn JobFunc, f Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(f, f.Delta)
}
