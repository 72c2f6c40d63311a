package scheduler

import (
	"slices"
	"time"
)

// Stats is a point-in-time view of the loop.
type Stats struct {
	Mode          Mode
	Running       bool
	Frame         int64
	Elapsed       time.Duration
	PendingFrames int
	Roots         int
}

// Stats returns the current loop state.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Mode:          s.mode,
		Running:       s.running,
		Frame:         s.timing.frame,
		Elapsed:       s.timing.elapsed,
		PendingFrames: s.pending,
		Roots:         len(s.roots),
	}
}

// Mode returns the tick-driving mode.
func (s *Scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// IsRunning reports whether the driver is delivering ticks.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetMode switches the tick-driving mode.
//
// Entering continuous mode starts the loop if roots exist. Leaving it stops
// the loop; so does entering manual mode. Unknown modes are ignored with a
// warning.
func (s *Scheduler) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !m.Valid() {
		s.logger.Warn("unknown frameloop mode", "mode", m)
		return
	}
	if m == s.mode {
		return
	}
	prev := s.mode
	s.mode = m
	s.logger.Info("frameloop mode changed", "from", prev, "to", m)

	switch {
	case m == ModeContinuous:
		if len(s.roots) > 0 {
			s.startLocked()
		}
	case prev == ModeContinuous, m == ModeManual:
		s.pending = 0
		s.stopLocked()
	}
}

// Start starts the loop. In manual mode this is a warning and a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModeManual {
		s.logger.Warn("start ignored in manual mode")
		return
	}
	s.startLocked()
}

// Stop stops the loop. Elapsed time does not advance while stopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) startLocked() {
	if s.running {
		return
	}
	if s.timing.stopped {
		paused := s.clock.Now() - s.timing.stoppedAt
		if paused > 0 {
			s.timing.origin += paused
			if s.timing.hasLast {
				s.timing.last += paused
			}
		}
		s.timing.stopped = false
	}
	s.running = true
	s.logger.Debug("loop started", "mode", s.mode)
	s.driver.Start(s.tick)
}

func (s *Scheduler) stopLocked() {
	if !s.running {
		return
	}
	s.running = false
	s.timing.stoppedAt = s.clock.Now()
	s.timing.stopped = true
	s.driver.Stop()
	s.logger.Debug("loop stopped", "mode", s.mode)
}

// tick is the driver callback. A tick that arrives while another frame is
// still running is dropped; this happens when a job restarts the loop and
// the driver hands ticks to a fresh goroutine before the old one returns.
func (s *Scheduler) tick(now time.Duration) {
	if !s.frameMu.TryLock() {
		s.logger.Debug("tick dropped, frame in progress")
		return
	}
	idle := s.driveFrame(now)

	for _, l := range idle {
		s.safeCall("idle listener", l.fn)
	}
}

// driveFrame runs one driven frame and releases frameMu. It returns the idle
// listeners to notify when the on-demand budget ran out.
func (s *Scheduler) driveFrame(now time.Duration) []*idleListener {
	defer s.frameMu.Unlock()

	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return nil
	}

	s.executeFrame(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeOnDemand || !s.running {
		return nil
	}
	s.pending--
	if s.pending > 0 {
		return nil
	}
	s.pending = 0
	s.stopLocked()
	return slices.Clone(s.idle)
}

// Invalidate requests frames in on-demand mode.
//
// With stack the request adds to the pending budget; without it the budget
// is set to frames. Values below 1 mean 1 and the budget is capped at
// MaxPendingFrames. The loop starts if it is not running. Outside on-demand
// mode the call does nothing.
func (s *Scheduler) Invalidate(frames int, stack bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeOnDemand {
		s.logger.Debug("invalidate ignored", "mode", s.mode)
		return
	}
	if frames < 1 {
		frames = 1
	}
	if stack {
		s.pending += frames
	} else {
		s.pending = frames
	}
	s.pending = min(s.pending, MaxPendingFrames)
	s.startLocked()
}

// ResetTiming zeroes the frame counter, elapsed time and last timestamp, and
// moves the time origin to now.
func (s *Scheduler) ResetTiming() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timing = newTiming(s.clock.Now(), s.running)
}

type idleListener struct {
	fn func()
}

// OnIdle registers fn to be called each time an on-demand frame budget is
// exhausted and the loop stops.
func (s *Scheduler) OnIdle(fn func()) Handle {
	l := &idleListener{fn: fn}

	s.mu.Lock()
	s.idle = append(s.idle, l)
	s.mu.Unlock()

	return newHandle(func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		n := len(s.idle)
		s.idle = slices.DeleteFunc(s.idle, func(x *idleListener) bool { return x == l })
		return len(s.idle) < n
	})
}

// safeCall runs a listener, logging any panic.
func (s *Scheduler) safeCall(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(what+" panicked", "panic", r)
		}
	}()
	fn()
}
