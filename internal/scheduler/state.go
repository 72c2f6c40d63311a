package scheduler

import "slices"

// jobState tracks whether a job id is paused and who is watching. Entries
// are keyed by job id only, so same-named jobs on different roots share one.
type jobState struct {
	paused    bool
	listeners []*stateListener
}

type stateListener struct {
	fn func(paused bool)
}

// SubscribeJobState calls fn whenever PauseJob or ResumeJob changes the
// paused state of id. The subscription ends when the handle is released or
// the job (or its root) is unregistered.
func (s *Scheduler) SubscribeJobState(id string, fn func(paused bool)) Handle {
	id = normalize(id)
	if fn == nil {
		return noopHandle{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stateLocked(id)
	l := &stateListener{fn: fn}
	st.listeners = append(st.listeners, l)

	return newHandle(func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.states[id] != st {
			return false
		}
		n := len(st.listeners)
		st.listeners = slices.DeleteFunc(st.listeners, func(x *stateListener) bool { return x == l })
		return len(st.listeners) < n
	})
}

// IsJobPaused reports the paused state last set through PauseJob/ResumeJob.
func (s *Scheduler) IsJobPaused(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[normalize(id)]
	return ok && st.paused
}

// PauseJob disables a job and notifies its state listeners.
func (s *Scheduler) PauseJob(id string) bool {
	return s.setPaused(normalize(id), true)
}

// ResumeJob re-enables a job, resetting its throttle timing, and notifies
// its state listeners.
func (s *Scheduler) ResumeJob(id string) bool {
	return s.setPaused(normalize(id), false)
}

func (s *Scheduler) setPaused(id string, paused bool) bool {
	enabled := !paused

	s.mu.Lock()
	if !s.updateJobLocked(id, JobUpdate{Enabled: &enabled}) {
		s.mu.Unlock()
		return false
	}
	st := s.stateLocked(id)
	changed := st.paused != paused
	st.paused = paused
	listeners := slices.Clone(st.listeners)
	s.mu.Unlock()

	if !changed {
		return true
	}
	for _, l := range listeners {
		s.safeCall("job state listener", func() { l.fn(paused) })
	}
	return true
}

func (s *Scheduler) stateLocked(id string) *jobState {
	st, ok := s.states[id]
	if !ok {
		st = &jobState{}
		s.states[id] = st
	}
	return st
}
