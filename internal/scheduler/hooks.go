package scheduler

import (
	"slices"
	"time"
)

// HookFunc is a legacy global callback run before or after every root.
// Hooks receive a Frame with a nil Snapshot.
type HookFunc func(f Frame) error

type hook struct {
	id      string
	fn      HookFunc
	removed bool
}

// AddPreTick registers a hook that runs at the start of every tick, before
// any root. Hooks run in registration order.
//
// Pre/post hooks predate per-root jobs and exist for callers that want one
// global callback without a root. New code should prefer Register.
func (s *Scheduler) AddPreTick(fn HookFunc) Handle {
	return s.addHook(&s.preHooks, fn, "pre")
}

// AddPostTick registers a hook that runs at the end of every tick, after
// every root.
func (s *Scheduler) AddPostTick(fn HookFunc) Handle {
	return s.addHook(&s.postHooks, fn, "post")
}

func (s *Scheduler) addHook(list *[]*hook, fn HookFunc, kind string) Handle {
	if fn == nil {
		return noopHandle{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h := &hook{id: kind + "-" + normalize(s.ids.Generate()), fn: fn}
	*list = append(*list, h)

	return newHandle(func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if h.removed {
			return false
		}
		h.removed = true
		// list may have been replaced by Reset; removed guards that case.
		s.preHooks = slices.DeleteFunc(s.preHooks, func(x *hook) bool { return x == h })
		s.postHooks = slices.DeleteFunc(s.postHooks, func(x *hook) bool { return x == h })
		return true
	})
}

// runHooks runs hooks in order, isolating failures. Hook errors are logged
// only; there is no root to forward them to.
func (s *Scheduler) runHooks(hooks []*hook, f Frame, kind string) {
	for _, h := range hooks {
		s.mu.Lock()
		removed := h.removed
		s.mu.Unlock()
		if removed {
			continue
		}

		err := invoke(func(f Frame, _ time.Duration) error { return h.fn(f) }, f)
		if err != nil {
			s.logger.Error("tick hook failed", "hook", h.id, "kind", kind, "frame", f.Number, "error", &JobError{JobID: h.id, Frame: f.Number, Err: err})
		}
	}
}
