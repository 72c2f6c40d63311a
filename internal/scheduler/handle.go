package scheduler

import "sync"

// Handle cancels a registration.
//
// Unregister returns true the first time it removes something. Later calls,
// and calls after the registration was already removed some other way
// (replaced, root unregistered, Reset), return false and do nothing.
type Handle interface {
	Unregister() bool
}

type handle struct {
	once sync.Once
	fn   func() bool
}

func newHandle(fn func() bool) *handle {
	return &handle{fn: fn}
}

func (h *handle) Unregister() bool {
	removed := false
	h.once.Do(func() { removed = h.fn() })
	return removed
}

type noopHandle struct{}

func (noopHandle) Unregister() bool { return false }
