package scheduler

import (
	"time"

	"github.com/roach88/frameloop/internal/order"
	"github.com/roach88/frameloop/internal/throttle"
)

// JobFunc is a per-tick callback. A returned error or a panic is isolated
// to this job.
type JobFunc func(f Frame, delta time.Duration) error

// SnapshotFunc returns the root's current state. The value is opaque to the
// scheduler apart from the optional ErrorReporter capability.
type SnapshotFunc func() any

type job struct {
	id       string
	fn       JobFunc
	phase    string
	before   []string
	after    []string
	priority int
	seq      int64
	enabled  bool
	policy   throttle.Policy
	timing   throttle.Timing
	removed  bool // set when unregistered or replaced; checked mid-tick
}

func (j *job) entry() order.Entry {
	return order.Entry{
		ID:       j.id,
		Phase:    j.phase,
		Priority: j.priority,
		Seq:      j.seq,
		Enabled:  j.enabled,
		Before:   j.before,
		After:    j.after,
	}
}

// shouldRun applies the throttle policy. Disabled jobs never run.
func (j *job) shouldRun(now time.Duration) bool {
	if !j.enabled {
		return false
	}
	return j.policy.ShouldRun(&j.timing, now)
}

type root struct {
	id       string
	snapshot SnapshotFunc
	jobs     map[string]*job
	sorted   []*job // valid only while !dirty
	dirty    bool
}

func newRoot(id string, snapshot SnapshotFunc) *root {
	return &root{
		id:       id,
		snapshot: snapshot,
		jobs:     make(map[string]*job),
		dirty:    true,
	}
}
