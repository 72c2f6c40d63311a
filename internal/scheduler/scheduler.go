package scheduler

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/frameloop/internal/loop"
	"github.com/roach88/frameloop/internal/order"
	"github.com/roach88/frameloop/internal/phase"
	"github.com/roach88/frameloop/internal/throttle"
)

// Scheduler owns the phase graph, the roots and their jobs, and the tick loop.
//
// Thread-safety model:
//   - every exported method is safe from any goroutine
//   - callbacks (jobs, hooks, snapshot providers, observers, listeners) run
//     without the internal lock held and may call back into the Scheduler
//
// INVARIANTS:
//   - a root's sorted list is valid exactly when its dirty flag is false
//   - job sequence numbers are strictly increasing across the process
type Scheduler struct {
	mu sync.Mutex

	// frameMu is held for the whole of a frame. At most one frame runs at a
	// time no matter how many driver goroutines or Step callers there are.
	frameMu sync.Mutex

	logger   *slog.Logger
	clock    loop.Clock
	driver   loop.Driver
	interval time.Duration
	ids      IDGenerator

	phases    *phase.Graph
	roots     map[string]*root
	rootOrder []string // registration order; rootOrder[0] is the default root

	preHooks  []*hook
	postHooks []*hook

	states    map[string]*jobState // pause state and listeners, by job id
	idle      []*idleListener
	observers []FrameObserver

	initialMode Mode
	mode        Mode
	running     bool
	pending     int // on-demand frame budget

	timing timing
}

// timing is the loop's clock bookkeeping.
type timing struct {
	origin    time.Duration // reference for Frame.Time, shifted by paused spans
	last      time.Duration
	hasLast   bool
	frame     int64
	elapsed   time.Duration
	stoppedAt time.Duration
	stopped   bool
}

// New creates a Scheduler. In continuous mode the loop starts as soon as the
// first root registers.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:      slog.Default(),
		ids:         UUIDv7Generator{},
		initialMode: ModeContinuous,
		interval:    loop.DefaultInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")
	if s.clock == nil {
		s.clock = loop.NewMonotonicClock()
	}
	if s.driver == nil {
		s.driver = loop.NewTicker(s.interval, s.clock, s.logger)
	}
	s.resetLocked()
	return s
}

// resetLocked discards all registrations and returns to the initial mode.
// Observers, clock, driver and logger are configuration and survive.
func (s *Scheduler) resetLocked() {
	s.phases = phase.NewGraph(s.logger)
	s.roots = make(map[string]*root)
	s.rootOrder = nil
	s.preHooks = nil
	s.postHooks = nil
	s.states = make(map[string]*jobState)
	s.idle = nil
	s.mode = s.initialMode
	s.pending = 0
	s.timing = newTiming(s.clock.Now(), false)
}

// newTiming starts the bookkeeping at now. A stopped loop is marked stopped
// at now so the first Start measures Frame.Time from the start, not from
// construction.
func newTiming(now time.Duration, running bool) timing {
	return timing{origin: now, stoppedAt: now, stopped: !running}
}

// Reset stops the loop and discards every root, job, hook, listener and
// phase added since construction. Intended for test isolation.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	for _, r := range s.roots {
		for _, j := range r.jobs {
			j.removed = true
		}
	}
	for _, h := range append(slices.Clone(s.preHooks), s.postHooks...) {
		h.removed = true
	}
	s.resetLocked()
	s.logger.Debug("scheduler reset")
}

// RegisterRoot adds a root. Duplicate ids are rejected with a warning and a
// handle that does nothing.
func (s *Scheduler) RegisterRoot(id string, snapshot SnapshotFunc) Handle {
	id = normalize(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.roots[id]; exists {
		s.logger.Warn("root already registered", "root", id)
		return noopHandle{}
	}
	if snapshot == nil {
		snapshot = func() any { return nil }
	}

	r := newRoot(id, snapshot)
	s.roots[id] = r
	s.rootOrder = append(s.rootOrder, id)
	s.logger.Debug("root registered", "root", id)

	if len(s.roots) == 1 && s.mode == ModeContinuous {
		s.startLocked()
	}

	return newHandle(func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.roots[id] != r {
			return false
		}
		s.removeRootLocked(r)
		return true
	})
}

// UnregisterRoot removes a root, its jobs and their pause listeners.
// The loop stops when no roots remain.
func (s *Scheduler) UnregisterRoot(id string) bool {
	id = normalize(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roots[id]
	if !ok {
		s.logger.Warn("unregister of unknown root", "root", id)
		return false
	}
	s.removeRootLocked(r)
	return true
}

func (s *Scheduler) removeRootLocked(r *root) {
	for id, j := range r.jobs {
		j.removed = true
		delete(s.states, id)
	}
	delete(s.roots, r.id)
	s.rootOrder = slices.DeleteFunc(s.rootOrder, func(id string) bool { return id == r.id })
	s.logger.Debug("root unregistered", "root", r.id, "jobs", len(r.jobs))

	if len(s.roots) == 0 {
		s.stopLocked()
	}
}

// Register adds a job.
//
// The target root is the OnRoot option or the first registered root. The id
// is WithID or generated. The phase is InPhase; else the phase of the first
// before (or after) target when that target is a job on the same root; else
// an anchor phase derived from the constraint; else the default phase.
//
// Registering with no roots present, or against an unknown root, logs a
// warning and returns a handle that does nothing. Reusing an id replaces the
// existing job with a warning.
func (s *Scheduler) Register(fn JobFunc, opts ...JobOption) Handle {
	cfg := newJobConfig(opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.targetRootLocked(cfg.root)
	if r == nil {
		if cfg.root == "" {
			s.logger.Warn("job registered with no root", "job", cfg.id)
		} else {
			s.logger.Warn("job registered against unknown root", "job", cfg.id, "root", cfg.root)
		}
		return noopHandle{}
	}
	if fn == nil {
		fn = func(Frame, time.Duration) error { return nil }
	}

	id := cfg.id
	if id == "" {
		id = normalize(s.ids.Generate())
	}

	j := &job{
		id:       id,
		fn:       fn,
		phase:    s.resolvePhaseLocked(r, cfg),
		before:   cfg.before,
		after:    cfg.after,
		priority: cfg.priority,
		seq:      registrations.Next(),
		enabled:  cfg.enabled,
		policy:   policyOf(cfg.fps, cfg.drop),
	}

	if existing, ok := r.jobs[id]; ok {
		s.logger.Warn("job id already registered, replacing", "job", id, "root", r.id)
		existing.removed = true
		// Listeners carry over to the new job; the paused flag follows it.
		if st, ok := s.states[id]; ok {
			st.paused = !j.enabled
		}
	}
	r.jobs[id] = j
	r.dirty = true
	s.logger.Debug("job registered", "job", id, "root", r.id, "phase", j.phase, "priority", j.priority)

	return newHandle(func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.roots[r.id] != r || r.jobs[id] != j {
			return false
		}
		s.removeJobLocked(r, j)
		return true
	})
}

func (s *Scheduler) targetRootLocked(id string) *root {
	if id != "" {
		return s.roots[id]
	}
	if len(s.rootOrder) == 0 {
		return nil
	}
	return s.roots[s.rootOrder[0]]
}

func (s *Scheduler) resolvePhaseLocked(r *root, cfg jobConfig) string {
	if cfg.phase != "" {
		return cfg.phase
	}
	var target string
	switch {
	case len(cfg.before) > 0:
		target = cfg.before[0]
	case len(cfg.after) > 0:
		target = cfg.after[0]
	default:
		return phase.DefaultPhase
	}
	if other, ok := r.jobs[target]; ok && other.id != cfg.id {
		return other.phase
	}
	return s.phases.ResolveConstraint(cfg.before, cfg.after)
}

func policyOf(fps float64, drop bool) throttle.Policy {
	return throttle.Policy{FPS: fps, Drop: drop}
}

// Unregister removes a job. An empty rootID searches every root in
// registration order.
func (s *Scheduler) Unregister(id, rootID string) bool {
	id, rootID = normalize(id), normalize(rootID)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, j := s.findJobLocked(id, rootID)
	if j == nil {
		s.logger.Warn("unregister of unknown job", "job", id, "root", rootID)
		return false
	}
	s.removeJobLocked(r, j)
	return true
}

func (s *Scheduler) removeJobLocked(r *root, j *job) {
	j.removed = true
	delete(r.jobs, j.id)
	delete(s.states, j.id)
	r.dirty = true
	s.logger.Debug("job unregistered", "job", j.id, "root", r.id)
}

func (s *Scheduler) findJobLocked(id, rootID string) (*root, *job) {
	if rootID != "" {
		r := s.roots[rootID]
		if r == nil {
			return nil, nil
		}
		return r, r.jobs[id]
	}
	for _, rid := range s.rootOrder {
		r := s.roots[rid]
		if j, ok := r.jobs[id]; ok {
			return r, j
		}
	}
	return nil, nil
}

// UpdateJob changes a registered job in place. Re-enabling a disabled job
// resets its throttle timing. Changes to phase, constraints, priority or
// enabled mark the root for rebuild. Returns false if the job is unknown.
func (s *Scheduler) UpdateJob(id string, u JobUpdate) bool {
	id = normalize(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateJobLocked(id, u)
}

func (s *Scheduler) updateJobLocked(id string, u JobUpdate) bool {
	r, j := s.findJobLocked(id, normalize(u.Root))
	if j == nil {
		s.logger.Warn("update of unknown job", "job", id, "root", u.Root)
		return false
	}

	structural := false
	if u.Priority != nil && *u.Priority != j.priority {
		j.priority = *u.Priority
		structural = true
	}
	if u.FPS != nil {
		j.policy.FPS = *u.FPS
	}
	if u.Drop != nil {
		j.policy.Drop = *u.Drop
	}
	if u.Enabled != nil && *u.Enabled != j.enabled {
		if *u.Enabled {
			j.timing.Reset()
		}
		j.enabled = *u.Enabled
		structural = true
	}
	if u.Phase != nil {
		if p := normalize(*u.Phase); p != j.phase {
			j.phase = p
			structural = true
		}
	}
	if u.Before != nil {
		j.before = normalizeAll(u.Before)
		structural = true
	}
	if u.After != nil {
		j.after = normalizeAll(u.After)
		structural = true
	}

	if structural {
		r.dirty = true
	}
	return true
}

// AddPhase inserts a phase relative to an existing one and marks every root
// for rebuild. Returns false for duplicates.
func (s *Scheduler) AddPhase(name string, at phase.Placement) bool {
	name = normalize(name)
	at.Before, at.After = normalize(at.Before), normalize(at.After)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.phases.Add(name, at) {
		return false
	}
	for _, r := range s.roots {
		r.dirty = true
	}
	return true
}

// HasPhase reports whether a phase exists.
func (s *Scheduler) HasPhase(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phases.Has(normalize(name))
}

// Phases returns the phase names in pipeline order.
func (s *Scheduler) Phases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.phases.Ordered())
}

// PhaseInfo returns every phase in pipeline order, with anchor phases
// created for constraint-only jobs flagged AutoGenerated.
func (s *Scheduler) PhaseInfo() []phase.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phases.Phases()
}

// Roots returns root ids in registration order.
func (s *Scheduler) Roots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rootOrder)
}

// Jobs returns the ids of a root's enabled jobs in execution order,
// rebuilding the cached order if needed. Unknown roots return nil.
func (s *Scheduler) Jobs(rootID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.roots[normalize(rootID)]
	if r == nil {
		return nil
	}
	s.rebuildLocked(r)
	ids := make([]string, len(r.sorted))
	for i, j := range r.sorted {
		ids[i] = j.id
	}
	return ids
}

// rebuildLocked recomputes a dirty root's sorted job list.
func (s *Scheduler) rebuildLocked(r *root) {
	if !r.dirty {
		return
	}

	jobs := make([]*job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	// Map order must not reach order.Sort's unknown-phase bucketing.
	slices.SortFunc(jobs, func(a, b *job) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	entries := make([]order.Entry, len(jobs))
	for i, j := range jobs {
		entries[i] = j.entry()
	}

	res := order.Sort(s.phases.Ordered(), entries)
	for _, w := range res.Warnings {
		s.logger.Warn("job constraint cycle", "root", r.id, "phase", w.Phase, "jobs", w.Jobs)
	}

	r.sorted = make([]*job, len(res.Order))
	for i, idx := range res.Order {
		r.sorted[i] = jobs[idx]
	}
	r.dirty = false
	s.logger.Debug("job order rebuilt", "root", r.id, "jobs", len(r.sorted))
}
