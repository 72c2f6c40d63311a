package scheduler

import (
	"log/slog"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/frameloop/internal/loop"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source used by Step, Stop/Start bookkeeping and the
// default ticker driver. Default: loop.NewMonotonicClock().
func WithClock(c loop.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithDriver replaces the ticker driver. Tests pass a *loop.Manual.
func WithDriver(d loop.Driver) Option {
	return func(s *Scheduler) {
		s.driver = d
	}
}

// WithInterval sets the default ticker driver's interval.
// Ignored when WithDriver is also given.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = d
	}
}

// WithMode sets the initial tick-driving mode. Default: ModeContinuous.
func WithMode(m Mode) Option {
	return func(s *Scheduler) {
		if m.Valid() {
			s.initialMode = m
		}
	}
}

// WithIDGenerator sets the generator for omitted job ids.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Scheduler) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithObserver adds a frame observer. May be given more than once.
func WithObserver(o FrameObserver) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// JobOption configures one job registration.
type JobOption func(*jobConfig)

// jobConfig is the normalised form of a registration.
type jobConfig struct {
	id       string
	root     string
	phase    string
	before   []string
	after    []string
	priority int
	fps      float64
	drop     bool
	enabled  bool
}

func newJobConfig(opts []JobOption) jobConfig {
	cfg := jobConfig{drop: true, enabled: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.id = normalize(cfg.id)
	cfg.root = normalize(cfg.root)
	cfg.phase = normalize(cfg.phase)
	cfg.before = normalizeAll(cfg.before)
	cfg.after = normalizeAll(cfg.after)
	return cfg
}

// WithID sets the job id. Ids are unique within a root; reusing one replaces
// the existing job.
func WithID(id string) JobOption {
	return func(c *jobConfig) { c.id = id }
}

// OnRoot targets a specific root instead of the first registered one.
func OnRoot(rootID string) JobOption {
	return func(c *jobConfig) { c.root = rootID }
}

// InPhase places the job in a named phase.
func InPhase(name string) JobOption {
	return func(c *jobConfig) { c.phase = name }
}

// Before makes the job run before the given job ids or phases.
func Before(refs ...string) JobOption {
	return func(c *jobConfig) { c.before = append(c.before, refs...) }
}

// After makes the job run after the given job ids or phases.
func After(refs ...string) JobOption {
	return func(c *jobConfig) { c.after = append(c.after, refs...) }
}

// WithPriority sets the priority; higher runs earlier within a phase.
func WithPriority(p int) JobOption {
	return func(c *jobConfig) { c.priority = p }
}

// WithFPS limits the job to at most fps runs per second. Zero means every tick.
func WithFPS(fps float64) JobOption {
	return func(c *jobConfig) { c.fps = fps }
}

// WithCatchUp makes a rate-limited job keep a fixed rhythm instead of
// dropping missed intervals.
func WithCatchUp() JobOption {
	return func(c *jobConfig) { c.drop = false }
}

// WithDrop sets frame-dropping explicitly. Default true.
func WithDrop(drop bool) JobOption {
	return func(c *jobConfig) { c.drop = drop }
}

// Disabled registers the job paused.
func Disabled() JobOption {
	return func(c *jobConfig) { c.enabled = false }
}

// JobUpdate is a partial change to a registered job. Nil fields are left
// alone. For Before/After a nil slice means unchanged and an empty non-nil
// slice clears the constraints.
type JobUpdate struct {
	// Root limits the lookup to one root. Empty searches every root in
	// registration order.
	Root string

	Priority *int
	FPS      *float64
	Drop     *bool
	Enabled  *bool
	Phase    *string
	Before   []string
	After    []string
}

// normalize maps identifiers to NFC so visually identical names collide.
func normalize(s string) string {
	return norm.NFC.String(s)
}

// normalizeAll normalises and de-duplicates refs, dropping empties. The
// first occurrence of each ref keeps its position.
func normalizeAll(refs []string) []string {
	if refs == nil {
		return nil
	}
	out := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		r = normalize(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
