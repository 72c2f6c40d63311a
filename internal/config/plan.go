package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/frameloop/internal/loop"
	"github.com/roach88/frameloop/internal/phase"
	"github.com/roach88/frameloop/internal/scheduler"
)

// Plan describes a scheduler and everything registered on it.
type Plan struct {
	// Mode is "continuous", "on-demand" or "manual". Empty means continuous.
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty"`

	// Interval is the ticker period as a Go duration string. Empty means 16ms.
	Interval string `yaml:"interval,omitempty" json:"interval,omitempty"`

	// Phases are added in order after the defaults.
	Phases []PhaseSpec `yaml:"phases,omitempty" json:"phases,omitempty"`

	// Roots are registered in order; the first is the default root.
	Roots []string `yaml:"roots,omitempty" json:"roots,omitempty"`

	// Jobs are registered in order after all roots.
	Jobs []JobSpec `yaml:"jobs,omitempty" json:"jobs,omitempty"`
}

// PhaseSpec is one custom phase. Before wins over After; with neither the
// phase is appended.
type PhaseSpec struct {
	Name   string `yaml:"name" json:"name"`
	Before string `yaml:"before,omitempty" json:"before,omitempty"`
	After  string `yaml:"after,omitempty" json:"after,omitempty"`
}

// JobSpec is one job registration.
type JobSpec struct {
	ID       string   `yaml:"id" json:"id"`
	Root     string   `yaml:"root,omitempty" json:"root,omitempty"`
	Phase    string   `yaml:"phase,omitempty" json:"phase,omitempty"`
	Before   []string `yaml:"before,omitempty" json:"before,omitempty"`
	After    []string `yaml:"after,omitempty" json:"after,omitempty"`
	Priority int      `yaml:"priority,omitempty" json:"priority,omitempty"`
	FPS      float64  `yaml:"fps,omitempty" json:"fps,omitempty"`

	// Drop defaults to true. False selects catch-up throttling.
	Drop *bool `yaml:"drop,omitempty" json:"drop,omitempty"`

	// Enabled defaults to true.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// JobFactory builds the callback for a planned job. A nil JobFunc registers
// a job that does nothing.
type JobFactory func(spec JobSpec) scheduler.JobFunc

// SnapshotFactory builds the snapshot provider for a planned root.
type SnapshotFactory func(root string) scheduler.SnapshotFunc

// SchedulerMode returns the plan's mode, defaulting to continuous.
func (p *Plan) SchedulerMode() scheduler.Mode {
	if p.Mode == "" {
		return scheduler.ModeContinuous
	}
	return scheduler.Mode(p.Mode)
}

// TickInterval returns the parsed interval, defaulting to loop.DefaultInterval.
// Call Validate first; an unparsable interval also yields the default.
func (p *Plan) TickInterval() time.Duration {
	if p.Interval == "" {
		return loop.DefaultInterval
	}
	d, err := time.ParseDuration(p.Interval)
	if err != nil || d <= 0 {
		return loop.DefaultInterval
	}
	return d
}

// Options returns the scheduler options the plan implies.
func (p *Plan) Options() []scheduler.Option {
	return []scheduler.Option{
		scheduler.WithMode(p.SchedulerMode()),
		scheduler.WithInterval(p.TickInterval()),
	}
}

// Validate reports every problem in the plan, joined into one error.
func (p *Plan) Validate() error {
	var errs []error

	if p.Mode != "" {
		if _, ok := scheduler.ParseMode(p.Mode); !ok {
			errs = append(errs, fmt.Errorf("mode %q: must be continuous, on-demand or manual", p.Mode))
		}
	}
	if p.Interval != "" {
		d, err := time.ParseDuration(p.Interval)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("interval %q: %w", p.Interval, err))
		case d <= 0:
			errs = append(errs, fmt.Errorf("interval %q: must be positive", p.Interval))
		}
	}

	for i, ph := range p.Phases {
		if ph.Name == "" {
			errs = append(errs, fmt.Errorf("phases[%d]: name is required", i))
		}
	}

	roots := make(map[string]bool, len(p.Roots))
	for i, r := range p.Roots {
		switch {
		case r == "":
			errs = append(errs, fmt.Errorf("roots[%d]: id is required", i))
		case roots[r]:
			errs = append(errs, fmt.Errorf("roots[%d]: duplicate root %q", i, r))
		}
		roots[r] = true
	}

	if len(p.Jobs) > 0 && len(p.Roots) == 0 {
		errs = append(errs, errors.New("jobs declared but no roots"))
	}

	seen := make(map[string]bool, len(p.Jobs))
	for i, j := range p.Jobs {
		if j.ID == "" {
			errs = append(errs, fmt.Errorf("jobs[%d]: id is required", i))
			continue
		}
		root := j.Root
		if root == "" && len(p.Roots) > 0 {
			root = p.Roots[0]
		}
		if j.Root != "" && !roots[j.Root] {
			errs = append(errs, fmt.Errorf("jobs[%d] %s: unknown root %q", i, j.ID, j.Root))
		}
		key := root + "/" + j.ID
		if seen[key] {
			errs = append(errs, fmt.Errorf("jobs[%d]: duplicate job %q on root %q", i, j.ID, root))
		}
		seen[key] = true
		if j.FPS < 0 {
			errs = append(errs, fmt.Errorf("jobs[%d] %s: fps must not be negative", i, j.ID))
		}
	}

	return errors.Join(errs...)
}

// Options converts the spec into registration options.
func (j JobSpec) Options() []scheduler.JobOption {
	opts := []scheduler.JobOption{
		scheduler.WithID(j.ID),
		scheduler.WithPriority(j.Priority),
		scheduler.WithFPS(j.FPS),
	}
	if j.Root != "" {
		opts = append(opts, scheduler.OnRoot(j.Root))
	}
	if j.Phase != "" {
		opts = append(opts, scheduler.InPhase(j.Phase))
	}
	if len(j.Before) > 0 {
		opts = append(opts, scheduler.Before(j.Before...))
	}
	if len(j.After) > 0 {
		opts = append(opts, scheduler.After(j.After...))
	}
	if j.Drop != nil {
		opts = append(opts, scheduler.WithDrop(*j.Drop))
	}
	if j.Enabled != nil && !*j.Enabled {
		opts = append(opts, scheduler.Disabled())
	}
	return opts
}

// Apply registers the plan's phases, roots and jobs on s, in that order, and
// returns the root handles followed by the job handles. Either factory may be
// nil.
func (p *Plan) Apply(s *scheduler.Scheduler, jobs JobFactory, snapshots SnapshotFactory) []scheduler.Handle {
	for _, ph := range p.Phases {
		s.AddPhase(ph.Name, phase.Placement{Before: ph.Before, After: ph.After})
	}

	handles := make([]scheduler.Handle, 0, len(p.Roots)+len(p.Jobs))
	for _, r := range p.Roots {
		var snap scheduler.SnapshotFunc
		if snapshots != nil {
			snap = snapshots(r)
		}
		handles = append(handles, s.RegisterRoot(r, snap))
	}
	for _, j := range p.Jobs {
		var fn scheduler.JobFunc
		if jobs != nil {
			fn = jobs(j)
		}
		handles = append(handles, s.Register(fn, j.Options()...))
	}
	return handles
}
