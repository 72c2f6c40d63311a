package phase

import (
	"log/slog"
	"slices"
)

// Default phase names, in pipeline order.
const (
	Start   = "start"
	Input   = "input"
	Physics = "physics"
	Update  = "update"
	Render  = "render"
	Finish  = "finish"
)

// DefaultPhases is the order a new Graph starts with.
var DefaultPhases = []string{Start, Input, Physics, Update, Render, Finish}

// DefaultPhase is used for jobs that name neither a phase nor a constraint.
const DefaultPhase = Update

// Anchor name prefixes for auto-generated phases.
const (
	BeforePrefix = "before:"
	AfterPrefix  = "after:"
)

// Phase is one named stage in the pipeline.
type Phase struct {
	Name          string
	AutoGenerated bool
}

// Placement positions a new phase relative to an existing one.
// Before wins when both are set.
type Placement struct {
	Before string
	After  string
}

// Graph is the ordered list of phases.
//
// Graph is not safe for concurrent use; the scheduler serialises access.
type Graph struct {
	phases  []Phase
	ordered []string // cache of names, nil when stale
	logger  *slog.Logger
}

// NewGraph creates a graph holding DefaultPhases.
func NewGraph(logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Graph{logger: logger}
	for _, name := range DefaultPhases {
		g.phases = append(g.phases, Phase{Name: name})
	}
	return g
}

// Add inserts a phase next to an existing one.
//
// Returns false when name is already present (the call is a no-op). When the
// placement target is missing, or no placement is given, the phase is
// appended at the end; a missing target is logged as a warning.
func (g *Graph) Add(name string, at Placement) bool {
	if g.Has(name) {
		g.logger.Warn("phase already exists", "phase", name)
		return false
	}

	p := Phase{Name: name}
	switch {
	case at.Before != "":
		if idx := g.index(at.Before); idx >= 0 {
			g.insert(idx, p)
			return true
		}
		g.logger.Warn("phase placement target not found, appending", "phase", name, "before", at.Before)
	case at.After != "":
		if idx := g.index(at.After); idx >= 0 {
			g.insert(idx+1, p)
			return true
		}
		g.logger.Warn("phase placement target not found, appending", "phase", name, "after", at.After)
	}

	g.insert(len(g.phases), p)
	return true
}

// Ensure guarantees that name exists, appending it as an auto-generated
// phase if it does not. Idempotent.
func (g *Graph) Ensure(name string) {
	if g.Has(name) {
		return
	}
	g.logger.Debug("auto-generating phase", "phase", name)
	g.insert(len(g.phases), Phase{Name: name, AutoGenerated: true})
}

// ResolveConstraint derives a phase for a job that only carries before/after
// constraints.
//
// The first before target wins over the first after target. The target is
// ensured to exist, then an anchor phase is placed immediately before it
// ("before:<target>") or immediately after it ("after:<target>"). With no
// constraints the default phase is returned.
func (g *Graph) ResolveConstraint(before, after []string) string {
	switch {
	case len(before) > 0:
		return g.anchor(BeforePrefix+before[0], before[0], 0)
	case len(after) > 0:
		return g.anchor(AfterPrefix+after[0], after[0], 1)
	default:
		return DefaultPhase
	}
}

func (g *Graph) anchor(name, target string, offset int) string {
	if g.Has(name) {
		return name
	}
	g.Ensure(target)
	g.insert(g.index(target)+offset, Phase{Name: name, AutoGenerated: true})
	return name
}

// Ordered returns phase names in pipeline order. The result is shared with
// the graph's cache and must not be modified.
func (g *Graph) Ordered() []string {
	if g.ordered == nil {
		g.ordered = make([]string, len(g.phases))
		for i, p := range g.phases {
			g.ordered[i] = p.Name
		}
	}
	return g.ordered
}

// Phases returns a copy of every phase, in order.
func (g *Graph) Phases() []Phase {
	return slices.Clone(g.phases)
}

// Has reports whether name is a known phase.
func (g *Graph) Has(name string) bool {
	return g.index(name) >= 0
}

func (g *Graph) index(name string) int {
	return slices.IndexFunc(g.phases, func(p Phase) bool { return p.Name == name })
}

func (g *Graph) insert(at int, p Phase) {
	g.phases = slices.Insert(g.phases, at, p)
	g.ordered = nil
}
