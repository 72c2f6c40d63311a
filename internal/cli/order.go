package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/frameloop/internal/loop"
	"github.com/roach88/frameloop/internal/scheduler"
)

// OrderResult is the resolved execution order of a plan.
type OrderResult struct {
	Phases []string `json:"phases"`
	// Anchor phases created for jobs that only carry before/after targets.
	AutoPhases []string    `json:"auto_phases,omitempty"`
	Roots      []RootOrder `json:"roots"`
}

// RootOrder lists one root's enabled jobs in execution order.
type RootOrder struct {
	Root string   `json:"root"`
	Jobs []string `json:"jobs"`
}

func (r OrderResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "phases: %s\n", strings.Join(r.Phases, " → "))
	if len(r.AutoPhases) > 0 {
		fmt.Fprintf(&b, "auto-generated: %s\n", strings.Join(r.AutoPhases, ", "))
	}
	for _, ro := range r.Roots {
		fmt.Fprintf(&b, "root %s:\n", ro.Root)
		if len(ro.Jobs) == 0 {
			b.WriteString("  (no enabled jobs)\n")
		}
		for i, j := range ro.Jobs {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, j)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewOrderCommand creates the order command.
func NewOrderCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order <plan>",
		Short: "Print the resolved job order of a plan",
		Long: `Register a plan on a scheduler that never ticks and print the phase
pipeline and each root's job order.

Configuration warnings (unresolved targets, cycles) are logged to stderr.

Examples:
  frameloop order ./world.yaml
  frameloop order ./world.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runOrder(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	plan, err := loadPlan(f, path)
	if err != nil {
		return err
	}

	schedOpts := append(plan.Options(),
		scheduler.WithMode(scheduler.ModeManual),
		scheduler.WithDriver(loop.NewManual()),
		scheduler.WithLogger(newLogger(opts, cmd.ErrOrStderr())),
	)
	s := scheduler.New(schedOpts...)
	plan.Apply(s, nil, nil)

	result := OrderResult{Roots: []RootOrder{}}
	for _, ph := range s.PhaseInfo() {
		result.Phases = append(result.Phases, ph.Name)
		if ph.AutoGenerated {
			result.AutoPhases = append(result.AutoPhases, ph.Name)
		}
	}
	for _, id := range s.Roots() {
		jobs := s.Jobs(id)
		if jobs == nil {
			jobs = []string{}
		}
		result.Roots = append(result.Roots, RootOrder{Root: id, Jobs: jobs})
	}
	return f.Success(result)
}
