package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult summarises a valid plan.
type ValidationResult struct {
	Valid    bool   `json:"valid"`
	Mode     string `json:"mode"`
	Interval string `json:"interval"`
	Phases   int    `json:"phases"`
	Roots    int    `json:"roots"`
	Jobs     int    `json:"jobs"`
}

func (r ValidationResult) String() string {
	return fmt.Sprintf("✓ plan valid: mode=%s interval=%s phases=%d roots=%d jobs=%d",
		r.Mode, r.Interval, r.Phases, r.Roots, r.Jobs)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan>",
		Short: "Validate a plan without registering it",
		Long: `Parse and validate a YAML (.yaml, .yml) or CUE (.cue) plan.

CUE plans are checked against the plan schema before decoding. Both formats
then go through the same semantic checks: known mode, positive interval,
declared roots and unique job ids per root.

Exit codes:
  0 - Plan is valid
  1 - Plan is invalid
  2 - Command error (plan not found)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	plan, err := loadPlan(f, path)
	if err != nil {
		return err
	}

	return f.Success(ValidationResult{
		Valid:    true,
		Mode:     string(plan.SchedulerMode()),
		Interval: plan.TickInterval().String(),
		Phases:   len(plan.Phases),
		Roots:    len(plan.Roots),
		Jobs:     len(plan.Jobs),
	})
}
