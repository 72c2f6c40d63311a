package cli

import (
	"fmt"
	"os"

	"github.com/roach88/frameloop/internal/config"
)

// loadPlan loads and validates a plan file, writing the failure through f.
// A missing file is a command error; a plan that fails to parse or validate
// is a failure.
func loadPlan(f *OutputFormatter, path string) (*config.Plan, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, f.Failure(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("plan not found: %s", path), nil)
	}

	plan, err := config.Load(path)
	if err != nil {
		return nil, f.Failure(ExitFailure, ErrCodeInvalidPlan, "failed to load plan", err)
	}
	f.VerboseLog("loaded plan %s: %d phase(s), %d root(s), %d job(s)",
		path, len(plan.Phases), len(plan.Roots), len(plan.Jobs))
	return plan, nil
}
