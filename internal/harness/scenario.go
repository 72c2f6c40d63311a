package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/frameloop/internal/config"
)

// DefaultStepInterval is the clock advance per frame when a step omits every.
const DefaultStepInterval = 16 * time.Millisecond

// Scenario defines a frame loop scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Plan is the inline plan. Exactly one of Plan and PlanFile is set.
	Plan *config.Plan `yaml:"plan,omitempty"`

	// PlanFile is a plan path, relative to the scenario file.
	PlanFile string `yaml:"plan_file,omitempty"`

	// Failing lists jobs whose callback returns an error.
	Failing []string `yaml:"failing,omitempty"`

	// Panicking lists jobs whose callback panics.
	Panicking []string `yaml:"panicking,omitempty"`

	// Steps drive the scheduler in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario action. Exactly one action field is set.
type Step struct {
	Step        int               `yaml:"step,omitempty"`
	Pause       string            `yaml:"pause,omitempty"`
	Resume      string            `yaml:"resume,omitempty"`
	AddPhase    *config.PhaseSpec `yaml:"add_phase,omitempty"`
	Invalidate  *Invalidate       `yaml:"invalidate,omitempty"`
	ResetTiming bool              `yaml:"reset_timing,omitempty"`

	// Every is the clock advance per frame for step and invalidate.
	Every string `yaml:"every,omitempty"`
}

// Invalidate requests on-demand frames.
type Invalidate struct {
	Frames int  `yaml:"frames"`
	Stack  bool `yaml:"stack,omitempty"`
}

// Step kinds.
const (
	StepRun         = "step"
	StepPause       = "pause"
	StepResume      = "resume"
	StepAddPhase    = "add_phase"
	StepInvalidate  = "invalidate"
	StepResetTiming = "reset_timing"
)

// Kind returns the step's action, or "" if none or more than one is set.
func (s Step) Kind() string {
	set := map[string]bool{
		StepRun:         s.Step != 0,
		StepPause:       s.Pause != "",
		StepResume:      s.Resume != "",
		StepAddPhase:    s.AddPhase != nil,
		StepInvalidate:  s.Invalidate != nil,
		StepResetTiming: s.ResetTiming,
	}
	kind := ""
	for k, on := range set {
		if !on {
			continue
		}
		if kind != "" {
			return ""
		}
		kind = k
	}
	return kind
}

// Interval returns the parsed Every, defaulting to DefaultStepInterval.
func (s Step) Interval() time.Duration {
	if s.Every == "" {
		return DefaultStepInterval
	}
	d, err := time.ParseDuration(s.Every)
	if err != nil || d < 0 {
		return DefaultStepInterval
	}
	return d
}

// Assertion validates the trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Frame is the 1-based execution index (frame_order).
	Frame int `yaml:"frame,omitempty"`

	// Root limits frame_order to one root.
	Root string `yaml:"root,omitempty"`

	// Jobs is the expected order (frame_order).
	Jobs []string `yaml:"jobs,omitempty"`

	// Job is the job id (run_count, never_ran, failed).
	Job string `yaml:"job,omitempty"`

	// Message is the log message to count (logged).
	Message string `yaml:"message,omitempty"`

	// Count is the expected number (run_count, failed, frame_count, logged).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFrameOrder = "frame_order"
	AssertRunCount   = "run_count"
	AssertNeverRan   = "never_ran"
	AssertFailed     = "failed"
	AssertFrameCount = "frame_count"
	AssertLogged     = "logged"
)

// LoadScenario reads and parses a scenario YAML file, resolving plan_file
// relative to the scenario's directory. Returns an error if the file doesn't
// exist, is malformed, contains unknown fields, or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML. baseDir resolves a relative plan_file.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.PlanFile != "" && scenario.Plan == nil {
		path := scenario.PlanFile
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		plan, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		scenario.Plan = plan
	} else if scenario.PlanFile != "" {
		return nil, fmt.Errorf("invalid scenario: plan and plan_file are mutually exclusive")
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Plan == nil {
		return errors.New("plan or plan_file is required")
	}
	if err := s.Plan.Validate(); err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		kind := step.Kind()
		if kind == "" {
			return fmt.Errorf("step %d: exactly one action is required", i+1)
		}
		if step.Step < 0 {
			return fmt.Errorf("step %d: frame count must be positive", i+1)
		}
		if step.Every != "" {
			if kind != StepRun && kind != StepInvalidate {
				return fmt.Errorf("step %d: every only applies to step and invalidate", i+1)
			}
			if d, err := time.ParseDuration(step.Every); err != nil || d < 0 {
				return fmt.Errorf("step %d: invalid every %q", i+1, step.Every)
			}
		}
		if kind == StepAddPhase && step.AddPhase.Name == "" {
			return fmt.Errorf("step %d: add_phase requires a name", i+1)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i+1, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertFrameOrder:
		if a.Frame < 1 {
			return errors.New("frame_order requires frame >= 1")
		}
	case AssertRunCount, AssertNeverRan, AssertFailed:
		if a.Job == "" {
			return fmt.Errorf("%s requires job", a.Type)
		}
	case AssertFrameCount:
	case AssertLogged:
		if a.Message == "" {
			return errors.New("logged requires message")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
