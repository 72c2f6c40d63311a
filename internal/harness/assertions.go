package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Frames   []FrameTrace // executed frames for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Frames) > 0 {
		fmt.Fprintf(&buf, "\nExecuted frames:\n")
		for i, f := range e.Frames {
			fmt.Fprintf(&buf, "  [%d] %v\n", i+1, jobsOf(f, ""))
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. An empty slice means all passed.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	failures := []string{}
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertFrameOrder:
		return assertFrameOrder(result.Frames, a)
	case AssertRunCount:
		return assertCount(result.Frames, a, a.Type, a.Count, func(RunTrace) bool { return true })
	case AssertNeverRan:
		return assertCount(result.Frames, a, a.Type, 0, func(RunTrace) bool { return true })
	case AssertFailed:
		return assertCount(result.Frames, a, a.Type, a.Count, func(r RunTrace) bool { return r.Error != "" })
	case AssertFrameCount:
		if len(result.Frames) != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d frames", a.Count),
				Actual:   fmt.Sprintf("%d frames", len(result.Frames)),
			}
		}
		return nil
	case AssertLogged:
		n := 0
		for _, line := range strings.Split(result.logs, "\n") {
			if strings.Contains(line, a.Message) {
				n++
			}
		}
		if n != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d log lines containing %q", a.Count, a.Message),
				Actual:   fmt.Sprintf("%d", n),
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertFrameOrder checks the exact job order of one frame.
func assertFrameOrder(frames []FrameTrace, a Assertion) error {
	if a.Frame > len(frames) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("frame %d to exist", a.Frame),
			Actual:   fmt.Sprintf("only %d frames executed", len(frames)),
			Frames:   frames,
		}
	}

	got := jobsOf(frames[a.Frame-1], a.Root)
	want := a.Jobs
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("frame %d order %v", a.Frame, want),
			Actual:   fmt.Sprintf("%v", got),
			Frames:   frames,
		}
	}
	return nil
}

func assertCount(frames []FrameTrace, a Assertion, kind string, want int, match func(RunTrace) bool) error {
	n := 0
	for _, f := range frames {
		for _, r := range f.Runs {
			if r.Job == a.Job && match(r) {
				n++
			}
		}
	}
	if n != want {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%s counted %d times", a.Job, want),
			Actual:   fmt.Sprintf("%d times", n),
			Frames:   frames,
		}
	}
	return nil
}

func jobsOf(f FrameTrace, root string) []string {
	jobs := []string{}
	for _, r := range f.Runs {
		if root == "" || r.Root == root {
			jobs = append(jobs, r.Job)
		}
	}
	return jobs
}
