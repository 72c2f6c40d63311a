package harness

import (
	"fmt"
	"strings"
	"time"
)

// FrameTrace is one executed frame as read back from the trace store.
type FrameTrace struct {
	Number    int64
	Time      time.Duration
	Delta     time.Duration
	Throttled int
	Runs      []RunTrace
}

// RunTrace is one job run inside a frame.
type RunTrace struct {
	Root  string
	Phase string
	Job   string
	Error string
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool

	// Frames lists executed frames in execution order.
	Frames []FrameTrace

	// Errors contains assertion failure messages.
	Errors []string

	logs string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Frames: []FrameTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Format renders the trace as stable text: a header line, then one line per
// frame and an indented line per job run.
func (r *Result) Format(name string) []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario: %s\n", name)
	for _, f := range r.Frames {
		fmt.Fprintf(&buf, "frame %d time=%s delta=%s throttled=%d\n", f.Number, f.Time, f.Delta, f.Throttled)
		for _, run := range f.Runs {
			fmt.Fprintf(&buf, "  %s %s %s", run.Root, run.Phase, run.Job)
			if run.Error != "" {
				fmt.Fprintf(&buf, " error=%q", run.Error)
			}
			buf.WriteByte('\n')
		}
	}
	return []byte(buf.String())
}
