package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/frameloop/internal/scheduler"
	"github.com/roach88/frameloop/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Frame    int64  // optional - only frames with this number
	Job      string // optional - only runs of this job
}

// TraceFrame is one recorded frame.
type TraceFrame struct {
	Number    int64      `json:"number"`
	Time      string     `json:"time"`
	Delta     string     `json:"delta"`
	Throttled int        `json:"throttled"`
	Runs      []TraceRun `json:"runs"`
}

// TraceRun is one recorded job run.
type TraceRun struct {
	Root     string `json:"root"`
	Phase    string `json:"phase"`
	Job      string `json:"job"`
	Position int    `json:"position"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Frames   int `json:"frames"`
	Runs     int `json:"runs"`
	Failures int `json:"failures"`
	JobRuns  int `json:"job_runs,omitempty"` // every stored run of --job
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Frames []TraceFrame `json:"frames"`
	Stats  TraceStats   `json:"stats"`
}

func (r TraceResult) String() string {
	if len(r.Frames) == 0 {
		return "No frames recorded."
	}
	var b strings.Builder
	for _, f := range r.Frames {
		fmt.Fprintf(&b, "frame %d time=%s delta=%s throttled=%d\n", f.Number, f.Time, f.Delta, f.Throttled)
		for _, run := range f.Runs {
			fmt.Fprintf(&b, "  [%d] %s %s %s (%s)", run.Position, run.Root, run.Phase, run.Job, run.Duration)
			if run.Error != "" {
				fmt.Fprintf(&b, " error=%q", run.Error)
			}
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "\n%d frame(s), %d run(s), %d failure(s)", r.Stats.Frames, r.Stats.Runs, r.Stats.Failures)
	return b.String()
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print a recorded frame trace",
		Long: `Print the frames and job runs recorded by "frameloop run --db".

Frames are replayed from the database in execution order. Frame numbers
restart after a timing reset, so --frame may match more than one frame.

Examples:
  frameloop trace --db ./trace.db
  frameloop trace --db ./trace.db --frame 3
  frameloop trace --db ./trace.db --job physics --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().Int64Var(&opts.Frame, "frame", 0, "only show frames with this number")
	cmd.Flags().StringVar(&opts.Job, "job", "", "only show runs of this job")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// store.Open would create a missing database.
	if _, err := os.Stat(opts.Database); err != nil {
		return f.Failure(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return f.Failure(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	result := TraceResult{Frames: []TraceFrame{}}
	collect := scheduler.FrameObserverFunc(func(rec scheduler.FrameRecord) {
		if opts.Frame != 0 && rec.Number != opts.Frame {
			return
		}
		tf := TraceFrame{
			Number:    rec.Number,
			Time:      rec.Time.String(),
			Delta:     rec.Delta.String(),
			Throttled: rec.Throttled,
			Runs:      []TraceRun{},
		}
		for _, run := range rec.Runs {
			if opts.Job != "" && run.Job != opts.Job {
				continue
			}
			tr := TraceRun{
				Root:     run.Root,
				Phase:    run.Phase,
				Job:      run.Job,
				Position: run.Position,
				Duration: run.Duration.String(),
			}
			if run.Err != nil {
				tr.Error = run.Err.Error()
				result.Stats.Failures++
			}
			tf.Runs = append(tf.Runs, tr)
		}
		result.Stats.Runs += len(tf.Runs)
		result.Frames = append(result.Frames, tf)
	})

	if _, err := st.Replay(ctx, collect); err != nil {
		return f.Failure(ExitCommandError, ErrCodeStore, "failed to replay trace", err)
	}
	result.Stats.Frames = len(result.Frames)

	if opts.Job != "" {
		n, err := st.CountRuns(ctx, opts.Job)
		if err != nil {
			return f.Failure(ExitCommandError, ErrCodeStore, "failed to count runs", err)
		}
		result.Stats.JobRuns = n
	}

	return f.Success(result)
}
