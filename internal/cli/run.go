package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/frameloop/internal/config"
	"github.com/roach88/frameloop/internal/loop"
	"github.com/roach88/frameloop/internal/metrics"
	"github.com/roach88/frameloop/internal/scheduler"
	"github.com/roach88/frameloop/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Frames      int
	Database    string
	MetricsAddr string

	// Clock overrides the monotonic clock (for testing).
	Clock loop.Clock
}

// RunResult summarises a finished run.
type RunResult struct {
	Mode    string `json:"mode"`
	Frames  int64  `json:"frames"`
	Elapsed string `json:"elapsed"`
	Roots   int    `json:"roots"`
	Jobs    int    `json:"jobs"`
}

func (r RunResult) String() string {
	return fmt.Sprintf("ran %d frame(s) in %s mode (elapsed %s, %d root(s), %d job(s))",
		r.Frames, r.Mode, r.Elapsed, r.Roots, r.Jobs)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <plan>",
		Short: "Drive a plan with the real ticker",
		Long: `Register a plan with no-op jobs and drive it with the ticker.

Continuous plans tick at the plan's interval until --frames frames have run
or the process is interrupted. On-demand plans request --frames frames (at
least one) and stop when the loop goes idle. Manual plans step --frames
frames synchronously.

With --db every frame and job run is recorded to SQLite; inspect it with
"frameloop trace". With --metrics-addr Prometheus metrics are served on
/metrics for the duration of the run.

Examples:
  frameloop run ./world.yaml --frames 120
  frameloop run ./world.yaml --db ./trace.db --metrics-addr :9090`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Frames, "frames", 0, "stop after this many frames (0 runs until interrupted)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record frames to this SQLite database")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runPlan(opts *RunOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if opts.Frames < 0 {
		return f.Failure(ExitCommandError, ErrCodeGeneric, "--frames must not be negative", nil)
	}

	plan, err := loadPlan(f, path)
	if err != nil {
		return err
	}
	if len(plan.Roots) == 0 {
		return f.Failure(ExitFailure, ErrCodeInvalidPlan, "plan declares no roots", nil)
	}
	mode := plan.SchedulerMode()
	if mode == scheduler.ModeManual && opts.Frames == 0 {
		return f.Failure(ExitCommandError, ErrCodeGeneric, "manual plans require --frames", nil)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	clock := opts.Clock
	if clock == nil {
		clock = loop.NewMonotonicClock()
	}
	ticker := loop.NewTicker(plan.TickInterval(), clock, logger)

	schedOpts := append(plan.Options(),
		scheduler.WithLogger(logger),
		scheduler.WithClock(clock),
		scheduler.WithDriver(ticker),
	)

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return f.Failure(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		schedOpts = append(schedOpts, scheduler.WithObserver(st.Recorder(logger)))
		logger.Info("recording frames", "db", opts.Database)
	}

	if opts.MetricsAddr != "" {
		reg, m := metrics.NewRegistry()
		schedOpts = append(schedOpts, scheduler.WithObserver(m))

		stopServer, err := serveMetrics(opts.MetricsAddr, reg, logger)
		if err != nil {
			return f.Failure(ExitCommandError, ErrCodeGeneric, "failed to start metrics server", err)
		}
		defer stopServer()
	}

	// s is assigned before any frame can run: the loop starts inside Apply.
	var s *scheduler.Scheduler
	var once sync.Once
	if opts.Frames > 0 && mode == scheduler.ModeContinuous {
		limit := int64(opts.Frames)
		schedOpts = append(schedOpts, scheduler.WithObserver(scheduler.FrameObserverFunc(func(rec scheduler.FrameRecord) {
			if rec.Number >= limit {
				once.Do(func() {
					s.Stop()
					cancel()
				})
			}
		})))
	}

	s = scheduler.New(schedOpts...)
	if mode == scheduler.ModeOnDemand {
		s.OnIdle(cancel)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("frameloop starting", "plan", path, "mode", mode, "interval", ticker.Interval())
	plan.Apply(s, noopJobs(logger), nil)

	switch mode {
	case scheduler.ModeManual:
		for n := 0; n < opts.Frames; n++ {
			s.Step()
		}
		cancel()
	case scheduler.ModeOnDemand:
		s.Invalidate(max(opts.Frames, 1), false)
	}

	<-ctx.Done()
	s.Stop()
	ticker.Wait()

	stats := s.Stats()
	logger.Info("frameloop stopped", "frames", stats.Frame)

	return f.Success(RunResult{
		Mode:    string(mode),
		Frames:  stats.Frame,
		Elapsed: stats.Elapsed.String(),
		Roots:   stats.Roots,
		Jobs:    len(plan.Jobs),
	})
}

// noopJobs gives every planned job a callback that only logs at debug level.
func noopJobs(logger *slog.Logger) config.JobFactory {
	return func(spec config.JobSpec) scheduler.JobFunc {
		id := spec.ID
		return func(f scheduler.Frame, delta time.Duration) error {
			logger.Debug("job ran", "job", id, "frame", f.Number, "delta", delta)
			return nil
		}
	}
}

// serveMetrics serves reg on addr under /metrics until the returned func is
// called.
func serveMetrics(addr string, reg prometheus.Gatherer, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HandlerFor(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("metrics server shutdown", "error", err)
		}
	}, nil
}
