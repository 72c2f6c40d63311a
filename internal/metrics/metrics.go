// Package metrics exposes scheduler frame records as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/frameloop/internal/scheduler"
)

// Metrics holds the Prometheus metrics for a frame loop. It implements
// scheduler.FrameObserver.
type Metrics struct {
	Frames      prometheus.Counter
	Throttled   prometheus.Counter
	JobRuns     *prometheus.CounterVec
	JobFailures *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance with all metrics registered on
// registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Frames: factory.NewCounter(prometheus.CounterOpts{
			Name: "frameloop_frames_total",
			Help: "Total number of executed frames",
		}),
		Throttled: factory.NewCounter(prometheus.CounterOpts{
			Name: "frameloop_throttled_total",
			Help: "Total number of job invocations skipped by a rate limit",
		}),
		JobRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameloop_job_runs_total",
				Help: "Total number of job invocations",
			},
			[]string{"root", "job"},
		),
		JobFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameloop_job_failures_total",
				Help: "Total number of failed job invocations",
			},
			[]string{"root", "job", "kind"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "frameloop_job_duration_seconds",
				Help:    "Job callback duration in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.1},
			},
			[]string{"phase"},
		),
	}
}

// NewRegistry creates a registry with a fresh Metrics registered on it.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	return reg, NewMetrics(reg)
}

// HandlerFor returns an HTTP handler serving a specific registry.
func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveFrame implements scheduler.FrameObserver.
func (m *Metrics) ObserveFrame(rec scheduler.FrameRecord) {
	m.Frames.Inc()
	m.Throttled.Add(float64(rec.Throttled))

	for _, run := range rec.Runs {
		m.JobRuns.WithLabelValues(run.Root, run.Job).Inc()
		m.JobDuration.WithLabelValues(run.Phase).Observe(run.Duration.Seconds())
		if run.Err != nil {
			m.JobFailures.WithLabelValues(run.Root, run.Job, failureKind(run.Err)).Inc()
		}
	}
}

func failureKind(err error) string {
	if scheduler.IsPanic(err) {
		return "panic"
	}
	return "error"
}
