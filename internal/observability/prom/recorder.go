package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"spraykit/internal/core"
	"spraykit/internal/observability"
)

type Recorder struct {
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	passesTotal     *prometheus.CounterVec
	passDuration    prometheus.Histogram
}

func NewRecorder(registerer prometheus.Registerer) *Recorder {
	r := &Recorder{
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spraykit_attempts_total",
				Help: "Number of completed authentication attempts by outcome.",
			},
			[]string{"outcome"},
		),

		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spraykit_attempt_duration_seconds",
				Help:    "Duration of an authentication attempt in seconds by outcome.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),

		passesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spraykit_passes_total",
				Help: "Number of finished spray passes by status (completed/cancelled).",
			},
			[]string{"status"},
		),

		passDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "spraykit_pass_duration_seconds",
				Help:    "Wall-clock duration of a spray pass in seconds.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
	}

	registerer.MustRegister(
		r.attemptsTotal,
		r.attemptDuration,
		r.passesTotal,
		r.passDuration,
	)

	return r
}

var _ observability.Recorder = (*Recorder)(nil)

func (r *Recorder) RecordAttempt(kind core.OutcomeKind, latency time.Duration) {
	outcome := kind.String()
	r.attemptsTotal.WithLabelValues(outcome).Inc()
	r.attemptDuration.WithLabelValues(outcome).Observe(latency.Seconds())
}

func (r *Recorder) RecordPass(pass observability.Pass) {
	status := "completed"
	if pass.Cancelled {
		status = "cancelled"
	}
	r.passesTotal.WithLabelValues(status).Inc()
	r.passDuration.Observe(pass.Elapsed.Seconds())
}
