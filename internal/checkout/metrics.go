// Package checkout provides metrics for payment attempt orchestration.
package checkout

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricAttemptsStarted = "checkout_attempts_started_total"
	MetricAttemptOutcomes = "checkout_attempt_outcomes_total"
	MetricPollTicks       = "checkout_poll_ticks_total"
	MetricPollErrors      = "checkout_poll_errors_total"
	MetricAttemptDuration = "checkout_attempt_duration_seconds"
)

// Metrics contains Prometheus metrics for payment attempts.
// All operations are thread-safe, and every method is safe on a nil
// receiver so metrics stay optional in tests.
type Metrics struct {
	attemptsStarted prometheus.Counter
	attemptOutcomes *prometheus.CounterVec
	pollTicks       prometheus.Counter
	pollErrors      prometheus.Counter
	attemptDuration prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		attemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricAttemptsStarted,
			Help: "Total number of payment attempts started",
		}),
		attemptOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricAttemptOutcomes,
			Help: "Total number of payment attempts by terminal outcome",
		}, []string{"outcome"}),
		pollTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPollTicks,
			Help: "Total number of session status queries issued by pollers",
		}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPollErrors,
			Help: "Total number of transient status query failures",
		}),
		attemptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricAttemptDuration,
			Help:    "Histogram of attempt duration from initiation to terminal outcome in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.attemptsStarted,
		m.attemptOutcomes,
		m.pollTicks,
		m.pollErrors,
		m.attemptDuration,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) incAttemptsStarted() {
	if m == nil {
		return
	}
	m.attemptsStarted.Inc()
}

func (m *Metrics) incOutcome(kind OutcomeKind) {
	if m == nil {
		return
	}
	m.attemptOutcomes.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) incPollTicks() {
	if m == nil {
		return
	}
	m.pollTicks.Inc()
}

func (m *Metrics) incPollErrors() {
	if m == nil {
		return
	}
	m.pollErrors.Inc()
}

func (m *Metrics) observeAttemptDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.attemptDuration.Observe(d.Seconds())
}
