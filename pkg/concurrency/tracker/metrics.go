package tracker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stratumdb/stratum/pkg/concurrency"
)

// Label constants for metrics.
const (
	LabelLevel  = "level"
	LabelMode   = "mode"
	LabelStatus = "status"
)

// Status constants for lock operations.
const (
	StatusGranted = "granted"
	StatusTimeout = "timeout"
)

// Metrics provides Prometheus metrics for the lock tracker. All methods are
// nil-safe so the table can run unmetered.
type Metrics struct {
	acquireTotal     *prometheus.CounterVec
	releaseTotal     *prometheus.CounterVec
	grantedLocks     *prometheus.GaugeVec
	blockingDuration *prometheus.HistogramVec
	tempReleaseTotal *prometheus.CounterVec

	registered bool
}

// NewMetrics creates and registers tracker metrics.
// If registry is nil, metrics are created but not registered (useful for
// testing).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		acquireTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stratum",
				Subsystem: "locks",
				Name:      "acquire_total",
				Help:      "Total number of lock acquire attempts",
			},
			[]string{LabelLevel, LabelMode, LabelStatus},
		),

		releaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stratum",
				Subsystem: "locks",
				Name:      "release_total",
				Help:      "Total number of lock releases",
			},
			[]string{LabelLevel},
		),

		grantedLocks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "stratum",
				Subsystem: "locks",
				Name:      "granted",
				Help:      "Locks currently granted by the conflict table",
			},
			[]string{LabelLevel},
		),

		blockingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stratum",
				Subsystem: "locks",
				Name:      "blocking_duration_seconds",
				Help:      "Time spent waiting for a lock",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{LabelLevel},
		),

		tempReleaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stratum",
				Subsystem: "locks",
				Name:      "temp_release_total",
				Help:      "Total number of temporary-release attempts",
			},
			[]string{LabelStatus},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.acquireTotal,
			m.releaseTotal,
			m.grantedLocks,
			m.blockingDuration,
			m.tempReleaseTotal,
		)
		m.registered = true
	}

	return m
}

// ObserveAcquire records a lock acquire attempt.
func (m *Metrics) ObserveAcquire(level concurrency.ResourceLevel, mode concurrency.LockMode, status string) {
	if m == nil {
		return
	}
	m.acquireTotal.WithLabelValues(level.String(), mode.String(), status).Inc()
}

// ObserveRelease records a true (count reached zero) lock release.
func (m *Metrics) ObserveRelease(level concurrency.ResourceLevel) {
	if m == nil {
		return
	}
	m.releaseTotal.WithLabelValues(level.String()).Inc()
	m.grantedLocks.WithLabelValues(level.String()).Dec()
}

// ObserveGrant records a newly granted (non-conversion) lock.
func (m *Metrics) ObserveGrant(level concurrency.ResourceLevel) {
	if m == nil {
		return
	}
	m.grantedLocks.WithLabelValues(level.String()).Inc()
}

// ObserveBlockingDuration records time spent waiting for a lock.
func (m *Metrics) ObserveBlockingDuration(level concurrency.ResourceLevel, duration time.Duration) {
	if m == nil {
		return
	}
	m.blockingDuration.WithLabelValues(level.String()).Observe(duration.Seconds())
}

// ObserveTempRelease records a temporary-release attempt. released is false
// when recursive holds made the state unreleasable.
func (m *Metrics) ObserveTempRelease(released bool) {
	if m == nil {
		return
	}
	status := "released"
	if !released {
		status = "skipped"
	}
	m.tempReleaseTotal.WithLabelValues(status).Inc()
}
