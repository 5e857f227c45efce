// Package metrics registers the Prometheus collectors exported by a meshbus
// daemon: resolution outcomes, publish fan-out, and transport retry
// behavior.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "meshbus"

// HubMetrics tracks the outcome of every Handle and Publish call.
//
// Metrics:
//   - meshbus_hub_resolutions_total: resolutions by scope and final status
//   - meshbus_hub_resolution_duration_seconds: resolution latency
//   - meshbus_hub_publishes_total: publishes by scope and outcome
type HubMetrics struct {
	ResolutionsTotal        *prometheus.CounterVec
	ResolutionDurationSecs  *prometheus.HistogramVec
	PublishesTotal          *prometheus.CounterVec
}

var (
	hubOnce     sync.Once
	hubInstance *HubMetrics
)

// NewHubMetrics returns the process-wide HubMetrics singleton, registering
// its collectors with the default Prometheus registry on first use.
func NewHubMetrics() *HubMetrics {
	hubOnce.Do(func() {
		hubInstance = &HubMetrics{
			ResolutionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "hub",
					Name:      "resolutions_total",
					Help:      "Total Handle() calls by hub scope and final status.",
				},
				[]string{"scope", "status"},
			),
			ResolutionDurationSecs: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Subsystem: "hub",
					Name:      "resolution_duration_seconds",
					Help:      "Handle() latency in seconds.",
					Buckets:   []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
				},
				[]string{"scope"},
			),
			PublishesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "hub",
					Name:      "publishes_total",
					Help:      "Total Publish() calls by hub scope and outcome.",
				},
				[]string{"scope", "outcome"},
			),
		}
	})
	return hubInstance
}

// RetryMetrics tracks transport-adapter retry/reconnect behavior.
type RetryMetrics struct {
	AttemptsTotal      *prometheus.CounterVec
	DurationSeconds    *prometheus.HistogramVec
	BackoffSeconds     *prometheus.HistogramVec
	FinalAttemptsTotal *prometheus.HistogramVec
}

var (
	retryOnce     sync.Once
	retryInstance *RetryMetrics
)

// NewRetryMetrics returns the process-wide RetryMetrics singleton.
func NewRetryMetrics() *RetryMetrics {
	retryOnce.Do(func() {
		retryInstance = &RetryMetrics{
			AttemptsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "retry",
					Name:      "attempts_total",
					Help:      "Total retry attempts by operation, outcome and error type.",
				},
				[]string{"operation", "outcome", "error_type"},
			),
			DurationSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Subsystem: "retry",
					Name:      "duration_seconds",
					Help:      "Duration of a retried operation from start to completion.",
					Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
				},
				[]string{"operation", "outcome"},
			),
			BackoffSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Subsystem: "retry",
					Name:      "backoff_seconds",
					Help:      "Backoff delay waited before a retry attempt.",
					Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5},
				},
				[]string{"operation"},
			),
			FinalAttemptsTotal: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Subsystem: "retry",
					Name:      "final_attempts_total",
					Help:      "Number of attempts made until final success or failure.",
					Buckets:   []float64{1, 2, 3, 4, 5, 10, 20},
				},
				[]string{"operation", "outcome"},
			),
		}
	})
	return retryInstance
}

func (m *RetryMetrics) RecordAttempt(operation, outcome, errorType string, duration float64) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(operation, outcome, errorType).Inc()
	m.DurationSeconds.WithLabelValues(operation, outcome).Observe(duration)
}

func (m *RetryMetrics) RecordBackoff(operation string, delaySeconds float64) {
	if m == nil {
		return
	}
	m.BackoffSeconds.WithLabelValues(operation).Observe(delaySeconds)
}

func (m *RetryMetrics) RecordFinalAttempt(operation, outcome string, attempts int) {
	if m == nil {
		return
	}
	m.FinalAttemptsTotal.WithLabelValues(operation, outcome).Observe(float64(attempts))
}
