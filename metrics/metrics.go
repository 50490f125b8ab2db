// Package metrics exposes the Prometheus instrumentation for the dispatch
// loop. All metrics live under the chatmesh namespace.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chatmesh"

// Metrics bundles the dispatch-loop collectors. A nil *Metrics is a valid
// no-op receiver so instrumentation can be disabled in tests.
type Metrics struct {
	dispatches          *prometheus.CounterVec
	dispatchDuration    *prometheus.HistogramVec
	failures            *prometheus.CounterVec
	activeConversations prometheus.Gauge
	purgedSessions      prometheus.Counter
}

// New registers the collectors with reg and returns the bundle. Passing
// prometheus.DefaultRegisterer wires the standard /metrics endpoint.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Messages dispatched, labeled by the handler that answered.",
		}, []string{"handler"}),
		dispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "End-to-end dispatch latency, labeled by handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Dispatches that fell back after a handler failure.",
		}, []string{"handler"}),
		activeConversations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_conversations",
			Help:      "Conversations with a live dispatch worker.",
		}),
		purgedSessions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purged_sessions_total",
			Help:      "Terminal sessions removed by the janitor.",
		}),
	}
}

// ObserveDispatch records one completed dispatch.
func (m *Metrics) ObserveDispatch(handler string, d time.Duration) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(handler).Inc()
	m.dispatchDuration.WithLabelValues(handler).Observe(d.Seconds())
}

// IncFailure records a handler failure that triggered the fallback path.
func (m *Metrics) IncFailure(handler string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(handler).Inc()
}

// SetActiveConversations tracks the live worker count.
func (m *Metrics) SetActiveConversations(n int) {
	if m == nil {
		return
	}
	m.activeConversations.Set(float64(n))
}

// AddPurged records sessions removed by a janitor sweep.
func (m *Metrics) AddPurged(n int) {
	if m == nil {
		return
	}
	m.purgedSessions.Add(float64(n))
}
