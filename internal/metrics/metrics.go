// Package metrics holds the prometheus collectors shared by the API and the worker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the application's collectors on one registry.
type Metrics struct {
	registry *prometheus.Registry

	storeCalls     *prometheus.CounterVec
	storeLatency   *prometheus.HistogramVec
	feedDegraded   *prometheus.CounterVec
	moderation     *prometheus.CounterVec
	pushDeliveries *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		storeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoop_store_calls_total",
			Help: "Store calls by operation and result, counted once per logical call.",
		}, []string{"op", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scoop_store_call_seconds",
			Help:    "Store call latency including retries.",
			Buckets: prometheus.ExponentialBuckets(0.002, 2, 12),
		}, []string{"op"}),
		feedDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoop_feed_degraded_total",
			Help: "Aggregate reads served with a failed sub-step.",
		}, []string{"step"}),
		moderation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoop_moderation_decisions_total",
			Help: "Moderation decisions: allowed, blocked, fail_open.",
		}, []string{"decision"}),
		pushDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoop_push_deliveries_total",
			Help: "Push delivery attempts by provider and result.",
		}, []string{"provider", "result"}),
	}
	m.registry.MustRegister(
		m.storeCalls, m.storeLatency, m.feedDegraded, m.moderation, m.pushDeliveries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveStoreCall implements store.Observer.
func (m *Metrics) ObserveStoreCall(op, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.storeCalls.WithLabelValues(op, result).Inc()
	m.storeLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// FeedDegraded counts an aggregate read step that fell back.
func (m *Metrics) FeedDegraded(step string) {
	if m == nil {
		return
	}
	m.feedDegraded.WithLabelValues(step).Inc()
}

// ModerationDecision counts a moderation outcome.
func (m *Metrics) ModerationDecision(decision string) {
	if m == nil {
		return
	}
	m.moderation.WithLabelValues(decision).Inc()
}

// PushDelivery counts one provider send.
func (m *Metrics) PushDelivery(provider, result string) {
	if m == nil {
		return
	}
	m.pushDeliveries.WithLabelValues(provider, result).Inc()
}
