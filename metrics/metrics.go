// Package metrics exposes Prometheus instrumentation for the chat
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the pipeline's Prometheus collectors. A nil *Metrics
// is safe to use; every method becomes a no-op, which keeps tests and
// library callers free of registry setup.
type Metrics struct {
	chatRequests    *prometheus.CounterVec
	fetchFailures   *prometheus.CounterVec
	searchFailures  prometheus.Counter
	modelDuration   prometheus.Histogram
	contextChars    prometheus.Histogram
	recordsFetched  prometheus.Histogram
}

// New registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		chatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetchat",
			Name:      "chat_requests_total",
			Help:      "Chat requests by outcome.",
		}, []string{"outcome"}),
		fetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetchat",
			Name:      "source_fetch_failures_total",
			Help:      "Upstream source fetch failures by source kind.",
		}, []string{"kind"}),
		searchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sheetchat",
			Name:      "web_search_failures_total",
			Help:      "Web search calls that failed and were skipped.",
		}),
		modelDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sheetchat",
			Name:      "model_call_duration_seconds",
			Help:      "Latency of completion service calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		contextChars: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sheetchat",
			Name:      "prompt_context_chars",
			Help:      "Rendered prompt context size in characters.",
			Buckets:   prometheus.ExponentialBuckets(1024, 2, 8),
		}),
		recordsFetched: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sheetchat",
			Name:      "records_fetched",
			Help:      "Records fetched per chat request.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000},
		}),
	}
}

// ChatRequest records one chat request with its outcome
// ("ok", "bad_request", "source_error", "model_error").
func (m *Metrics) ChatRequest(outcome string) {
	if m == nil {
		return
	}
	m.chatRequests.WithLabelValues(outcome).Inc()
}

// FetchFailure records one upstream fetch failure for a source kind.
func (m *Metrics) FetchFailure(kind string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(kind).Inc()
}

// SearchFailure records one skipped web search.
func (m *Metrics) SearchFailure() {
	if m == nil {
		return
	}
	m.searchFailures.Inc()
}

// ObserveModelCall records a completion call duration in seconds.
func (m *Metrics) ObserveModelCall(seconds float64) {
	if m == nil {
		return
	}
	m.modelDuration.Observe(seconds)
}

// ObserveContext records the assembled context size and record count.
func (m *Metrics) ObserveContext(chars, records int) {
	if m == nil {
		return
	}
	m.contextChars.Observe(float64(chars))
	m.recordsFetched.Observe(float64(records))
}
