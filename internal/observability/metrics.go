package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions    prometheus.Gauge
	Completions       *prometheus.CounterVec
	CompletionLatency *prometheus.HistogramVec
	DocumentUploads   *prometheus.CounterVec
	StreamEvents      *prometheus.CounterVec
}

// NewMetrics registers the instruments on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live chat sessions.",
		}),
		Completions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Completion calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		CompletionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_latency_ms",
			Help:      "Completion call latency in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 15000, 30000, 60000},
		}, []string{"provider"}),
		DocumentUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_uploads_total",
			Help:      "Document uploads by outcome.",
		}, []string{"outcome"}),
		StreamEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_total",
			Help:      "Outbound SSE and WebSocket events by transport and type.",
		}, []string{"transport", "type"}),
	}
}

// ObserveCompletion implements ai.Recorder.
func (m *Metrics) ObserveCompletion(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Completions.WithLabelValues(provider, outcome).Inc()
	m.CompletionLatency.WithLabelValues(provider).Observe(float64(elapsed.Milliseconds()))
}

// SetActiveSessions records the current session count.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// ObserveDocumentUpload counts an upload by outcome ("ok" or an error code).
func (m *Metrics) ObserveDocumentUpload(outcome string) {
	if m == nil {
		return
	}
	m.DocumentUploads.WithLabelValues(outcome).Inc()
}

// ObserveStreamEvent counts one outbound event.
func (m *Metrics) ObserveStreamEvent(transport, eventType string) {
	if m == nil {
		return
	}
	m.StreamEvents.WithLabelValues(transport, eventType).Inc()
}

// MetricsHandler serves the given gatherer; nil means the default registry.
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
