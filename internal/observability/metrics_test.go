package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveCompletion(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.ObserveCompletion("openai", "ok", 1500*time.Millisecond)
	m.ObserveCompletion("openai", "ok", 300*time.Millisecond)
	m.ObserveCompletion("openai", "API_ERROR", 10*time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.Completions.WithLabelValues("openai", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Completions.WithLabelValues("openai", "API_ERROR")))
	require.Equal(t, 1, testutil.CollectAndCount(m.CompletionLatency))
}

func TestGaugesAndCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.SetActiveSessions(3)
	m.ObserveDocumentUpload("ok")
	m.ObserveDocumentUpload("PARSE_ERROR")
	m.ObserveStreamEvent("sse", "delta")

	require.Equal(t, 3.0, testutil.ToFloat64(m.ActiveSessions))
	require.Equal(t, 1.0, testutil.ToFloat64(m.DocumentUploads.WithLabelValues("PARSE_ERROR")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.StreamEvents.WithLabelValues("sse", "delta")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCompletion("ark", "ok", time.Second)
	m.SetActiveSessions(1)
	m.ObserveDocumentUpload("ok")
	m.ObserveStreamEvent("ws", "message")
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("zanalyst", reg)
	m.SetActiveSessions(2)

	rec := httptest.NewRecorder()
	MetricsHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	require.Contains(t, string(body), "zanalyst_active_sessions 2")
}
