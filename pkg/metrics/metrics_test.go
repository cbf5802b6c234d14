package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrape-gate/pkg/models"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveBackendRequest("policy", "ok")
	m.ObserveBackendRequest("policy", "ok")
	m.ObserveBackendRequest("content", "error")
	m.ObserveResult(models.StatusDone)
	m.ObserveResult(models.StatusBlocked)
	m.BatchStarted()
	m.BatchStarted()
	m.BatchFinished(time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BackendRequestsTotal.WithLabelValues("policy", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendRequestsTotal.WithLabelValues("content", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResultsTotal.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResultsTotal.WithLabelValues("blocked")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BatchesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesInFlight))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "/api/health", "200", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `scrape_gate_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBackendRequest("policy", "ok")
		m.ObserveResult(models.StatusFailed)
		m.BatchStarted()
		m.BatchFinished(time.Second)
		m.ObserveHTTP("GET", "/", "200", time.Millisecond)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
