package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordRequest_IncrementsCountersAndHistogram(t *testing.T) {
	t.Parallel()

	m := New("test-service")
	m.RecordRequest(http.MethodGet, "/users/:id", http.StatusOK, 5*time.Millisecond)
	m.RecordRequest(http.MethodGet, "/users/:id", http.StatusInternalServerError, 10*time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `hypersonic_requests_total{method="GET",route="/users/:id",service="test-service",status="2xx"} 1`)
	assert.Contains(t, body, `hypersonic_requests_total{method="GET",route="/users/:id",service="test-service",status="5xx"} 1`)
	assert.Contains(t, body, `hypersonic_handler_errors_total{method="GET",route="/users/:id",service="test-service"} 1`)
	assert.Contains(t, body, "hypersonic_request_duration_seconds_count")
}

func TestActiveConnections_IncDec(t *testing.T) {
	t.Parallel()

	m := New("test-service")
	m.IncActiveConnections()
	m.IncActiveConnections()
	m.DecActiveConnections()

	body := scrape(t, m)
	assert.Contains(t, body, `hypersonic_active_connections{service="test-service"} 1`)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
