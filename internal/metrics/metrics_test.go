package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCanonicalPathCollapsesServiceID(t *testing.T) {
	assert.Equal(t, "/services/:id", canonicalPath("/services/my-svc"))
	assert.Equal(t, "/services/:id/logs", canonicalPath("/services/my-svc/logs"))
	assert.Equal(t, "/health", canonicalPath("/health"))
}

func TestInstrumentHandlerRecordsRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/health", "200"))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := InstrumentHandler(next)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/health", "200"))
	assert.Equal(t, before+1, after)
}

func TestSupervisorMetricsImplementsInterface(t *testing.T) {
	m := SupervisorMetrics{}
	assert.NotPanics(t, func() {
		m.SpawnSucceeded("svc1")
		m.SpawnFailed("svc1")
		m.Killed("svc1")
		m.AutoRestarted("svc1")
	})
}
