package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lewisedginton/log_analysis_assistant/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() logger.Logger {
	return logger.NewLogger(logger.Config{Level: logger.DebugLevel, Output: io.Discard})
}

func TestNewRegistersPipelineCollectors(t *testing.T) {
	m := New(false, newTestLogger())

	m.KnowledgeSearchesCounter.Inc()
	m.SearchCacheHitsCounter.Inc()
	m.ModelCallsCounter.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.KnowledgeSearchesCounter))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchCacheHitsCounter))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelCallsCounter))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ModelTimeoutsCounter))
}

func TestHTTPMiddlewareCountsRequests(t *testing.T) {
	m := New(true, newTestLogger())

	handler := m.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TotalHTTPRequestsCounter))
	require.Contains(t, m.HTTPRequestsCounters, http.StatusTeapot)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsCounters[http.StatusTeapot]))
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	m := New(false, newTestLogger())
	m.KnowledgeSearchesCounter.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "assistant_knowledge_searches_total")
}
