package monitoring

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lewisedginton/log_analysis_assistant/internal/storage"
	"github.com/lewisedginton/log_analysis_assistant/pkg/logger"
)

type stubChecker struct {
	ok     bool
	detail string
}

func (s stubChecker) CheckConnection(ctx context.Context) (bool, string) {
	return s.ok, s.detail
}

func testLogger() logger.Logger {
	return logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func TestLivenessAlwaysHealthy(t *testing.T) {
	m := NewHealthMonitor(Config{Logger: testLogger(), Model: stubChecker{ok: false}})

	rec := httptest.NewRecorder()
	m.LivenessHandler()(rec, httptest.NewRequest("GET", "/health/live", nil))
	assert.Equal(t, 200, rec.Code)
}

func TestReadinessReflectsModel(t *testing.T) {
	provider := storage.NewLocalProvider(t.TempDir())

	ready := NewHealthMonitor(Config{
		Logger:           testLogger(),
		Model:            stubChecker{ok: true},
		Storage:          provider,
		FailureThreshold: 1,
	})
	rec := httptest.NewRecorder()
	ready.ReadinessHandler()(rec, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, 200, rec.Code)

	notReady := NewHealthMonitor(Config{
		Logger:           testLogger(),
		Model:            stubChecker{ok: false, detail: "no models registered"},
		FailureThreshold: 1,
	})
	rec = httptest.NewRecorder()
	notReady.ReadinessHandler()(rec, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, 503, rec.Code)
	assert.Contains(t, rec.Body.String(), "no models registered")
}

func TestReadinessProbesModelEndpoint(t *testing.T) {
	var probedPath string
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probedPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	m := NewHealthMonitor(Config{Logger: testLogger(), Endpoint: healthy.URL, FailureThreshold: 1})
	rec := httptest.NewRecorder()
	m.ReadinessHandler()(rec, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "/api/tags", probedPath)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	m = NewHealthMonitor(Config{Logger: testLogger(), Endpoint: broken.URL, FailureThreshold: 1})
	rec = httptest.NewRecorder()
	m.ReadinessHandler()(rec, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, 503, rec.Code)
}
