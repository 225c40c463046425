// Package metrics provides Prometheus metrics collection for the assistant.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lewisedginton/log_analysis_assistant/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const subsystem = "assistant"

// Metrics collects HTTP and pipeline metrics on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	TotalHTTPRequestsCounter prometheus.Counter
	HTTPRequestsCounters     map[int]prometheus.Counter
	HTTPDurationHistogram    prometheus.Histogram

	KnowledgeSearchesCounter prometheus.Counter
	SearchCacheHitsCounter   prometheus.Counter
	RetrievalTimeoutsCounter prometheus.Counter
	ModelCallsCounter        prometheus.Counter
	ModelTimeoutsCounter     prometheus.Counter
	ModelErrorsCounter       prometheus.Counter
	ModelDurationHistogram   prometheus.Histogram

	server *http.Server
	log    logger.Logger
}

// New creates a Metrics instance. HTTP counters are registered when
// httpCounters is true; the pipeline collectors are always registered.
func New(httpCounters bool, l logger.Logger) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		log: l,
	}

	if httpCounters {
		m.TotalHTTPRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "total_http_requests",
			Help:      "Total HTTP requests",
		})
		m.reg.MustRegister(m.TotalHTTPRequestsCounter)
		m.HTTPRequestsCounters = make(map[int]prometheus.Counter)

		m.HTTPDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 1.0, 3.0, 5.0, 7.0, 10.0},
		})
		m.reg.MustRegister(m.HTTPDurationHistogram)
	}

	m.KnowledgeSearchesCounter = newCounter("knowledge_searches_total", "Total knowledge base searches")
	m.SearchCacheHitsCounter = newCounter("search_cache_hits_total", "Knowledge searches served from cache")
	m.RetrievalTimeoutsCounter = newCounter("retrieval_timeouts_total", "Context retrievals abandoned at deadline")
	m.ModelCallsCounter = newCounter("model_calls_total", "Total model invocations")
	m.ModelTimeoutsCounter = newCounter("model_timeouts_total", "Model invocations abandoned at deadline")
	m.ModelErrorsCounter = newCounter("model_errors_total", "Model invocations failed upstream")
	m.ModelDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Subsystem: subsystem,
		Name:      "model_call_duration_seconds",
		Help:      "Model call duration in seconds",
		Buckets:   []float64{0.5, 1.0, 2.5, 5.0, 10.0, 15.0, 20.0, 30.0},
	})
	m.reg.MustRegister(
		m.KnowledgeSearchesCounter,
		m.SearchCacheHitsCounter,
		m.RetrievalTimeoutsCounter,
		m.ModelCallsCounter,
		m.ModelTimeoutsCounter,
		m.ModelErrorsCounter,
		m.ModelDurationHistogram,
	)

	return m
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

// Register registers a custom Prometheus collector on the private registry.
func (m *Metrics) Register(c prometheus.Collector) {
	m.reg.MustRegister(c)
}

// Handler returns the /metrics handler for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Listen starts the metrics HTTP server on the specified port.
// It returns immediately; errors are logged.
func (m *Metrics) Listen(port int) {
	m.log.Info("Starting metrics listener", logger.IntField("port", port))
	mux := http.NewServeMux()
	mux.Handle("/", http.NotFoundHandler())
	mux.Handle("/metrics", m.Handler())
	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.log.Error("Metrics listener failed", logger.ErrorField(err))
		}
	}()
}

// Shutdown stops the metrics HTTP server if it was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

// IncrementHTTPResponseCounter increments the counter for the given HTTP status code.
func (m *Metrics) IncrementHTTPResponseCounter(code int) {
	_, ok := m.HTTPRequestsCounters[code]
	if !ok {
		m.HTTPRequestsCounters[code] = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      fmt.Sprintf("total_%d_http_responses", code),
			Help:      fmt.Sprintf("Total %s HTTP responses returned", http.StatusText(code)),
		})
		m.reg.MustRegister(m.HTTPRequestsCounters[code])
	}
	m.HTTPRequestsCounters[code].Inc()
}

// HTTPMiddleware returns a chi-compatible middleware that tracks HTTP metrics.
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.TotalHTTPRequestsCounter.Inc()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			m.HTTPDurationHistogram.Observe(time.Since(start).Seconds())
			m.IncrementHTTPResponseCounter(rw.statusCode)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
