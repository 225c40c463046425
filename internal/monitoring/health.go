// Package monitoring wires the assistant's dependencies into liveness
// and readiness probes.
package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lewisedginton/log_analysis_assistant/internal/storage"
	"github.com/lewisedginton/log_analysis_assistant/pkg/health"
	"github.com/lewisedginton/log_analysis_assistant/pkg/health/checkers"
	"github.com/lewisedginton/log_analysis_assistant/pkg/logger"
)

// ConnectionChecker reports whether the model endpoint is usable.
type ConnectionChecker interface {
	CheckConnection(ctx context.Context) (bool, string)
}

// Config for the HealthMonitor.
type Config struct {
	Logger logger.Logger

	// Model is probed on readiness; nil skips the check.
	Model ConnectionChecker

	// Endpoint is the base URL of the model API. When set, readiness
	// additionally probes its tags listing with a plain HTTP GET, which
	// distinguishes an unreachable daemon from a missing model.
	Endpoint string

	// Storage is probed on readiness with a cheap existence call; nil
	// skips the check.
	Storage storage.FileProvider

	Timeout          time.Duration
	FailureThreshold int
}

// HealthMonitor exposes liveness and readiness handlers.
type HealthMonitor struct {
	checker *health.HealthChecker
}

// NewHealthMonitor builds the probe set for the assistant.
func NewHealthMonitor(cfg Config) *HealthMonitor {
	opts := []health.Option{}
	if cfg.Logger != nil {
		opts = append(opts, health.WithLogger(cfg.Logger))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, health.WithTimeout(cfg.Timeout))
	}
	if cfg.FailureThreshold > 0 {
		opts = append(opts, health.WithFailureThreshold(cfg.FailureThreshold))
	}

	checker := health.New(opts...)

	checker.AddLivenessCheck(health.NewCheckFunc("process", func(ctx context.Context) error {
		return nil
	}))

	if cfg.Model != nil {
		checker.AddReadinessCheck(health.NewCheckFunc("model", func(ctx context.Context) error {
			ok, detail := cfg.Model.CheckConnection(ctx)
			if !ok {
				return fmt.Errorf("model endpoint not ready: %s", detail)
			}
			return nil
		}))
	}

	if cfg.Endpoint != "" {
		url := strings.TrimRight(cfg.Endpoint, "/") + "/api/tags"
		checker.AddReadinessCheck(checkers.NewHTTPChecker(url, "model-endpoint"))
	}

	if cfg.Storage != nil {
		checker.AddReadinessCheck(health.NewCheckFunc("storage", func(ctx context.Context) error {
			if _, err := cfg.Storage.Exists(ctx, "knowledge.json"); err != nil {
				return fmt.Errorf("storage backend not ready: %w", err)
			}
			return nil
		}))
	}

	return &HealthMonitor{checker: checker}
}

// LivenessHandler serves the liveness probe.
func (m *HealthMonitor) LivenessHandler() http.HandlerFunc {
	return m.checker.LivenessHandler()
}

// ReadinessHandler serves the readiness probe.
func (m *HealthMonitor) ReadinessHandler() http.HandlerFunc {
	return m.checker.ReadinessHandler()
}
