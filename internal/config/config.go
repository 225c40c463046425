// Package config defines the assistant's application configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/log_analysis_assistant/pkg/config"
)

// AppConfig is the full configuration for the assistant service.
type AppConfig struct {
	Common  config.CommonConfig     `yaml:"common"`
	Server  config.HTTPServerConfig `yaml:"server"`
	Metrics config.MetricsConfig    `yaml:"metrics"`

	Ollama    OllamaConfig    `yaml:"ollama"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Memory    MemoryConfig    `yaml:"memory"`
	Storage   StorageConfig   `yaml:"storage"`
	Archive   ArchiveConfig   `yaml:"archive"`
}

// OllamaConfig configures the model gateway.
type OllamaConfig struct {
	Host           string   `env:"OLLAMA_HOST" yaml:"host" default:"http://localhost:11434"`
	Model          string   `env:"OLLAMA_MODEL" yaml:"model" default:"llama3"`
	TimeoutSeconds int      `env:"OLLAMA_TIMEOUT_SECONDS" yaml:"timeout_seconds" default:"30"`
	Temperature    float64  `env:"OLLAMA_TEMPERATURE" yaml:"temperature" default:"0.2"`
	TopP           float64  `env:"OLLAMA_TOP_P" yaml:"top_p" default:"0.9"`
	NumPredict     int      `env:"OLLAMA_NUM_PREDICT" yaml:"num_predict" default:"1024"`
	Stop           []string `env:"OLLAMA_STOP" yaml:"stop"`
}

// KnowledgeConfig bounds the knowledge base search and retrieval.
type KnowledgeConfig struct {
	MaxResults    int `env:"KNOWLEDGE_MAX_RESULTS" yaml:"max_results" default:"5"`
	CacheCapacity int `env:"KNOWLEDGE_CACHE_CAPACITY" yaml:"cache_capacity" default:"100"`
	CachePruneTo  int `env:"KNOWLEDGE_CACHE_PRUNE_TO" yaml:"cache_prune_to" default:"50"`

	// Retrieval deadlines in milliseconds: chat turns get the longer
	// budget, diagnostics the shorter one.
	ChatDeadlineMillis        int `env:"KNOWLEDGE_CHAT_DEADLINE_MS" yaml:"chat_deadline_ms" default:"2000"`
	DiagnosticsDeadlineMillis int `env:"KNOWLEDGE_DIAG_DEADLINE_MS" yaml:"diagnostics_deadline_ms" default:"1000"`

	MaxContextChars int `env:"KNOWLEDGE_MAX_CONTEXT_CHARS" yaml:"max_context_chars" default:"800"`
}

// MemoryConfig bounds the per-session conversation window.
type MemoryConfig struct {
	WindowExchanges int `env:"MEMORY_WINDOW_EXCHANGES" yaml:"window_exchanges" default:"5"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is one of: local, s3, git.
	Backend string `env:"STORAGE_BACKEND" yaml:"backend" default:"local"`

	// BaseDir is the root directory for the local and git backends.
	BaseDir string `env:"STORAGE_BASE_DIR" yaml:"base_dir" default:"./data"`

	// Bucket and Prefix configure the s3 backend.
	Bucket string `env:"STORAGE_S3_BUCKET" yaml:"bucket"`
	Prefix string `env:"STORAGE_S3_PREFIX" yaml:"prefix"`

	// GitAuthorName and GitAuthorEmail sign the commits made by the git
	// backend.
	GitAuthorName  string `env:"STORAGE_GIT_AUTHOR_NAME" yaml:"git_author_name"`
	GitAuthorEmail string `env:"STORAGE_GIT_AUTHOR_EMAIL" yaml:"git_author_email"`
}

// ArchiveConfig configures the optional Postgres exchange archive.
type ArchiveConfig struct {
	// DatabaseURL enables archiving when set.
	DatabaseURL string `env:"ARCHIVE_DATABASE_URL" yaml:"database_url"`
}

// Load reads the config file at path (optional) and the environment.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := config.Load(&cfg, path, path == ""); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate aggregates validation errors from all sections.
func (c AppConfig) Validate() error {
	var result error
	if err := c.Common.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Server.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Metrics.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Storage.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Knowledge.CachePruneTo > c.Knowledge.CacheCapacity {
		result = multierror.Append(result, fmt.Errorf(
			"cache_prune_to (%d) must not exceed cache_capacity (%d)",
			c.Knowledge.CachePruneTo, c.Knowledge.CacheCapacity))
	}
	if c.Ollama.Model == "" {
		result = multierror.Append(result, fmt.Errorf("ollama model is required"))
	}
	return result
}

// Validate checks the storage backend selection.
func (s StorageConfig) Validate() error {
	var result error
	switch strings.ToLower(s.Backend) {
	case "local", "git":
		if s.BaseDir == "" {
			result = multierror.Append(result, fmt.Errorf("base_dir is required for the %s backend", s.Backend))
		}
	case "s3":
		if s.Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("bucket is required for the s3 backend"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown storage backend %q", s.Backend))
	}
	return result
}
