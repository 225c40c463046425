package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lewisedginton/log_analysis_assistant/internal/archive"
	"github.com/lewisedginton/log_analysis_assistant/internal/assistant"
	"github.com/lewisedginton/log_analysis_assistant/internal/composer"
	appconfig "github.com/lewisedginton/log_analysis_assistant/internal/config"
	"github.com/lewisedginton/log_analysis_assistant/internal/conversation"
	"github.com/lewisedginton/log_analysis_assistant/internal/knowledge"
	"github.com/lewisedginton/log_analysis_assistant/internal/monitoring"
	"github.com/lewisedginton/log_analysis_assistant/internal/ollama"
	"github.com/lewisedginton/log_analysis_assistant/internal/retriever"
	"github.com/lewisedginton/log_analysis_assistant/internal/server"
	"github.com/lewisedginton/log_analysis_assistant/internal/storage"
	"github.com/lewisedginton/log_analysis_assistant/pkg/logger"
	"github.com/lewisedginton/log_analysis_assistant/pkg/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	flag.Parse()

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.NewLogger(logger.Config{
		Level:   logger.ParseLevel(cfg.Common.LogLevel),
		Service: "log-analysis-assistant",
	})

	if err := run(cfg, log); err != nil {
		log.Error("Service exited with error", logger.ErrorField(err))
		os.Exit(1)
	}
}

func run(cfg *appconfig.AppConfig, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(cfg.Metrics.EnableHttpMetrics, log)
	if cfg.Metrics.ExposeMetrics {
		m.Listen(cfg.Metrics.Port)
	}

	storageManager, err := createStorageManager(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	knowledgeProvider := storageManager.Namespace("knowledge")
	store := knowledge.NewStore(ctx, knowledge.Options{
		Provider:      knowledgeProvider,
		Logger:        log,
		Metrics:       m,
		MaxResults:    cfg.Knowledge.MaxResults,
		CacheCapacity: cfg.Knowledge.CacheCapacity,
		CachePruneTo:  cfg.Knowledge.CachePruneTo,
	})

	contextRetriever := retriever.New(retriever.Options{
		Init: func(ctx context.Context) (retriever.Searcher, error) {
			return store, nil
		},
		Logger:          log,
		Metrics:         m,
		Deadline:        time.Duration(cfg.Knowledge.ChatDeadlineMillis) * time.Millisecond,
		MaxContextChars: cfg.Knowledge.MaxContextChars,
	})

	memory := conversation.NewMemory(storageManager.Namespace("conversations"), log, cfg.Memory.WindowExchanges)
	defer memory.Flush()

	gateway := ollama.NewClient(ollama.Options{
		Host:        cfg.Ollama.Host,
		Model:       cfg.Ollama.Model,
		Logger:      log,
		Metrics:     m,
		Timeout:     time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second,
		Temperature: cfg.Ollama.Temperature,
		TopP:        cfg.Ollama.TopP,
		NumPredict:  cfg.Ollama.NumPredict,
		Stop:        cfg.Ollama.Stop,
	})

	var archiver assistant.Archiver
	if cfg.Archive.DatabaseURL != "" {
		repo, err := archive.Connect(ctx, cfg.Archive.DatabaseURL, log)
		if err != nil {
			// The archive is an optional enrichment, never a startup blocker.
			log.Warn("Exchange archive unavailable, continuing without it", logger.ErrorField(err))
		} else {
			defer repo.Close()
			archiver = archiveAdapter{repo: repo}
			log.Info("Exchange archive enabled")
		}
	}

	a := assistant.New(assistant.Options{
		Retriever:           contextRetriever,
		Composer:            composer.New(composer.Options{}),
		Gateway:             gateway,
		Memory:              memory,
		Archive:             archiver,
		Logger:              log,
		ChatDeadline:        time.Duration(cfg.Knowledge.ChatDeadlineMillis) * time.Millisecond,
		DiagnosticsDeadline: time.Duration(cfg.Knowledge.DiagnosticsDeadlineMillis) * time.Millisecond,
	})

	healthMonitor := monitoring.NewHealthMonitor(monitoring.Config{
		Logger:   log,
		Model:    gateway,
		Endpoint: cfg.Ollama.Host,
		Storage:  knowledgeProvider,
	})

	srv := server.New(server.Options{
		Config:    cfg,
		Logger:    log,
		Metrics:   m,
		Assistant: a,
		Store:     store,
		Health:    healthMonitor,
	})

	err = srv.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := m.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn("Metrics listener shutdown failed", logger.ErrorField(shutdownErr))
	}
	return err
}

// createStorageManager builds the persistence backend from configuration.
func createStorageManager(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (*storage.Manager, error) {
	switch cfg.Storage.Backend {
	case "local":
		log.Info("Using local file-based storage", logger.StringField("directory", cfg.Storage.BaseDir))
		return storage.NewManager(storage.Config{
			Backend: storage.BackendLocal,
			Local:   &storage.LocalConfig{BaseDir: cfg.Storage.BaseDir},
		})

	case "s3":
		log.Info("Using S3-based storage",
			logger.StringField("bucket", cfg.Storage.Bucket),
			logger.StringField("prefix", cfg.Storage.Prefix))

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return storage.NewManager(storage.Config{
			Backend: storage.BackendS3,
			S3: &storage.S3Config{
				Bucket: cfg.Storage.Bucket,
				Prefix: cfg.Storage.Prefix,
				Client: s3.NewFromConfig(awsCfg),
			},
		})

	case "git":
		log.Info("Using git-backed storage", logger.StringField("directory", cfg.Storage.BaseDir))
		return storage.NewManager(storage.Config{
			Backend: storage.BackendGit,
			Git: &storage.GitProviderOptions{
				Path:          cfg.Storage.BaseDir,
				AuthorName:    cfg.Storage.GitAuthorName,
				AuthorEmail:   cfg.Storage.GitAuthorEmail,
				InitIfMissing: true,
			},
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

// archiveAdapter narrows the repository to what the assistant needs.
type archiveAdapter struct {
	repo *archive.Repository
}

func (a archiveAdapter) SaveExchange(ctx context.Context, sessionID, query, answer, promptMode string) error {
	_, err := a.repo.SaveExchange(ctx, sessionID, query, answer, promptMode)
	return err
}
