package storage

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BackendType represents the type of storage backend.
type BackendType string

const (
	// BackendLocal uses the local filesystem for storage.
	BackendLocal BackendType = "local"
	// BackendS3 uses AWS S3 for storage.
	BackendS3 BackendType = "s3"
	// BackendGit uses a git working tree, committing every write.
	BackendGit BackendType = "git"
)

// Config holds the configuration for the storage Manager.
type Config struct {
	// Backend specifies the storage backend type (local, s3 or git).
	Backend BackendType

	// Local holds configuration for local filesystem storage.
	Local *LocalConfig

	// S3 holds configuration for S3 storage.
	S3 *S3Config

	// Git holds configuration for git-backed storage.
	Git *GitProviderOptions
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BaseDir is the root directory for all storage.
	BaseDir string
}

// S3Config holds configuration for S3 storage.
type S3Config struct {
	// Bucket is the S3 bucket name.
	Bucket string
	// Prefix is an optional prefix for all keys in the bucket.
	Prefix string
	// Client is the AWS S3 client.
	Client *s3.Client
}

// Manager hands out prefix-scoped file providers so that the knowledge
// base, search cache, and conversation windows share one backend while
// staying in isolated namespaces.
type Manager struct {
	config   Config
	provider FileProvider
}

// NewManager creates a Manager for the configured backend.
func NewManager(config Config) (*Manager, error) {
	var provider FileProvider

	switch config.Backend {
	case BackendLocal:
		if config.Local == nil || config.Local.BaseDir == "" {
			return nil, fmt.Errorf("base directory is required for local backend")
		}
		provider = NewLocalProvider(config.Local.BaseDir)

	case BackendS3:
		if config.S3 == nil || config.S3.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for s3 backend")
		}
		if config.S3.Client == nil {
			return nil, fmt.Errorf("s3 client is required for s3 backend")
		}
		provider = NewS3Provider(config.S3.Bucket, config.S3.Prefix, NewAWSS3Client(config.S3.Client))

	case BackendGit:
		if config.Git == nil {
			return nil, fmt.Errorf("git options are required for git backend")
		}
		gitProvider, err := NewGitProvider(*config.Git)
		if err != nil {
			return nil, err
		}
		provider = gitProvider

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Backend)
	}

	return &Manager{config: config, provider: provider}, nil
}

// NewManagerWithProvider creates a Manager with a custom FileProvider.
// Useful for tests and custom storage implementations.
func NewManagerWithProvider(provider FileProvider) *Manager {
	return &Manager{provider: provider}
}

// Namespace returns a prefix-scoped FileProvider for the given namespace,
// e.g. "knowledge", "cache", or "conversations".
func (m *Manager) Namespace(namespace string) FileProvider {
	if namespace == "" {
		return m.provider
	}
	return NewPrefixedProvider(m.provider, namespace)
}

// Backend returns the configured backend type.
func (m *Manager) Backend() BackendType {
	return m.config.Backend
}
