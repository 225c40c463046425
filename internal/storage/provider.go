// Package storage provides the persistence abstraction for the assistant.
// Knowledge data, the search cache, and conversation windows are all stored
// through a FileProvider, so any component can be pointed at the local
// filesystem, S3, or a git working tree.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileProvider defines the interface for file storage operations.
type FileProvider interface {
	// Read reads the entire content of a file
	Read(ctx context.Context, path string) ([]byte, error)

	// Write writes data to a file, creating it if it doesn't exist
	Write(ctx context.Context, path string, data []byte) error

	// Exists checks if a file exists
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes a file
	Delete(ctx context.Context, path string) error

	// List returns a list of files matching a prefix
	List(ctx context.Context, prefix string) ([]string, error)
}

// LocalProvider implements FileProvider on the local filesystem.
type LocalProvider struct {
	baseDir string
}

// NewLocalProvider creates a new local filesystem provider rooted at baseDir.
func NewLocalProvider(baseDir string) *LocalProvider {
	return &LocalProvider{baseDir: baseDir}
}

// Read reads a file from the local filesystem.
func (p *LocalProvider) Read(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(p.baseDir, path)) //nolint:gosec // G304: path is constructed from trusted baseDir
}

// Write writes data to a local file, creating parent directories as needed.
func (p *LocalProvider) Write(ctx context.Context, path string, data []byte) error {
	fullPath := filepath.Join(p.baseDir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return os.WriteFile(fullPath, data, 0o600)
}

// Exists checks if a file exists on the local filesystem.
func (p *LocalProvider) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(filepath.Join(p.baseDir, path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Delete removes a file from the local filesystem. Deleting a file that
// does not exist is not an error.
func (p *LocalProvider) Delete(ctx context.Context, path string) error {
	err := os.Remove(filepath.Join(p.baseDir, path))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// List returns files under prefix, as paths relative to the base directory.
func (p *LocalProvider) List(ctx context.Context, prefix string) ([]string, error) {
	searchPath := filepath.Join(p.baseDir, prefix)

	var result []string
	err := filepath.Walk(searchPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			if rel, relErr := filepath.Rel(p.baseDir, path); relErr == nil {
				result = append(result, rel)
			}
		}
		return nil
	})
	if err != nil && os.IsNotExist(err) {
		return []string{}, nil
	}
	return result, err
}

// PrefixedProvider wraps a FileProvider, scoping all paths under a prefix.
// Components share one backend while keeping isolated namespaces.
type PrefixedProvider struct {
	provider FileProvider
	prefix   string
}

// NewPrefixedProvider creates a provider scoped under prefix.
func NewPrefixedProvider(provider FileProvider, prefix string) *PrefixedProvider {
	return &PrefixedProvider{provider: provider, prefix: prefix}
}

// Read reads a file with the prefix applied.
func (p *PrefixedProvider) Read(ctx context.Context, path string) ([]byte, error) {
	return p.provider.Read(ctx, p.prefixPath(path))
}

// Write writes data with the prefix applied.
func (p *PrefixedProvider) Write(ctx context.Context, path string, data []byte) error {
	return p.provider.Write(ctx, p.prefixPath(path), data)
}

// Exists checks existence with the prefix applied.
func (p *PrefixedProvider) Exists(ctx context.Context, path string) (bool, error) {
	return p.provider.Exists(ctx, p.prefixPath(path))
}

// Delete removes a file with the prefix applied.
func (p *PrefixedProvider) Delete(ctx context.Context, path string) error {
	return p.provider.Delete(ctx, p.prefixPath(path))
}

// List returns files matching prefix, with the provider prefix stripped.
func (p *PrefixedProvider) List(ctx context.Context, prefix string) ([]string, error) {
	files, err := p.provider.List(ctx, p.prefixPath(prefix))
	if err != nil {
		return nil, err
	}

	var result []string
	prefixLen := len(p.prefixPath(""))
	for _, file := range files {
		if len(file) >= prefixLen {
			result = append(result, file[prefixLen:])
		}
	}
	return result, nil
}

func (p *PrefixedProvider) prefixPath(path string) string {
	if p.prefix == "" {
		return path
	}
	return p.prefix + "/" + path
}
