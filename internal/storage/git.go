package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitProvider implements FileProvider backed by a git working tree.
// Every write and delete is committed, which gives the knowledge base a
// full change history for free.
type GitProvider struct {
	repoPath    string
	repo        *git.Repository
	authorName  string
	authorEmail string
	mu          sync.Mutex
}

// GitProviderOptions holds options for creating a GitProvider.
type GitProviderOptions struct {
	// Path is the path to the git repository.
	Path string
	// AuthorName is the name used for commits.
	AuthorName string
	// AuthorEmail is the email used for commits.
	AuthorEmail string
	// InitIfMissing initializes a new repo if the path doesn't contain one.
	InitIfMissing bool
}

// NewGitProvider creates a new git-backed file provider.
func NewGitProvider(opts GitProviderOptions) (*GitProvider, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("repository path is required")
	}

	authorName := opts.AuthorName
	if authorName == "" {
		authorName = "assistant"
	}
	authorEmail := opts.AuthorEmail
	if authorEmail == "" {
		authorEmail = "assistant@localhost"
	}

	repo, err := git.PlainOpen(opts.Path)
	if err != nil {
		if err != git.ErrRepositoryNotExists || !opts.InitIfMissing {
			return nil, fmt.Errorf("failed to open git repository: %w", err)
		}
		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create repository directory: %w", err)
		}
		repo, err = git.PlainInit(opts.Path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repository: %w", err)
		}
	}

	return &GitProvider{
		repoPath:    opts.Path,
		repo:        repo,
		authorName:  authorName,
		authorEmail: authorEmail,
	}, nil
}

// Read reads a file from the git working tree.
func (p *GitProvider) Read(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(p.repoPath, path)) //nolint:gosec // G304: path is constructed from trusted repoPath
}

// Write writes data to a file and commits the change.
func (p *GitProvider) Write(ctx context.Context, path string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fullPath := filepath.Join(p.repoPath, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	worktree, err := p.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := worktree.Add(path); err != nil {
		return fmt.Errorf("failed to stage file: %w", err)
	}

	return p.commit(worktree, fmt.Sprintf("[auto] Write %s", path))
}

// Exists checks if a file exists in the working tree.
func (p *GitProvider) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(filepath.Join(p.repoPath, path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Delete removes a file and commits the deletion.
func (p *GitProvider) Delete(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fullPath := filepath.Join(p.repoPath, path)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return nil
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}

	worktree, err := p.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := worktree.Remove(path); err != nil {
		// Untracked files have nothing to stage
		if !strings.Contains(err.Error(), "file does not exist") {
			return fmt.Errorf("failed to stage deletion: %w", err)
		}
	}

	if err := p.commit(worktree, fmt.Sprintf("[auto] Delete %s", path)); err != nil {
		if strings.Contains(err.Error(), "nothing to commit") {
			return nil
		}
		return err
	}
	return nil
}

// List returns files matching a prefix in the working tree, skipping .git.
func (p *GitProvider) List(ctx context.Context, prefix string) ([]string, error) {
	searchPath := filepath.Join(p.repoPath, prefix)

	var result []string
	err := filepath.Walk(searchPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() && info.Name() == ".git" {
			return filepath.SkipDir
		}
		if !info.IsDir() {
			if rel, relErr := filepath.Rel(p.repoPath, path); relErr == nil {
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

func (p *GitProvider) commit(worktree *git.Worktree, msg string) error {
	_, err := worktree.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  p.authorName,
			Email: p.authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
