// Package conversation keeps a bounded per-session history window so
// prompts can carry recent exchanges without growing unbounded.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/lewisedginton/log_analysis_assistant/internal/storage"
	"github.com/lewisedginton/log_analysis_assistant/pkg/logger"
)

// Roles for conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single message in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Memory holds sliding conversation windows per session. Each appended
// exchange (user turn plus assistant turn) pushes the oldest exchange out
// once the window is full.
type Memory struct {
	provider storage.FileProvider
	log      logger.Logger
	window   int

	mu       sync.Mutex
	sessions map[string][]Turn
	loaded   map[string]bool

	persistWG sync.WaitGroup
}

// NewMemory creates a Memory keeping up to window exchanges per session.
func NewMemory(provider storage.FileProvider, log logger.Logger, window int) *Memory {
	if window <= 0 {
		window = 5
	}
	return &Memory{
		provider: provider,
		log:      log,
		window:   window,
		sessions: make(map[string][]Turn),
		loaded:   make(map[string]bool),
	}
}

// Append records one exchange and persists the window in the background.
// The response path never waits on storage.
func (m *Memory) Append(ctx context.Context, sessionID, query, answer string) {
	file, err := sessionFile(sessionID)
	if err != nil {
		m.log.Warn("Refusing to record exchange", logger.ErrorField(err))
		return
	}

	m.mu.Lock()
	m.ensureLoadedLocked(ctx, sessionID, file)
	turns := append(m.sessions[sessionID],
		Turn{Role: RoleUser, Content: query},
		Turn{Role: RoleAssistant, Content: answer},
	)
	if max := m.window * 2; len(turns) > max {
		turns = turns[len(turns)-max:]
	}
	m.sessions[sessionID] = turns
	snapshot := append([]Turn(nil), turns...)
	m.mu.Unlock()

	m.persistWG.Add(1)
	go func() {
		defer m.persistWG.Done()
		raw, err := json.Marshal(snapshot)
		if err != nil {
			m.log.Error("Failed to serialize conversation window", logger.ErrorField(err))
			return
		}
		if err := m.provider.Write(context.Background(), file, raw); err != nil {
			m.log.Warn("Failed to persist conversation window",
				logger.StringField("session_id", sessionID),
				logger.ErrorField(err))
		}
	}()
}

// RecentWindow returns the current window for a session, oldest first.
func (m *Memory) RecentWindow(ctx context.Context, sessionID string) []Turn {
	file, err := sessionFile(sessionID)
	if err != nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLoadedLocked(ctx, sessionID, file)
	return append([]Turn(nil), m.sessions[sessionID]...)
}

// Clear drops a session's window from memory and storage.
func (m *Memory) Clear(ctx context.Context, sessionID string) error {
	file, err := sessionFile(sessionID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.loaded[sessionID] = true
	m.mu.Unlock()

	return m.provider.Delete(ctx, file)
}

// Flush waits for in-flight background persists. Intended for shutdown
// and tests.
func (m *Memory) Flush() {
	m.persistWG.Wait()
}

// ensureLoadedLocked reads the persisted window on first access. A
// missing or corrupt file just means an empty window.
func (m *Memory) ensureLoadedLocked(ctx context.Context, sessionID, file string) {
	if m.loaded[sessionID] {
		return
	}
	m.loaded[sessionID] = true

	raw, err := m.provider.Read(ctx, file)
	if err != nil {
		return
	}
	var turns []Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		m.log.Warn("Stored conversation window is corrupt, starting empty",
			logger.StringField("session_id", sessionID),
			logger.ErrorField(err))
		return
	}
	if max := m.window * 2; len(turns) > max {
		turns = turns[len(turns)-max:]
	}
	m.sessions[sessionID] = turns
}

func sessionFile(sessionID string) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, "/\\") || strings.Contains(sessionID, "..") {
		return "", fmt.Errorf("invalid session id: %q", sessionID)
	}
	return sessionID + ".json", nil
}
