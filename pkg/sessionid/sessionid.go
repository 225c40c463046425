// Package sessionid provides prefixed UUID identifiers for chat sessions.
package sessionid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Prefix is the fixed prefix for session identifiers.
const Prefix = "sess"

// New generates a new session identifier in the format "sess-<uuid>".
func New() string {
	return fmt.Sprintf("%s-%s", Prefix, uuid.New().String())
}

// Validate checks that s is a well-formed session identifier.
func Validate(s string) error {
	raw, ok := strings.CutPrefix(s, Prefix+"-")
	if !ok {
		return fmt.Errorf("invalid session ID format: %s", s)
	}
	if _, err := uuid.Parse(raw); err != nil {
		return fmt.Errorf("invalid session ID: %w", err)
	}
	return nil
}
