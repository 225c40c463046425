// Package composer assembles bounded prompts for the model. Queries are
// classified as simple or full; every composition respects a hard size
// cap so degenerate context or history can never inflate model latency.
package composer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lewisedginton/log_analysis_assistant/internal/conversation"
)

// Mode selects the composition strategy.
type Mode int

const (
	// ModeAuto classifies the query and picks simple or full.
	ModeAuto Mode = iota
	// ModeSimple omits context and history.
	ModeSimple
	// ModeFull includes context and, for follow-ups, recent history.
	ModeFull
)

// TruncationMarker terminates any prompt that had to be cut at its cap.
const TruncationMarker = "\n\n[truncated]"

// contextEllipsis terminates a context block that was cut at its cap.
const contextEllipsis = "..."

const (
	simplePreamble = "You are a helpful Linux system administration assistant."
	fullPreamble   = "You are an expert log analysis and Linux troubleshooting assistant."
	simpleClosing  = "Provide a concise, practical answer."
	fullClosing    = "Provide a clear, actionable answer with specific commands where helpful."
	attachmentNote = "Note: the user has attached a log file for analysis."
)

// greetings are queries answered without any context lookup.
var greetings = map[string]bool{
	"hi": true, "hello": true, "hey": true, "thanks": true,
	"thank you": true, "ok": true, "okay": true, "bye": true, "goodbye": true,
}

// problemIndicators force the full composition path even for short
// queries, since they warrant a knowledge lookup.
var problemIndicators = []string{
	"error", "fail", "refused", "timeout", "crash", "exception",
	"denied", "unable", "broken", "panic",
}

// followUpWords mark a query as continuing the previous exchange.
var followUpWords = []string{"also", "additionally", "and", "but", "more", "furthermore"}

// followUpPhrases are multi-word continuation markers.
var followUpPhrases = []string{"what about", "how about"}

// Request carries everything a single composition needs. It lives for
// one turn only.
type Request struct {
	Query        string
	Context      string
	FileAttached bool
	History      []conversation.Turn
	Mode         Mode
}

// Options bounds the composer. Zero values pick the defaults.
type Options struct {
	SimpleCap      int // max chars for a simple prompt
	FullCap        int // max chars for a full prompt
	ContextCap     int // max chars of retrieved context inside a full prompt
	HistoryTurns   int // recent turns appended for follow-ups
	HistoryCharCap int // max chars per included history turn
}

// Composer builds prompts. Safe for concurrent use.
type Composer struct {
	opts Options
}

// New creates a Composer.
func New(opts Options) *Composer {
	if opts.SimpleCap <= 0 {
		opts.SimpleCap = 1200
	}
	if opts.FullCap <= 0 {
		opts.FullCap = 2500
	}
	if opts.ContextCap <= 0 {
		opts.ContextCap = 1000
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 2
	}
	if opts.HistoryCharCap <= 0 {
		opts.HistoryCharCap = 100
	}
	return &Composer{opts: opts}
}

// Compose builds the prompt for a request. The result is never empty and
// never exceeds the cap of the selected mode.
func (c *Composer) Compose(req Request) string {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return simplePreamble + "\n\n" + simpleClosing
	}

	mode := req.Mode
	if mode == ModeAuto {
		if IsSimpleQuery(query) {
			mode = ModeSimple
		} else {
			mode = ModeFull
		}
	}

	if mode == ModeSimple {
		return capPrompt(c.composeSimple(query, req.FileAttached), c.opts.SimpleCap)
	}
	return capPrompt(c.composeFull(query, req), c.opts.FullCap)
}

// IsSimpleQuery reports whether a query should skip context retrieval:
// at most five words, a bare greeting, or a short question. Queries that
// mention a concrete problem always take the full path so troubleshooting
// context is retrieved.
func IsSimpleQuery(query string) bool {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if greetings[strings.TrimRight(normalized, "!.?")] {
		return true
	}
	for _, indicator := range problemIndicators {
		if strings.Contains(normalized, indicator) {
			return false
		}
	}
	if len(strings.Fields(normalized)) <= 5 {
		return true
	}
	return len(normalized) < 50 && strings.HasSuffix(normalized, "?")
}

// IsFollowUp reports whether a query continues the previous exchange.
func IsFollowUp(query string) bool {
	normalized := strings.ToLower(query)
	for _, phrase := range followUpPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	words := map[string]bool{}
	for _, w := range strings.Fields(normalized) {
		words[strings.TrimRight(w, ",.!?")] = true
	}
	for _, w := range followUpWords {
		if words[w] {
			return true
		}
	}
	return false
}

func (c *Composer) composeSimple(query string, fileAttached bool) string {
	var b strings.Builder
	b.WriteString(simplePreamble)
	b.WriteString("\n\nUser Query: ")
	b.WriteString(query)
	if fileAttached {
		b.WriteString("\n\n")
		b.WriteString(attachmentNote)
	}
	b.WriteString("\n\n")
	b.WriteString(simpleClosing)
	return b.String()
}

func (c *Composer) composeFull(query string, req Request) string {
	var b strings.Builder
	b.WriteString(fullPreamble)

	if context := strings.TrimSpace(req.Context); context != "" {
		if len(context) > c.opts.ContextCap {
			context = cutAt(context, c.opts.ContextCap) + contextEllipsis
		}
		b.WriteString("\n\nRelevant Knowledge:\n")
		b.WriteString(context)
	}

	if req.FileAttached {
		b.WriteString("\n\n")
		b.WriteString(attachmentNote)
	}

	if len(req.History) > 0 && IsFollowUp(query) {
		turns := req.History
		if len(turns) > c.opts.HistoryTurns {
			turns = turns[len(turns)-c.opts.HistoryTurns:]
		}
		b.WriteString("\n\nRecent Conversation:")
		for _, turn := range turns {
			content := turn.Content
			if len(content) > c.opts.HistoryCharCap {
				content = cutAt(content, c.opts.HistoryCharCap) + contextEllipsis
			}
			b.WriteString(fmt.Sprintf("\n%s: %s", roleLabel(turn.Role), content))
		}
	}

	b.WriteString("\n\nUser Query: ")
	b.WriteString(query)
	b.WriteString("\n\n")
	b.WriteString(fullClosing)
	return b.String()
}

func roleLabel(role string) string {
	if role == conversation.RoleAssistant {
		return "Assistant"
	}
	return "User"
}

func capPrompt(prompt string, limit int) string {
	if len(prompt) <= limit {
		return prompt
	}
	return cutAt(prompt, limit-len(TruncationMarker)) + TruncationMarker
}

// cutAt trims s to at most limit bytes, backing off so a multi-byte
// rune is never split.
func cutAt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
