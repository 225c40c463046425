package composer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/lewisedginton/log_analysis_assistant/internal/conversation"
)

func TestGreetingGetsSimplePrompt(t *testing.T) {
	c := New(Options{})

	prompt := c.Compose(Request{Query: "hi", Context: "should not appear"})
	assert.Contains(t, prompt, "User Query: hi")
	assert.NotContains(t, prompt, "Relevant Knowledge")
}

func TestLongQueryGetsFullPrompt(t *testing.T) {
	c := New(Options{})
	query := strings.TrimSpace(strings.Repeat("explain the failure sequence once more please ", 7))

	prompt := c.Compose(Request{Query: query, Context: "restart the service"})
	assert.Contains(t, prompt, "Relevant Knowledge")
	assert.Contains(t, prompt, "restart the service")
}

func TestProblemIndicatorForcesFullMode(t *testing.T) {
	c := New(Options{})

	// Five words, but the query names a concrete problem
	prompt := c.Compose(Request{
		Query:   "connection refused on port 8080",
		Context: "Verify port is not blocked by firewall; check systemctl status",
	})
	assert.Contains(t, prompt, "firewall")
}

func TestFollowUpIncludesHistory(t *testing.T) {
	c := New(Options{})
	history := []conversation.Turn{
		{Role: conversation.RoleUser, Content: "why is the disk full"},
		{Role: conversation.RoleAssistant, Content: "old logs are eating space"},
	}

	prompt := c.Compose(Request{
		Query:   "what about the disk usage on the secondary volume though",
		History: history,
		Mode:    ModeFull,
	})
	assert.Contains(t, prompt, "Recent Conversation:")
	assert.Contains(t, prompt, "old logs are eating space")

	prompt = c.Compose(Request{
		Query:   "show me current memory stats for the database server",
		History: history,
		Mode:    ModeFull,
	})
	assert.NotContains(t, prompt, "Recent Conversation:")
}

func TestHistoryTurnsAreBounded(t *testing.T) {
	c := New(Options{HistoryTurns: 2, HistoryCharCap: 10})
	history := []conversation.Turn{
		{Role: conversation.RoleUser, Content: "oldest turn that must not appear"},
		{Role: conversation.RoleUser, Content: "second question here"},
		{Role: conversation.RoleAssistant, Content: "a very long answer that exceeds the per-turn cap"},
	}

	prompt := c.Compose(Request{Query: "and what about the replicas", History: history, Mode: ModeFull})
	assert.NotContains(t, prompt, "oldest turn")
	assert.Contains(t, prompt, "a very lon...")
	assert.NotContains(t, prompt, "exceeds the per-turn cap")
}

func TestPromptNeverExceedsCap(t *testing.T) {
	c := New(Options{FullCap: 400, SimpleCap: 100})

	prompt := c.Compose(Request{
		Query:   "the service keeps crashing with an out of memory error every night",
		Context: strings.Repeat("lots of retrieved context ", 100),
	})
	assert.LessOrEqual(t, len(prompt), 400)
	assert.True(t, strings.HasSuffix(prompt, TruncationMarker))

	prompt = c.Compose(Request{Query: strings.Repeat("hello ", 40), Mode: ModeSimple})
	assert.LessOrEqual(t, len(prompt), 100)
	assert.True(t, strings.HasSuffix(prompt, TruncationMarker))
}

func TestContextIsTruncatedWithEllipsis(t *testing.T) {
	c := New(Options{ContextCap: 50})

	prompt := c.Compose(Request{
		Query:   "database errors keep showing up in the overnight batch",
		Context: strings.Repeat("x", 80),
	})
	assert.Contains(t, prompt, strings.Repeat("x", 50)+"...")
	assert.NotContains(t, prompt, strings.Repeat("x", 51))
}

func TestTruncationNeverSplitsRunes(t *testing.T) {
	c := New(Options{ContextCap: 50, HistoryCharCap: 10, FullCap: 300})
	multibyte := strings.Repeat("données épuisées ", 20)
	history := []conversation.Turn{
		{Role: conversation.RoleAssistant, Content: multibyte},
	}

	prompt := c.Compose(Request{
		Query:   "and what about the unicode errors in the batch output",
		Context: multibyte,
		History: history,
		Mode:    ModeFull,
	})
	assert.True(t, utf8.ValidString(prompt))
	assert.LessOrEqual(t, len(prompt), 300)
	assert.True(t, strings.HasSuffix(prompt, TruncationMarker))
}

func TestFileAttachedNote(t *testing.T) {
	c := New(Options{})

	prompt := c.Compose(Request{Query: "hi", FileAttached: true})
	assert.Contains(t, prompt, "attached a log file")
}

func TestEmptyQueryStillProducesPrompt(t *testing.T) {
	c := New(Options{})
	assert.NotEmpty(t, c.Compose(Request{Query: "   "}))
}

func TestIsFollowUp(t *testing.T) {
	assert.True(t, IsFollowUp("what about the other node"))
	assert.True(t, IsFollowUp("also check the cache"))
	assert.True(t, IsFollowUp("more detail please"))
	// "command" must not match the word "and"
	assert.False(t, IsFollowUp("run the status command"))
	assert.False(t, IsFollowUp("show me memory stats"))
}
