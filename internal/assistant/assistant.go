// Package assistant orchestrates one conversational turn: classify the
// query, retrieve knowledge context under a deadline, compose a bounded
// prompt, invoke the model, and record the exchange off the critical path.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lewisedginton/log_analysis_assistant/internal/composer"
	"github.com/lewisedginton/log_analysis_assistant/internal/conversation"
	"github.com/lewisedginton/log_analysis_assistant/internal/ollama"
	"github.com/lewisedginton/log_analysis_assistant/internal/retriever"
	"github.com/lewisedginton/log_analysis_assistant/pkg/logger"
)

// systemPrompt frames every model call.
const systemPrompt = "You are an expert log analysis assistant specializing in Linux system " +
	"administration and troubleshooting. Give practical, step-by-step guidance " +
	"and concrete commands where they help."

// Degraded user-facing messages. The pipeline never surfaces raw
// transport errors.
const (
	msgEmptyQuery   = "Please enter a question about your logs or system."
	msgModelTimeout = "The model took too long to respond. Please try a simpler or shorter query."
	msgModelFailure = "I ran into a problem reaching the model: %s. Please try again."
)

// Gateway is the model client the assistant invokes.
type Gateway interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CheckConnection(ctx context.Context) (bool, string)
}

// Archiver persists completed exchanges. Optional.
type Archiver interface {
	SaveExchange(ctx context.Context, sessionID, query, answer, promptMode string) error
}

// Options wires an Assistant.
type Options struct {
	Retriever *retriever.Retriever
	Composer  *composer.Composer
	Gateway   Gateway
	Memory    *conversation.Memory
	Archive   Archiver
	Logger    logger.Logger

	// ChatDeadline bounds knowledge retrieval on conversational turns;
	// DiagnosticsDeadline bounds the probe retrieval.
	ChatDeadline        time.Duration
	DiagnosticsDeadline time.Duration
}

// Response is the outcome of one turn.
type Response struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Mode      string `json:"mode"`
	Degraded  bool   `json:"degraded"`
}

// Diagnostics reports pipeline health for the diagnostics endpoint.
type Diagnostics struct {
	ModelReachable     bool   `json:"model_reachable"`
	ModelDetail        string `json:"model_detail"`
	KnowledgeAvailable bool   `json:"knowledge_available"`
	SampleRetrievalMS  int64  `json:"sample_retrieval_ms"`
}

// Assistant runs the conversational pipeline.
type Assistant struct {
	opts Options
}

// New creates an Assistant.
func New(opts Options) *Assistant {
	if opts.ChatDeadline <= 0 {
		opts.ChatDeadline = 2 * time.Second
	}
	if opts.DiagnosticsDeadline <= 0 {
		opts.DiagnosticsDeadline = time.Second
	}
	return &Assistant{opts: opts}
}

// Respond handles one user turn. It always returns an answer; failures
// degrade to a user-facing message with Degraded set.
func (a *Assistant) Respond(ctx context.Context, sessionID, query string, fileAttached bool) Response {
	query = strings.TrimSpace(query)
	if query == "" {
		return Response{SessionID: sessionID, Answer: msgEmptyQuery, Mode: "simple", Degraded: true}
	}

	log := a.opts.Logger.WithFields(logger.StringField("session_id", sessionID))

	mode := composer.ModeFull
	modeName := "full"
	if composer.IsSimpleQuery(query) {
		mode = composer.ModeSimple
		modeName = "simple"
	}

	var retrieved string
	var history []conversation.Turn
	if mode == composer.ModeFull {
		retrieved = a.opts.Retriever.Retrieve(ctx, query, a.opts.ChatDeadline)
		history = a.opts.Memory.RecentWindow(ctx, sessionID)
	}

	prompt := a.opts.Composer.Compose(composer.Request{
		Query:        query,
		Context:      retrieved,
		FileAttached: fileAttached,
		History:      history,
		Mode:         mode,
	})

	answer, err := a.opts.Gateway.Chat(ctx, systemPrompt, prompt)
	if err != nil {
		log.Warn("Model call failed",
			logger.StringField("kind", string(ollama.KindOf(err))),
			logger.ErrorField(err))
		return Response{
			SessionID: sessionID,
			Answer:    degradedMessage(err),
			Mode:      modeName,
			Degraded:  true,
		}
	}

	// Memory and archive writes stay off the response path.
	a.opts.Memory.Append(ctx, sessionID, query, answer)
	if a.opts.Archive != nil {
		go func() {
			archiveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.opts.Archive.SaveExchange(archiveCtx, sessionID, query, answer, modeName); err != nil {
				log.Warn("Failed to archive exchange", logger.ErrorField(err))
			}
		}()
	}

	return Response{SessionID: sessionID, Answer: answer, Mode: modeName}
}

// ClearSession drops a session's conversation window.
func (a *Assistant) ClearSession(ctx context.Context, sessionID string) error {
	return a.opts.Memory.Clear(ctx, sessionID)
}

// Diagnose probes the model endpoint and the knowledge pipeline.
func (a *Assistant) Diagnose(ctx context.Context) Diagnostics {
	ok, detail := a.opts.Gateway.CheckConnection(ctx)

	start := time.Now()
	a.opts.Retriever.Retrieve(ctx, "connection refused", a.opts.DiagnosticsDeadline)
	elapsed := time.Since(start)

	return Diagnostics{
		ModelReachable:     ok,
		ModelDetail:        detail,
		KnowledgeAvailable: a.opts.Retriever.Available(),
		SampleRetrievalMS:  elapsed.Milliseconds(),
	}
}

func degradedMessage(err error) string {
	if ollama.KindOf(err) == ollama.KindTimeout {
		return msgModelTimeout
	}
	return fmt.Sprintf(msgModelFailure, err)
}
