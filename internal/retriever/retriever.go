// Package retriever bounds knowledge base lookups with a deadline so a
// slow search can never stall the conversation pipeline.
package retriever

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lewisedginton/log_analysis_assistant/pkg/logger"
	"github.com/lewisedginton/log_analysis_assistant/pkg/metrics"
)

// Searcher is the knowledge lookup the retriever wraps.
type Searcher interface {
	Search(ctx context.Context, query string) string
}

// Options configures a Retriever.
type Options struct {
	// Init builds the underlying searcher on first use. A failed Init is
	// not retried; the retriever then always returns empty context.
	Init    func(ctx context.Context) (Searcher, error)
	Logger  logger.Logger
	Metrics *metrics.Metrics

	// Deadline is the default time budget per retrieval.
	Deadline time.Duration
	// MaxContextChars caps the returned context.
	MaxContextChars int
}

// Retriever lazily initializes a Searcher and runs lookups under a
// deadline. Lookups that miss the deadline are abandoned and yield an
// empty context; the pipeline continues without knowledge base input.
type Retriever struct {
	opts Options

	mu       sync.Mutex
	searcher Searcher
	failed   bool
}

// New creates a Retriever. The searcher is not built until the first
// retrieval.
func New(opts Options) *Retriever {
	if opts.Deadline <= 0 {
		opts.Deadline = 2 * time.Second
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 800
	}
	return &Retriever{opts: opts}
}

// Retrieve looks up context for the query within the given deadline.
// A zero deadline uses the configured default. The empty string signals
// "no context available" and is never an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, deadline time.Duration) string {
	searcher := r.ensureSearcher(ctx)
	if searcher == nil {
		return ""
	}
	if deadline <= 0 {
		deadline = r.opts.Deadline
	}

	searchCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	results := make(chan string, 1)
	go func() {
		results <- searcher.Search(searchCtx, query)
	}()

	select {
	case result := <-results:
		return r.truncate(result)
	case <-searchCtx.Done():
		if r.opts.Metrics != nil {
			r.opts.Metrics.RetrievalTimeoutsCounter.Inc()
		}
		r.opts.Logger.Warn("Knowledge retrieval abandoned at deadline",
			logger.DurationField("deadline", deadline))
		return ""
	}
}

// ensureSearcher performs the one-time initialization. After a failure
// the retriever stays permanently unavailable rather than retrying on
// every request.
func (r *Retriever) ensureSearcher(ctx context.Context) Searcher {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.searcher != nil || r.failed {
		return r.searcher
	}

	searcher, err := r.opts.Init(ctx)
	if err != nil {
		r.failed = true
		r.opts.Logger.Error("Knowledge base initialization failed, continuing without context",
			logger.ErrorField(err))
		return nil
	}
	r.searcher = searcher
	return searcher
}

// Available reports whether the underlying searcher is usable. It does
// not trigger initialization.
func (r *Retriever) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.searcher != nil || !r.failed
}

func (r *Retriever) truncate(result string) string {
	if len(result) <= r.opts.MaxContextChars {
		return result
	}
	cut := r.opts.MaxContextChars
	for cut > 0 && !utf8.RuneStart(result[cut]) {
		cut--
	}
	return result[:cut]
}
