package knowledge

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/log_analysis_assistant/internal/storage"
	"github.com/lewisedginton/log_analysis_assistant/pkg/logger"
	"github.com/lewisedginton/log_analysis_assistant/pkg/metrics"
)

func testLogger() logger.Logger {
	return logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func newTestStore(t *testing.T, opts Options) (*Store, storage.FileProvider) {
	t.Helper()
	provider := storage.NewLocalProvider(t.TempDir())
	opts.Provider = provider
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	return NewStore(context.Background(), opts), provider
}

func TestStoreSeedsDefaultsWhenMissing(t *testing.T) {
	store, provider := newTestStore(t, Options{})

	stats := store.Stats()
	assert.Equal(t, 6, stats.Entries)
	assert.Equal(t, 7, stats.Commands)

	exists, err := provider.Exists(context.Background(), knowledgeFileName)
	require.NoError(t, err)
	assert.True(t, exists, "defaults should be persisted on first load")
}

func TestStoreReplacesCorruptData(t *testing.T) {
	provider := storage.NewLocalProvider(t.TempDir())
	ctx := context.Background()
	require.NoError(t, provider.Write(ctx, knowledgeFileName, []byte("{not json")))

	store := NewStore(ctx, Options{Provider: provider, Logger: testLogger()})
	assert.Equal(t, 6, store.Stats().Entries)
}

func TestSearchFindsConnectionGuidance(t *testing.T) {
	store, _ := newTestStore(t, Options{})

	result := store.Search(context.Background(), "connection refused on port 8080")
	assert.Contains(t, result, "firewall")
	assert.Contains(t, result, "systemctl")
}

func TestSearchNeverEmpty(t *testing.T) {
	store, _ := newTestStore(t, Options{})

	result := store.Search(context.Background(), "zzqq fffv")
	assert.Equal(t, generalAdvice, result)

	assert.Equal(t, generalAdvice, store.Search(context.Background(), ""))
}

func TestSearchFallbackByDomainTerm(t *testing.T) {
	provider := storage.NewLocalProvider(t.TempDir())
	ctx := context.Background()
	require.NoError(t, provider.Write(ctx, knowledgeFileName,
		[]byte(`{"quick_solutions":{},"common_commands":{}}`)))

	store := NewStore(ctx, Options{Provider: provider, Logger: testLogger()})
	assert.Equal(t, diskAdvice, store.Search(ctx, "disk is acting weird"))
	assert.Equal(t, memoryAdvice, store.Search(ctx, "memory pressure again"))
	assert.Equal(t, connectionAdvice, store.Search(ctx, "connection keeps dropping"))
}

func TestSearchCacheHit(t *testing.T) {
	m := metrics.New(false, testLogger())
	store, provider := newTestStore(t, Options{Metrics: m})
	ctx := context.Background()

	first := store.Search(ctx, "Connection Refused")
	second := store.Search(ctx, "  connection refused  ")
	assert.Equal(t, first, second)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchCacheHitsCounter))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.KnowledgeSearchesCounter))

	exists, err := provider.Exists(ctx, cacheFileName)
	require.NoError(t, err)
	assert.True(t, exists, "cache should be persisted after a miss")
}

func TestSearchCachePruning(t *testing.T) {
	store, _ := newTestStore(t, Options{CacheCapacity: 4, CachePruneTo: 2})
	ctx := context.Background()

	queries := []string{"memory one", "memory two", "memory three", "memory four", "memory five"}
	for _, q := range queries {
		store.Search(ctx, q)
	}

	// Exceeding capacity keeps only the newest entries
	assert.Equal(t, 2, store.Stats().CacheSize)
	_, oldCached := store.cache.get("memory one")
	assert.False(t, oldCached)
	_, newCached := store.cache.get("memory five")
	assert.True(t, newCached)
}

func TestAddSolution(t *testing.T) {
	store, provider := newTestStore(t, Options{})
	ctx := context.Background()

	store.Search(ctx, "some warm cache entry")
	require.NotZero(t, store.Stats().CacheSize)

	err := store.AddSolution(ctx, "Certificate_Expired", Entry{
		Description: "TLS certificate is past its expiry date",
		Solutions:   []string{"Renew the certificate", "Check certificate chain with openssl"},
		Keywords:    []string{"certificate", "tls", "expired"},
	})
	require.NoError(t, err)

	assert.Zero(t, store.Stats().CacheSize, "adding a solution should clear the cache")

	result := store.Search(ctx, "certificate expired error")
	assert.Contains(t, result, "Renew the certificate")

	// A fresh store sees the persisted entry
	reloaded := NewStore(ctx, Options{Provider: provider, Logger: testLogger()})
	assert.Equal(t, 7, reloaded.Stats().Entries)
}

func TestAddSolutionValidation(t *testing.T) {
	store, _ := newTestStore(t, Options{})
	ctx := context.Background()

	assert.Error(t, store.AddSolution(ctx, "", Entry{Description: "d", Solutions: []string{"s"}}))
	assert.Error(t, store.AddSolution(ctx, "key", Entry{Solutions: []string{"s"}}))
	assert.Error(t, store.AddSolution(ctx, "key", Entry{Description: "d"}))
}

func TestExplainError(t *testing.T) {
	store, _ := newTestStore(t, Options{})

	assert.Contains(t, store.ExplainError("404"), "Not Found")
	assert.Contains(t, store.ExplainError(" Timeout "), "too long to respond")
	assert.Contains(t, store.ExplainError("e-9999"), "No detailed explanation available")
}

func TestRankBySimilarity(t *testing.T) {
	store, _ := newTestStore(t, Options{})

	ranked := store.RankBySimilarity("java heap memory exhausted")
	require.NotEmpty(t, ranked)
	assert.Equal(t, "outofmemoryerror", ranked[0])

	assert.Empty(t, store.RankBySimilarity(""))
}

func TestMaxResultsCap(t *testing.T) {
	store, _ := newTestStore(t, Options{MaxResults: 1})

	// "error" appears in many entries; the cap keeps the result to one block
	result := store.Search(context.Background(), "database timeout error")
	assert.Len(t, strings.Split(result, "\n\n"), 1)
}
