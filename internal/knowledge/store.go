// Package knowledge holds the troubleshooting knowledge base: persistent
// quick solutions, command references, and a ranked keyword search with a
// persisted result cache.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/lewisedginton/log_analysis_assistant/internal/storage"
	"github.com/lewisedginton/log_analysis_assistant/pkg/logger"
	"github.com/lewisedginton/log_analysis_assistant/pkg/metrics"
)

const knowledgeFileName = "knowledge.json"

// Entry is a stored troubleshooting record.
type Entry struct {
	Description string   `json:"description"`
	Solutions   []string `json:"solutions"`
	Keywords    []string `json:"keywords"`
}

// Data is the persisted knowledge base document.
type Data struct {
	QuickSolutions map[string]Entry    `json:"quick_solutions"`
	CommonCommands map[string][]string `json:"common_commands"`
}

// Stats summarises the store for diagnostics.
type Stats struct {
	Entries   int `json:"entries"`
	Commands  int `json:"command_groups"`
	CacheSize int `json:"cache_size"`
}

// Options configures a Store.
type Options struct {
	// Provider persists the knowledge base and the search cache.
	Provider storage.FileProvider
	Logger   logger.Logger
	// Metrics is optional; when set, search and cache-hit counters are
	// incremented.
	Metrics *metrics.Metrics

	// MaxResults caps the number of matches a search assembles.
	MaxResults int
	// CacheCapacity and CachePruneTo bound the search cache.
	CacheCapacity int
	CachePruneTo  int
}

// Store is the knowledge base. Searches never fail: a query that matches
// nothing falls back to fixed troubleshooting advice.
type Store struct {
	provider storage.FileProvider
	log      logger.Logger
	metrics  *metrics.Metrics

	maxResults int

	mu    sync.RWMutex
	data  Data
	cache *searchCache
}

// NewStore loads the knowledge base and search cache from the provider.
// A missing or corrupt knowledge file is replaced with the built-in
// defaults; a corrupt cache starts empty. Construction never fails.
func NewStore(ctx context.Context, opts Options) *Store {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	s := &Store{
		provider:   opts.Provider,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		maxResults: maxResults,
		cache:      newSearchCache(opts.CacheCapacity, opts.CachePruneTo),
	}

	s.data = s.loadData(ctx)
	s.loadCache(ctx)
	return s
}

func (s *Store) loadData(ctx context.Context) Data {
	raw, err := s.provider.Read(ctx, knowledgeFileName)
	if err != nil {
		s.log.Info("No knowledge base found, seeding defaults")
		data := defaultData()
		s.persistData(ctx, data)
		return data
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil || data.QuickSolutions == nil {
		s.log.Warn("Knowledge base is corrupt, replacing with defaults",
			logger.ErrorField(err))
		data = defaultData()
		s.persistData(ctx, data)
		return data
	}
	if data.CommonCommands == nil {
		data.CommonCommands = map[string][]string{}
	}
	return data
}

func (s *Store) loadCache(ctx context.Context) {
	raw, err := s.provider.Read(ctx, cacheFileName)
	if err != nil {
		return
	}
	if err := s.cache.load(raw); err != nil {
		s.log.Warn("Search cache is corrupt, starting empty", logger.ErrorField(err))
	}
}

func (s *Store) persistData(ctx context.Context, data Data) {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		s.log.Error("Failed to serialize knowledge base", logger.ErrorField(err))
		return
	}
	if err := s.provider.Write(ctx, knowledgeFileName, raw); err != nil {
		s.log.Warn("Failed to persist knowledge base", logger.ErrorField(err))
	}
}

func (s *Store) persistCache(ctx context.Context) {
	raw, err := s.cache.marshal()
	if err != nil {
		s.log.Error("Failed to serialize search cache", logger.ErrorField(err))
		return
	}
	if err := s.provider.Write(ctx, cacheFileName, raw); err != nil {
		s.log.Warn("Failed to persist search cache", logger.ErrorField(err))
	}
}

// Search runs the ranked keyword search. Matching strategies are tried in
// order: quick solution lookup, error pattern keywords, then command
// references. A query with no matches gets fixed fallback advice, so the
// result is never empty.
func (s *Store) Search(ctx context.Context, query string) string {
	if s.metrics != nil {
		s.metrics.KnowledgeSearchesCounter.Inc()
	}

	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return generalAdvice
	}

	if cached, ok := s.cache.get(normalized); ok {
		if s.metrics != nil {
			s.metrics.SearchCacheHitsCounter.Inc()
		}
		return cached
	}

	result := s.search(normalized)
	if s.cache.put(normalized, result) {
		s.persistCache(ctx)
	}
	return result
}

func (s *Store) search(normalized string) string {
	tokens := tokenize(normalized)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []string
	seen := map[string]bool{}

	// Quick solution lookup: key or solution text shares a token.
	for _, key := range sortedKeys(s.data.QuickSolutions) {
		if len(results) >= s.maxResults {
			break
		}
		entry := s.data.QuickSolutions[key]
		if !matchesQuickSolution(key, entry, tokens) {
			continue
		}
		seen[key] = true
		results = append(results, fmt.Sprintf("%s: %s. Try: %s",
			titleCase(key), entry.Description, strings.Join(firstN(entry.Solutions, 3), "; ")))
	}

	// Error pattern lookup: a listed keyword appears in the query.
	for _, key := range sortedKeys(s.data.QuickSolutions) {
		if len(results) >= s.maxResults {
			break
		}
		if seen[key] {
			continue
		}
		entry := s.data.QuickSolutions[key]
		matched := matchedKeywords(entry.Keywords, normalized)
		if len(matched) == 0 {
			continue
		}
		seen[key] = true
		results = append(results, fmt.Sprintf("%s (matched: %s): %s",
			titleCase(key), strings.Join(matched, ", "), entry.Description))
	}

	// Command lookup: a command string contains a query token.
	for _, name := range sortedKeys(s.data.CommonCommands) {
		if len(results) >= s.maxResults {
			break
		}
		commands := matchedCommands(s.data.CommonCommands[name], tokens)
		if len(commands) == 0 {
			continue
		}
		results = append(results, fmt.Sprintf("Commands for %s:\n%s",
			titleCase(name), strings.Join(firstN(commands, 3), "\n")))
	}

	if len(results) == 0 {
		return fallbackAdvice(normalized)
	}
	return strings.Join(results, "\n\n")
}

func fallbackAdvice(normalized string) string {
	switch {
	case strings.Contains(normalized, "disk"):
		return diskAdvice
	case strings.Contains(normalized, "memory"):
		return memoryAdvice
	case strings.Contains(normalized, "connection"):
		return connectionAdvice
	default:
		return generalAdvice
	}
}

// AddSolution stores or replaces an entry and persists the knowledge base.
// The search cache is cleared so stale results are not served.
func (s *Store) AddSolution(ctx context.Context, key string, entry Entry) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return fmt.Errorf("solution key is required")
	}
	if entry.Description == "" {
		return fmt.Errorf("solution description is required")
	}
	if len(entry.Solutions) == 0 {
		return fmt.Errorf("at least one solution step is required")
	}

	s.mu.Lock()
	s.data.QuickSolutions[key] = entry
	data := s.data
	s.mu.Unlock()

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize knowledge base: %w", err)
	}
	if err := s.provider.Write(ctx, knowledgeFileName, raw); err != nil {
		return fmt.Errorf("failed to persist knowledge base: %w", err)
	}

	s.cache.clear()
	s.persistCache(ctx)
	return nil
}

// ExplainError returns a detailed explanation for a well-known error
// identifier, or a not-found message.
func (s *Store) ExplainError(code string) string {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if explanation, ok := errorExplanations[normalized]; ok {
		return explanation
	}
	return fmt.Sprintf("No detailed explanation available for: %s", code)
}

// RankBySimilarity returns up to five entry keys ordered by keyword
// overlap with the query. Ties are broken alphabetically.
func (s *Store) RankBySimilarity(query string) []string {
	tokens := tokenize(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil
	}
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		key   string
		score int
	}
	var ranked []scored
	for _, key := range sortedKeys(s.data.QuickSolutions) {
		entry := s.data.QuickSolutions[key]
		score := 0
		for _, kw := range entry.Keywords {
			if tokenSet[strings.ToLower(kw)] {
				score++
			}
		}
		for _, word := range tokenize(strings.ToLower(entry.Description)) {
			if tokenSet[word] {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{key: key, score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}

	keys := make([]string, 0, len(ranked))
	for _, r := range ranked {
		keys = append(keys, r.key)
	}
	return keys
}

// Stats reports store sizes for diagnostics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Entries:   len(s.data.QuickSolutions),
		Commands:  len(s.data.CommonCommands),
		CacheSize: s.cache.size(),
	}
}

func matchesQuickSolution(key string, entry Entry, tokens []string) bool {
	keyTokens := map[string]bool{}
	for _, t := range strings.Split(key, "_") {
		keyTokens[t] = true
	}
	for _, token := range tokens {
		if keyTokens[token] {
			return true
		}
	}
	// Solution text only matches on longer tokens to keep filler words
	// from pulling in every entry.
	for _, token := range tokens {
		if len(token) < 4 {
			continue
		}
		for _, solution := range entry.Solutions {
			if containsWord(strings.ToLower(solution), token) {
				return true
			}
		}
	}
	return false
}

func matchedKeywords(keywords []string, normalizedQuery string) []string {
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(normalizedQuery, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}

func matchedCommands(commands []string, tokens []string) []string {
	var matched []string
	for _, cmd := range commands {
		lower := strings.ToLower(cmd)
		for _, token := range tokens {
			if len(token) < 3 {
				continue
			}
			if strings.Contains(lower, token) {
				matched = append(matched, cmd)
				break
			}
		}
	}
	return matched
}

func containsWord(text, word string) bool {
	for _, w := range tokenize(text) {
		if w == word {
			return true
		}
	}
	return false
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func titleCase(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
