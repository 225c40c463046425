package knowledge

import (
	"encoding/json"
	"sync"
)

const cacheFileName = "search_cache.json"

// cacheEntry is the persisted form of one cached search.
type cacheEntry struct {
	Query  string `json:"query"`
	Result string `json:"result"`
}

// searchCache is an insertion-ordered query cache. When capacity is
// exceeded the oldest entries are discarded so recent queries stay warm.
type searchCache struct {
	mu       sync.Mutex
	capacity int
	pruneTo  int
	order    []string
	entries  map[string]string
}

func newSearchCache(capacity, pruneTo int) *searchCache {
	if capacity <= 0 {
		capacity = 100
	}
	if pruneTo <= 0 || pruneTo > capacity {
		pruneTo = capacity / 2
	}
	return &searchCache{
		capacity: capacity,
		pruneTo:  pruneTo,
		entries:  make(map[string]string),
	}
}

func (c *searchCache) get(query string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result, ok := c.entries[query]
	return result, ok
}

// put stores a result and reports whether the cache contents changed.
func (c *searchCache) put(query, result string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[query]; ok {
		if existing == result {
			return false
		}
		c.entries[query] = result
		return true
	}

	c.order = append(c.order, query)
	c.entries[query] = result

	if len(c.order) > c.capacity {
		keep := c.order[len(c.order)-c.pruneTo:]
		pruned := make(map[string]string, len(keep))
		for _, q := range keep {
			pruned[q] = c.entries[q]
		}
		c.order = append([]string(nil), keep...)
		c.entries = pruned
	}
	return true
}

func (c *searchCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

func (c *searchCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.entries = make(map[string]string)
}

// marshal serializes the cache preserving insertion order.
func (c *searchCache) marshal() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make([]cacheEntry, 0, len(c.order))
	for _, q := range c.order {
		snapshot = append(snapshot, cacheEntry{Query: q, Result: c.entries[q]})
	}
	return json.Marshal(snapshot)
}

// load replaces the cache contents from serialized form. A corrupt
// payload leaves the cache empty.
func (c *searchCache) load(data []byte) error {
	var snapshot []cacheEntry
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.order = nil
	c.entries = make(map[string]string, len(snapshot))
	for _, entry := range snapshot {
		if _, ok := c.entries[entry.Query]; ok {
			continue
		}
		c.order = append(c.order, entry.Query)
		c.entries[entry.Query] = entry.Result
	}
	if len(c.order) > c.capacity {
		keep := c.order[len(c.order)-c.pruneTo:]
		pruned := make(map[string]string, len(keep))
		for _, q := range keep {
			pruned[q] = c.entries[q]
		}
		c.order = append([]string(nil), keep...)
		c.entries = pruned
	}
	return nil
}
