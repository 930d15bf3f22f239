package search

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"civicdesk/models"

	"github.com/cespare/xxhash/v2"
)

// DefaultCacheTTL is the validity window for cached search results.
// Staleness up to this window is an accepted tradeoff; mutations do not
// invalidate entries.
const DefaultCacheTTL = 5 * time.Minute

// CacheEntry is one memoized search result. Entries are immutable once
// written; replacement is wholesale.
type CacheEntry struct {
	Key          string
	Page         models.Page
	Aggregations models.Aggregations
	CreatedAt    time.Time
}

// ResultCache memoizes executor output per request fingerprint. Expiry is
// checked lazily on lookup; a best-effort sweep after each write bounds
// growth. The cache is per-instance with no cross-process coherency.
type ResultCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*CacheEntry
	now     func() time.Time
}

// NewResultCache creates a cache with the given TTL; non-positive values
// use DefaultCacheTTL.
func NewResultCache(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResultCache{
		ttl:     ttl,
		entries: make(map[string]*CacheEntry),
		now:     time.Now,
	}
}

// Get returns the live entry for key, or a miss if absent or expired.
func (c *ResultCache) Get(key string) (*CacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(entry.CreatedAt) > c.ttl {
		return nil, false
	}
	return entry, true
}

// Put stores a fresh entry and sweeps out whatever has expired.
func (c *ResultCache) Put(key string, page models.Page, aggs models.Aggregations) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &CacheEntry{
		Key:          key,
		Page:         page,
		Aggregations: aggs,
		CreatedAt:    now,
	}
	for k, e := range c.entries {
		if now.Sub(e.CreatedAt) > c.ttl {
			delete(c.entries, k)
		}
	}
}

// Clear drops every entry. Reserved for trusted operator action; normal
// request flow never calls it.
func (c *ResultCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]*CacheEntry)
	return n
}

// Len returns the number of entries, expired ones included.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// fingerprintInput covers every dimension that shapes a result. Two
// requests differing in any of these, caller included, must miss each
// other.
type fingerprintInput struct {
	Filters    models.FilterSet   `json:"f"`
	Pagination models.Pagination  `json:"p"`
	Sorting    models.Sorting     `json:"s"`
	Options    fingerprintOptions `json:"o"`
	CallerID   string             `json:"c"`
	CallerRole string             `json:"r"`
}

// fingerprintOptions holds the options that change the fetched shape.
// SkipCache and CacheKey are deliberately excluded.
type fingerprintOptions struct {
	IncludeAggregations bool     `json:"agg"`
	IncludeRelations    bool     `json:"rel"`
	FieldSelection      []string `json:"sel,omitempty"`
}

// Fingerprint derives the deterministic cache key for a request and caller.
func Fingerprint(req models.SearchRequest, caller models.Caller) string {
	in := fingerprintInput{
		Filters:    req.Filters,
		Pagination: req.Pagination,
		Sorting:    req.Sorting,
		Options: fingerprintOptions{
			IncludeAggregations: req.Options.IncludeAggregations,
			IncludeRelations:    req.Options.IncludeRelations,
			FieldSelection:      req.Options.FieldSelection,
		},
		CallerID:   caller.ID.String(),
		CallerRole: caller.Role,
	}
	// Struct field order makes json.Marshal deterministic here; the one map
	// in FilterSet (customFields) is marshaled with sorted keys by
	// encoding/json.
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Sprintf("search:%s:%s", caller.ID, caller.Role)
	}
	return fmt.Sprintf("search:%x", xxhash.Sum64(raw))
}
