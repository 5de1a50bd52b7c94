package trends

import (
	"sync"
	"time"
)

// CacheKey identifies one cached aggregation: the normalized query and the
// time bucket it was computed in.
type CacheKey struct {
	Topic   string
	Country string
	Bucket  time.Time
}

func (k CacheKey) String() string {
	return k.Topic + "|" + countryLabel(k.Country) + "|" + k.Bucket.UTC().Format("2006-01-02T15:04")
}

// newCacheKey builds the key of q at now, truncated to bucket.
func newCacheKey(q Query, now time.Time, bucket time.Duration) CacheKey {
	return CacheKey{Topic: q.Topic, Country: q.Country, Bucket: now.UTC().Truncate(bucket)}
}

type cacheEntry struct {
	result    *AggregationResult
	expiresAt time.Time
}

// ResultCache is a TTL cache of aggregation results. Expired entries are
// never returned; they are dropped lazily or by Sweep.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewResultCache creates an empty cache. now may be nil for time.Now.
func NewResultCache(now func() time.Time) *ResultCache {
	if now == nil {
		now = time.Now
	}
	return &ResultCache{entries: make(map[string]cacheEntry), now: now}
}

// Get returns the live result stored under key.
func (c *ResultCache) Get(key CacheKey) (*AggregationResult, bool) {
	c.mu.RLock()
	e, ok := c.entries[key.String()]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.result, true
}

// Put stores result under key for ttl. A non-positive ttl stores nothing.
func (c *ResultCache) Put(key CacheKey, result *AggregationResult, ttl time.Duration) {
	if ttl <= 0 || result == nil {
		return
	}
	c.mu.Lock()
	c.entries[key.String()] = cacheEntry{result: result, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Len counts stored entries, expired ones included until swept.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep drops expired entries and reports how many were removed.
func (c *ResultCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}
