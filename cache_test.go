package trends

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	clk := newFakeClock()
	c := NewResultCache(clk.Now)
	key := newCacheKey(Query{Topic: "vote"}, clk.Now(), time.Hour)
	res := &AggregationResult{Topic: "vote"}

	c.Put(key, res, 60*time.Second)

	clk.Advance(59 * time.Second)
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Same(t, res, got)

	clk.Advance(2 * time.Second)
	_, ok = c.Get(key)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	assert.Equal(t, 1, c.Sweep())
	assert.Zero(t, c.Len())
}

func TestCacheExpiresExactlyAtTTL(t *testing.T) {
	clk := newFakeClock()
	c := NewResultCache(clk.Now)
	key := CacheKey{Topic: "vote"}

	c.Put(key, &AggregationResult{}, time.Minute)
	clk.Advance(time.Minute)
	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestCacheNonPositiveTTLStoresNothing(t *testing.T) {
	c := NewResultCache(nil)
	c.Put(CacheKey{Topic: "vote"}, &AggregationResult{}, 0)
	assert.Zero(t, c.Len())
}

func TestCacheSweepKeepsLiveEntries(t *testing.T) {
	clk := newFakeClock()
	c := NewResultCache(clk.Now)
	c.Put(CacheKey{Topic: "short"}, &AggregationResult{}, time.Second)
	c.Put(CacheKey{Topic: "long"}, &AggregationResult{}, time.Hour)

	clk.Advance(time.Minute)
	assert.Equal(t, 1, c.Sweep())
	_, ok := c.Get(CacheKey{Topic: "long"})
	assert.True(t, ok)
}

func TestCacheKey(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 34, 0, 0, time.FixedZone("CEST", 2*3600))
	k := newCacheKey(Query{Topic: "vote"}, at, time.Hour)
	assert.Equal(t, "vote|GLOBAL|2025-06-01T10:00", k.String())

	k = newCacheKey(Query{Topic: "vote", Country: "FR"}, at, 15*time.Minute)
	assert.Equal(t, "vote|FR|2025-06-01T10:30", k.String())
}
