package quota

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

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func TestTryConsumeNeverExceedsRemaining(t *testing.T) {
	clk := newClock()
	tr := New(5, 15*time.Minute, WithClock(clk.Now))

	assert.Equal(t, 3, tr.TryConsume(3))
	assert.Equal(t, 2, tr.TryConsume(10))
	assert.Equal(t, 0, tr.TryConsume(1))
	assert.Equal(t, 0, tr.State().Remaining)
}

func TestTryConsumeNonPositive(t *testing.T) {
	tr := New(5, time.Minute)
	assert.Equal(t, 0, tr.TryConsume(0))
	assert.Equal(t, 0, tr.TryConsume(-2))
	assert.Equal(t, 5, tr.State().Remaining)
}

func TestExhaustedUntilReset(t *testing.T) {
	clk := newClock()
	tr := New(100, 15*time.Minute, WithClock(clk.Now))

	resetAt := clk.Now().Add(30 * time.Second)
	tr.OnResponseHeaders(0, resetAt)

	for range 5 {
		assert.Equal(t, 0, tr.TryConsume(1))
	}
	clk.Advance(29 * time.Second)
	assert.Equal(t, 0, tr.TryConsume(1))

	clk.Advance(time.Second)
	assert.Equal(t, 1, tr.TryConsume(1))

	st := tr.State()
	assert.Equal(t, 99, st.Remaining)
	assert.False(t, st.Synced, "reset budget is a local guess")
	assert.Equal(t, clk.Now().Add(15*time.Minute), st.ResetAt)
}

func TestOnResponseHeadersIsAuthoritative(t *testing.T) {
	clk := newClock()
	tr := New(10, time.Minute, WithClock(clk.Now))

	tr.OnResponseHeaders(42, clk.Now().Add(time.Minute))
	st := tr.State()
	assert.Equal(t, 42, st.Remaining)
	assert.True(t, st.Synced)

	tr.OnResponseHeaders(-3, time.Time{})
	st = tr.State()
	assert.Equal(t, 0, st.Remaining)
	assert.Equal(t, clk.Now().Add(time.Minute), st.ResetAt, "zero reset keeps previous window")
}

func TestConcurrentConsumeGrantsExactlyCeiling(t *testing.T) {
	tr := New(50, time.Hour)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				g := tr.TryConsume(1)
				mu.Lock()
				granted += g
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 50, granted)
	assert.Equal(t, 0, tr.State().Remaining)
}
