// Package quota tracks the remaining call budget of a quota-constrained
// upstream API and reconciles the local estimate with the rate-limit headers
// the upstream reports.
package quota

import (
	"sync"
	"time"
)

// State is a point-in-time snapshot of the tracker.
type State struct {
	Remaining int       `json:"remaining"`
	Ceiling   int       `json:"ceiling"`
	ResetAt   time.Time `json:"reset_at"`
	// Synced is true when Remaining came from an upstream response rather than
	// a local guess made after a reset.
	Synced bool `json:"synced"`
}

// Tracker hands out call permits without blocking. Safe for concurrent use.
type Tracker struct {
	ceiling int
	window  time.Duration
	now     func() time.Time

	mu        sync.Mutex
	remaining int
	resetAt   time.Time
	synced    bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a tracker that starts with a full budget of ceiling calls
// refilled every window.
func New(ceiling int, window time.Duration, opts ...Option) *Tracker {
	if ceiling < 0 {
		ceiling = 0
	}
	t := &Tracker{
		ceiling: ceiling,
		window:  window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.remaining = ceiling
	t.resetAt = t.now().Add(window)
	return t
}

// TryConsume grants up to n permits and returns how many were granted.
// It never blocks and never grants more than the remaining budget.
func (t *Tracker) TryConsume(n int) int {
	if n <= 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	granted := min(n, t.remaining)
	t.remaining -= granted
	return granted
}

// OnResponseHeaders overwrites the local estimate with the values the
// upstream reported. The upstream is authoritative.
func (t *Tracker) OnResponseHeaders(remaining int, resetAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.remaining = max(remaining, 0)
	if !resetAt.IsZero() {
		t.resetAt = resetAt
	}
	t.synced = true
}

// State returns a snapshot for health and diagnostics reporting.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	return State{
		Remaining: t.remaining,
		Ceiling:   t.ceiling,
		ResetAt:   t.resetAt,
		Synced:    t.synced,
	}
}

// ResetAt returns when the current window ends.
func (t *Tracker) ResetAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	return t.resetAt
}

// rollover starts a new window once the reset time has passed, optimistically
// assuming the full ceiling until the next real response re-syncs it.
// Caller holds t.mu.
func (t *Tracker) rollover() {
	now := t.now()
	if now.Before(t.resetAt) {
		return
	}
	t.remaining = t.ceiling
	t.resetAt = now.Add(t.window)
	t.synced = false
}
