// Package cooldown suppresses repeated acceptances of the same person within a window.
package cooldown

import (
	"sync"
	"time"
)

// Guard tracks the last accepted instant per person-id.
// Entries never expire; a person is eligible again once the window has elapsed.
type Guard struct {
	window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

// New creates a guard with the given window.
func New(window time.Duration) *Guard {
	return &Guard{
		window: window,
		last:   make(map[string]time.Time),
	}
}

// Window returns the configured cooldown window.
func (g *Guard) Window() time.Duration {
	return g.window
}

func (g *Guard) eligibleLocked(personID string, now time.Time) bool {
	last, ok := g.last[personID]
	return !ok || now.Sub(last) >= g.window
}

// ShouldAccept reports whether personID is eligible at now. It does not modify state.
func (g *Guard) ShouldAccept(personID string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.eligibleLocked(personID, now)
}

// RecordAccept sets the last accepted instant of personID to now, unconditionally.
func (g *Guard) RecordAccept(personID string, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last[personID] = now
}

// TryAccept records an acceptance and returns true only if personID was eligible.
// Concurrent callers for the same person cannot both succeed.
// prev is the instant the acceptance replaced, zero when personID had no entry.
func (g *Guard) TryAccept(personID string, now time.Time) (prev time.Time, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.eligibleLocked(personID, now) {
		return time.Time{}, false
	}
	prev = g.last[personID]
	g.last[personID] = now
	return prev, true
}

// Restore undoes a TryAccept at instant at, putting prev back.
// It does nothing if the entry was overwritten since.
func (g *Guard) Restore(personID string, at, prev time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cur, ok := g.last[personID]
	if !ok || !cur.Equal(at) {
		return
	}
	if prev.IsZero() {
		delete(g.last, personID)
		return
	}
	g.last[personID] = prev
}

// Reset forgets every entry, making all persons eligible.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.last)
}

// Len returns the number of tracked persons.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.last)
}
