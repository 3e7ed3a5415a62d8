// Package ratelimit gates request admission with a fixed-window
// counter per client.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is one client's fixed-window state.
type Window struct {
	Count     int
	ResetTime time.Time
}

// CounterStore holds per-client windows. The in-memory implementation
// below serves a single process; a shared external store can be
// swapped in by deployment configuration.
type CounterStore interface {
	// Increment bumps the client's counter, starting a fresh window
	// when none exists or the previous one expired. Returns the
	// post-increment state.
	Increment(id string, window time.Duration, now time.Time) Window

	// Peek returns the current window without mutating it.
	Peek(id string, now time.Time) (Window, bool)

	// Sweep drops windows whose reset time has passed and returns how
	// many were removed.
	Sweep(now time.Time) int
}

// MemoryStore is a map-backed CounterStore, safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*Window
}

var _ CounterStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*Window)}
}

// Increment bumps or restarts the client's window.
func (s *MemoryStore) Increment(id string, window time.Duration, now time.Time) Window {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[id]
	if !ok || now.After(w.ResetTime) {
		w = &Window{Count: 1, ResetTime: now.Add(window)}
		s.windows[id] = w
		return *w
	}
	w.Count++
	return *w
}

// Peek returns the current window without mutating it.
func (s *MemoryStore) Peek(id string, now time.Time) (Window, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[id]
	if !ok || now.After(w.ResetTime) {
		return Window{}, false
	}
	return *w, true
}

// Sweep removes expired windows, bounding memory to recently-active
// clients.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, w := range s.windows {
		if now.After(w.ResetTime) {
			delete(s.windows, id)
			removed++
		}
	}
	return removed
}

// Info is the read-only view of a client's admission state.
type Info struct {
	Remaining int
	ResetTime time.Time
	Limit     int
}

// Limiter admits requests while a client stays under its per-window
// maximum.
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration
}

// NewLimiter creates a limiter allowing limit requests per window.
func NewLimiter(store CounterStore, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// Allow admits or denies one request from the client.
func (l *Limiter) Allow(id string) bool {
	w := l.store.Increment(id, l.window, time.Now())
	return w.Count <= l.limit
}

// Info returns the client's remaining quota without consuming any.
func (l *Limiter) Info(id string) Info {
	now := time.Now()
	w, ok := l.store.Peek(id, now)
	if !ok {
		return Info{Remaining: l.limit, ResetTime: now.Add(l.window), Limit: l.limit}
	}
	remaining := l.limit - w.Count
	if remaining < 0 {
		remaining = 0
	}
	return Info{Remaining: remaining, ResetTime: w.ResetTime, Limit: l.limit}
}

// RetryAfter returns how long a denied client should wait. Always
// positive for a live window.
func (l *Limiter) RetryAfter(id string) time.Duration {
	info := l.Info(id)
	d := time.Until(info.ResetTime)
	if d <= 0 {
		d = time.Second
	}
	return d
}

// StartSweeper periodically removes expired windows until the context
// is cancelled.
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.store.Sweep(now)
			}
		}
	}()
}
