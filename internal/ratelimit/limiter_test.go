package ratelimit

import (
	"testing"
	"time"
)

func TestAllow_EnforcesLimit(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 10, time.Minute)

	for i := 1; i <= 10; i++ {
		if !l.Allow("client") {
			t.Fatalf("request %d denied, want allowed", i)
		}
	}
	if l.Allow("client") {
		t.Error("request 11 allowed, want denied at limit 10")
	}
}

func TestAllow_ClientsIndependent(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 2, time.Minute)

	l.Allow("a")
	l.Allow("a")
	if l.Allow("a") {
		t.Error("client a over limit should be denied")
	}
	if !l.Allow("b") {
		t.Error("client b should be unaffected by client a")
	}
}

func TestAllow_WindowResets(t *testing.T) {
	store := NewMemoryStore()
	l := NewLimiter(store, 2, 10*time.Millisecond)

	l.Allow("client")
	l.Allow("client")
	if l.Allow("client") {
		t.Fatal("expected denial at limit")
	}

	time.Sleep(15 * time.Millisecond)

	if !l.Allow("client") {
		t.Error("expected fresh window after reset")
	}
	// The new window starts counting from 1
	info := l.Info("client")
	if info.Remaining != 1 {
		t.Errorf("Remaining = %d after first request of new window, want 1", info.Remaining)
	}
}

func TestInfo_DoesNotConsume(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 5, time.Minute)

	l.Allow("client")
	for i := 0; i < 10; i++ {
		l.Info("client")
	}

	info := l.Info("client")
	if info.Remaining != 4 {
		t.Errorf("Remaining = %d, want 4 (Info must not consume quota)", info.Remaining)
	}
	if info.Limit != 5 {
		t.Errorf("Limit = %d, want 5", info.Limit)
	}
}

func TestInfo_UnknownClient(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 5, time.Minute)

	info := l.Info("never-seen")
	if info.Remaining != 5 {
		t.Errorf("Remaining = %d for unknown client, want full quota", info.Remaining)
	}
}

func TestRetryAfter_Positive(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 1, time.Minute)

	l.Allow("client")
	l.Allow("client")

	d := l.RetryAfter("client")
	if d <= 0 {
		t.Errorf("RetryAfter() = %v, want positive", d)
	}
	if d > time.Minute {
		t.Errorf("RetryAfter() = %v, longer than the window", d)
	}
}

func TestRetryAfter_ExpiredWindow(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 1, time.Minute)

	// No window at all: still a positive wait suggestion
	if d := l.RetryAfter("never-seen"); d <= 0 {
		t.Errorf("RetryAfter() = %v, want positive", d)
	}
}

func TestSweep_RemovesExpiredWindows(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	store.Increment("old", 10*time.Millisecond, now)
	store.Increment("fresh", time.Minute, now)

	removed := store.Sweep(now.Add(time.Second))
	if removed != 1 {
		t.Errorf("Sweep() removed %d windows, want 1", removed)
	}

	if _, ok := store.Peek("fresh", now.Add(time.Second)); !ok {
		t.Error("fresh window swept too early")
	}
	if _, ok := store.Peek("old", now.Add(time.Second)); ok {
		t.Error("expired window survived sweep")
	}
}

func TestMemoryStore_IncrementRestartsExpired(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	store.Increment("c", 10*time.Millisecond, now)
	store.Increment("c", 10*time.Millisecond, now)

	w := store.Increment("c", 10*time.Millisecond, now.Add(time.Second))
	if w.Count != 1 {
		t.Errorf("Count = %d after window expiry, want 1", w.Count)
	}
}
