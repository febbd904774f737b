package notify

import (
	"sync"
	"time"
)

// DefaultDedupWindow is how long a hearing reminder suppresses the next one
const DefaultDedupWindow = 10 * time.Minute

// ReminderGuard remembers when each key was last let through and refuses
// the same key again until the window has passed. It is process local.
type ReminderGuard struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	seen   map[string]time.Time
}

// NewReminderGuard returns a guard with the given window. A nil clock uses
// time.Now.
func NewReminderGuard(window time.Duration, now func() time.Time) *ReminderGuard {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	if now == nil {
		now = time.Now
	}
	return &ReminderGuard{
		window: window,
		now:    now,
		seen:   make(map[string]time.Time),
	}
}

// Allow reports whether key may be notified now and, if so, records it.
// Expired entries are evicted on every call.
func (g *ReminderGuard) Allow(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for k, at := range g.seen {
		if now.Sub(at) >= g.window {
			delete(g.seen, k)
		}
	}
	if _, ok := g.seen[key]; ok {
		return false
	}
	g.seen[key] = now
	return true
}

// Len returns the number of keys currently inside the window
func (g *ReminderGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
