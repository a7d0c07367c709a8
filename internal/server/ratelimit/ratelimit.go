// Package ratelimit bounds per-identity request rates with an explicit,
// injectable counter store. State lives in the Limiter instance handed to
// the HTTP layer, never in package-level variables, so tests and multiple
// servers get independent arenas with an explicit lifecycle.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	count    int
	windowAt time.Time
}

// Limiter is a fixed-window counter keyed by client identity (user id or
// remote address). Expired buckets are evicted lazily on access and in bulk
// by Sweep.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*bucket
	now     func() time.Time
}

// New returns a Limiter allowing limit requests per window per key.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow records one request for key and reports whether it fits the budget.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowAt) >= l.window {
		l.buckets[key] = &bucket{count: 1, windowAt: now}
		return true
	}

	b.count++
	return b.count <= l.limit
}

// Sweep drops every bucket whose window has passed. Callers run it on a
// timer so the arena stays bounded even for keys that never return.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.windowAt) >= l.window {
			delete(l.buckets, key)
		}
	}
}

// Len reports the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
