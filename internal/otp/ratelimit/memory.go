package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryLimiter implements Limiter with a sliding window of timestamps per
// key. Single-process only; deployments with more than one replica use the
// Redis limiter instead.
type InMemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewInMemory() *InMemoryLimiter {
	return &InMemoryLimiter{windows: make(map[string][]time.Time)}
}

func (l *InMemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)

	kept := l.windows[key][:0]
	for _, ts := range l.windows[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		l.windows[key] = kept
		return &Result{Allowed: false, Remaining: 0, ResetAt: kept[0].Add(window)}, nil
	}

	kept = append(kept, now)
	l.windows[key] = kept
	return &Result{
		Allowed:   true,
		Remaining: limit - len(kept),
		ResetAt:   kept[0].Add(window),
	}, nil
}

// Reset clears the window for a key.
func (l *InMemoryLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}
