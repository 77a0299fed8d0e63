// Package ratelimit provides an in-memory sliding-window rate limiter used
// to throttle attempt creation and capture submissions per client.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result reports the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window frees up, at least 1.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

// slidingWindow tracks request timestamps inside one window. The sliding
// window avoids the burst-at-boundary problem of fixed counters.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// Limiter is a per-key sliding-window limiter. It holds state in memory, so
// limits apply per process, not across replicas.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*slidingWindow
	now     func() time.Time
}

func New() *Limiter {
	return &Limiter{
		buckets: make(map[string]*slidingWindow),
		now:     time.Now,
	}
}

// Allow records one request for key and reports whether it fits within limit
// requests per window.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	sw := l.buckets[key]
	if sw == nil {
		sw = &slidingWindow{window: window}
		l.buckets[key] = sw
	}
	sw.cleanup(now)

	if len(sw.timestamps)+1 > limit {
		return Result{
			Allowed:   false,
			Limit:     limit,
			Remaining: 0,
			ResetAt:   sw.timestamps[0].Add(window),
		}, nil
	}

	sw.timestamps = append(sw.timestamps, now)
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(window),
	}, nil
}

// Reset clears the counter for a key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
	return nil
}

// Count returns the number of requests currently inside the window for key.
func (l *Limiter) Count(ctx context.Context, key string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sw := l.buckets[key]
	if sw == nil {
		return 0, nil
	}
	sw.cleanup(l.now())
	return len(sw.timestamps), nil
}
