package middleware

import (
	"sync"
	"time"
)

var timeNow = time.Now

// RateLimiter counts bad requests per caller and reports when a caller has
// gone over the allowed number inside the rolling window.
type RateLimiter interface {
	IsRateLimitExceeded(key string) bool
	TickBadRequestCounter(key string)
}

// BadRequestRateLimiter is an in-memory sliding-window RateLimiter keyed by
// caller identity, typically the client IP. Counters only ever grow through
// TickBadRequestCounter, so well-formed traffic is never throttled.
type BadRequestRateLimiter struct {
	mu       sync.Mutex
	requests int
	window   time.Duration
	hits     map[string][]time.Time
}

// NewBadRequestRateLimiter allows up to requests bad requests per key inside
// the given window.
func NewBadRequestRateLimiter(requests int, window time.Duration) *BadRequestRateLimiter {
	return &BadRequestRateLimiter{
		requests: requests,
		window:   window,
		hits:     make(map[string][]time.Time),
	}
}

// IsRateLimitExceeded reports whether key has reached the bad request
// threshold inside the current window.
func (l *BadRequestRateLimiter) IsRateLimitExceeded(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prune(key)) >= l.requests
}

// TickBadRequestCounter records one bad request for key.
func (l *BadRequestRateLimiter) TickBadRequestCounter(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits[key] = append(l.prune(key), timeNow())
}

// Sweep drops expired entries for every key. The scheduler calls this so
// sources that stopped sending do not hold memory.
func (l *BadRequestRateLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.hits {
		l.prune(key)
	}
}

// prune removes window-expired hits for key and returns what is left. The
// caller must hold mu.
func (l *BadRequestRateLimiter) prune(key string) []time.Time {
	cutoff := timeNow().Add(-l.window)
	var kept []time.Time
	for _, hit := range l.hits[key] {
		if hit.After(cutoff) {
			kept = append(kept, hit)
		}
	}
	if len(kept) == 0 {
		delete(l.hits, key)
		return nil
	}
	l.hits[key] = kept
	return kept
}
