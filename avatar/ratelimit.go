package avatar

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter bounds outbound request rate per provider with a token
// bucket that refills continuously from elapsed time. Admission either
// succeeds or is denied immediately; it never blocks and never
// oversubscribes. Denials reflect local policy and are not reported to the
// health monitor.
type RateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
}

// NewRateLimiter creates an empty RateLimiter. Providers without a
// configured bucket are admitted unconditionally.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*rate.Limiter)}
}

// Configure installs or replaces the bucket for a provider. rps <= 0
// removes any bound. A zero burst defaults to at least one token so a
// configured provider can ever be admitted.
func (l *RateLimiter) Configure(name string, rps float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rps <= 0 {
		delete(l.buckets, name)
		return
	}
	if burst < 1 {
		burst = 1
	}
	l.buckets[name] = rate.NewLimiter(rate.Limit(rps), burst)
}

// TryAcquire consumes one token for the provider if available.
func (l *RateLimiter) TryAcquire(name string) bool {
	l.mu.RLock()
	bucket, ok := l.buckets[name]
	l.mu.RUnlock()
	if !ok {
		return true
	}
	return bucket.Allow()
}
