package ratelimit

import (
	"sync"
	"time"
)

// bucket is a token bucket for one client key.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter throttles login attempts per client key using token buckets.
// capacity bounds the burst, refillRate is attempts allowed per second.
// Buckets idle longer than ttl are dropped by the cleanup loop.
type Limiter struct {
	capacity   int
	refillRate float64
	ttl        time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewLimiter creates a limiter. ttl of zero keeps buckets forever.
func NewLimiter(capacity int, refillRate float64, ttl time.Duration) *Limiter {
	l := &Limiter{
		capacity:   capacity,
		refillRate: refillRate,
		ttl:        ttl,
		buckets:    make(map[string]*bucket),
	}
	if ttl > 0 {
		go l.cleanup()
	}
	return l
}

// Allow reports whether an attempt for key is within the limit and consumes
// one token if so.
func (l *Limiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{tokens: float64(l.capacity), lastRefill: now}
		l.buckets[key] = b
	}

	refilled := b.tokens + now.Sub(b.lastRefill).Seconds()*l.refillRate
	if refilled > float64(l.capacity) {
		refilled = float64(l.capacity)
	}
	b.tokens = refilled
	b.lastRefill = now

	if b.tokens < 1.0 {
		return false
	}
	b.tokens -= 1.0
	return true
}

// Reset restores the full burst for key, e.g. after a successful login.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, exists := l.buckets[key]; exists {
		b.tokens = float64(l.capacity)
		b.lastRefill = time.Now()
	}
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.ttl)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		l.mu.Lock()
		for key, b := range l.buckets {
			if now.Sub(b.lastRefill) > l.ttl {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}
