package middleware

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter defines the interface for rate limiting implementations
type RateLimiter interface {
	// Allow checks if a request is allowed for the given key
	// Returns true if allowed, false if rate limit exceeded
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// GetRemaining returns the number of remaining requests for the key
	GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)

	// Reset clears the rate limit data for the given key
	Reset(ctx context.Context, key string) error
}

// TokenBucket allows capacity requests per window, refilling continuously.
type TokenBucket struct {
	limiter  *rate.Limiter
	window   time.Duration
	lastSeen time.Time
	mutex    sync.Mutex
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(capacity int, window time.Duration) *TokenBucket {
	every := window / time.Duration(max(capacity, 1))
	return &TokenBucket{
		limiter:  rate.NewLimiter(rate.Every(every), capacity),
		window:   window,
		lastSeen: time.Now(),
	}
}

// Take attempts to take a token from the bucket
func (tb *TokenBucket) Take() bool {
	tb.mutex.Lock()
	tb.lastSeen = time.Now()
	tb.mutex.Unlock()

	return tb.limiter.Allow()
}

// Tokens returns the number of whole tokens available now.
func (tb *TokenBucket) Tokens() int {
	return max(int(math.Floor(tb.limiter.Tokens())), 0)
}

func (tb *TokenBucket) idle(now time.Time) bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	return now.Sub(tb.lastSeen) > tb.window*2
}

// InMemoryRateLimiter implements RateLimiter using in-memory token buckets
type InMemoryRateLimiter struct {
	buckets map[string]*TokenBucket
	mutex   sync.RWMutex
	janitor *janitor
}

// NewInMemoryRateLimiter creates a new in-memory rate limiter
func NewInMemoryRateLimiter() *InMemoryRateLimiter {
	rl := &InMemoryRateLimiter{
		buckets: make(map[string]*TokenBucket),
	}

	rl.janitor = &janitor{
		interval: 5 * time.Minute,
		stop:     make(chan struct{}),
	}
	go rl.janitor.run(rl)

	return rl
}

func bucketKey(key string, limit int, window time.Duration) string {
	return fmt.Sprintf("%s:%d:%s", key, limit, window)
}

// Allow checks if a request is allowed for the given key
func (rl *InMemoryRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := bucketKey(key, limit, window)

	rl.mutex.Lock()
	bucket, exists := rl.buckets[k]
	if !exists {
		bucket = NewTokenBucket(limit, window)
		rl.buckets[k] = bucket
	}
	rl.mutex.Unlock()

	return bucket.Take(), nil
}

// GetRemaining returns the number of remaining requests for the key
func (rl *InMemoryRateLimiter) GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	rl.mutex.RLock()
	bucket, exists := rl.buckets[bucketKey(key, limit, window)]
	rl.mutex.RUnlock()

	if !exists {
		return limit, nil
	}
	return bucket.Tokens(), nil
}

// Reset clears the rate limit data for the given key
func (rl *InMemoryRateLimiter) Reset(ctx context.Context, key string) error {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	for k := range rl.buckets {
		if strings.HasPrefix(k, key+":") {
			delete(rl.buckets, k)
		}
	}
	return nil
}

// Close stops the cleanup goroutine
func (rl *InMemoryRateLimiter) Close() error {
	if rl.janitor != nil {
		rl.janitor.once.Do(func() { close(rl.janitor.stop) })
	}
	return nil
}

// janitor runs periodic cleanup of idle buckets
type janitor struct {
	interval time.Duration
	stop     chan struct{}
	once     sync.Once
}

func (j *janitor) run(rl *InMemoryRateLimiter) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-j.stop:
			return
		}
	}
}

// cleanup removes buckets unused for more than twice their window.
func (rl *InMemoryRateLimiter) cleanup(now time.Time) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	for k, bucket := range rl.buckets {
		if bucket.idle(now) {
			delete(rl.buckets, k)
		}
	}
}
