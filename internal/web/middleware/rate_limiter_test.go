package middleware

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryRateLimiter_Allow(t *testing.T) {
	rateLimiter := NewInMemoryRateLimiter()
	defer rateLimiter.Close()

	ctx := context.Background()
	key := "test-key"
	limit := 3
	window := time.Second

	t.Run("allows requests within limit", func(t *testing.T) {
		for i := 0; i < limit; i++ {
			allowed, err := rateLimiter.Allow(ctx, key, limit, window)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !allowed {
				t.Fatalf("request %d should be allowed", i+1)
			}
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		allowed, err := rateLimiter.Allow(ctx, key, limit, window)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if allowed {
			t.Fatal("request should be blocked")
		}
	})

	t.Run("allows requests after window expires", func(t *testing.T) {
		time.Sleep(window + 100*time.Millisecond)

		allowed, err := rateLimiter.Allow(ctx, key, limit, window)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !allowed {
			t.Fatal("request should be allowed after window expires")
		}
	})

	t.Run("different keys are independent", func(t *testing.T) {
		allowed, err := rateLimiter.Allow(ctx, "test-key-2", limit, window)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !allowed {
			t.Fatal("different key should be allowed")
		}
	})
}

func TestInMemoryRateLimiter_GetRemaining(t *testing.T) {
	rateLimiter := NewInMemoryRateLimiter()
	defer rateLimiter.Close()

	ctx := context.Background()
	key := "test-key"
	limit := 5
	window := time.Second

	t.Run("returns full limit for new key", func(t *testing.T) {
		remaining, err := rateLimiter.GetRemaining(ctx, "new-key", limit, window)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if remaining != limit {
			t.Fatalf("expected %d remaining, got %d", limit, remaining)
		}
	})

	t.Run("tracks remaining requests correctly", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			if _, err := rateLimiter.Allow(ctx, key, limit, window); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		remaining, err := rateLimiter.GetRemaining(ctx, key, limit, window)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if expected := limit - 3; remaining != expected {
			t.Fatalf("expected %d remaining, got %d", expected, remaining)
		}
	})
}

func TestInMemoryRateLimiter_Reset(t *testing.T) {
	rateLimiter := NewInMemoryRateLimiter()
	defer rateLimiter.Close()

	ctx := context.Background()
	limit := 2
	window := time.Second

	for i := 0; i < limit; i++ {
		rateLimiter.Allow(ctx, "test-key", limit, window)
		rateLimiter.Allow(ctx, "test-key-2", limit, window)
	}

	allowed, err := rateLimiter.Allow(ctx, "test-key", limit, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatal("request should be blocked before reset")
	}

	if err := rateLimiter.Reset(ctx, "test-key"); err != nil {
		t.Fatalf("unexpected error during reset: %v", err)
	}

	allowed, err = rateLimiter.Allow(ctx, "test-key", limit, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Fatal("request should be allowed after reset")
	}

	// Keys sharing a prefix keep their buckets.
	allowed, _ = rateLimiter.Allow(ctx, "test-key-2", limit, window)
	if allowed {
		t.Fatal("reset must not touch other keys")
	}
}

func TestInMemoryRateLimiter_Cleanup(t *testing.T) {
	rateLimiter := NewInMemoryRateLimiter()
	defer rateLimiter.Close()

	ctx := context.Background()
	rateLimiter.Allow(ctx, "idle", 1, time.Second)

	rateLimiter.cleanup(time.Now())
	if len(rateLimiter.buckets) != 1 {
		t.Fatal("recently used bucket should survive cleanup")
	}

	rateLimiter.cleanup(time.Now().Add(3 * time.Second))
	if len(rateLimiter.buckets) != 0 {
		t.Fatal("idle bucket should be removed")
	}
}

func TestTokenBucket_Take(t *testing.T) {
	capacity := 3
	window := time.Second

	bucket := NewTokenBucket(capacity, window)

	t.Run("allows requests within capacity", func(t *testing.T) {
		for i := 0; i < capacity; i++ {
			if !bucket.Take() {
				t.Fatalf("token %d should be available", i+1)
			}
		}
	})

	t.Run("blocks requests over capacity", func(t *testing.T) {
		if bucket.Take() {
			t.Fatal("should not have tokens available")
		}
	})

	t.Run("refills after window", func(t *testing.T) {
		time.Sleep(window/2 + 10*time.Millisecond)

		if tokens := bucket.Tokens(); tokens <= 0 {
			t.Fatal("bucket should have refilled some tokens")
		}
	})
}

func BenchmarkInMemoryRateLimiter_Allow(b *testing.B) {
	rateLimiter := NewInMemoryRateLimiter()
	defer rateLimiter.Close()

	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			rateLimiter.Allow(ctx, "bench-key", 1000, time.Minute)
		}
	})
}

func BenchmarkTokenBucket_Take(b *testing.B) {
	bucket := NewTokenBucket(1000, time.Minute)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			bucket.Take()
		}
	})
}
