package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/freekieb7/go-drawer/internal/config"
	"github.com/freekieb7/go-drawer/internal/web/response"
)

func TestRateLimitMiddleware_Integration(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.JSONResponse(w, http.StatusOK, response.APIResponse{
			Code:    http.StatusOK,
			Message: "success",
			Status:  "SUCCESS",
		})
	})

	rateLimiter := NewInMemoryRateLimiter()
	defer rateLimiter.Close()

	limit := RateLimit{
		Requests: 2,
		Window:   time.Second,
		KeyFunc:  KeyByIP,
	}

	rateLimitedHandler := RateLimitMiddleware(rateLimiter, limit, nil)(handler)

	t.Run("allows requests within limit", func(t *testing.T) {
		for i := 0; i < limit.Requests; i++ {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = "192.168.1.1:12345"

			rr := httptest.NewRecorder()
			rateLimitedHandler.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("request %d: expected status %d, got %d", i+1, http.StatusOK, rr.Code)
			}
			if rr.Header().Get("X-RateLimit-Limit") != "2" {
				t.Fatalf("expected X-RateLimit-Limit header to be '2', got '%s'", rr.Header().Get("X-RateLimit-Limit"))
			}
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"

		rr := httptest.NewRecorder()
		rateLimitedHandler.ServeHTTP(rr, req)

		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rr.Code)
		}
		if rr.Header().Get("X-RateLimit-Remaining") != "0" {
			t.Fatalf("expected X-RateLimit-Remaining header to be '0', got '%s'", rr.Header().Get("X-RateLimit-Remaining"))
		}
		if rr.Header().Get("Retry-After") == "" {
			t.Fatal("expected Retry-After header")
		}
	})

	t.Run("different IPs are treated independently", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.2:12345"

		rr := httptest.NewRecorder()
		rateLimitedHandler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
		}
	})
}

func TestRateLimitMiddleware_KeyFunctions(t *testing.T) {
	t.Run("KeyByIP function", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.100:8080"

		if key := KeyByIP(req); key != "192.168.1.100" {
			t.Fatalf("expected key '192.168.1.100', got '%s'", key)
		}
	})

	t.Run("KeyByUserAgent function", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("User-Agent", "TestAgent/1.0")

		if key := KeyByUserAgent(req); key != "TestAgent/1.0" {
			t.Fatalf("expected key 'TestAgent/1.0', got '%s'", key)
		}
	})

	t.Run("KeyWithPrefix namespaces the key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.100:8080"

		if key := KeyWithPrefix("auth", KeyByIP)(req); key != "auth:192.168.1.100" {
			t.Fatalf("expected key 'auth:192.168.1.100', got '%s'", key)
		}
	})
}

func TestMultiRateLimitMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rateLimiter := NewInMemoryRateLimiter()
	defer rateLimiter.Close()

	limits := []RateLimit{
		{Requests: 1, Window: time.Second, KeyFunc: KeyByIP},
		{Requests: 10, Window: time.Second, KeyFunc: KeyByUserAgent},
	}

	multiLimitHandler := MultiRateLimitMiddleware(rateLimiter, nil, limits...)(handler)

	req1 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req1.RemoteAddr = "192.168.1.1:8080"
	req1.Header.Set("User-Agent", "TestAgent/1.0")

	rr1 := httptest.NewRecorder()
	multiLimitHandler.ServeHTTP(rr1, req1)
	if rr1.Code != http.StatusOK {
		t.Fatalf("first request should pass, got status %d", rr1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req2.RemoteAddr = "192.168.1.1:8080"
	req2.Header.Set("User-Agent", "TestAgent/1.0")

	rr2 := httptest.NewRecorder()
	multiLimitHandler.ServeHTTP(rr2, req2)
	if rr2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be blocked, got status %d", rr2.Code)
	}
	if rr2.Header().Get("X-RateLimit-Policy") != "policy-0" {
		t.Fatalf("expected policy-0, got '%s'", rr2.Header().Get("X-RateLimit-Policy"))
	}
}

func TestRateLimitsFromConfig(t *testing.T) {
	limits := RateLimitsFromConfig(config.RateLimit{
		AuthRequests:   3,
		APIRequests:    30,
		PublicRequests: 300,
		WindowDuration: time.Minute,
	})

	if limits.Auth.Requests != 3 || limits.API.Requests != 30 || limits.Public.Requests != 300 {
		t.Fatalf("unexpected limits: %+v", limits)
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.1:1"
	if limits.Auth.KeyFunc(req) == limits.API.KeyFunc(req) {
		t.Fatal("route groups must not share buckets")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expectedIP string
	}{
		{
			name:       "X-Forwarded-For single IP",
			remoteAddr: "10.0.0.1:8080",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1"},
			expectedIP: "192.168.1.1",
		},
		{
			name:       "X-Forwarded-For multiple IPs",
			remoteAddr: "10.0.0.1:8080",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1, 10.0.0.2, 172.16.0.1"},
			expectedIP: "192.168.1.1",
		},
		{
			name:       "X-Real-IP header",
			remoteAddr: "10.0.0.1:8080",
			headers:    map[string]string{"X-Real-IP": "192.168.1.2"},
			expectedIP: "192.168.1.2",
		},
		{
			name:       "CF-Connecting-IP header",
			remoteAddr: "10.0.0.1:8080",
			headers:    map[string]string{"CF-Connecting-IP": "192.168.1.3"},
			expectedIP: "192.168.1.3",
		},
		{
			name:       "fallback to RemoteAddr",
			remoteAddr: "192.168.1.4:8080",
			headers:    map[string]string{},
			expectedIP: "192.168.1.4",
		},
		{
			name:       "X-Forwarded-For takes precedence",
			remoteAddr: "10.0.0.1:8080",
			headers: map[string]string{
				"X-Forwarded-For":  "192.168.1.1",
				"X-Real-IP":        "192.168.1.2",
				"CF-Connecting-IP": "192.168.1.3",
			},
			expectedIP: "192.168.1.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = tt.remoteAddr
			for key, value := range tt.headers {
				req.Header.Set(key, value)
			}

			if actualIP := GetClientIP(req); actualIP != tt.expectedIP {
				t.Errorf("expected IP '%s', got '%s'", tt.expectedIP, actualIP)
			}
		})
	}
}

func BenchmarkRateLimitMiddleware(b *testing.B) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rateLimiter := NewInMemoryRateLimiter()
	defer rateLimiter.Close()

	limit := RateLimit{
		Requests: 1000000,
		Window:   time.Minute,
		KeyFunc:  KeyByIP,
	}

	rateLimitedHandler := RateLimitMiddleware(rateLimiter, limit, nil)(handler)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = fmt.Sprintf("192.168.1.%d:8080", b.N%255+1)

			rr := httptest.NewRecorder()
			rateLimitedHandler.ServeHTTP(rr, req)
		}
	})
}
