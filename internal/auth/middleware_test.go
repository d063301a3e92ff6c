package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRequireAPIKey(t *testing.T) {
	store := testAPIKeyStore(t)
	rawKey, _, err := store.Create(context.Background(), "CLI")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	handler := RequireAPIKey(store, okHandler())

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"non-api path", "/health", "", http.StatusOK},
		{"metrics", "/metrics", "", http.StatusOK},
		{"missing header", "/api/places", "", http.StatusUnauthorized},
		{"wrong scheme", "/api/places", "Basic " + rawKey, http.StatusUnauthorized},
		{"invalid key", "/api/places", "Bearer ntc_nope", http.StatusUnauthorized},
		{"valid key", "/api/places", "Bearer " + rawKey, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && w.Header().Get("Content-Type") != "application/json" {
				t.Error("expected JSON error body")
			}
		})
	}
}

func TestRequireAPIKeyRateLimits(t *testing.T) {
	store := testAPIKeyStore(t)
	rawKey, _, err := store.Create(context.Background(), "CLI")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	clock := time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC)
	limiter := newRateLimiter()
	limiter.now = func() time.Time { return clock }
	handler := requireAPIKey(store, limiter, okHandler())

	do := func(key string) int {
		r := httptest.NewRequest("GET", "/api/status", nil)
		r.RemoteAddr = "10.0.0.1:5555"
		r.Header.Set("Authorization", "Bearer "+key)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w.Code
	}

	// Valid requests never count against the limit.
	for i := 0; i < rateLimitMaxFail*2; i++ {
		if code := do(rawKey); code != http.StatusOK {
			t.Fatalf("valid request %d: status = %d", i, code)
		}
	}

	for i := 0; i < rateLimitMaxFail; i++ {
		if code := do("ntc_wrong"); code != http.StatusUnauthorized {
			t.Fatalf("failure %d: status = %d, want 401", i, code)
		}
	}

	if code := do(rawKey); code != http.StatusTooManyRequests {
		t.Errorf("after %d failures: status = %d, want 429", rateLimitMaxFail, code)
	}

	clock = clock.Add(rateLimitWindow + time.Second)
	if code := do(rawKey); code != http.StatusOK {
		t.Errorf("after window: status = %d, want 200", code)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.7:4321"
	if got := clientIP(r); got != "192.0.2.7" {
		t.Errorf("clientIP = %q", got)
	}
	r.RemoteAddr = "pipe"
	if got := clientIP(r); got != "pipe" {
		t.Errorf("clientIP = %q", got)
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
