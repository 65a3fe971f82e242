package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Take("a"); !ok {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	now = now.Add(20 * time.Second)
	ok, wait := rl.Take("a")
	if ok {
		t.Error("third request should be limited")
	}
	if wait != 40*time.Second {
		t.Errorf("wait = %v, want 40s", wait)
	}
	if ok, _ := rl.Take("b"); !ok {
		t.Error("other clients have their own budget")
	}

	now = now.Add(40 * time.Second)
	if ok, _ := rl.Take("a"); !ok {
		t.Error("window should have rolled over")
	}

	now = now.Add(5 * time.Minute)
	rl.Take("c")
	if len(rl.windows) != 1 {
		t.Errorf("windows after sweep = %d, want 1", len(rl.windows))
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		wait time.Duration
		want int
	}{
		{40 * time.Second, 40},
		{1500 * time.Millisecond, 2},
		{200 * time.Millisecond, 1},
		{0, 1},
	}
	for _, tt := range tests {
		if got := retryAfterSeconds(tt.wait); got != tt.want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", tt.wait, got, tt.want)
		}
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := RateLimitMiddleware(rl, func(w http.ResponseWriter, r *http.Request) {})

	codes := make([]int, 2)
	for i := range codes {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.9:4000"
		h(rec, r)
		codes[i] = rec.Code
		if i == 1 && rec.Header().Get("Retry-After") == "" {
			t.Error("limited response without Retry-After")
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote, xff, want string
	}{
		{"10.0.0.1:5555", "", "10.0.0.1"},
		{"[::1]:80", "", "[::1]"},
		{"10.0.0.1:5555", "1.2.3.4, 5.6.7.8", "1.2.3.4"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = tt.remote
		if tt.xff != "" {
			r.Header.Set("X-Forwarded-For", tt.xff)
		}
		if got := clientIP(r); got != tt.want {
			t.Errorf("clientIP(%q, %q) = %q, want %q", tt.remote, tt.xff, got, tt.want)
		}
	}
}
