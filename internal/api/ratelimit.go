// Rate limiting for the admin control plane and stream dials: a fixed
// request budget per client per window, kept in memory.
package api

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter counts requests per client key in fixed windows.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]windowCount
	swept   time.Time
}

type windowCount struct {
	start time.Time
	n     int
}

// NewRateLimiter allows limit requests per key in each window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]windowCount),
	}
}

// Take spends one request for key. When the key's budget is gone it
// returns false and the wait until its window rolls over.
func (rl *RateLimiter) Take(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	wc, ok := rl.windows[key]
	if !ok || now.Sub(wc.start) >= rl.window {
		wc = windowCount{start: now}
	}
	if wc.n >= rl.limit {
		return false, wc.start.Add(rl.window).Sub(now)
	}
	wc.n++
	rl.windows[key] = wc
	return true, 0
}

// sweep forgets expired windows, at most once per window length.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.swept) < rl.window {
		return
	}
	rl.swept = now
	for key, wc := range rl.windows {
		if now.Sub(wc.start) >= rl.window {
			delete(rl.windows, key)
		}
	}
}

// admit takes a request slot for key. Without one it answers 429 with a
// Retry-After header and returns false.
func (rl *RateLimiter) admit(w http.ResponseWriter, key string) bool {
	ok, wait := rl.Take(key)
	if ok {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
	http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	return false
}

func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}

// clientIP prefers the first X-Forwarded-For hop, then the remote address
// without its port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	ip := r.RemoteAddr
	if i := strings.LastIndexByte(ip, ':'); i >= 0 {
		ip = ip[:i]
	}
	return ip
}

// RateLimitMiddleware limits next per client IP.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.admit(w, clientIP(r)) {
			return
		}
		next(w, r)
	}
}
