package http

import (
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/time/rate"
)

// OperatorAuth rejects requests that do not carry one of the operator tokens
// as a Bearer credential. The OpenAPI and docs routes stay public.
func OperatorAuth(api huma.API, tokens []string) func(ctx huma.Context, next func(huma.Context)) {
	keys := make([][]byte, len(tokens))
	for i, t := range tokens {
		keys[i] = []byte(t)
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		header := strings.TrimSpace(ctx.Header("Authorization"))
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "operator token required")
			return
		}

		presented := []byte(strings.TrimSpace(token))
		matched := 0
		for _, k := range keys {
			matched |= subtle.ConstantTimeCompare(presented, k)
		}
		if matched != 1 {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "operator token required")
			return
		}

		next(ctx)
	}
}

// RateLimiter provides per-IP rate limiting.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a rate limiter with the given requests per second and burst size.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// Allow checks if a request from the given key should be allowed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	rl.mu.Unlock()

	return limiter.Allow()
}

// Reset drops every limiter once the table grows past limit entries.
func (rl *RateLimiter) Reset(limit int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.limiters) > limit {
		rl.limiters = make(map[string]*rate.Limiter)
	}
}

// Middleware limits requests per client address. It relies on chi's RealIP
// middleware having rewritten RemoteAddr.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if !rl.Allow(ip) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RateLimit returns middleware that limits requests per IP address and clears
// its table periodically until stop is closed.
func RateLimit(rps float64, burst int, stop <-chan struct{}) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rps, burst)

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Reset(10000)
			case <-stop:
				return
			}
		}
	}()

	return limiter.Middleware
}
