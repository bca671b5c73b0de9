package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max int
	// Window is the window length.
	Window time.Duration
	// KeyFunc extracts the rate limit key. ClientIP is used when nil.
	KeyFunc func(*http.Request) string
}

// window keeps the counts of the current and the previous fixed window.
// The effective count weights the previous window by how much of it still
// overlaps the sliding window ending now.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter is a keyed sliding window counter.
type Limiter struct {
	max    int
	period time.Duration

	mu   sync.Mutex
	keys map[string]*window
}

// NewLimiter creates a Limiter allowing limit requests per period for each key.
func NewLimiter(limit int, period time.Duration) *Limiter {
	return &Limiter{
		max:    limit,
		period: period,
		keys:   make(map[string]*window),
	}
}

// Allow counts a request for key at now.
func (l *Limiter) Allow(key string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.keys[key]
	if !ok {
		w = &window{start: now.Truncate(l.period)}
		l.keys[key] = w
	}
	switch elapsed := now.Sub(w.start); {
	case elapsed >= 2*l.period:
		w.prev, w.curr = 0, 0
		w.start = now.Truncate(l.period)
	case elapsed >= l.period:
		w.prev, w.curr = w.curr, 0
		w.start = w.start.Add(l.period)
	}

	overlap := 1 - now.Sub(w.start).Seconds()/l.period.Seconds()
	effective := w.prev*math.Max(overlap, 0) + w.curr
	d := Decision{ResetAt: w.start.Add(l.period)}
	if effective >= float64(l.max) {
		return d
	}

	w.curr++
	d.Allowed = true
	d.Remaining = max(int(float64(l.max)-effective-1), 0)
	return d
}

// Evict drops keys that saw no traffic for two periods.
func (l *Limiter) Evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.keys {
		if now.Sub(w.start) >= 2*l.period {
			delete(l.keys, key)
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// RateLimit rejects requests over the limit with 429. Every response carries
// the X-RateLimit-* headers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return limitWith(NewLimiter(cfg.Max, cfg.Window), cfg)
}

// RateLimitWithCleanup is RateLimit plus a goroutine that evicts idle keys
// every two windows until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := NewLimiter(cfg.Max, cfg.Window)
	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.Evict(now)
			}
		}
	}()
	return limitWith(l, cfg)
}

func limitWith(l *Limiter, cfg RateLimitConfig) Middleware {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	limit := strconv.Itoa(cfg.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Allow(keyFunc(r), time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				retry := math.Ceil(math.Max(time.Until(d.ResetAt).Seconds(), 0))
				h.Set("Retry-After", strconv.Itoa(int(retry)))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For address, then X-Real-IP, then
// the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
