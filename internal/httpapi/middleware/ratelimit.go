package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// bucket is a token bucket holding at most burst tokens.
type bucket struct {
	tokens float64
	seen   time.Time
}

func (b *bucket) take(now time.Time, perSec, burst float64) bool {
	b.tokens = min(burst, b.tokens+now.Sub(b.seen).Seconds()*perSec)
	b.seen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// ipLimiter keeps one bucket per client and forgets clients idle for idleTTL.
type ipLimiter struct {
	perSec  float64
	burst   float64
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newLimiter(perSec float64, burst int, idleTTL time.Duration) *ipLimiter {
	return &ipLimiter{
		perSec:  perSec,
		burst:   float64(max(burst, 1)),
		idleTTL: idleTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *ipLimiter) allow(client string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.idleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > l.idleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[client]
	if !ok {
		b = &bucket{tokens: l.burst, seen: now}
		l.buckets[client] = b
	}
	return b.take(now, l.perSec, l.burst)
}

// RateLimit limits each client IP to reqPerMin requests per minute with the
// given burst. reqPerMin <= 0 disables limiting.
func RateLimit(reqPerMin int, burst int) func(http.Handler) http.Handler {
	if reqPerMin <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := newLimiter(float64(reqPerMin)/60, burst, 10*time.Minute)
	retry := strconv.Itoa(max(1, 60/reqPerMin))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r)) {
				w.Header().Set("Retry-After", retry)
				writeErr(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop when running behind a proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
