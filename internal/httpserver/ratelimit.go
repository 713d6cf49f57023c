// internal/httpserver/ratelimit.go
//
// Per-IP token-bucket rate limiting. One limiter per client IP, with
// idle entries evicted so the map cannot grow without bound.

package httpserver

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

type ipRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	rps     int
	burst   int
}

// newIPRateLimiter reads RATE_LIMIT_RPS / RATE_LIMIT_BURST from the
// environment (defaults 10 rps, burst 20) and starts the idle sweeper.
func newIPRateLimiter() *ipRateLimiter {
	l := &ipRateLimiter{
		entries: make(map[string]*limiterEntry),
		rps:     envRateInt("RATE_LIMIT_RPS", 10),
		burst:   envRateInt("RATE_LIMIT_BURST", 20),
	}
	go l.sweep()
	return l
}

func (l *ipRateLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok {
		e.lastAccess = time.Now()
		return e.limiter
	}
	lim := rate.NewLimiter(rate.Every(time.Second/time.Duration(l.rps)), l.burst)
	l.entries[key] = &limiterEntry{limiter: lim, lastAccess: time.Now()}
	return lim
}

// sweep drops limiters idle for more than ten minutes.
func (l *ipRateLimiter) sweep() {
	for range time.Tick(5 * time.Minute) {
		cutoff := time.Now().Add(-10 * time.Minute)
		l.mu.Lock()
		for k, e := range l.entries {
			if e.lastAccess.Before(cutoff) {
				delete(l.entries, k)
			}
		}
		l.mu.Unlock()
	}
}

func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr // RealIP middleware may have stripped the port
		}
		if !l.get(ip).Allow() {
			http.Error(w, `{"error":"rate_limited"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func envRateInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
