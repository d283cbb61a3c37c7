package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a per-client token bucket for a whole router.
type RateLimiter struct {
	limit      rate.Limit
	burst      int
	idle       time.Duration
	trustProxy bool

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	nextSweep time.Time
	now       func() time.Time
}

// sweepInterval bounds how often idle clients are evicted.
const sweepInterval = time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows max requests per window for each client, all of
// them usable as a burst. It returns nil when max or window is not
// positive; a nil limiter admits everything.
func NewRateLimiter(max int, window time.Duration, trustProxy bool) *RateLimiter {
	if max <= 0 || window <= 0 {
		return nil
	}
	return &RateLimiter{
		limit:      rate.Limit(float64(max) / window.Seconds()),
		burst:      max,
		idle:       window,
		trustProxy: trustProxy,
		clients:    make(map[string]*clientLimiter),
		now:        time.Now,
	}
}

// Handler wraps next with the limiter.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := l.now()
		lim := l.get(ClientIP(r, l.trustProxy), now)
		if !lim.AllowN(now, 1) {
			w.Header().Set("Retry-After", strconv.Itoa(int(1/float64(l.limit))+1))
			WriteError(w, http.StatusTooManyRequests, "Too many requests from this IP, please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.clients[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	lim := rate.NewLimiter(l.limit, l.burst)
	l.clients[key] = &clientLimiter{limiter: lim, lastSeen: now}
	l.cleanupLocked(now)
	return lim
}

// cleanupLocked evicts idle clients at most once per sweepInterval.
func (l *RateLimiter) cleanupLocked(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	l.nextSweep = now.Add(min(sweepInterval, l.idle))
	for key, entry := range l.clients {
		if now.Sub(entry.lastSeen) > l.idle {
			delete(l.clients, key)
		}
	}
}

// Clients returns the number of tracked clients.
func (l *RateLimiter) Clients() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
