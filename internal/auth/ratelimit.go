package auth

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/matrixhub/catalog-server/internal/api/common"
)

const (
	// limiterIdleTTL is how long an idle client keeps its bucket
	limiterIdleTTL = 10 * time.Minute
	// limiterSweepSize triggers eviction of idle buckets
	limiterSweepSize = 1024
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*clientBucket
}

// NewRateLimiter allows each client rps requests per second with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

// Allow consumes a token for key and reports whether one was available.
func (l *RateLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.clients) >= limiterSweepSize {
		for k, b := range l.clients {
			if now.Sub(b.lastSeen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
	}

	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Middleware answers 429 once a client exhausts its bucket. A nil limiter is a pass-through.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfterSeconds()))
			common.WriteErrorResponse(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) retryAfterSeconds() int {
	if l.limit <= 0 {
		return 60
	}
	secs := int(1 / float64(l.limit))
	if secs < 1 {
		return 1
	}
	return secs
}

// clientIP expects chi's RealIP middleware to have rewritten RemoteAddr already.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
