package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/teilomillet/aci/errors"
	"github.com/teilomillet/aci/server/metrics"
)

// maxTrackedClients bounds the number of buckets kept in memory
const maxTrackedClients = 10000

// RateLimiter keeps one token bucket per client IP. Buckets refill at
// limit tokens per window and hold up to limit tokens. A bucket idle for a
// whole window is full again, so it expires after one.
type RateLimiter struct {
	limit   int
	window  time.Duration
	metrics *metrics.Metrics

	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter creates a limiter. m may be nil.
func NewRateLimiter(limit int, window time.Duration, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		window:   window,
		metrics:  m,
		limiters: expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, window),
	}
}

func (l *RateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters.Get(ip)
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(l.limit)/l.window.Seconds()), l.limit)
	}
	// Re-adding refreshes the expiry
	l.limiters.Add(ip, limiter)
	return limiter
}

// Handler rejects requests over the limit with a 429 and a Retry-After
// header.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		limiter := l.get(ip)

		if !limiter.Allow() {
			if l.metrics != nil {
				l.metrics.RateLimitHits.WithLabelValues(ip).Inc()
			}

			retryAfter := int(math.Ceil(l.window.Seconds() / float64(l.limit)))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			errors.WriteError(w, errors.NewRateLimitError(GetRequestID(r.Context()), retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Reset forgets every client.
func (l *RateLimiter) Reset() {
	l.limiters.Purge()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
