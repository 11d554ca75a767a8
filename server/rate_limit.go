package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

const idleLimiterTTL = 10 * time.Minute

// ipRateLimiter keeps a token bucket per client IP. Idle buckets expire from the cache.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters *ttlcache.Cache[string, *rate.Limiter]
	rps      rate.Limit
	burst    int
}

// newIPRateLimiter returns nil (allow everything) when rps is not positive.
func newIPRateLimiter(rps, burst int) *ipRateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = rps
	}
	limiters := ttlcache.New(ttlcache.WithTTL[string, *rate.Limiter](idleLimiterTTL))
	go limiters.Start()

	return &ipRateLimiter{
		limiters: limiters,
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *ipRateLimiter) Allow(ip string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	var limiter *rate.Limiter
	if item := l.limiters.Get(ip); item != nil {
		limiter = item.Value()
	} else {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters.Set(ip, limiter, ttlcache.DefaultTTL)
	}
	l.mu.Unlock()

	return limiter.Allow()
}

func (l *ipRateLimiter) Close() {
	if l == nil {
		return
	}
	l.limiters.Stop()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
