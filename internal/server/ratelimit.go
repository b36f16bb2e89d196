package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/juju/ratelimit"

	"pillscan/internal/metrics"
)

// siteCosts is the token price of one call per site. Browser-backed and
// model-backed sites cost the most.
var siteCosts = map[string]int64{
	"drugs.interactions": 100,
	"pill.identify":      40,
	"pill.features":      30,
	"drugs.imprint":      10,
	"openfda.events":     5,
}

const defaultSiteCost = 10

// SiteCost returns the token cost of calling site.
func SiteCost(site string) int64 {
	if c, ok := siteCosts[site]; ok {
		return c
	}
	return defaultSiteCost
}

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	clients  map[string]*ratelimit.Bucket
	mu       sync.RWMutex
	rate     float64
	capacity int64
}

// NewRateLimiter creates a limiter refilling rate tokens per second up to
// capacity.
func NewRateLimiter(rate float64, capacity int64) *RateLimiter {
	return &RateLimiter{
		clients:  make(map[string]*ratelimit.Bucket),
		rate:     rate,
		capacity: capacity,
	}
}

func (rl *RateLimiter) getBucket(client string) *ratelimit.Bucket {
	rl.mu.RLock()
	bucket, exists := rl.clients[client]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		if bucket, exists = rl.clients[client]; !exists {
			bucket = ratelimit.NewBucketWithRate(rl.rate, rl.capacity)
			rl.clients[client] = bucket
			metrics.RateLimiterBuckets.Set(float64(len(rl.clients)))
		}
		rl.mu.Unlock()
	}

	return bucket
}

// Prune forgets clients whose bucket has refilled completely.
func (rl *RateLimiter) Prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for client, bucket := range rl.clients {
		if bucket.Available() == bucket.Capacity() {
			delete(rl.clients, client)
		}
	}
	metrics.RateLimiterBuckets.Set(float64(len(rl.clients)))
}

// Run prunes every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Prune()
		}
	}
}

// costFor caps SiteCost at the bucket capacity so every site stays
// reachable with a full bucket.
func (rl *RateLimiter) costFor(site string) int64 {
	if c := SiteCost(site); c < rl.capacity {
		return c
	}
	return rl.capacity
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware charges SiteCost for the {site} route parameter. It must run
// after routing so the parameter is set.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket := rl.getBucket(clientKey(r))
		cost := rl.costFor(chi.URLParam(r, "site"))

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.capacity, 10))
		w.Header().Set("X-RateLimit-Rate", strconv.FormatFloat(rl.rate, 'f', -1, 64))

		// TakeAvailable drains partial amounts, so check first.
		if bucket.Available() < cost || bucket.TakeAvailable(cost) < cost {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(bucket.Available(), 10))
		next.ServeHTTP(w, r)
	})
}
