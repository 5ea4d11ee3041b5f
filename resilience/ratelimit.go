package resilience

import (
	"math"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// RateLimiterConfig configures the keyed rate limiter.
type RateLimiterConfig struct {
	// Rate is the number of operations allowed per second per key.
	// Default: 1
	Rate float64

	// Burst is the maximum burst size per key.
	// Default: 5
	Burst int

	// IdleTTL evicts a key's bucket after this long without traffic.
	// Default: 10 minutes
	IdleTTL time.Duration

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// bucket is a token bucket for one key.
type bucket struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// RateLimiter keeps an independent token bucket per key, for example per
// client address on the token endpoint. Idle buckets are evicted.
type RateLimiter struct {
	config  RateLimiterConfig
	buckets *gocache.Cache
	mu      sync.Mutex
}

// NewRateLimiter creates a new keyed rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 1
	}
	if config.Burst <= 0 {
		config.Burst = 5
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &RateLimiter{
		config:  config,
		buckets: gocache.New(config.IdleTTL, config.IdleTTL),
	}
}

// Allow takes one token from key's bucket. When the bucket is empty it
// reports false and how long until a token is available.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	b := rl.bucketFor(key)
	now := rl.config.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(float64(rl.config.Burst), b.tokens+elapsed*rl.config.Rate)
	}
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	wait := time.Duration((1 - b.tokens) / rl.config.Rate * float64(time.Second))
	return false, wait
}

// Tokens returns the tokens left in key's bucket without taking any.
func (rl *RateLimiter) Tokens(key string) float64 {
	v, ok := rl.buckets.Get(key)
	if !ok {
		return float64(rl.config.Burst)
	}
	b := v.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	elapsed := rl.config.Now().Sub(b.last).Seconds()
	return math.Min(float64(rl.config.Burst), b.tokens+math.Max(elapsed, 0)*rl.config.Rate)
}

// Reset drops every bucket.
func (rl *RateLimiter) Reset() {
	rl.buckets.Flush()
}

func (rl *RateLimiter) bucketFor(key string) *bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.buckets.Get(key); ok {
		// Refresh the idle deadline.
		rl.buckets.SetDefault(key, v)
		return v.(*bucket)
	}
	b := &bucket{tokens: float64(rl.config.Burst), last: rl.config.Now()}
	rl.buckets.SetDefault(key, b)
	return b
}
