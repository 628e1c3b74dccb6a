package limiter

import (
	"sync"

	"golang.org/x/time/rate"
)

// KeyRateLimiter one token bucket per key (relay host)
type KeyRateLimiter struct {
	keys  map[string]*rate.Limiter
	mu    *sync.Mutex
	limit rate.Limit
	burst int
}

// NewKeyRateLimiter new key rate limiter
func NewKeyRateLimiter(r rate.Limit, b int) *KeyRateLimiter {
	if b <= 0 {
		b = 1
	}

	return &KeyRateLimiter{
		keys:  make(map[string]*rate.Limiter),
		mu:    &sync.Mutex{},
		limit: r,
		burst: b,
	}
}

// GetLimiter get limiter
func (r *KeyRateLimiter) GetLimiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, exists := r.keys[key]
	if !exists {
		limiter = rate.NewLimiter(r.limit, r.burst)
		r.keys[key] = limiter
	}

	return limiter
}
