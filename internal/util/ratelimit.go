package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket replenishing at a fixed per-minute rate,
// sized for polite consumption of external market-data APIs.
type RateLimiter struct {
	rate     float64 // tokens per second; 0 disables limiting
	tokens   float64
	lastTime time.Time
	mu       sync.Mutex
}

// NewRateLimiter creates a RateLimiter allowing perMinute operations per
// minute. A non-positive perMinute disables limiting entirely.
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{lastTime: time.Now()}
	if perMinute > 0 {
		rl.rate = float64(perMinute) / 60.0
		rl.tokens = 1
	}
	return rl
}

// Wait blocks until a token is available or the context is cancelled. When
// the bucket is empty it sleeps exactly the time the next token needs to
// accrue rather than polling.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.rate == 0 {
		return ctx.Err()
	}

	for {
		rl.mu.Lock()
		now := time.Now()
		rl.tokens += now.Sub(rl.lastTime).Seconds() * rl.rate
		if rl.tokens > 1 {
			rl.tokens = 1
		}
		rl.lastTime = now

		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
