package chain

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket shared by every call to one endpoint.
type RateLimiter struct {
	limiter *rate.Limiter
	name    string
}

// NewRateLimiter allows rps requests per second to the named endpoint.
// Burst is 1 so calls are spread evenly instead of arriving in bursts.
func NewRateLimiter(name string, rps int) *RateLimiter {
	slog.Debug("rate limiter created", "endpoint", name, "rps", rps)
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		name:    name,
	}
}

// Wait blocks until a request may proceed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		slog.Debug("rate limiter wait aborted", "endpoint", rl.name, "error", err)
		return err
	}
	return nil
}

// Name returns the endpoint name.
func (rl *RateLimiter) Name() string {
	return rl.name
}
