package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "friendgeo/pkg/errors"
)

// BackoffStrategy computes the wait before retry number attempt (1-based)
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements bounded exponential backoff with jitter
type ExponentialBackoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Multiplier is the factor by which delay increases
	Multiplier float64
	// JitterFactor spreads retries of concurrent workers apart (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay never exceeds MaxDelay plus jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorTypeBackoff picks a backoff per error class. Rate limits wait longest.
type ErrorTypeBackoff struct {
	NetworkErrorBackoff BackoffStrategy
	RateLimitBackoff    BackoffStrategy
	ServerErrorBackoff  BackoffStrategy
	DefaultBackoff      BackoffStrategy
}

// NewErrorTypeBackoff builds the per-type strategies from the configured bounds
func NewErrorTypeBackoff(base, max, rateLimitBase time.Duration) *ErrorTypeBackoff {
	if rateLimitBase < base {
		rateLimitBase = base
	}
	rateLimitMax := max
	if rateLimitMax < rateLimitBase {
		rateLimitMax = rateLimitBase
	}
	return &ErrorTypeBackoff{
		NetworkErrorBackoff: &ExponentialBackoff{
			BaseDelay:    base,
			MaxDelay:     max,
			Multiplier:   2.0,
			JitterFactor: 0.2,
		},
		RateLimitBackoff: &ExponentialBackoff{
			BaseDelay:    rateLimitBase,
			MaxDelay:     rateLimitMax * 5,
			Multiplier:   1.5,
			JitterFactor: 0.3,
		},
		ServerErrorBackoff: &ExponentialBackoff{
			BaseDelay:    base * 2,
			MaxDelay:     max,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		DefaultBackoff: &ExponentialBackoff{
			BaseDelay:    base,
			MaxDelay:     max,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
	}
}

// ForError returns the strategy matching err's classification
func (etb *ErrorTypeBackoff) ForError(err error) BackoffStrategy {
	switch errs.TypeOf(err) {
	case errs.ErrorTypeNetwork:
		return etb.NetworkErrorBackoff
	case errs.ErrorTypeRateLimit:
		return etb.RateLimitBackoff
	case errs.ErrorTypeServerError:
		return etb.ServerErrorBackoff
	default:
		return etb.DefaultBackoff
	}
}
