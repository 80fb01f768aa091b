package ratelimit

import (
	"context"
	"sync"
	"time"

	errs "friendgeo/pkg/errors"

	"golang.org/x/time/rate"
)

// Limiter paces calls to one external provider. It is shared by every worker
// of a stage so the configured rate is a process-wide ceiling.
type Limiter interface {
	// Allow reports whether a call may proceed now, consuming a token if so
	Allow() bool
	// Wait blocks until a call may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset restores a full bucket
	Reset()
}

// TokenBucket is a Limiter over golang.org/x/time/rate
type TokenBucket struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	limit       rate.Limit
	burst       int
	pausedUntil time.Time
}

// NewTokenBucket allows perSecond calls per second with the given burst
func NewTokenBucket(perSecond float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	l := rate.Limit(perSecond)
	return &TokenBucket{
		limiter: rate.NewLimiter(l, burst),
		limit:   l,
		burst:   burst,
	}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	paused := time.Now().Before(tb.pausedUntil)
	limiter := tb.limiter
	tb.mu.Unlock()
	if paused {
		return false
	}
	return limiter.Allow()
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	tb.mu.Lock()
	until := tb.pausedUntil
	limiter := tb.limiter
	tb.mu.Unlock()

	if d := time.Until(until); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return limiter.Wait(ctx)
}

// Pause holds every caller for d. A provider that answered with a rate-limit
// response is throttling the whole key, not just the worker that saw it.
func (tb *TokenBucket) Pause(d time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if until := time.Now().Add(d); until.After(tb.pausedUntil) {
		tb.pausedUntil = until
	}
}

func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.pausedUntil = time.Time{}
	tb.limiter = rate.NewLimiter(tb.limit, tb.burst)
}

// Unlimited never blocks. Used in tests and for purely local stages.
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}

// Pauser is implemented by limiters that can hold every caller at once
type Pauser interface {
	Pause(d time.Duration)
}

// PauseOnRateLimit pauses l for d when err is a provider rate limit, so the
// other workers back off together with the one that was throttled
func PauseOnRateLimit(l Limiter, err error, d time.Duration) {
	if errs.TypeOf(err) != errs.ErrorTypeRateLimit {
		return
	}
	if p, ok := l.(Pauser); ok {
		p.Pause(d)
	}
}
