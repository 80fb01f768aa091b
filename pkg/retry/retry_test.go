package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries: maxRetries,
		Backoff:    &ConstantBackoff{Delay: time.Millisecond},
		Logger:     logger.NewNopLogger(),
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{9, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}
	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func TestErrorTypeBackoff(t *testing.T) {
	etb := NewErrorTypeBackoff(time.Second, 10*time.Second, time.Minute)

	assert.Same(t, etb.RateLimitBackoff, etb.ForError(errs.RateLimited("429")))
	assert.Same(t, etb.NetworkErrorBackoff, etb.ForError(errs.Transient(nil, "reset")))
	assert.Same(t, etb.ServerErrorBackoff, etb.ForError(errs.FromStatusCode(503, "unavailable")))
	assert.Same(t, etb.DefaultBackoff, etb.ForError(errors.New("other")))

	rl := etb.RateLimitBackoff.(*ExponentialBackoff)
	nw := etb.NetworkErrorBackoff.(*ExponentialBackoff)
	assert.Greater(t, rl.BaseDelay, nw.BaseDelay)
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}

	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errs.RateLimited("slow down")
		}
		return nil
	}, cfg)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoExhaustsBudget(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errs.Transient(errors.New("timeout"), "graph request")
	}, fastConfig(2))

	require.Error(t, err)
	assert.Equal(t, 3, calls, "first attempt plus two retries")
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
}

func TestDoDoesNotRetryFatal(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errs.Fatal("api key rejected")
	}, fastConfig(5))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errs.IsFatalError(err))
	assert.NotErrorIs(t, err, ErrExhausted)
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{
		MaxRetries: 10,
		Backoff:    &ConstantBackoff{Delay: time.Hour},
	}

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, func(ctx context.Context) error {
			return errs.RateLimited("wait")
		}, cfg)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDoLogsRateLimit(t *testing.T) {
	tl := logger.NewTestLogger()
	cfg := fastConfig(1)
	cfg.Logger = tl

	_ = Do(context.Background(), func(ctx context.Context) error {
		return errs.RateLimited("slow down")
	}, cfg)

	assert.True(t, tl.HasMessage("Rate limit reached, backing off"))
	assert.True(t, tl.HasMessage("max retry attempts exceeded"))
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errs.FromStatusCode(502, "bad gateway")
		}
		return "Portland, OR", nil
	}, fastConfig(2))

	require.NoError(t, err)
	assert.Equal(t, "Portland, OR", got)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errs.Validation("bad")))
	assert.False(t, DefaultRetryIf(errs.FromStatusCode(404, "missing")))
	assert.True(t, DefaultRetryIf(errs.RateLimited("x")))
	assert.True(t, DefaultRetryIf(errors.New("io")))
}
