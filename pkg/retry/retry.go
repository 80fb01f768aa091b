package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/logger"
)

// ErrExhausted is wrapped into the error returned when every attempt failed
var ErrExhausted = errors.New("retries exhausted")

// Operation performs one attempt
type Operation func(ctx context.Context) error

// OperationWithResult performs one attempt and returns a value
type OperationWithResult[T any] func(ctx context.Context) (T, error)

// Config holds retry configuration
type Config struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// Backoff is used when BackoffFor is nil
	Backoff BackoffStrategy
	// BackoffFor selects a strategy from the failing error
	BackoffFor func(err error) BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each wait
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	etb := NewErrorTypeBackoff(time.Second, 30*time.Second, time.Minute)
	return &Config{
		MaxRetries: 3,
		BackoffFor: etb.ForError,
		RetryIf:    DefaultRetryIf,
		Logger:     logger.NewNopLogger(),
	}
}

// DefaultRetryIf retries rate limits and transient failures. Fatal, validation,
// parsing and not-found errors are returned immediately.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	// untyped errors come from I/O below the provider clients
	return true
}

func (c *Config) delay(attempt int, err error) time.Duration {
	if c.BackoffFor != nil {
		return c.BackoffFor(err).NextDelay(attempt)
	}
	if c.Backoff != nil {
		return c.Backoff.NextDelay(attempt)
	}
	return 0
}

// Do executes op until it succeeds, returns a non-retryable error, the retry
// budget is spent, or ctx is cancelled. An exhausted budget wraps both
// ErrExhausted and the last error, so errors.As still finds its type.
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		if !retryIf(err) {
			return err
		}

		if attempt > cfg.MaxRetries {
			log.WarnWithFields("max retry attempts exceeded", map[string]interface{}{
				"attempts":   attempt,
				"last_error": err.Error(),
			})
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
		}

		delay := cfg.delay(attempt, err)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		if errs.TypeOf(err) == errs.ErrorTypeRateLimit {
			logger.LogRateLimit(log, "upstream", attempt, delay)
		} else {
			log.WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":  attempt,
				"error":    err.Error(),
				"delay_ms": delay.Milliseconds(),
			})
		}

		if werr := Wait(ctx, delay); werr != nil {
			return fmt.Errorf("retry cancelled: %w", werr)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T
	err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, cfg)
	return result, err
}
