// Package retry provides a context-aware exponential backoff retryer.
// This package is internal and should not be imported by external projects.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy configures the backoff behaviour of a Retryer.
type Policy struct {
	MaxRetries   int           // Number of retries after the first attempt (0 means no retry)
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Upper bound for any single delay
	Multiplier   float64       // Exponential growth factor
	Jitter       bool          // Randomize delays by ±25% to avoid thundering herds

	// OnRetry, when set, is invoked before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy matches the ingestion pipeline's provider backoff:
// 1s, 2s, 4s, ... doubling per attempt, no jitter.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Retryer runs a function and retries it according to a Policy.
type Retryer interface {
	Do(ctx context.Context, fn func() error) error
}

type backoffRetryer struct {
	policy *Policy
	logger *zap.Logger

	// isRetryable decides whether an error is worth another attempt.
	// When nil every error is retried.
	isRetryable func(error) bool
}

// New creates an exponential backoff Retryer. The classify function may be nil,
// in which case every error is considered retryable.
func New(policy *Policy, classify func(error) bool, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 1 * time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &backoffRetryer{
		policy:      policy,
		logger:      logger,
		isRetryable: classify,
	}
}

func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.delay(attempt)

			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return nil
		}

		if r.isRetryable != nil && !r.isRetryable(lastErr) {
			r.logger.Debug("error is not retryable", zap.Error(lastErr))
			return lastErr
		}

		if attempt >= r.policy.MaxRetries {
			break
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr),
	)

	return fmt.Errorf("failed after %d retries: %w", r.policy.MaxRetries, lastErr)
}

// delay computes the sleep before the given retry attempt (1-based).
func (r *backoffRetryer) delay(attempt int) time.Duration {
	d := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))

	if d > float64(r.policy.MaxDelay) {
		d = float64(r.policy.MaxDelay)
	}

	if r.policy.Jitter {
		jitter := d * 0.25
		d = d + (rand.Float64()*2-1)*jitter
	}

	if d < float64(r.policy.InitialDelay) {
		d = float64(r.policy.InitialDelay)
	}

	return time.Duration(d)
}
