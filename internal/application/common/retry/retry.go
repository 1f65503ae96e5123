// Package retry provides a retry executor with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"docindex/internal/application/common/slogger"
	"docindex/internal/port/outbound"
)

// Config defines retry behavior.
type Config struct {
	MaxRetries    int           `json:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
	Jitter        bool          `json:"jitter"`
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Operation represents an operation that can be retried.
type Operation func(ctx context.Context) error

// RetryableChecker classifies errors as retryable or terminal.
type RetryableChecker interface {
	IsRetryable(err error) bool
}

// Executor handles retry logic with exponential backoff.
type Executor struct {
	config  *Config
	checker RetryableChecker
}

// NewExecutor creates a retry executor. A nil config uses defaults; a nil
// checker uses external-service error classification.
func NewExecutor(config *Config, checker RetryableChecker) *Executor {
	if config == nil {
		config = DefaultConfig()
	}
	if checker == nil {
		checker = &ExternalServiceChecker{}
	}
	return &Executor{config: config, checker: checker}
}

// Execute runs the operation, retrying retryable failures with backoff.
func (r *Executor) Execute(ctx context.Context, operation Operation) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			slogger.Debug(ctx, "Retrying operation after delay", slogger.Fields3(
				"attempt", attempt,
				"max_retries", r.config.MaxRetries,
				"delay_ms", delay.Milliseconds(),
			))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 0 {
				slogger.Info(ctx, "Operation succeeded after retries", slogger.Fields{
					"attempt": attempt + 1,
				})
			}
			return nil
		}

		lastErr = err

		if !r.checker.IsRetryable(err) {
			slogger.Debug(ctx, "Error is not retryable", slogger.Fields2(
				"error", err.Error(),
				"attempt", attempt+1,
			))
			return err
		}

		slogger.Warn(ctx, "Operation failed, will retry", slogger.Fields3(
			"error", err.Error(),
			"attempt", attempt+1,
			"max_retries", r.config.MaxRetries,
		))
	}

	return fmt.Errorf("operation failed after %d retries: %w", r.config.MaxRetries, lastErr)
}

// calculateDelay computes the exponential backoff for a given attempt.
func (r *Executor) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1))

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	if r.config.Jitter {
		jitterRange := delay * 0.25
		delay += (float64(time.Now().UnixNano()%1000000)/1000000.0 - 0.5) * 2 * jitterRange
	}

	return time.Duration(delay)
}

// ExternalServiceChecker retries rate-limit, timeout, network, and server
// failures of external collaborators; everything else is terminal.
type ExternalServiceChecker struct{}

// IsRetryable classifies the error.
func (c *ExternalServiceChecker) IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var svcErr *outbound.ExternalServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Retryable
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return false
}

// WithRetry executes an operation with the default configuration.
func WithRetry(ctx context.Context, operation Operation) error {
	return NewExecutor(nil, nil).Execute(ctx, operation)
}

// WithRetryConfig executes an operation with a custom configuration.
func WithRetryConfig(ctx context.Context, config *Config, operation Operation) error {
	return NewExecutor(config, nil).Execute(ctx, operation)
}
