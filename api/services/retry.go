package services

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds retries for calls to external services: at most
// MaxRetries additional attempts with exponential backoff from BaseDelay,
// and only for errors Retryable reports as transient.
type RetryPolicy struct {
	MaxRetries uint64
	BaseDelay  time.Duration
	Retryable  func(error) bool
}

// DefaultRetryPolicy retries exactly once.
func DefaultRetryPolicy(retryable func(error) bool) RetryPolicy {
	return RetryPolicy{
		MaxRetries: 1,
		BaseDelay:  500 * time.Millisecond,
		Retryable:  retryable,
	}
}

// Do runs op, retrying per the policy. The error of the final attempt is
// returned unwrapped for the caller to classify.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	backoff := retry.WithMaxRetries(p.MaxRetries, retry.NewExponential(p.BaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		lastErr = op(ctx)
		if lastErr != nil && p.Retryable != nil && p.Retryable(lastErr) {
			return retry.RetryableError(lastErr)
		}
		return lastErr
	})
	if err == nil {
		return nil
	}
	// Return the operation's own error, not retry's wrapper around it.
	if lastErr != nil {
		return lastErr
	}
	return err
}
