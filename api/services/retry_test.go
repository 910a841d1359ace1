package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(retryable func(error) bool) RetryPolicy {
	return RetryPolicy{
		MaxRetries: 1,
		BaseDelay:  time.Millisecond,
		Retryable:  retryable,
	}
}

func TestRetryPolicyRetriesOnceOnTransientError(t *testing.T) {
	transient := errors.New("connection reset")
	attempts := 0

	err := testPolicy(func(error) bool { return true }).Do(context.Background(), func(context.Context) error {
		attempts++
		return transient
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 2, attempts, "one retry means two attempts")
}

func TestRetryPolicyDoesNotRetryPermanentError(t *testing.T) {
	permanent := errors.New("unauthorized")
	attempts := 0

	err := testPolicy(func(error) bool { return false }).Do(context.Background(), func(context.Context) error {
		attempts++
		return permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestRetryPolicySucceedsOnSecondAttempt(t *testing.T) {
	attempts := 0

	err := testPolicy(func(error) bool { return true }).Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts == 1 {
			return errors.New("flaky")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryPolicyNoErrorMeansOneAttempt(t *testing.T) {
	attempts := 0

	err := testPolicy(func(error) bool { return true }).Do(context.Background(), func(context.Context) error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}
