package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	policy := NewRetryPolicy()

	transient := Transient(fmt.Errorf("render timed out"))
	assert.True(t, policy.ShouldRetry(1, transient))
	assert.True(t, policy.ShouldRetry(2, transient))
	assert.False(t, policy.ShouldRetry(3, transient), "attempt cap reached")

	assert.False(t, policy.ShouldRetry(1, fmt.Errorf("malformed table")), "terminal errors are not retried")
	assert.True(t, policy.ShouldRetry(1, context.DeadlineExceeded))
	assert.False(t, policy.ShouldRetry(1, context.Canceled))
}

func TestRetryPolicy_BackoffGrowsAndCaps(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:       5,
		InitialBackoff:    time.Second,
		MaxBackoff:        4 * time.Second,
		BackoffMultiplier: 2.0,
	}

	// Jitter is ±25%, so each attempt's backoff stays within a known band.
	b0 := policy.CalculateBackoff(0)
	assert.GreaterOrEqual(t, b0, 750*time.Millisecond)
	assert.LessOrEqual(t, b0, 1250*time.Millisecond)

	b1 := policy.CalculateBackoff(1)
	assert.GreaterOrEqual(t, b1, 1500*time.Millisecond)
	assert.LessOrEqual(t, b1, 2500*time.Millisecond)

	// Far past the cap the band is the capped value's band.
	b10 := policy.CalculateBackoff(10)
	assert.GreaterOrEqual(t, b10, 3*time.Second)
	assert.LessOrEqual(t, b10, 5*time.Second)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.True(t, isRetryableError(Transient(fmt.Errorf("x"))))
	assert.True(t, isRetryableError(fmt.Errorf("wrapped: %w", Transient(errors.New("x")))))
	assert.True(t, isRetryableError(context.DeadlineExceeded))
	assert.False(t, isRetryableError(errors.New("parse failure")))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrSessionInvalid))
	assert.True(t, IsFatal(fmt.Errorf("phase: %w", ErrCheckpointSave)))
	assert.True(t, IsFatal(ErrMissingPrerequisite))
	assert.True(t, IsFatal(ErrStoreWrite))
	assert.False(t, IsFatal(Transient(errors.New("x"))))
	assert.False(t, IsFatal(errors.New("anything else")))
}
