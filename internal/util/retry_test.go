package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBackoff_ZeroAttempt(t *testing.T) {
	assert.Equal(t, time.Duration(0), CalculateBackoff(time.Second, 0))
	assert.Equal(t, time.Duration(0), CalculateBackoff(0, 3))
}

func TestCalculateBackoff_ExponentialGrowth(t *testing.T) {
	baseDelay := 100 * time.Millisecond
	for attempt := 1; attempt <= 5; attempt++ {
		expectedBase := baseDelay * time.Duration(1<<uint(attempt))
		got := CalculateBackoff(baseDelay, attempt)
		assert.GreaterOrEqual(t, got, expectedBase*3/4, "attempt %d", attempt)
		assert.LessOrEqual(t, got, expectedBase*5/4, "attempt %d", attempt)
	}
}

func TestCalculateBackoff_CapsAt30Seconds(t *testing.T) {
	got := CalculateBackoff(time.Second, 40)
	assert.LessOrEqual(t, got, 37500*time.Millisecond)
	assert.GreaterOrEqual(t, got, 22500*time.Millisecond)
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("unauthorized")
	calls := 0
	err := Do(context.Background(), 5, time.Millisecond, func(err error) bool {
		return !errors.Is(err, permanent)
	}, func(context.Context) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 2, time.Millisecond, nil, func(context.Context) error {
		calls++
		return errors.New("down")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestDo_HonorsRetryAfter(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Do(context.Background(), 1, time.Hour, nil, func(context.Context) error {
		calls++
		if calls == 1 {
			return &RetryAfterError{Delay: 10 * time.Millisecond, Err: errors.New("429")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, 3, time.Second, nil, func(context.Context) error {
		return errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryableStatus(t *testing.T) {
	for code, want := range map[int]bool{0: true, 200: false, 400: false, 401: false, 429: true, 500: true, 503: true} {
		assert.Equal(t, want, RetryableStatus(code), "status %d", code)
	}
}
