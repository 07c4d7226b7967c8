package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/framewalk/internal/browser"
)

func staleErr(i int) error {
	return fmt.Errorf("attempt %d: %w", i, browser.ErrStale)
}

func TestRetryStaleSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := RetryStale(context.Background(), zap.NewNop(), 3, "click #btn", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryStaleRecoversWithinBudget(t *testing.T) {
	// maxAttempts-1 stale failures followed by success must return the
	// successful result with no error.
	calls := 0
	err := RetryStale(context.Background(), zap.NewNop(), 3, "click #tr0", func(context.Context) error {
		calls++
		if calls < 3 {
			return staleErr(calls)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStaleExhaustsBudget(t *testing.T) {
	// Failing with the transient signal exactly maxAttempts times must
	// surface the exhausted-retry failure.
	calls := 0
	err := RetryStale(context.Background(), zap.NewNop(), 3, "click #tr4", func(context.Context) error {
		calls++
		return staleErr(calls)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrRetryExhausted)
	// The underlying stale cause stays in the chain.
	assert.True(t, browser.IsStale(err))
	assert.Contains(t, err.Error(), "click #tr4")
}

func TestRetryStaleDoesNotRetryTimeout(t *testing.T) {
	calls := 0
	timeout := fmt.Errorf("wait for #tr1: %w", browser.ErrTimeout)
	err := RetryStale(context.Background(), zap.NewNop(), 3, "click #tr1", func(context.Context) error {
		calls++
		return timeout
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "timeouts must pass through unretried")
	assert.True(t, browser.IsTimeout(err))
	assert.False(t, errors.Is(err, ErrRetryExhausted))
}

func TestRetryStaleDoesNotRetryGenericErrors(t *testing.T) {
	calls := 0
	boom := errors.New("malformed configuration")
	err := RetryStale(context.Background(), zap.NewNop(), 5, "select year", func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetryStaleHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryStale(ctx, zap.NewNop(), 10, "click #btn", func(context.Context) error {
		calls++
		cancel()
		return staleErr(calls)
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
