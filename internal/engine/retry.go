// File: internal/engine/retry.go
package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/framewalk/internal/browser"
)

// ErrRetryExhausted marks a transient failure that persisted beyond the
// retry budget. It is fatal for the enclosing interaction.
var ErrRetryExhausted = errors.New("retry budget exhausted")

// RetryStale executes a single element interaction, re-invoking it from
// scratch while it keeps failing with the transient staleness signal.
// The operation must re-locate its element on every invocation; it is
// never handed a previous handle.
//
// Timeouts are not retried here: an element that never became
// interactable is the calling level's decision to make. Any other error
// passes through untouched on the first occurrence.
func RetryStale(ctx context.Context, logger *zap.Logger, maxAttempts int, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !browser.IsStale(err) {
			return err
		}
		lastErr = err
		logger.Warn("Element went stale; re-resolving and retrying.",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("remaining", maxAttempts-attempt),
		)
	}
	return fmt.Errorf("%s: %w after %d attempts: %w", op, ErrRetryExhausted, maxAttempts, lastErr)
}
