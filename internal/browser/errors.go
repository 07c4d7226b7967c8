// File: internal/browser/errors.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// The session reduces every driver failure to one of three classes the
// traversal engine can act on locally:
//
//   - ErrStale: a previously located element was invalidated by a page or
//     frame change. Recoverable by re-resolving and retrying.
//   - ErrTimeout: the element or condition never materialized within its
//     wait budget. Not retried; callers treat it as "feature absent"
//     unless the step was mandatory navigation.
//   - anything else: unexpected, fatal for the enclosing scope.
var (
	ErrStale   = errors.New("stale element reference")
	ErrTimeout = errors.New("interaction timed out")
)

// staleMarkers are CDP error fragments that indicate a node handle no
// longer belongs to the live document.
var staleMarkers = []string{
	"could not find node",
	"no node with given id",
	"does not belong to the document",
	"cannot find context with specified id",
	"node is detached",
	"detached from document",
	"stale",
}

// IsStale reports whether err carries the transient staleness signal.
func IsStale(err error) bool { return errors.Is(err, ErrStale) }

// IsTimeout reports whether err is a bounded-wait expiry.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// Classify wraps a raw driver error with the matching sentinel so callers
// can branch with errors.Is instead of string matching. A nil err stays
// nil. op names the interaction for the error message.
func Classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	if errors.Is(err, ErrStale) || errors.Is(err, ErrTimeout) {
		// Already classified upstream; keep the chain intact.
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range staleMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%s: %w: %v", op, ErrStale, err)
		}
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
