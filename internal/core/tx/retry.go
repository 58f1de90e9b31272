package tx

import (
	"context"
	"time"

	"explostock/internal/core/apperror"
)

// DefaultRetryAttempts is the number of attempts callers use for commands
// that may hit an optimistic-lock conflict.
const DefaultRetryAttempts = 3

// RetryOnConflict runs fn until it succeeds, fails with an error other than
// CONCURRENT_MODIFICATION, or attempts are exhausted. fn must re-read every
// row it mutates; a retry with stale state would defeat the version check.
func RetryOnConflict(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 5 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err = fn(ctx)
		if err == nil || !apperror.IsConcurrentModification(err) {
			return err
		}
	}
	return err
}
