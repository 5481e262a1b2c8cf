package invoicing

import (
	"context"
	"errors"

	"github.com/invoiceledger/backend/internal/domain/invoicing"
)

// RetryOnConflict runs fn until it succeeds, fails with an error other than
// ErrConcurrentModification, or attempts are exhausted. Each attempt must redo the whole
// load-validate-apply-save sequence; fn is never handed stale state.
func RetryOnConflict[T any](ctx context.Context, attempts int, fn func(ctx context.Context) (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}

	var (
		result T
		err    error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return result, err
			}
			return result, ctxErr
		}
		result, err = fn(ctx)
		if err == nil || !errors.Is(err, invoicing.ErrConcurrentModification) {
			return result, err
		}
	}
	return result, err
}
