package postgres

import (
	"context"
	"errors"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// storeError classifies a driver failure into the shared error taxonomy so
// the retry gates upstream can tell a transient outage from a permanent
// rejection. Deadline and cancellation map to the timeout kind; anything
// else that reaches this point is the store being unreachable or refusing
// the connection, which is safe to retry with backoff.
func storeError(domain, op, message string, err error) error {
	kind := shared.ErrStoreUnavailable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = shared.ErrTimeout
	}
	return shared.WrapError(domain, op, kind, message, err)
}
