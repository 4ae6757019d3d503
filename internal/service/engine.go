package service

import (
	"context"
	"errors"

	"github.com/pagofacil-pos/api/internal/store"
)

// maxTxRetries bounds how often a conflicted transaction is re-run before the
// conflict surfaces to the caller.
const maxTxRetries = 3

// runAtomic executes fn through the store's atomic entry point, retrying the
// whole closure when the store reports a conflicting concurrent commit. The
// closure must be safe to re-run from scratch: it re-reads everything it
// touches, so a retry never applies deltas on stale state.
func runAtomic(ctx context.Context, st store.Store, fn func(tx store.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := st.Atomic(ctx, fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrConflict) {
			lastErr = err
			continue
		}
		return err
	}
	return lastErr
}
