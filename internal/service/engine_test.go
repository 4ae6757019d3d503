package service

import (
	"context"
	"errors"
	"testing"

	"github.com/pagofacil-pos/api/internal/store"
	"github.com/pagofacil-pos/api/internal/store/memory"
)

// conflictStore reports a serialization conflict for the first N Atomic calls
// and then delegates to the real in-memory store.
type conflictStore struct {
	*memory.Store
	conflicts int
	calls     int
}

func (s *conflictStore) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	s.calls++
	if s.calls <= s.conflicts {
		return store.ErrConflict
	}
	return s.Store.Atomic(ctx, fn)
}

func TestRunAtomicRetriesOnConflict(t *testing.T) {
	cs := &conflictStore{Store: memory.New(), conflicts: 2}

	ran := false
	err := runAtomic(context.Background(), cs, func(tx store.Tx) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("runAtomic: %v", err)
	}
	if !ran {
		t.Error("closure never ran")
	}
	if cs.calls != 3 {
		t.Errorf("attempts: got %d, want 3", cs.calls)
	}
}

func TestRunAtomicGivesUpAfterMaxRetries(t *testing.T) {
	cs := &conflictStore{Store: memory.New(), conflicts: 100}

	err := runAtomic(context.Background(), cs, func(tx store.Tx) error { return nil })
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}
	if cs.calls != maxTxRetries {
		t.Errorf("attempts: got %d, want %d", cs.calls, maxTxRetries)
	}
}

func TestRunAtomicDoesNotRetryOtherErrors(t *testing.T) {
	cs := &conflictStore{Store: memory.New()}

	boom := errors.New("boom")
	err := runAtomic(context.Background(), cs, func(tx store.Tx) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
	if cs.calls != 1 {
		t.Errorf("attempts: got %d, want 1", cs.calls)
	}
}
