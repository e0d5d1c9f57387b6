package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	plain := New(ErrDatabase, "open store")
	if got := plain.Error(); got != "[DATABASE_ERROR] open store" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := Wrap(ErrMigration, "apply migration 2", errors.New("disk full"))
	if got := wrapped.Error(); got != "[MIGRATION_FAILED] apply migration 2: disk full" {
		t.Errorf("Error() = %q", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrRemote, "dispatch", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if New(ErrRemote, "no cause").Unwrap() != nil {
		t.Error("Unwrap() should be nil without a cause")
	}
}

func TestIsMatchesThroughWrapping(t *testing.T) {
	err := Wrap(ErrSyncTimeout, "request deadline", errors.New("context deadline exceeded"))

	if !Is(err, ErrSyncTimeout) {
		t.Error("Is() should match the direct code")
	}
	if Is(err, ErrSyncFailed) {
		t.Error("Is() matched the wrong code")
	}

	// Codes must survive fmt.Errorf wrapping further up the stack.
	outer := fmt.Errorf("drain aborted: %w", err)
	if !Is(outer, ErrSyncTimeout) {
		t.Error("Is() should unwrap through fmt.Errorf")
	}
	if Is(nil, ErrSyncTimeout) {
		t.Error("Is(nil) should be false")
	}
}
