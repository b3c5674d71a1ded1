package domain

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

func TestErrorsIsThroughWrapping(t *testing.T) {
	err := pkgerrors.Wrap(BindingMismatchError{Subject: "message"}, "submit")
	if !errors.Is(err, ErrBindingMismatch) {
		t.Fatalf("expected binding mismatch through pkg/errors wrap")
	}
	if errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("binding mismatch must not match signature invalid")
	}

	orphan := OrphanedDraftError{DraftID: "d", Err: GatewayUnavailableError{Gateway: "ledger"}}
	if !errors.Is(fmt.Errorf("open: %w", orphan), ErrGatewayUnavailable) {
		t.Fatalf("expected orphaned draft to unwrap to gateway unavailable")
	}
}

func TestErrorFromKind(t *testing.T) {
	err := ErrorFromKind("binding_mismatch", "invalid offchain ref hash")
	if !errors.Is(err, ErrBindingMismatch) {
		t.Fatalf("expected binding mismatch, got %v", err)
	}
	if err.Error() != "invalid offchain ref hash" {
		t.Fatalf("expected remote message to be kept, got %q", err.Error())
	}
	if ErrorFromKind("something_else", "x") != nil {
		t.Fatalf("expected unknown kind to map to nil")
	}
}

func TestErrorsIsMatchesPointerTargets(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NotFoundError{Resource: "draft"})
	if !errors.Is(err, &NotFoundError{}) {
		t.Fatalf("expected pointer target to match")
	}
	if !errors.Is(err, NotFoundError{Resource: "other"}) {
		t.Fatalf("expected value target to match regardless of fields")
	}
	if errors.Is(err, &ConflictError{}) {
		t.Fatalf("not found must not match conflict")
	}
}
