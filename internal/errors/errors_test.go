package errors_test

import (
	stderrors "errors"
	"testing"

	apperrors "github.com/quantumturn/engine/internal/errors"
)

func TestError_Is_MatchesByCode(t *testing.T) {
	err := apperrors.New(apperrors.CodeNotFound, "entity goblin_1 not found")
	target := apperrors.New(apperrors.CodeNotFound, "")

	if !stderrors.Is(err, target) {
		t.Fatalf("expected errors.Is to match on Code")
	}

	other := apperrors.New(apperrors.CodeStaleState, "")
	if stderrors.Is(err, other) {
		t.Fatalf("expected errors.Is to not match a different Code")
	}
}

func TestError_WithMetadata_DoesNotMutateOriginal(t *testing.T) {
	base := apperrors.New(apperrors.CodeInvariantViolation, "needs cannot go negative")
	derived := base.WithMetadata("entity_key", "npc_mira")

	if len(base.Metadata) != 0 {
		t.Fatalf("expected base error metadata untouched, got %v", base.Metadata)
	}
	if derived.Metadata["entity_key"] != "npc_mira" {
		t.Fatalf("expected derived metadata to carry entity_key, got %v", derived.Metadata)
	}
}

func TestGetCode_UnwrapsWrappedErrors(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := apperrors.Wrap(apperrors.CodeLLMUnavailable, "reasoning provider unreachable", cause)

	if got := apperrors.GetCode(err); got != apperrors.CodeLLMUnavailable {
		t.Fatalf("GetCode() = %q, want %q", got, apperrors.CodeLLMUnavailable)
	}
	if !stderrors.Is(err, cause) {
		t.Fatalf("expected errors.Is to see through to the wrapped cause")
	}
}

func TestIsCode(t *testing.T) {
	err := apperrors.New(apperrors.CodeValidationError, "target entity key missing")
	if !apperrors.IsCode(err, apperrors.CodeValidationError) {
		t.Fatalf("expected IsCode to report true")
	}
	if apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected IsCode to report false for mismatched code")
	}
	if apperrors.IsCode(stderrors.New("plain"), apperrors.CodeNotFound) {
		t.Fatalf("expected IsCode to report false for a non-*Error")
	}
}
