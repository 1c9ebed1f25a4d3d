package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorError(t *testing.T) {
	e := New(CodeStepNotFound, "approval step not found", http.StatusNotFound)
	want := "STEP_NOT_FOUND: approval step not found"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	inner := errors.New("pg: connection refused")
	e := Wrap(inner, "INTERNAL_ERROR", "database unavailable", http.StatusInternalServerError)

	if !errors.Is(e, inner) {
		t.Error("wrapped error should match errors.Is")
	}
	if e.Error() == "" {
		t.Error("wrapped error message is empty")
	}
}

func TestIsAppError(t *testing.T) {
	e := Forbidden(CodeApproverMismatch, "actor is not the effective approver")
	wrapped := fmt.Errorf("process step: %w", e)

	got, ok := IsAppError(wrapped)
	if !ok {
		t.Fatal("IsAppError should find the AppError through wrapping")
	}
	if got.Code != CodeApproverMismatch {
		t.Errorf("code = %q, want %q", got.Code, CodeApproverMismatch)
	}
	if got.HTTPStatus != http.StatusForbidden {
		t.Errorf("status = %d, want %d", got.HTTPStatus, http.StatusForbidden)
	}

	if _, ok := IsAppError(errors.New("plain")); ok {
		t.Error("plain error should not be an AppError")
	}
}

func TestWithFieldErrors(t *testing.T) {
	e := BadRequest(CodeValidationFailed, "validation failed").
		WithFieldErrors([]FieldError{{Field: "endDate", Code: "must_be_after_start"}})

	if len(e.FieldErrors) != 1 {
		t.Fatalf("field errors = %d, want 1", len(e.FieldErrors))
	}
	if e.FieldErrors[0].Field != "endDate" {
		t.Errorf("field = %q, want endDate", e.FieldErrors[0].Field)
	}
}
