package errors

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("slot 42 owned by u2, expected u1")

	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"not found", NotFound("Slot"), CodeNotFound, http.StatusNotFound},
		{"not found with id", NotFoundWithID("Swap request", "r1"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("end_time must be after start_time", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("invalid JSON"), CodeInvalidInput, http.StatusBadRequest},
		{"unauthorized", Unauthorized("missing bearer token"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden("not the slot owner"), CodeForbidden, http.StatusForbidden},
		{"invalid transition", InvalidTransition("request is not pending"), CodeInvalidTransition, http.StatusConflict},
		{"conflict", Conflict("slot no longer available"), CodeConflict, http.StatusConflict},
		{"consistency", Consistency(cause), CodeConsistency, http.StatusInternalServerError},
		{"internal", Internal("failed to load slot", cause), CodeInternal, http.StatusInternalServerError},
		{"timeout", Timeout("request timed out"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("Event bus"), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if tt.err.StatusCode() != tt.wantStatus {
				t.Errorf("StatusCode() = %d, want %d", tt.err.StatusCode(), tt.wantStatus)
			}
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   &AppError{Code: CodeNotFound, Message: "Slot not found"},
			expected: "NOT_FOUND: Slot not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "failed to open swap request",
				Err:     errors.New("connection reset"),
			},
			expected: "INTERNAL_ERROR: failed to open swap request (caused by: connection reset)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	sentinel := errors.New("version conflict")
	appErr := Wrap(sentinel, CodeConflict, "slot changed concurrently", http.StatusConflict)

	if !errors.Is(appErr, sentinel) {
		t.Errorf("errors.Is should reach the wrapped sentinel")
	}
}

func TestConsistency_HidesCause(t *testing.T) {
	err := Consistency(errors.New("slot s1 owner mismatch"))

	body := string(err.ToJSON())
	if strings.Contains(body, "s1") {
		t.Errorf("ToJSON() leaked internal detail: %s", body)
	}
	if !strings.Contains(body, CodeConsistency) {
		t.Errorf("ToJSON() should contain the error code, got %s", body)
	}
}

func TestAsAppError(t *testing.T) {
	notFound := NotFound("Slot")
	if got := AsAppError(notFound); got != notFound {
		t.Errorf("AsAppError() should return the same AppError")
	}

	wrapped := fmt.Errorf("respond: %w", notFound)
	if got := AsAppError(wrapped); got != notFound {
		t.Errorf("AsAppError() should find an AppError through wrapping")
	}
	if !IsAppError(wrapped) {
		t.Errorf("IsAppError() should be true for a wrapped AppError")
	}

	plain := errors.New("boom")
	got := AsAppError(plain)
	if got.Code != CodeInternal || got.Err != plain {
		t.Errorf("AsAppError() should wrap plain errors as internal, got %+v", got)
	}
}

func TestHasCodeAndIsRetryable(t *testing.T) {
	if !HasCode(Conflict("taken"), CodeConflict) {
		t.Errorf("HasCode() should match conflict")
	}
	if HasCode(errors.New("plain"), CodeConflict) {
		t.Errorf("HasCode() should not match plain errors")
	}
	if !IsRetryable(Conflict("taken")) {
		t.Errorf("conflict should be retryable")
	}
	if IsRetryable(Consistency(errors.New("x"))) {
		t.Errorf("consistency errors must not be retryable")
	}
	if IsRetryable(InvalidTransition("closed")) {
		t.Errorf("invalid transition should not be retryable")
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, Forbidden("not the receiver"))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), CodeForbidden) {
		t.Errorf("body should contain code, got %s", rec.Body.String())
	}
}
