package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", http.StatusBadRequest)
	expected := "INVALID_INPUT: test error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestAppError_WithCause(t *testing.T) {
	originalErr := errors.New("original error")
	err := WrapError(originalErr, ErrCodeInternal, "wrapped error", http.StatusInternalServerError)

	if !errors.Is(err, originalErr) {
		t.Errorf("expected wrapped error to match its cause")
	}
	if !strings.Contains(err.Error(), "original error") {
		t.Errorf("Error() should contain cause, got: %v", err.Error())
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := NewNotFoundError("curated list").WithContext("list_id", "l-1").WithContext("attempt", 2)

	if err.Context["list_id"] != "l-1" {
		t.Errorf("Context[list_id] = %v, want 'l-1'", err.Context["list_id"])
	}
	if err.Context["attempt"] != 2 {
		t.Errorf("Context[attempt] = %v, want 2", err.Context["attempt"])
	}
}

func TestConstructors(t *testing.T) {
	cases := []struct {
		err    *AppError
		code   ErrorCode
		status int
	}{
		{NewInvalidInputError("bad"), ErrCodeInvalidInput, http.StatusBadRequest},
		{NewNotFoundError("profile"), ErrCodeNotFound, http.StatusNotFound},
		{NewUnauthorizedError("no token"), ErrCodeUnauthorized, http.StatusUnauthorized},
		{NewForbiddenError("not yours"), ErrCodeForbidden, http.StatusForbidden},
		{NewConflictError("exists"), ErrCodeConflict, http.StatusConflict},
		{NewRateLimitError(), ErrCodeRateLimit, http.StatusTooManyRequests},
		{NewInternalError("oops"), ErrCodeInternal, http.StatusInternalServerError},
		{NewServiceUnavailableError("store down"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		if tc.err.Code != tc.code {
			t.Errorf("Code = %v, want %v", tc.err.Code, tc.code)
		}
		if tc.err.HTTPStatus != tc.status {
			t.Errorf("%s: HTTPStatus = %v, want %v", tc.code, tc.err.HTTPStatus, tc.status)
		}
	}
	if got := NewNotFoundError("profile").Message; got != "profile not found" {
		t.Errorf("Message = %q", got)
	}
}

func TestAppError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewConflictError("profile already exists"))

	if !errors.Is(err, NewConflictError("")) {
		t.Error("expected errors.Is to match on code")
	}
	if errors.Is(err, NewNotFoundError("")) {
		t.Error("expected different codes not to match")
	}
}

func TestGetAppError(t *testing.T) {
	if GetAppError(nil) != nil {
		t.Error("GetAppError(nil) should return nil")
	}
	if IsAppError(errors.New("plain")) {
		t.Error("plain error is not an AppError")
	}

	appErr := NewForbiddenError("denied")
	wrapped := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", appErr))
	if got := GetAppError(wrapped); got != appErr {
		t.Errorf("GetAppError() = %v, want %v", got, appErr)
	}
	if !IsAppError(wrapped) {
		t.Error("expected wrapped AppError to be detected")
	}
}
