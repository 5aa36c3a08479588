// Package errors tests for error code definitions and error handling.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestErrorCodes_areUnique verifies no two codes share a value.
func TestErrorCodes_areUnique(t *testing.T) {
	codes := []ErrorCode{
		ErrInternal, ErrInvalid, ErrNotFound, ErrValidation, ErrConfig,
		ErrDatabase, ErrMigration,
		ErrDeliveryFailed, ErrMalformedUpload, ErrSyncInProgress,
		ErrAINotConfigured, ErrExtractionFailed, ErrCaptureFailed,
	}

	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		if code == "" {
			t.Error("error code should not be empty")
		}
		if seen[code] {
			t.Errorf("duplicate error code %q", code)
		}
		seen[code] = true
	}
}

// TestAppError_Error verifies error message formatting.
func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "error without underlying error",
			appError: &AppError{Code: ErrInternal, Message: "something failed"},
			want:     "[INTERNAL_ERROR] something failed",
		},
		{
			name:     "error with underlying error",
			appError: &AppError{Code: ErrDatabase, Message: "insert menu", Err: errors.New("disk full")},
			want:     "[DATABASE_ERROR] insert menu: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appError.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestWrap verifies the wrapped error stays reachable through errors.Is.
func TestWrap(t *testing.T) {
	cause := errors.New("database is locked")
	err := Wrap(ErrDatabase, "enqueue upload", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if err.Code != ErrDatabase {
		t.Errorf("Code = %v, want %v", err.Code, ErrDatabase)
	}
}

// TestNewf verifies message formatting.
func TestNewf(t *testing.T) {
	err := Newf(ErrNotFound, "menu %q not found", "m-1")
	if !strings.Contains(err.Error(), `menu "m-1" not found`) {
		t.Errorf("Error() = %q", err.Error())
	}
}

// TestIs verifies code matching through wrapping layers.
func TestIs(t *testing.T) {
	inner := New(ErrNotFound, "item missing")
	outer := Wrap(ErrValidation, "update item", inner)
	wrapped := fmt.Errorf("handler: %w", outer)

	if !Is(wrapped, ErrValidation) {
		t.Error("Is() should match the outer code through fmt wrapping")
	}
	if !Is(wrapped, ErrNotFound) {
		t.Error("Is() should match a nested AppError code")
	}
	if Is(wrapped, ErrDatabase) {
		t.Error("Is() should not match an absent code")
	}
	if Is(errors.New("plain"), ErrInternal) {
		t.Error("Is() should be false for non-AppError errors")
	}
	if Is(nil, ErrInternal) {
		t.Error("Is(nil) should be false")
	}
}

// TestCodeOf verifies the outermost code is reported.
func TestCodeOf(t *testing.T) {
	if got := CodeOf(Wrap(ErrMigration, "apply", New(ErrDatabase, "exec"))); got != ErrMigration {
		t.Errorf("CodeOf() = %v, want %v", got, ErrMigration)
	}
	if got := CodeOf(errors.New("plain")); got != ErrInternal {
		t.Errorf("CodeOf(plain) = %v, want %v", got, ErrInternal)
	}
}
