package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := NewAppError(ErrCodeWebhookSignatureMissing, "missing Stripe-Signature header", nil)

	expected := "webhook_signature_missing: missing Stripe-Signature header"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorErrorIncludesCause(t *testing.T) {
	appErr := NewAppError(ErrCodePersistence, "insert failed", errors.New("duplicate key"))

	expected := "persistence_write_failed: insert failed: duplicate key"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("connection refused")
	appErr := NewAppError(ErrCodeInternalDB, "query failed", underlying)

	if !errors.Is(appErr, underlying) {
		t.Error("errors.Is should find the underlying error")
	}
}

func TestAppErrorErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewAppError(ErrCodeAuthTokenInvalid, "bad token", nil))

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As should extract the AppError")
	}
	if appErr.Code != ErrCodeAuthTokenInvalid {
		t.Errorf("Code = %q, want %q", appErr.Code, ErrCodeAuthTokenInvalid)
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewAppError(ErrCodePersistence, "x", nil))

	if !IsCode(err, ErrCodePersistence) {
		t.Error("IsCode should match the wrapped code")
	}
	if IsCode(err, ErrCodeInternalDB) {
		t.Error("IsCode should not match a different code")
	}
	if IsCode(errors.New("plain"), ErrCodePersistence) {
		t.Error("IsCode should not match a non-AppError")
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeWebhookSignatureMissing, http.StatusBadRequest},
		{ErrCodeWebhookSignatureInvalid, http.StatusBadRequest},
		{ErrCodeWebhookPayloadInvalid, http.StatusBadRequest},
		{ErrCodeValidationInvalidPrice, http.StatusBadRequest},
		{ErrCodeAuthTokenMissing, http.StatusUnauthorized},
		{ErrCodeAuthTokenExpired, http.StatusUnauthorized},
		{ErrCodeNotFoundSubscription, http.StatusNotFound},
		{ErrCodePersistence, http.StatusInternalServerError},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrCodeUpstreamStripe, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusBadGateway},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorWithDetails_DoesNotMutateOriginal(t *testing.T) {
	orig := NewAppErrorWithDetails(ErrCodeValidationMissingField, "missing", nil, map[string]any{"field": "price_id"})
	extended := orig.WithDetails(map[string]any{"hint": "x"})

	if len(orig.Details) != 1 {
		t.Errorf("original details mutated: %v", orig.Details)
	}
	if extended.Details["field"] != "price_id" || extended.Details["hint"] != "x" {
		t.Errorf("merged details = %v", extended.Details)
	}
}
