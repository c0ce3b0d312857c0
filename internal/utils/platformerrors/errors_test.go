package platformerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAsErrorKeepsType(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	inner := NewError(ctx, LayerDomain, ErrorTypeForbidden, "owner only", nil, "")

	wrapped := AsError(ctx, LayerHandler, fmt.Errorf("skip: %w", inner), "failed to skip")
	if wrapped.Type != ErrorTypeForbidden {
		t.Fatalf("expected forbidden, got %s", wrapped.Type)
	}
	if wrapped.UUID != inner.UUID {
		t.Errorf("expected uuid %s to be preserved, got %s", inner.UUID, wrapped.UUID)
	}
	if wrapped.RequestID != "req-1" {
		t.Errorf("expected request id req-1, got %q", wrapped.RequestID)
	}
	if !IsErrorType(wrapped, ErrorTypeForbidden) {
		t.Error("IsErrorType should see through wrapping")
	}
}

func TestAsErrorPlainErrorIsInternal(t *testing.T) {
	err := AsError(context.Background(), LayerRepository, errors.New("boom"), "save room")
	if err.Type != ErrorTypeInternal {
		t.Fatalf("expected internal, got %s", err.Type)
	}
	if AsError(context.Background(), LayerRepository, nil, "noop") != nil {
		t.Fatal("nil error must stay nil")
	}
}

func TestErrorTypeToHTTPStatus(t *testing.T) {
	tests := []struct {
		errType ErrorType
		status  int
	}{
		{ErrorTypeNotFound, http.StatusNotFound},
		{ErrorTypeValidation, http.StatusBadRequest},
		{ErrorTypeConflict, http.StatusConflict},
		{ErrorTypeForbidden, http.StatusForbidden},
		{ErrorTypeUnavailable, http.StatusServiceUnavailable},
		{ErrorTypeExternal, http.StatusBadGateway},
		{ErrorType("UNKNOWN"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			if got := ErrorTypeToHTTPStatus(tt.errType); got != tt.status {
				t.Errorf("ErrorTypeToHTTPStatus(%s) = %d, want %d", tt.errType, got, tt.status)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if !NewError(context.Background(), LayerDomain, ErrorTypeUnavailable, "relay down", nil, "").Retryable() {
		t.Error("unavailable errors are retryable")
	}
	if NewError(context.Background(), LayerDomain, ErrorTypeConflict, "bad mode", nil, "").Retryable() {
		t.Error("conflict errors are not retryable")
	}
}

func TestReasonSurvivesWrapping(t *testing.T) {
	ctx := context.Background()
	inner := NewErrorWithContext(ctx, LayerDomain, ErrorTypeConflict, "bad mode", nil, "",
		map[string]any{ContextKeyReason: "invalid_transition"})
	wrapped := AsError(ctx, LayerHandler, fmt.Errorf("pause: %w", inner), "failed")

	if got := Reason(wrapped); got != "invalid_transition" {
		t.Fatalf("Reason() = %q", got)
	}
	if Reason(errors.New("plain")) != "" {
		t.Fatal("plain errors carry no reason")
	}
}
