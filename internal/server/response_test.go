package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/advisor-ai/advisor/internal/history"
	"github.com/advisor-ai/advisor/internal/inference"
	"github.com/advisor-ai/advisor/internal/normalize"
	"github.com/advisor-ai/advisor/internal/prompt"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation error",
			err:        &normalize.ValidationError{Reason: "message is empty"},
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeInvalidRequest,
		},
		{
			name:       "prompt too large",
			err:        &prompt.PromptTooLargeError{Required: 900, Budget: 500},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   ErrCodePromptTooLarge,
		},
		{
			name:       "inference timeout",
			err:        &inference.TimeoutError{Timeout: 30 * time.Second},
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   ErrCodeInferenceTimeout,
		},
		{
			name:       "transport failure",
			err:        &inference.TransportError{Attempts: 3, Err: errors.New("connection refused")},
			wantStatus: http.StatusBadGateway,
			wantCode:   ErrCodeProviderError,
		},
		{
			name:       "unknown session",
			err:        history.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   ErrCodeNotFound,
		},
		{
			name:       "wrapped unknown session",
			err:        fmt.Errorf("load history: %w", history.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   ErrCodeNotFound,
		},
		{
			name:       "deadline exceeded",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   ErrCodeInferenceTimeout,
		},
		{
			name:       "client cancelled",
			err:        context.Canceled,
			wantStatus: statusClientClosed,
			wantCode:   ErrCodeRequestCancelled,
		},
		{
			name:       "anything else",
			err:        errors.New("broken pipe"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, message := statusFor(tt.err)
			if status != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, status)
			}
			if code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, code)
			}
			if message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestStatusFor_UpstreamFailuresHideDetail(t *testing.T) {
	// Infrastructure errors surface the polite fallback, not internals.
	for _, err := range []error{
		&inference.TimeoutError{Timeout: time.Second},
		&inference.TransportError{Attempts: 2, Err: errors.New("dial tcp 10.0.0.5:11434: connect: connection refused")},
	} {
		_, _, message := statusFor(err)
		if message != fallbackMessage {
			t.Errorf("Expected fallback message for %T, got %q", err, message)
		}
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "bad input")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %s", ct)
	}
	resp := decodeJSON[ErrorResponse](t, w)
	if resp.Error.Code != ErrCodeInvalidRequest {
		t.Errorf("Expected INVALID_REQUEST, got %s", resp.Error.Code)
	}
	if resp.Error.Message != "bad input" {
		t.Errorf("Expected message preserved, got %q", resp.Error.Message)
	}
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	writeSuccess(w)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	resp := decodeJSON[map[string]bool](t, w)
	if !resp["success"] {
		t.Error("Expected success true")
	}
}
