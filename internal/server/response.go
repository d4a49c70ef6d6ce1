package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/advisor-ai/advisor/internal/history"
	"github.com/advisor-ai/advisor/internal/inference"
	"github.com/advisor-ai/advisor/internal/normalize"
	"github.com/advisor-ai/advisor/internal/prompt"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodePromptTooLarge   = "PROMPT_TOO_LARGE"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeProviderError    = "PROVIDER_ERROR"
	ErrCodeInferenceTimeout = "INFERENCE_TIMEOUT"
	ErrCodeRequestCancelled = "REQUEST_CANCELLED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// fallbackMessage is returned when inference fails with nothing usable.
const fallbackMessage = "I apologize, but I'm experiencing technical difficulties. Please try again in a moment."

// refusalMessage replaces any response a block rule rejected.
const refusalMessage = "I'm not able to share that response. Please ask me something else about investing and I'll do my best to help."

// statusClientClosed mirrors the nginx convention for client disconnects.
const statusClientClosed = 499

// statusFor maps a pipeline error to an HTTP status, error code, and
// client-facing message. Policy violations are handled by the chat
// handler before this runs; they are a refusal, not an error.
func statusFor(err error) (int, string, string) {
	var (
		validationErr *normalize.ValidationError
		tooLargeErr   *prompt.PromptTooLargeError
		timeoutErr    *inference.TimeoutError
		transportErr  *inference.TransportError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, ErrCodeInvalidRequest, validationErr.Error()
	case errors.As(err, &tooLargeErr):
		return http.StatusRequestEntityTooLarge, ErrCodePromptTooLarge, tooLargeErr.Error()
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout, ErrCodeInferenceTimeout, fallbackMessage
	case errors.As(err, &transportErr):
		return http.StatusBadGateway, ErrCodeProviderError, fallbackMessage
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeInferenceTimeout, fallbackMessage
	case errors.Is(err, context.Canceled):
		return statusClientClosed, ErrCodeRequestCancelled, "request cancelled"
	default:
		return http.StatusInternalServerError, ErrCodeInternalError, err.Error()
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeTaxonomyError maps err through statusFor and writes it.
func writeTaxonomyError(w http.ResponseWriter, err error) {
	status, code, message := statusFor(err)
	writeError(w, status, code, message)
}

// writeSuccess writes a success response.
func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
