// Package api provides HTTP API utilities including standardized error handling.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/onnwee/storefront/internal/middleware"
)

// Error codes returned in the JSON error envelope. Handlers pick a code, the
// logging middleware records it for 4xx/5xx responses.
const (
	ErrCodeValidation = "validation_error"
	ErrCodeNotFound   = "not_found"
	ErrCodeInternal   = "internal_error"
	ErrCodeConflict   = "conflict"
	ErrCodeBadRequest = "bad_request"

	// The gateway codes distinguish an unreachable payment gateway from one
	// that accepted the connection but never answered.
	ErrCodeGatewayUnavailable = "gateway_unavailable"
	ErrCodeGatewayTimeout     = "gateway_timeout"

	// ErrCodeAttemptNotTerminal covers operations that require a concluded
	// attempt (reset, refund) being called while one is still in flight.
	ErrCodeAttemptNotTerminal = "attempt_not_terminal"

	// ErrCodeRefundPrecondition covers refunds requested without a completed
	// transaction to refund against.
	ErrCodeRefundPrecondition = "refund_precondition"
)

// ErrorResponse is the envelope every API error uses:
// {"error": {"code": "...", "message": "..."}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes status and the JSON error envelope. Pass a context that
// went through middleware.SetErrorCode so the access log picks up the code:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "Order not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	data, err := json.Marshal(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the HTTP status that matches an error code.
// Unknown codes map to 500.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeRefundPrecondition:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeAttemptNotTerminal:
		return http.StatusConflict
	case ErrCodeGatewayUnavailable:
		return http.StatusBadGateway
	case ErrCodeGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
