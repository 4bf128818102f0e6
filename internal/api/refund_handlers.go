// Package api provides HTTP handlers for the storefront checkout API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/storefront/internal/checkout"
	"github.com/onnwee/storefront/internal/gateway"
	"github.com/onnwee/storefront/internal/middleware"
)

// CreateRefundRequest represents the request body for initiating a refund.
// A nil amount refunds the full charge.
type CreateRefundRequest struct {
	TransactionID string `json:"transaction_id"`
	Amount        *int64 `json:"amount,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// RefundHandlers holds dependencies for refund HTTP handlers.
type RefundHandlers struct {
	svc *checkout.Service
}

// NewRefundHandlers creates a new RefundHandlers instance.
func NewRefundHandlers(svc *checkout.Service) *RefundHandlers {
	return &RefundHandlers{svc: svc}
}

// CreateRefund handles POST /refunds - issues a refund against a completed
// transaction. The order itself is left untouched; any order state change is
// a separate, explicit operation.
func (h *RefundHandlers) CreateRefund(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req CreateRefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.Amount != nil && *req.Amount <= 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "refund amount must be positive")
		return
	}

	result, err := h.svc.Refund(r.Context(), strings.TrimSpace(req.TransactionID), req.Amount, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrNoTransaction):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeRefundPrecondition)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeRefundPrecondition, "no completed transaction to refund")
		case errors.Is(err, gateway.ErrTimeout):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeGatewayTimeout)
			WriteError(w, ctx, http.StatusGatewayTimeout, ErrCodeGatewayTimeout, "payment gateway did not respond in time")
		case errors.Is(err, gateway.ErrUnavailable):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeGatewayUnavailable)
			WriteError(w, ctx, http.StatusBadGateway, ErrCodeGatewayUnavailable, "payment gateway is unavailable")
		default:
			slog.ErrorContext(r.Context(), "refund initiation failed",
				"transaction_id", req.TransactionID,
				"error", err,
			)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		return
	}
}
