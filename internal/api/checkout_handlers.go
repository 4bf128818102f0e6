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
	"github.com/onnwee/storefront/internal/order"
)

// CheckoutHandlers holds dependencies for checkout HTTP handlers.
type CheckoutHandlers struct {
	svc    *checkout.Service
	events *AttemptEventsHandlers
}

// NewCheckoutHandlers creates a new CheckoutHandlers instance. A nil events
// handler disables the websocket subscription route.
func NewCheckoutHandlers(svc *checkout.Service, events *AttemptEventsHandlers) *CheckoutHandlers {
	return &CheckoutHandlers{svc: svc, events: events}
}

// SubmitCheckout handles POST /checkout - creates an order draft and, when the
// total is positive, starts a payment attempt and returns the hand-off
// directive for the frontend.
func (h *CheckoutHandlers) SubmitCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req checkout.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if len(req.Items) == 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "order must contain at least one line item")
		return
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "line item quantity must be positive")
			return
		}
		if item.UnitPrice < 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "line item price must not be negative")
			return
		}
	}
	if strings.TrimSpace(req.Customer.Email) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "customer email is required")
		return
	}

	result, err := h.svc.Submit(r.Context(), &req)
	if err != nil {
		h.writeSubmitError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		// Response already started
		return
	}
}

// writeSubmitError maps checkout and gateway errors to API error responses.
func (h *CheckoutHandlers) writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, checkout.ErrNoLineItems), errors.Is(err, checkout.ErrNoTotal):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, gateway.ErrTimeout):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeGatewayTimeout)
		WriteError(w, ctx, http.StatusGatewayTimeout, ErrCodeGatewayTimeout, "payment gateway did not respond in time")
	case errors.Is(err, gateway.ErrUnavailable):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeGatewayUnavailable)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeGatewayUnavailable, "payment gateway is unavailable")
	default:
		slog.ErrorContext(r.Context(), "checkout submission failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
	}
}

// AttemptRoutes dispatches requests under /checkout/{id}/... to the matching
// attempt operation.
//
// Routes:
//
//	GET  /checkout/{id}                    attempt snapshot
//	POST /checkout/{id}/cancel             cancel a pending attempt
//	POST /checkout/{id}/reset              return a concluded attempt to idle
//	POST /checkout/{id}/handoff/closed     user closed the popup or hosted page
//	POST /checkout/{id}/handoff/navigated  hosted page navigation started
//	GET  /checkout/{id}/events             websocket attempt event subscription
func (h *CheckoutHandlers) AttemptRoutes(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/checkout/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Attempt ID is required")
		return
	}
	attemptID := pathParts[0]

	switch {
	case len(pathParts) == 1:
		if r.Method != http.MethodGet {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
			return
		}
		h.getAttempt(w, r, attemptID)
	case len(pathParts) == 2 && pathParts[1] == "cancel":
		h.cancelAttempt(w, r, attemptID)
	case len(pathParts) == 2 && pathParts[1] == "reset":
		h.resetAttempt(w, r, attemptID)
	case len(pathParts) == 3 && pathParts[1] == "handoff" && pathParts[2] == "closed":
		h.handoffClosed(w, r, attemptID)
	case len(pathParts) == 3 && pathParts[1] == "handoff" && pathParts[2] == "navigated":
		h.handoffNavigated(w, r, attemptID)
	case len(pathParts) == 2 && pathParts[1] == "events" && h.events != nil:
		h.events.SubscribeToAttemptEvents(w, r, attemptID)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	}
}

func (h *CheckoutHandlers) getAttempt(w http.ResponseWriter, r *http.Request, attemptID string) {
	snap, err := h.svc.Snapshot(attemptID)
	if err != nil {
		h.writeAttemptError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		return
	}
}

func (h *CheckoutHandlers) cancelAttempt(w http.ResponseWriter, r *http.Request, attemptID string) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	if err := h.svc.Cancel(r.Context(), attemptID); err != nil {
		h.writeAttemptError(w, r, err)
		return
	}

	snap, err := h.svc.Snapshot(attemptID)
	if err != nil {
		h.writeAttemptError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		return
	}
}

func (h *CheckoutHandlers) resetAttempt(w http.ResponseWriter, r *http.Request, attemptID string) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	if err := h.svc.Reset(r.Context(), attemptID); err != nil {
		if errors.Is(err, checkout.ErrAttemptNotTerminal) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAttemptNotTerminal)
			WriteError(w, ctx, http.StatusConflict, ErrCodeAttemptNotTerminal, "attempt is still in flight; cancel it before resetting")
			return
		}
		h.writeAttemptError(w, r, err)
		return
	}

	snap, err := h.svc.Snapshot(attemptID)
	if err != nil {
		h.writeAttemptError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		return
	}
}

func (h *CheckoutHandlers) handoffClosed(w http.ResponseWriter, r *http.Request, attemptID string) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	if err := h.svc.HandoffClosed(attemptID); err != nil {
		h.writeAttemptError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CheckoutHandlers) handoffNavigated(w http.ResponseWriter, r *http.Request, attemptID string) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	if err := h.svc.HandoffNavigated(attemptID); err != nil {
		h.writeAttemptError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CheckoutHandlers) writeAttemptError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, checkout.ErrAttemptNotFound) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Payment attempt not found")
		return
	}
	slog.ErrorContext(r.Context(), "attempt operation failed", "error", err)
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
	WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
}

// GetOrder handles GET /orders/{id} - returns the persisted order.
func (h *CheckoutHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/orders/"), "/")
	if len(pathParts) != 1 || pathParts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Order ID is required")
		return
	}

	o, err := h.svc.Order(pathParts[0])
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Order not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to load order", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(o); err != nil {
		return
	}
}
