package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/storefront/internal/cart"
	"github.com/onnwee/storefront/internal/checkout"
	"github.com/onnwee/storefront/internal/gateway"
	"github.com/onnwee/storefront/internal/notify"
	"github.com/onnwee/storefront/internal/order"
)

// stubGateway is a canned gateway client for handler tests. Sessions are
// created successfully unless createErr is set; status queries stay pending.
type stubGateway struct {
	createErr error
	refundErr error
}

func (g *stubGateway) CreateSession(_ context.Context, req *gateway.CreateSessionRequest) (*gateway.Session, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &gateway.Session{
		SessionID:  "sess-1",
		OrderID:    req.OrderID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		PaymentURL: "https://pay.example.com/sess-1",
		Status:     gateway.SessionPending,
	}, nil
}

func (g *stubGateway) GetStatus(context.Context, string) (*gateway.StatusResult, error) {
	return &gateway.StatusResult{Status: gateway.SessionPending}, nil
}

func (g *stubGateway) Refund(_ context.Context, req *gateway.RefundRequest) (*gateway.RefundResult, error) {
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &gateway.RefundResult{RefundID: "re-1", Status: "refunded"}, nil
}

func newTestService(client gateway.Client) *checkout.Service {
	cfg := checkout.Config{
		DefaultCurrency: "ILS",
		AllowedMethods:  []string{"card"},
		PollInterval:    50 * time.Millisecond,
		InitTimeout:     time.Second,
		TaxRateBps:      1700,
	}
	return checkout.NewService(
		cfg,
		order.NewInMemoryRepository(),
		cart.NewInMemoryStore(),
		client,
		checkout.NewRemoteLauncher(),
		&notify.Recorder{},
		nil,
		nil,
		slog.Default(),
	)
}

func newTestHandlers(client gateway.Client) *CheckoutHandlers {
	return NewCheckoutHandlers(newTestService(client), nil)
}

func submitBody() string {
	return `{
		"customer": {"name": "Dana Levi", "email": "dana@example.com"},
		"items": [{"ref": "sku-1", "name": "Poster", "quantity": 2, "unit_price": 4500}],
		"cart_id": "cart-1"
	}`
}

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

// submitAttempt runs a successful submission and returns the decoded result.
func submitAttempt(t *testing.T, h *CheckoutHandlers) *checkout.SubmitResult {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(submitBody()))
	rec := httptest.NewRecorder()
	h.SubmitCheckout(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, want 201 (body %q)", rec.Code, rec.Body.String())
	}
	var result checkout.SubmitResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode submit result: %v", err)
	}
	return &result
}

func TestSubmitCheckout_Created(t *testing.T) {
	h := newTestHandlers(&stubGateway{})
	result := submitAttempt(t, h)

	if result.Order == nil || result.Order.Total != 10530 {
		t.Fatalf("order = %+v, want total 10530", result.Order)
	}
	if result.Attempt == nil || result.Attempt.Status != checkout.AttemptPending {
		t.Fatalf("attempt = %+v, want pending", result.Attempt)
	}
	if result.Directive == nil || result.Directive.Mode != checkout.DirectiveWindow {
		t.Fatalf("directive = %+v, want window hand-off", result.Directive)
	}
}

func TestSubmitCheckout_MethodNotAllowed(t *testing.T) {
	h := newTestHandlers(&stubGateway{})

	req := httptest.NewRequest(http.MethodGet, "/checkout", nil)
	rec := httptest.NewRecorder()
	h.SubmitCheckout(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestSubmitCheckout_InvalidJSON(t *testing.T) {
	h := newTestHandlers(&stubGateway{})

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.SubmitCheckout(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeErrorResponse(t, rec); resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("code = %q, want %q", resp.Error.Code, ErrCodeBadRequest)
	}
}

func TestSubmitCheckout_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "no line items",
			body: `{"customer": {"email": "dana@example.com"}, "items": []}`,
		},
		{
			name: "zero quantity",
			body: `{"customer": {"email": "dana@example.com"}, "items": [{"ref": "sku-1", "quantity": 0, "unit_price": 100}]}`,
		},
		{
			name: "negative price",
			body: `{"customer": {"email": "dana@example.com"}, "items": [{"ref": "sku-1", "quantity": 1, "unit_price": -100}]}`,
		},
		{
			name: "missing email",
			body: `{"customer": {"name": "Dana Levi"}, "items": [{"ref": "sku-1", "quantity": 1, "unit_price": 100}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandlers(&stubGateway{})

			req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.SubmitCheckout(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if resp := decodeErrorResponse(t, rec); resp.Error.Code != ErrCodeValidation {
				t.Errorf("code = %q, want %q", resp.Error.Code, ErrCodeValidation)
			}
		})
	}
}

func TestSubmitCheckout_GatewayUnavailable(t *testing.T) {
	h := newTestHandlers(&stubGateway{createErr: gateway.ErrUnavailable})

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(submitBody()))
	rec := httptest.NewRecorder()
	h.SubmitCheckout(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if resp := decodeErrorResponse(t, rec); resp.Error.Code != ErrCodeGatewayUnavailable {
		t.Errorf("code = %q, want %q", resp.Error.Code, ErrCodeGatewayUnavailable)
	}
}

func TestSubmitCheckout_GatewayTimeout(t *testing.T) {
	h := newTestHandlers(&stubGateway{createErr: gateway.ErrTimeout})

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(submitBody()))
	rec := httptest.NewRecorder()
	h.SubmitCheckout(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
	if resp := decodeErrorResponse(t, rec); resp.Error.Code != ErrCodeGatewayTimeout {
		t.Errorf("code = %q, want %q", resp.Error.Code, ErrCodeGatewayTimeout)
	}
}

func TestAttemptRoutes_GetAttempt(t *testing.T) {
	h := newTestHandlers(&stubGateway{})
	result := submitAttempt(t, h)

	req := httptest.NewRequest(http.MethodGet, "/checkout/"+result.Attempt.AttemptID, nil)
	rec := httptest.NewRecorder()
	h.AttemptRoutes(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	var snap checkout.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.AttemptID != result.Attempt.AttemptID {
		t.Errorf("attempt id = %q, want %q", snap.AttemptID, result.Attempt.AttemptID)
	}
	if snap.SessionID != "sess-1" {
		t.Errorf("session id = %q, want sess-1", snap.SessionID)
	}
}

func TestAttemptRoutes_GetAttemptNotFound(t *testing.T) {
	h := newTestHandlers(&stubGateway{})

	req := httptest.NewRequest(http.MethodGet, "/checkout/nope", nil)
	rec := httptest.NewRecorder()
	h.AttemptRoutes(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp := decodeErrorResponse(t, rec); resp.Error.Code != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", resp.Error.Code, ErrCodeNotFound)
	}
}

func TestAttemptRoutes_Cancel(t *testing.T) {
	h := newTestHandlers(&stubGateway{})
	result := submitAttempt(t, h)

	req := httptest.NewRequest(http.MethodPost, "/checkout/"+result.Attempt.AttemptID+"/cancel", nil)
	rec := httptest.NewRecorder()
	h.AttemptRoutes(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	var snap checkout.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Status != checkout.AttemptCancelled {
		t.Errorf("status = %q, want %q", snap.Status, checkout.AttemptCancelled)
	}
}

func TestAttemptRoutes_CancelWrongMethod(t *testing.T) {
	h := newTestHandlers(&stubGateway{})
	result := submitAttempt(t, h)

	req := httptest.NewRequest(http.MethodGet, "/checkout/"+result.Attempt.AttemptID+"/cancel", nil)
	rec := httptest.NewRecorder()
	h.AttemptRoutes(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestAttemptRoutes_ResetWhilePending(t *testing.T) {
	h := newTestHandlers(&stubGateway{})
	result := submitAttempt(t, h)

	req := httptest.NewRequest(http.MethodPost, "/checkout/"+result.Attempt.AttemptID+"/reset", nil)
	rec := httptest.NewRecorder()
	h.AttemptRoutes(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if resp := decodeErrorResponse(t, rec); resp.Error.Code != ErrCodeAttemptNotTerminal {
		t.Errorf("code = %q, want %q", resp.Error.Code, ErrCodeAttemptNotTerminal)
	}
}

func TestAttemptRoutes_ResetAfterCancel(t *testing.T) {
	h := newTestHandlers(&stubGateway{})
	result := submitAttempt(t, h)
	attemptID := result.Attempt.AttemptID

	cancel := httptest.NewRequest(http.MethodPost, "/checkout/"+attemptID+"/cancel", nil)
	h.AttemptRoutes(httptest.NewRecorder(), cancel)

	req := httptest.NewRequest(http.MethodPost, "/checkout/"+attemptID+"/reset", nil)
	rec := httptest.NewRecorder()
	h.AttemptRoutes(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	var snap checkout.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Status != checkout.AttemptIdle {
		t.Errorf("status = %q, want %q", snap.Status, checkout.AttemptIdle)
	}
}

func TestAttemptRoutes_HandoffReports(t *testing.T) {
	h := newTestHandlers(&stubGateway{})
	result := submitAttempt(t, h)
	attemptID := result.Attempt.AttemptID

	nav := httptest.NewRequest(http.MethodPost, "/checkout/"+attemptID+"/handoff/navigated", nil)
	rec := httptest.NewRecorder()
	h.AttemptRoutes(rec, nav)
	if rec.Code != http.StatusNoContent {
		t.Errorf("navigated status = %d, want 204", rec.Code)
	}

	closed := httptest.NewRequest(http.MethodPost, "/checkout/"+attemptID+"/handoff/closed", nil)
	rec = httptest.NewRecorder()
	h.AttemptRoutes(rec, closed)
	if rec.Code != http.StatusNoContent {
		t.Errorf("closed status = %d, want 204", rec.Code)
	}
}

func TestAttemptRoutes_UnknownSubroute(t *testing.T) {
	h := newTestHandlers(&stubGateway{})
	result := submitAttempt(t, h)

	req := httptest.NewRequest(http.MethodPost, "/checkout/"+result.Attempt.AttemptID+"/explode", nil)
	rec := httptest.NewRecorder()
	h.AttemptRoutes(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetOrder(t *testing.T) {
	h := newTestHandlers(&stubGateway{})
	result := submitAttempt(t, h)

	req := httptest.NewRequest(http.MethodGet, "/orders/"+result.Order.ID, nil)
	rec := httptest.NewRecorder()
	h.GetOrder(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	var o order.Order
	if err := json.NewDecoder(rec.Body).Decode(&o); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if o.ID != result.Order.ID {
		t.Errorf("order id = %q, want %q", o.ID, result.Order.ID)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	h := newTestHandlers(&stubGateway{})

	req := httptest.NewRequest(http.MethodGet, "/orders/nope", nil)
	rec := httptest.NewRecorder()
	h.GetOrder(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp := decodeErrorResponse(t, rec); resp.Error.Code != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", resp.Error.Code, ErrCodeNotFound)
	}
}

func TestGetOrder_MethodNotAllowed(t *testing.T) {
	h := newTestHandlers(&stubGateway{})

	req := httptest.NewRequest(http.MethodDelete, "/orders/order-1", nil)
	rec := httptest.NewRecorder()
	h.GetOrder(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
