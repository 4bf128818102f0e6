package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/storefront/internal/cart"
	"github.com/onnwee/storefront/internal/gateway"
	"github.com/onnwee/storefront/internal/notify"
	"github.com/onnwee/storefront/internal/order"
	"github.com/onnwee/storefront/internal/tracing"
)

// Summary is the order-summary view produced after a successful
// reconciliation.
type Summary struct {
	OrderID       string     `json:"order_id"`
	Total         int64      `json:"total"`
	Currency      string     `json:"currency"`
	ItemCount     int64      `json:"item_count"`
	TransactionID string     `json:"transaction_id,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
}

// Reconciler applies terminal payment outcomes to the order store and
// clears transient attempt state. All order mutation goes through
// order.ApplyTransition; no field is patched directly.
type Reconciler struct {
	orders   order.Repository
	carts    cart.Store
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewReconciler creates a reconciler. A nil logger uses slog.Default.
func NewReconciler(orders order.Repository, carts cart.Store, notifier notify.Notifier, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		orders:   orders,
		carts:    carts,
		notifier: notifier,
		logger:   logger,
	}
}

// Finalize applies a terminal outcome to the persisted order. It is
// idempotent: a repeated terminal event is detected by the order's current
// status and applied as a no-op, so the cart is never cleared twice.
// Session may be nil for cancellation before a session existed.
func (r *Reconciler) Finalize(ctx context.Context, orderID, cartID string, outcome Outcome, session *gateway.Session) (finalized *order.Order, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "reconcile_order")
	defer func() { endSpan(err) }()
	tracing.SetAttributes(ctx,
		attribute.String("order.id", orderID),
		attribute.String("outcome", string(outcome.Kind)),
	)

	o, err := r.orders.GetByID(orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}

	ev := order.Event{At: time.Now()}
	if session != nil {
		ev.SessionID = session.SessionID
	}

	switch outcome.Kind {
	case OutcomeSuccess:
		ev.Kind = order.EventPaymentSucceeded
		ev.TransactionID = outcome.TransactionID
	case OutcomeFailed:
		ev.Kind = order.EventPaymentFailed
		ev.Message = outcome.Message
	case OutcomeCancelled:
		ev.Kind = order.EventPaymentCancelled
	default:
		return nil, fmt.Errorf("unknown outcome kind %q", outcome.Kind)
	}

	if err := order.ApplyTransition(o, ev); err != nil {
		if errors.Is(err, order.ErrAlreadyFinal) {
			// Already reconciled; nothing to persist, nothing to clear.
			r.logger.InfoContext(ctx, "order already reconciled", "order_id", orderID, "status", o.Status)
			return o, nil
		}
		return nil, fmt.Errorf("apply transition: %w", err)
	}

	if err := r.orders.Update(o); err != nil {
		return nil, fmt.Errorf("persist order %s: %w", orderID, err)
	}

	switch outcome.Kind {
	case OutcomeSuccess:
		// Cart is cleared exactly once, and only on success.
		if cartID != "" {
			if err := r.carts.Clear(ctx, cartID); err != nil {
				// Order state is already settled; an unclearable cart is
				// logged, not surfaced as a payment failure.
				r.logger.ErrorContext(ctx, "failed to clear cart", "cart_id", cartID, "error", err)
			}
		}
		r.notifier.Notify(ctx, "Payment completed. Your order is confirmed.", notify.SeverityInfo)

	case OutcomeFailed:
		// Cart is preserved so the customer can retry with a new attempt.
		r.notifier.Notify(ctx, "Payment failed: "+outcome.Message, notify.SeverityError)

	case OutcomeCancelled:
		// Cart is preserved; cancellation is not an error.
		r.notifier.Notify(ctx, "Payment cancelled.", notify.SeverityInfo)
	}

	r.logger.InfoContext(ctx, "order reconciled",
		"order_id", orderID,
		"status", o.Status,
		"payment_status", o.PaymentStatus,
	)
	return o, nil
}

// ConfirmWithoutPayment confirms an order for which the caller skipped
// payment, such as a zero-total order. No session is touched.
func (r *Reconciler) ConfirmWithoutPayment(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := r.orders.GetByID(orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}

	if err := order.ApplyTransition(o, order.Event{Kind: order.EventNoPaymentRequired, At: time.Now()}); err != nil {
		if errors.Is(err, order.ErrAlreadyFinal) {
			return o, nil
		}
		return nil, fmt.Errorf("apply transition: %w", err)
	}

	if err := r.orders.Update(o); err != nil {
		return nil, fmt.Errorf("persist order %s: %w", orderID, err)
	}
	return o, nil
}

// BuildSummary produces the order-summary view for a confirmed order.
func BuildSummary(o *order.Order) Summary {
	s := Summary{
		OrderID:   o.ID,
		Total:     o.Total,
		Currency:  o.Currency,
		ItemCount: o.ItemCount(),
	}
	if o.TransactionID != nil {
		s.TransactionID = *o.TransactionID
	}
	if o.ConfirmedAt != nil {
		confirmed := *o.ConfirmedAt
		s.ConfirmedAt = &confirmed
	}
	return s
}
