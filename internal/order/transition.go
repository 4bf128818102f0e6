package order

import (
	"errors"
	"fmt"
	"time"
)

// EventKind identifies a reconciliation event applied to an order.
type EventKind string

// Reconciliation events. Every order mutation after creation goes through
// ApplyTransition with one of these; no caller patches fields directly.
const (
	EventPaymentSucceeded  EventKind = "payment_succeeded"
	EventPaymentFailed     EventKind = "payment_failed"
	EventPaymentCancelled  EventKind = "payment_cancelled"
	EventNoPaymentRequired EventKind = "no_payment_required"
)

// Event carries a reconciliation outcome into ApplyTransition.
type Event struct {
	Kind          EventKind
	SessionID     string // Gateway session that produced the outcome
	TransactionID string // Set on EventPaymentSucceeded
	Message       string // Human-readable failure message
	At            time.Time
}

var (
	// ErrAlreadyFinal is returned when the event's target state is already
	// recorded on the order. Callers treat it as an idempotent no-op.
	ErrAlreadyFinal = errors.New("order already in target terminal state")

	// ErrInvalidTransition is returned when the event is not applicable to
	// the order's current status.
	ErrInvalidTransition = errors.New("invalid order transition")
)

// ApplyTransition mutates the order according to the event. It is the single
// entry point for post-creation order mutation.
//
// Applying an event whose target state the order already holds returns
// ErrAlreadyFinal without mutating anything, which makes reconciliation
// idempotent. Confirmed and cancelled orders reject every other event with
// ErrInvalidTransition. A payment-failed order is not a dead end: a fresh
// attempt against the same order may still succeed or be abandoned, so
// payment_failed admits transitions to confirmed and cancelled.
func ApplyTransition(o *Order, ev Event) error {
	target, err := targetStatus(ev.Kind)
	if err != nil {
		return err
	}

	if o.Status == target {
		return ErrAlreadyFinal
	}
	if o.Status == StatusConfirmed || o.Status == StatusCancelled {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	switch ev.Kind {
	case EventPaymentSucceeded:
		o.Status = StatusConfirmed
		o.PaymentStatus = PaymentCompleted
		if ev.SessionID != "" {
			sessionID := ev.SessionID
			o.PaymentSessionID = &sessionID
		}
		if ev.TransactionID != "" {
			txID := ev.TransactionID
			o.TransactionID = &txID
		}
		o.PaymentError = nil
		o.ConfirmedAt = &at

	case EventNoPaymentRequired:
		o.Status = StatusConfirmed
		o.PaymentStatus = PaymentNotRequired
		o.ConfirmedAt = &at

	case EventPaymentFailed:
		o.Status = StatusPaymentFailed
		o.PaymentStatus = PaymentFailed
		msg := ev.Message
		if msg == "" {
			msg = "payment failed"
		}
		o.PaymentError = &msg

	case EventPaymentCancelled:
		o.Status = StatusCancelled
		o.PaymentStatus = PaymentCancelled
		o.CancelledAt = &at
	}

	o.UpdatedAt = &at
	return nil
}

// targetStatus maps an event kind to the order status it produces.
func targetStatus(kind EventKind) (Status, error) {
	switch kind {
	case EventPaymentSucceeded, EventNoPaymentRequired:
		return StatusConfirmed, nil
	case EventPaymentFailed:
		return StatusPaymentFailed, nil
	case EventPaymentCancelled:
		return StatusCancelled, nil
	default:
		return "", fmt.Errorf("%w: unknown event kind %q", ErrInvalidTransition, kind)
	}
}
