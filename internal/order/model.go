// Package order provides the order model and the single-entry state machine
// that reconciles persisted orders with payment outcomes.
package order

import "time"

// Status represents the lifecycle status of an order.
type Status string

// Order statuses. Confirmed and Cancelled are terminal; PaymentFailed is
// settled but a new attempt may still move the order forward.
const (
	StatusPending        Status = "pending"
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusPaymentFailed  Status = "payment_failed"
	StatusCancelled      Status = "cancelled"
)

// PaymentStatus represents the payment outcome recorded on an order.
type PaymentStatus string

// Payment statuses.
const (
	PaymentNotRequired PaymentStatus = "not_required"
	PaymentRequired    PaymentStatus = "required"
	PaymentCompleted   PaymentStatus = "completed"
	PaymentFailed      PaymentStatus = "failed"
	PaymentCancelled   PaymentStatus = "cancelled"
)

// LineItem is a single purchased item on an order.
type LineItem struct {
	Ref       string `json:"ref"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unit_price"` // In agorot/cents
}

// Customer holds the buyer details captured at submission.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Order is the persisted order draft. It is created optimistically with
// status pending_payment before any gateway interaction, so the record
// exists even if payment later fails.
type Order struct {
	ID               string        `json:"id"`
	Customer         Customer      `json:"customer"`
	Items            []LineItem    `json:"items"`
	Subtotal         int64         `json:"subtotal"`
	Tax              int64         `json:"tax"`
	Total            int64         `json:"total"`
	Currency         string        `json:"currency"`
	Status           Status        `json:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	PaymentSessionID *string       `json:"payment_session_id,omitempty"`
	TransactionID    *string       `json:"transaction_id,omitempty"`
	PaymentError     *string       `json:"payment_error,omitempty"`
	CreatedAt        *time.Time    `json:"created_at,omitempty"`
	UpdatedAt        *time.Time    `json:"updated_at,omitempty"`
	ConfirmedAt      *time.Time    `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty"`
}

// IsTerminal reports whether the order carries a settled payment outcome.
// A payment-failed order is settled but still retryable: ApplyTransition
// accepts a later success or cancellation from a fresh attempt.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case StatusConfirmed, StatusPaymentFailed, StatusCancelled:
		return true
	}
	return false
}

// ItemCount returns the total quantity across all line items.
func (o *Order) ItemCount() int64 {
	var n int64
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}
