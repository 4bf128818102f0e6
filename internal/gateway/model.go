// Package gateway provides the client for the external, redirect-based
// payment gateway. The gateway is an opaque remote service reached through
// three operations: session create, status query and refund.
package gateway

import (
	"errors"
	"time"
)

// SessionStatus represents the gateway-side status of a payment session.
type SessionStatus string

// Session statuses reported by the gateway. Completed, Failed, Declined and
// Expired are terminal.
const (
	SessionPending   SessionStatus = "pending"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionDeclined  SessionStatus = "declined"
	SessionExpired   SessionStatus = "expired"
)

// IsTerminal reports whether the status admits no further polling.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionCompleted, SessionFailed, SessionDeclined, SessionExpired:
		return true
	}
	return false
}

// Session is the local read-through copy of a gateway payment session.
// It is created once per attempt and refreshed only by applying poll
// responses.
type Session struct {
	SessionID      string            `json:"session_id"`
	OrderID        string            `json:"order_id"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	AllowedMethods []string          `json:"allowed_methods,omitempty"`
	ExpiresAt      *time.Time        `json:"expires_at,omitempty"`
	PaymentURL     string            `json:"payment_url"`
	FormData       map[string]string `json:"form_data,omitempty"` // Transport hint: present => form hand-off
	Status         SessionStatus     `json:"status"`
	TransactionID  *string           `json:"transaction_id,omitempty"`
}

// StatusResult is the response to a status query.
type StatusResult struct {
	Status        SessionStatus `json:"status"`
	TransactionID *string       `json:"transaction_id,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// RefundResult is the response to a refund request.
type RefundResult struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

// Gateway errors.
var (
	// ErrUnavailable is returned when the gateway could not be reached.
	ErrUnavailable = errors.New("payment gateway unavailable")

	// ErrTimeout is returned when a gateway call exceeded its deadline.
	ErrTimeout = errors.New("payment gateway timeout")

	// ErrSessionNotFound is returned when the gateway does not know the session.
	ErrSessionNotFound = errors.New("payment session not found")
)
