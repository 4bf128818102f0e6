package gateway

import "context"

// CreateSessionRequest carries the order summary and options for session
// creation.
type CreateSessionRequest struct {
	OrderID        string            `json:"order_id"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	AllowedMethods []string          `json:"allowed_methods,omitempty"`
	ExpiryMinutes  int               `json:"expiry_minutes,omitempty"`
	Description    string            `json:"description,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// RefundRequest carries a refund against a completed transaction.
// A nil Amount requests a full refund, per gateway semantics.
type RefundRequest struct {
	TransactionID string `json:"transaction_id"`
	Amount        *int64 `json:"amount,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// Client is an interface for gateway operations to enable testing with mocks.
type Client interface {
	CreateSession(ctx context.Context, req *CreateSessionRequest) (*Session, error)
	GetStatus(ctx context.Context, sessionID string) (*StatusResult, error)
	Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error)
}
