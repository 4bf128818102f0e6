package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/onnwee/storefront/internal/gateway"
)

// ErrNoTransaction is returned when a refund is attempted without a
// recorded transaction ID. The precondition is resolved locally, without
// any network call.
var ErrNoTransaction = errors.New("no transaction to refund")

// RefundInitiator issues refund requests against completed transactions.
type RefundInitiator struct {
	client gateway.Client
	logger *slog.Logger
}

// NewRefundInitiator creates a refund initiator. A nil logger uses
// slog.Default.
func NewRefundInitiator(client gateway.Client, logger *slog.Logger) *RefundInitiator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefundInitiator{client: client, logger: logger}
}

// Refund requests a refund for a transaction. A nil amount requests a full
// refund, per gateway semantics. No order state transition is implied; any
// follow-up order update is the caller's responsibility.
func (r *RefundInitiator) Refund(ctx context.Context, transactionID string, amount *int64, reason string) (*gateway.RefundResult, error) {
	if transactionID == "" {
		return nil, ErrNoTransaction
	}

	result, err := r.client.Refund(ctx, &gateway.RefundRequest{
		TransactionID: transactionID,
		Amount:        amount,
		Reason:        reason,
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "refund failed", "transaction_id", transactionID, "error", err)
		return nil, fmt.Errorf("refund transaction %s: %w", transactionID, err)
	}

	r.logger.InfoContext(ctx, "refund issued",
		"transaction_id", transactionID,
		"refund_id", result.RefundID,
		"status", result.Status,
	)
	return result, nil
}
