// Package gateway provides a Stripe-backed implementation of the gateway
// client for deployments that use Stripe Checkout as the hosted page.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/refund"
)

// StripeClient implements the Client interface using the real Stripe SDK.
// Stripe Checkout never uses form hand-off, so sessions it returns carry no
// form data and are always dispatched via direct hand-off.
type StripeClient struct {
	successURL string
	cancelURL  string
}

// NewStripeClient creates a new Stripe client with the given API key.
func NewStripeClient(apiKey, successURL, cancelURL string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// CreateSession creates a Stripe Checkout Session for the order total.
func (c *StripeClient) CreateSession(ctx context.Context, req *CreateSessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(c.successURL),
		CancelURL:  stripe.String(c.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(orderDescription(req)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(req.OrderID),
	}
	if req.ExpiryMinutes > 0 {
		params.ExpiresAt = stripe.Int64(time.Now().Add(time.Duration(req.ExpiryMinutes) * time.Minute).Unix())
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	created := &Session{
		SessionID:  sess.ID,
		OrderID:    req.OrderID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		PaymentURL: sess.URL,
		Status:     SessionPending,
	}
	if sess.ExpiresAt > 0 {
		expires := time.Unix(sess.ExpiresAt, 0)
		created.ExpiresAt = &expires
	}
	return created, nil
}

// GetStatus retrieves a Checkout Session and maps its state onto the
// gateway status vocabulary.
func (c *StripeClient) GetStatus(ctx context.Context, sessionID string) (*StatusResult, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	sess, err := session.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}

	result := &StatusResult{Status: mapStripeStatus(sess)}
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		id := sess.PaymentIntent.ID
		result.TransactionID = &id
	}
	return result, nil
}

// Refund issues a refund against a payment intent. A nil amount refunds the
// full charge.
func (c *StripeClient) Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.TransactionID),
	}
	if req.Amount != nil {
		params.Amount = stripe.Int64(*req.Amount)
	}
	if req.Reason != "" {
		params.Reason = stripe.String(req.Reason)
	}
	params.Context = ctx

	ref, err := refund.New(params)
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}

	return &RefundResult{
		RefundID: ref.ID,
		Status:   string(ref.Status),
	}, nil
}

// mapStripeStatus translates Checkout Session state to a session status.
func mapStripeStatus(sess *stripe.CheckoutSession) SessionStatus {
	switch sess.Status {
	case stripe.CheckoutSessionStatusExpired:
		return SessionExpired
	case stripe.CheckoutSessionStatusComplete:
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			return SessionCompleted
		}
		// Complete but unpaid happens for delayed payment methods.
		return SessionPending
	default:
		return SessionPending
	}
}

func orderDescription(req *CreateSessionRequest) string {
	if req.Description != "" {
		return req.Description
	}
	return "Order " + req.OrderID
}
