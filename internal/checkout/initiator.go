package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/storefront/internal/gateway"
	"github.com/onnwee/storefront/internal/order"
	"github.com/onnwee/storefront/internal/tracing"
)

// Session initiation defaults.
const (
	// DefaultExpiryMinutes is the session expiry requested from the gateway.
	DefaultExpiryMinutes = 30

	// DefaultInitTimeout bounds the single session-create call.
	DefaultInitTimeout = 20 * time.Second
)

// Validation errors raised before any network call.
var (
	// ErrNoLineItems is returned when the order carries no line items.
	ErrNoLineItems = errors.New("order has no line items")

	// ErrNoTotal is returned when the order total is not positive.
	ErrNoTotal = errors.New("order total must be positive")
)

// SessionOptions supply per-attempt overrides for session creation.
// Zero values fall back to configured defaults.
type SessionOptions struct {
	Currency       string
	AllowedMethods []string
	ExpiryMinutes  int
}

// Initiator requests payment sessions from the gateway.
type Initiator struct {
	client          gateway.Client
	defaultCurrency string
	defaultMethods  []string
	timeout         time.Duration
	logger          *slog.Logger
}

// NewInitiator creates an initiator. A zero timeout uses DefaultInitTimeout;
// a nil logger uses slog.Default.
func NewInitiator(client gateway.Client, defaultCurrency string, defaultMethods []string, timeout time.Duration, logger *slog.Logger) *Initiator {
	if timeout <= 0 {
		timeout = DefaultInitTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Initiator{
		client:          client,
		defaultCurrency: defaultCurrency,
		defaultMethods:  defaultMethods,
		timeout:         timeout,
		logger:          logger,
	}
}

// Initialize requests a session from the gateway for the order. It issues
// exactly one network call bounded by a single timeout; a charge-initiating
// call is never silently repeated. The attempt is optimistically marked
// pending before the session is returned; on failure it is marked failed
// with the captured error message.
func (i *Initiator) Initialize(ctx context.Context, att *Attempt, o *order.Order, opts SessionOptions) (*gateway.Session, error) {
	if len(o.Items) == 0 {
		att.finish(AttemptFailed, ErrNoLineItems.Error())
		return nil, ErrNoLineItems
	}
	if o.Total <= 0 {
		att.finish(AttemptFailed, ErrNoTotal.Error())
		return nil, ErrNoTotal
	}

	currency := opts.Currency
	if currency == "" {
		currency = i.defaultCurrency
	}
	methods := opts.AllowedMethods
	if len(methods) == 0 {
		methods = i.defaultMethods
	}
	expiry := opts.ExpiryMinutes
	if expiry <= 0 {
		expiry = DefaultExpiryMinutes
	}

	att.markPending()

	ctx, endSpan := tracing.StartSpan(ctx, "create_payment_session")
	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	session, err := i.client.CreateSession(callCtx, &gateway.CreateSessionRequest{
		OrderID:        o.ID,
		Amount:         o.Total,
		Currency:       currency,
		AllowedMethods: methods,
		ExpiryMinutes:  expiry,
	})
	endSpan(err)
	if err != nil {
		i.logger.ErrorContext(ctx, "session creation failed",
			"attempt_id", att.ID(),
			"order_id", o.ID,
			"error", err,
		)
		att.finish(AttemptFailed, err.Error())
		return nil, fmt.Errorf("create payment session: %w", err)
	}

	att.setSession(session)
	i.logger.InfoContext(ctx, "payment session created",
		"attempt_id", att.ID(),
		"order_id", o.ID,
		"session_id", session.SessionID,
		"amount", session.Amount,
		"currency", session.Currency,
	)
	return session, nil
}
