package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/storefront/internal/cart"
	"github.com/onnwee/storefront/internal/gateway"
	"github.com/onnwee/storefront/internal/notify"
	"github.com/onnwee/storefront/internal/order"
)

// Config holds the tunables for the checkout service. Zero values fall
// back to the package defaults.
type Config struct {
	DefaultCurrency  string
	AllowedMethods   []string
	PollInterval     time.Duration
	MaxPollDuration  time.Duration // 0 leaves polling bounded only by session expiry
	InitTimeout      time.Duration
	RedirectDelay    time.Duration
	FormCleanupDelay time.Duration
	TaxRateBps       int64 // Tax rate in basis points (1700 = 17%)
}

// SubmitRequest is an order submission from the storefront.
type SubmitRequest struct {
	Customer       order.Customer   `json:"customer"`
	Items          []order.LineItem `json:"items"`
	CartID         string           `json:"cart_id,omitempty"`
	Currency       string           `json:"currency,omitempty"`
	AllowedMethods []string         `json:"allowed_methods,omitempty"`
	ExpiryMinutes  int              `json:"expiry_minutes,omitempty"`
}

// SubmitResult reports the created order and, when payment is required,
// the started attempt and the hand-off directive for the frontend.
type SubmitResult struct {
	Order     *order.Order `json:"order"`
	Attempt   *Snapshot    `json:"attempt,omitempty"`
	Directive *Directive   `json:"directive,omitempty"`
	Summary   *Summary     `json:"summary,omitempty"`
}

// Service orchestrates payment attempts: session initiation, transport
// hand-off, status polling, cancellation and reconciliation. Independent
// concurrent attempts each own an independent Attempt with no cross-attempt
// synchronization.
type Service struct {
	orders      order.Repository
	launcher    Launcher
	notifier    notify.Notifier
	logger      *slog.Logger
	metrics     *Metrics
	broadcaster *EventBroadcaster

	initiator  *Initiator
	dispatcher *Dispatcher
	poller     *Poller
	reconciler *Reconciler
	refunds    *RefundInitiator

	cfg Config

	mu       sync.Mutex
	attempts map[string]*Attempt
}

// NewService wires the checkout core. A nil logger uses slog.Default; a nil
// metrics or broadcaster disables that surface.
func NewService(
	cfg Config,
	orders order.Repository,
	carts cart.Store,
	client gateway.Client,
	launcher Launcher,
	notifier notify.Notifier,
	broadcaster *EventBroadcaster,
	metrics *Metrics,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	dispatcher := NewDispatcher(launcher, notifier, logger)
	dispatcher.SetDelays(cfg.RedirectDelay, cfg.FormCleanupDelay)

	return &Service{
		orders:      orders,
		launcher:    launcher,
		notifier:    notifier,
		logger:      logger,
		metrics:     metrics,
		broadcaster: broadcaster,
		initiator:   NewInitiator(client, cfg.DefaultCurrency, cfg.AllowedMethods, cfg.InitTimeout, logger),
		dispatcher:  dispatcher,
		poller:      NewPoller(client, cfg.PollInterval, cfg.MaxPollDuration, logger, metrics),
		reconciler:  NewReconciler(orders, carts, notifier, logger),
		refunds:     NewRefundInitiator(client, logger),
		cfg:         cfg,
		attempts:    make(map[string]*Attempt),
	}
}

// Submit creates the order draft and, when the total is positive, starts a
// payment attempt: one session, one hand-off, one poller. A zero-total
// order is confirmed directly without touching the gateway.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	o := s.buildOrder(req)

	if err := s.orders.Create(o); err != nil {
		return nil, fmt.Errorf("create order draft: %w", err)
	}
	s.logger.InfoContext(ctx, "order draft created",
		"order_id", o.ID,
		"total", o.Total,
		"currency", o.Currency,
		"payment_required", o.Total > 0,
	)

	if o.Total <= 0 {
		confirmed, err := s.reconciler.ConfirmWithoutPayment(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		summary := BuildSummary(confirmed)
		return &SubmitResult{Order: confirmed, Summary: &summary}, nil
	}

	att, err := s.StartAttempt(ctx, o, req.CartID, SessionOptions{
		Currency:       req.Currency,
		AllowedMethods: req.AllowedMethods,
		ExpiryMinutes:  req.ExpiryMinutes,
	})
	if err != nil {
		// The draft stays persisted as payment_failed; retry is manual via
		// a brand-new attempt against the same order.
		return nil, err
	}

	snap := att.Snapshot()
	result := &SubmitResult{Order: o, Attempt: &snap}
	if rl, ok := s.launcher.(*RemoteLauncher); ok {
		if d, ok := rl.Directive(att.ID()); ok {
			result.Directive = &d
		}
	}
	return result, nil
}

// StartAttempt runs one payment attempt for an existing order: initiate the
// session, dispatch the hand-off, start the poller. It is also the manual
// retry path after a failed attempt.
func (s *Service) StartAttempt(ctx context.Context, o *order.Order, cartID string, opts SessionOptions) (*Attempt, error) {
	att := newAttempt(uuid.New().String(), o.ID, cartID)

	s.mu.Lock()
	s.attempts[att.ID()] = att
	s.mu.Unlock()

	s.metrics.incAttemptsStarted()

	session, err := s.initiator.Initialize(ctx, att, o, opts)
	if err != nil {
		s.broadcast(att)
		s.metrics.incOutcome(OutcomeFailed)
		if _, ferr := s.reconciler.Finalize(ctx, o.ID, cartID, Outcome{Kind: OutcomeFailed, Message: err.Error()}, nil); ferr != nil {
			s.logger.ErrorContext(ctx, "failed to reconcile after initiation failure", "order_id", o.ID, "error", ferr)
		}
		return nil, err
	}
	s.broadcast(att)

	if err := s.dispatcher.Dispatch(ctx, att, session); err != nil {
		s.logger.ErrorContext(ctx, "hand-off dispatch failed", "attempt_id", att.ID(), "error", err)
		att.finish(AttemptFailed, err.Error())
		s.broadcast(att)
		s.metrics.incOutcome(OutcomeFailed)
		if _, ferr := s.reconciler.Finalize(ctx, o.ID, cartID, Outcome{Kind: OutcomeFailed, Message: err.Error()}, session); ferr != nil {
			s.logger.ErrorContext(ctx, "failed to reconcile after dispatch failure", "order_id", o.ID, "error", ferr)
		}
		return nil, err
	}

	// Exactly one poller per attempt: tracking the new stopper stops any
	// prior one.
	stop := s.poller.Start(att, session.SessionID, func(outcome Outcome) {
		s.applyOutcome(att, outcome)
	})
	att.trackPoller(stop)

	return att, nil
}

// applyOutcome latches the poll outcome onto the attempt and reconciles the
// order. A result arriving after the attempt already reached a terminal
// state (an explicit cancel, typically) is discarded.
func (s *Service) applyOutcome(att *Attempt, outcome Outcome) {
	status := AttemptFailed
	switch outcome.Kind {
	case OutcomeSuccess:
		status = AttemptSuccess
	case OutcomeCancelled:
		status = AttemptCancelled
	}

	snap := att.Snapshot()
	if !att.finish(status, outcome.Message) {
		s.logger.Info("discarding poll outcome for concluded attempt",
			"attempt_id", att.ID(),
			"outcome", outcome.Kind,
			"status", snap.Status,
		)
		return
	}

	s.metrics.incOutcome(outcome.Kind)
	if snap.StartedAt != nil {
		s.metrics.observeAttemptDuration(time.Since(*snap.StartedAt))
	}
	s.broadcast(att)

	ctx := context.Background()
	if _, err := s.reconciler.Finalize(ctx, att.OrderID(), att.cartID, outcome, att.Session()); err != nil {
		s.logger.Error("reconciliation failed",
			"attempt_id", att.ID(),
			"order_id", att.OrderID(),
			"outcome", outcome.Kind,
			"error", err,
		)
	}

	if rl, ok := s.launcher.(*RemoteLauncher); ok {
		rl.Forget(att.ID())
	}
}

// Cancel stops the attempt's poller, closes its hand-off context and marks
// it cancelled immediately. It is fire-and-forget with respect to any
// in-flight gateway request. Calling it twice, or after a terminal state,
// is a no-op and never errors.
func (s *Service) Cancel(ctx context.Context, attemptID string) error {
	att, err := s.attempt(attemptID)
	if err != nil {
		return err
	}

	if !att.finish(AttemptCancelled, "") {
		return nil
	}

	s.metrics.incOutcome(OutcomeCancelled)
	s.broadcast(att)
	s.logger.InfoContext(ctx, "payment attempt cancelled", "attempt_id", attemptID, "order_id", att.OrderID())

	if _, err := s.reconciler.Finalize(ctx, att.OrderID(), att.cartID, Outcome{Kind: OutcomeCancelled}, att.Session()); err != nil {
		return err
	}

	if rl, ok := s.launcher.(*RemoteLauncher); ok {
		rl.Forget(attemptID)
	}
	return nil
}

// Reset returns a concluded attempt to idle. A pending attempt must be
// cancelled first. Reset is part of the public contract: retry is an
// explicit operation, not a side effect of a UI refresh.
func (s *Service) Reset(ctx context.Context, attemptID string) error {
	att, err := s.attempt(attemptID)
	if err != nil {
		return err
	}

	if err := att.reset(); err != nil {
		return err
	}
	s.broadcast(att)
	s.logger.InfoContext(ctx, "payment attempt reset", "attempt_id", attemptID)
	return nil
}

// DefaultAttemptRetention is how long a concluded attempt stays queryable
// before eviction drops it from the tracked set.
const DefaultAttemptRetention = time.Hour

// EvictConcluded drops tracked attempts that reached a terminal state more
// than retention ago, and returns how many were dropped. The retention
// window keeps a concluded attempt queryable long enough for the frontend
// to render its final state; without eviction the tracked set grows with
// every submission for the life of the process. Idle and pending attempts
// are never evicted.
func (s *Service) EvictConcluded(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	evicted := 0
	for id, att := range s.attempts {
		if att.concludedBefore(cutoff) {
			delete(s.attempts, id)
			evicted++
		}
	}
	s.mu.Unlock()

	if evicted > 0 {
		s.logger.Info("concluded payment attempts evicted", "count", evicted)
	}
	return evicted
}

// RunAttemptEviction periodically evicts concluded attempts until stopChan
// closes. Run it in a goroutine alongside the server.
func (s *Service) RunAttemptEviction(interval, retention time.Duration, stopChan <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.EvictConcluded(retention)
		case <-stopChan:
			s.logger.Info("attempt eviction stopped")
			return
		}
	}
}

// HandoffClosed records that the user closed the hand-off context. The
// poller observes the closure and, absent a terminal status in the same
// evaluation step, concludes the attempt as cancelled.
func (s *Service) HandoffClosed(attemptID string) error {
	att, err := s.attempt(attemptID)
	if err != nil {
		return err
	}

	h := att.currentHandoff()
	if h == nil {
		return nil
	}
	if reporter, ok := h.(interface{ ReportClosed() }); ok {
		reporter.ReportClosed()
		return nil
	}
	return h.Close()
}

// HandoffNavigated records that navigation to the hosted page started,
// releasing any pending synthesized-form cleanup early.
func (s *Service) HandoffNavigated(attemptID string) error {
	att, err := s.attempt(attemptID)
	if err != nil {
		return err
	}

	if aware, ok := att.currentHandoff().(interface{ ReportNavigated() }); ok {
		aware.ReportNavigated()
	}
	return nil
}

// Refund issues a refund against a completed transaction. No order state
// transition is implied.
func (s *Service) Refund(ctx context.Context, transactionID string, amount *int64, reason string) (*gateway.RefundResult, error) {
	return s.refunds.Refund(ctx, transactionID, amount, reason)
}

// Snapshot returns the observable state of an attempt.
func (s *Service) Snapshot(attemptID string) (Snapshot, error) {
	att, err := s.attempt(attemptID)
	if err != nil {
		return Snapshot{}, err
	}
	return att.Snapshot(), nil
}

// Order returns the persisted order.
func (s *Service) Order(orderID string) (*order.Order, error) {
	return s.orders.GetByID(orderID)
}

func (s *Service) attempt(attemptID string) (*Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	att, ok := s.attempts[attemptID]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	return att, nil
}

// buildOrder computes totals and shapes the order draft. The draft is
// persisted as pending_payment before any gateway interaction so it exists
// even if payment later fails.
func (s *Service) buildOrder(req *SubmitRequest) *order.Order {
	var subtotal int64
	for _, item := range req.Items {
		subtotal += item.Quantity * item.UnitPrice
	}
	tax := subtotal * s.cfg.TaxRateBps / 10000
	total := subtotal + tax

	currency := req.Currency
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}

	status := order.StatusPendingPayment
	paymentStatus := order.PaymentRequired
	if total <= 0 {
		status = order.StatusPending
		paymentStatus = order.PaymentNotRequired
	}

	return &order.Order{
		Customer:      req.Customer,
		Items:         req.Items,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         total,
		Currency:      currency,
		Status:        status,
		PaymentStatus: paymentStatus,
	}
}

func (s *Service) broadcast(att *Attempt) {
	if s.broadcaster == nil {
		return
	}
	snap := att.Snapshot()
	s.broadcaster.Broadcast(&AttemptEvent{
		AttemptID: snap.AttemptID,
		OrderID:   snap.OrderID,
		Status:    snap.Status,
		Error:     snap.Error,
		At:        time.Now(),
	})
}
