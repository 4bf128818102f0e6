package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/storefront/internal/gateway"
	"github.com/onnwee/storefront/internal/notify"
)

// Dispatch timing defaults.
const (
	// DefaultRedirectDelay is how long the blocked-popup fallback waits
	// before redirecting the current page.
	DefaultRedirectDelay = 2000 * time.Millisecond

	// DefaultFormCleanupDelay bounds how long a synthesized form lives when
	// the hand-off context cannot report navigation start.
	DefaultFormCleanupDelay = 1000 * time.Millisecond
)

// Default window restrictions for the hosted payment page.
var defaultWindowOptions = WindowOptions{
	Width:  760,
	Height: 900,
	Chrome: false,
}

// Dispatcher hands browser control off to the gateway's hosted page using
// exactly one of form hand-off (session carries form data) or direct
// hand-off (payment URL in a new restricted context).
type Dispatcher struct {
	launcher         Launcher
	notifier         notify.Notifier
	logger           *slog.Logger
	redirectDelay    time.Duration
	formCleanupDelay time.Duration
}

// NewDispatcher creates a dispatcher. A nil logger uses slog.Default.
func NewDispatcher(launcher Launcher, notifier notify.Notifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		launcher:         launcher,
		notifier:         notifier,
		logger:           logger,
		redirectDelay:    DefaultRedirectDelay,
		formCleanupDelay: DefaultFormCleanupDelay,
	}
}

// SetDelays overrides the fallback-redirect and form-cleanup delays.
func (d *Dispatcher) SetDelays(redirect, formCleanup time.Duration) {
	if redirect > 0 {
		d.redirectDelay = redirect
	}
	if formCleanup > 0 {
		d.formCleanupDelay = formCleanup
	}
}

// Dispatch hands off control for the session. Opening a new hand-off
// context always replaces any previously tracked context for the attempt.
// A blocked direct hand-off is handled with a delayed redirect of the
// current page and a non-fatal warning; it is not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, att *Attempt, session *gateway.Session) error {
	ctx = withAttemptID(ctx, att.ID())

	if len(session.FormData) > 0 {
		return d.dispatchForm(ctx, att, session)
	}
	return d.dispatchWindow(ctx, att, session)
}

func (d *Dispatcher) dispatchForm(ctx context.Context, att *Attempt, session *gateway.Session) error {
	h, err := d.launcher.SubmitForm(ctx, session.PaymentURL, session.FormData)
	if err != nil {
		return fmt.Errorf("form hand-off: %w", err)
	}

	att.trackHandoff(h)
	d.logger.InfoContext(ctx, "dispatched form hand-off",
		"attempt_id", att.ID(),
		"session_id", session.SessionID,
		"fields", len(session.FormData),
	)

	if owner, ok := h.(FormOwner); ok {
		d.scheduleFormCleanup(h, owner)
	}
	return nil
}

// scheduleFormCleanup removes the synthesized form once navigation to the
// hosted page has started, falling back to a fixed delay when the context
// cannot report it. Cleanup never blocks on the new context finishing
// navigation.
func (d *Dispatcher) scheduleFormCleanup(h Handoff, owner FormOwner) {
	var nav <-chan struct{}
	if aware, ok := h.(NavigationAware); ok {
		nav = aware.NavigationStarted()
	}

	go func() {
		timer := time.NewTimer(d.formCleanupDelay)
		defer timer.Stop()
		select {
		case <-nav:
		case <-timer.C:
		}
		owner.RemoveForm()
	}()
}

func (d *Dispatcher) dispatchWindow(ctx context.Context, att *Attempt, session *gateway.Session) error {
	h, err := d.launcher.OpenWindow(ctx, session.PaymentURL, defaultWindowOptions)
	if errors.Is(err, ErrHandoffBlocked) || (err == nil && h == nil) {
		d.fallbackRedirect(ctx, att, session)
		return nil
	}
	if err != nil {
		return fmt.Errorf("direct hand-off: %w", err)
	}

	att.trackHandoff(h)
	d.logger.InfoContext(ctx, "dispatched direct hand-off",
		"attempt_id", att.ID(),
		"session_id", session.SessionID,
	)
	return nil
}

// fallbackRedirect redirects the current page after a short delay when the
// hand-off context was blocked. The warning is user-visible but non-fatal;
// the attempt continues.
func (d *Dispatcher) fallbackRedirect(ctx context.Context, att *Attempt, session *gateway.Session) {
	d.logger.WarnContext(ctx, "hand-off context blocked, falling back to redirect",
		"attempt_id", att.ID(),
		"session_id", session.SessionID,
		"delay", d.redirectDelay,
	)
	d.notifier.Notify(ctx, "Your browser blocked the payment window. Redirecting you to the payment page...", notify.SeverityWarning)

	redirectCtx := context.WithoutCancel(ctx)
	url := session.PaymentURL
	time.AfterFunc(d.redirectDelay, func() {
		if err := d.launcher.Redirect(redirectCtx, url); err != nil {
			d.logger.Error("fallback redirect failed", "attempt_id", att.ID(), "error", err)
		}
	})
}
