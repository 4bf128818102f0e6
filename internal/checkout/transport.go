package checkout

import (
	"context"
	"errors"
)

// ErrHandoffBlocked is returned by a Launcher when a new hand-off context
// could not be created (for browsers, a blocked popup). The dispatcher
// handles it with a delayed redirect of the current page, not a hard
// failure.
var ErrHandoffBlocked = errors.New("hand-off context blocked")

// Handoff is a handle to one hand-off browsing context: the place the user
// completes payment. It is exclusively owned by the active attempt. Only
// the dispatcher creates one; only the poller or an explicit cancel closes
// it.
type Handoff interface {
	// Done is closed when the context reports closed by the user. Polling
	// treats closure without a terminal status as cancellation.
	Done() <-chan struct{}

	// Close tears the context down. It must be idempotent.
	Close() error
}

// NavigationAware is implemented by hand-off contexts that can report when
// navigation to the hosted page has started. The dispatcher uses it to gate
// synthesized-form cleanup on navigation start instead of a fixed delay.
type NavigationAware interface {
	NavigationStarted() <-chan struct{}
}

// FormOwner is implemented by hand-off contexts created from a synthesized
// form submission. RemoveForm discards the transient form; it must not
// block on the new context finishing navigation.
type FormOwner interface {
	RemoveForm()
}

// WindowOptions restrict a directly opened hand-off context.
type WindowOptions struct {
	Width   int
	Height  int
	Chrome  bool // Toolbar and menu chrome; always false for payment windows
}

// Launcher opens hand-off contexts. Implementations bridge to whatever
// frontend owns the user's browsing session.
type Launcher interface {
	// SubmitForm synthesizes a transient form with one hidden field per
	// key/value pair, targets a new context and submits it.
	SubmitForm(ctx context.Context, url string, fields map[string]string) (Handoff, error)

	// OpenWindow opens the URL in a new restricted context. Returns
	// ErrHandoffBlocked when the context cannot be created.
	OpenWindow(ctx context.Context, url string, opts WindowOptions) (Handoff, error)

	// Redirect navigates the current page to the URL. Used as the fallback
	// when OpenWindow is blocked.
	Redirect(ctx context.Context, url string) error
}
