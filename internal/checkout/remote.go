package checkout

import (
	"context"
	"sync"
)

// attemptIDKey is the context key carrying the attempt ID through dispatch.
type attemptIDKey struct{}

// withAttemptID stores the attempt ID in the context for launchers that key
// their state per attempt.
func withAttemptID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, attemptIDKey{}, id)
}

// AttemptIDFromContext returns the attempt ID set during dispatch.
// Returns empty string if not present.
func AttemptIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(attemptIDKey{}).(string); ok {
		return id
	}
	return ""
}

// DirectiveMode selects how the frontend performs the hand-off.
type DirectiveMode string

// Directive modes.
const (
	DirectiveForm     DirectiveMode = "form"
	DirectiveWindow   DirectiveMode = "window"
	DirectiveRedirect DirectiveMode = "redirect"
)

// Directive tells a remote frontend how to hand control to the gateway's
// hosted page: post a synthesized form, open a new window, or navigate the
// current page.
type Directive struct {
	Mode   DirectiveMode     `json:"mode"`
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields,omitempty"`
	Window *WindowOptions    `json:"window,omitempty"`
}

// RemoteLauncher implements Launcher for hand-off contexts that live in the
// user's browser. Launches are recorded as directives served back to the
// frontend; the frontend reports window closure and navigation start via
// the HTTP API, which feeds the poller's context-lifecycle checks.
type RemoteLauncher struct {
	mu       sync.Mutex
	launches map[string]*remoteLaunch // attempt ID -> latest launch
}

type remoteLaunch struct {
	directive Directive
	handoff   *RemoteHandoff
}

// NewRemoteLauncher creates a remote launcher.
func NewRemoteLauncher() *RemoteLauncher {
	return &RemoteLauncher{
		launches: make(map[string]*remoteLaunch),
	}
}

// SubmitForm records a form hand-off directive.
func (l *RemoteLauncher) SubmitForm(ctx context.Context, url string, fields map[string]string) (Handoff, error) {
	h := newRemoteHandoff()
	l.record(ctx, Directive{Mode: DirectiveForm, URL: url, Fields: fields}, h)
	return h, nil
}

// OpenWindow records a window hand-off directive. The browser may still
// block the window; the frontend then falls back through Redirect on its
// own directive handling.
func (l *RemoteLauncher) OpenWindow(ctx context.Context, url string, opts WindowOptions) (Handoff, error) {
	h := newRemoteHandoff()
	window := opts
	l.record(ctx, Directive{Mode: DirectiveWindow, URL: url, Window: &window}, h)
	return h, nil
}

// Redirect records a current-page redirect directive, replacing any prior
// directive for the attempt.
func (l *RemoteLauncher) Redirect(ctx context.Context, url string) error {
	l.record(ctx, Directive{Mode: DirectiveRedirect, URL: url}, nil)
	return nil
}

func (l *RemoteLauncher) record(ctx context.Context, d Directive, h *RemoteHandoff) {
	attemptID := AttemptIDFromContext(ctx)
	if attemptID == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches[attemptID] = &remoteLaunch{directive: d, handoff: h}
}

// Directive returns the latest hand-off directive for an attempt.
func (l *RemoteLauncher) Directive(attemptID string) (Directive, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	launch, ok := l.launches[attemptID]
	if !ok {
		return Directive{}, false
	}
	return launch.directive, true
}

// ReportClosed marks the attempt's hand-off context as closed by the user.
func (l *RemoteLauncher) ReportClosed(attemptID string) {
	if h := l.handoffFor(attemptID); h != nil {
		h.ReportClosed()
	}
}

// ReportNavigated marks navigation to the hosted page as started.
func (l *RemoteLauncher) ReportNavigated(attemptID string) {
	if h := l.handoffFor(attemptID); h != nil {
		h.ReportNavigated()
	}
}

// Forget drops launch state for a concluded attempt.
func (l *RemoteLauncher) Forget(attemptID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.launches, attemptID)
}

func (l *RemoteLauncher) handoffFor(attemptID string) *RemoteHandoff {
	l.mu.Lock()
	defer l.mu.Unlock()

	launch, ok := l.launches[attemptID]
	if !ok {
		return nil
	}
	return launch.handoff
}

// RemoteHandoff is a hand-off context living in the user's browser. Closure
// and navigation start are reported asynchronously by the frontend.
type RemoteHandoff struct {
	done      chan struct{}
	nav       chan struct{}
	closeOnce sync.Once
	navOnce   sync.Once
	formOnce  sync.Once
	formGone  chan struct{}
}

func newRemoteHandoff() *RemoteHandoff {
	return &RemoteHandoff{
		done:     make(chan struct{}),
		nav:      make(chan struct{}),
		formGone: make(chan struct{}),
	}
}

// Done is closed when the browser reports the window closed, or when the
// attempt closes the context itself.
func (h *RemoteHandoff) Done() <-chan struct{} { return h.done }

// Close tears the context down. Idempotent.
func (h *RemoteHandoff) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	return nil
}

// ReportClosed records that the user closed the window.
func (h *RemoteHandoff) ReportClosed() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ReportNavigated records that navigation to the hosted page started.
func (h *RemoteHandoff) ReportNavigated() {
	h.navOnce.Do(func() { close(h.nav) })
}

// NavigationStarted implements NavigationAware.
func (h *RemoteHandoff) NavigationStarted() <-chan struct{} { return h.nav }

// RemoveForm implements FormOwner. For remote contexts the synthesized form
// lives in the browser; removal here just marks it discarded.
func (h *RemoteHandoff) RemoveForm() {
	h.formOnce.Do(func() { close(h.formGone) })
}

// FormRemoved reports whether the synthesized form has been discarded.
func (h *RemoteHandoff) FormRemoved() bool {
	select {
	case <-h.formGone:
		return true
	default:
		return false
	}
}
