package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/onnwee/storefront/internal/gateway"
)

// fakeClient is a scripted gateway client. Each operation delegates to an
// optional function and counts its invocations.
type fakeClient struct {
	mu          sync.Mutex
	createCalls int
	statusCalls int
	refundCalls int

	createFn func(ctx context.Context, req *gateway.CreateSessionRequest) (*gateway.Session, error)
	statusFn func(ctx context.Context, sessionID string) (*gateway.StatusResult, error)
	refundFn func(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResult, error)
}

func (c *fakeClient) CreateSession(ctx context.Context, req *gateway.CreateSessionRequest) (*gateway.Session, error) {
	c.mu.Lock()
	c.createCalls++
	fn := c.createFn
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &gateway.Session{
		SessionID:  "sess-1",
		OrderID:    req.OrderID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		PaymentURL: "https://pay.example.com/sess-1",
		Status:     gateway.SessionPending,
	}, nil
}

func (c *fakeClient) GetStatus(ctx context.Context, sessionID string) (*gateway.StatusResult, error) {
	c.mu.Lock()
	c.statusCalls++
	fn := c.statusFn
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, sessionID)
	}
	return &gateway.StatusResult{Status: gateway.SessionPending}, nil
}

func (c *fakeClient) Refund(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResult, error) {
	c.mu.Lock()
	c.refundCalls++
	fn := c.refundFn
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &gateway.RefundResult{RefundID: "re-1", Status: "refunded"}, nil
}

func (c *fakeClient) counts() (create, status, refund int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createCalls, c.statusCalls, c.refundCalls
}

// fakeLauncher records hand-off requests and hands back RemoteHandoff
// contexts, which implement every transport capability.
type fakeLauncher struct {
	mu            sync.Mutex
	formCalls     int
	windowCalls   int
	redirectCalls int

	lastFormURL   string
	lastFields    map[string]string
	lastWindowURL string
	lastWindow    WindowOptions

	openErr error // Returned by OpenWindow when set
	openNil bool  // OpenWindow returns (nil, nil) when set

	handoffs   []*RemoteHandoff
	redirected chan string
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{redirected: make(chan string, 1)}
}

func (l *fakeLauncher) SubmitForm(_ context.Context, url string, fields map[string]string) (Handoff, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.formCalls++
	l.lastFormURL = url
	l.lastFields = fields
	h := newRemoteHandoff()
	l.handoffs = append(l.handoffs, h)
	return h, nil
}

func (l *fakeLauncher) OpenWindow(_ context.Context, url string, opts WindowOptions) (Handoff, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windowCalls++
	l.lastWindowURL = url
	l.lastWindow = opts
	if l.openErr != nil {
		return nil, l.openErr
	}
	if l.openNil {
		return nil, nil
	}
	h := newRemoteHandoff()
	l.handoffs = append(l.handoffs, h)
	return h, nil
}

func (l *fakeLauncher) Redirect(_ context.Context, url string) error {
	l.mu.Lock()
	l.redirectCalls++
	l.mu.Unlock()
	select {
	case l.redirected <- url:
	default:
	}
	return nil
}

func (l *fakeLauncher) calls() (form, window, redirect int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.formCalls, l.windowCalls, l.redirectCalls
}

// countingCartStore counts Clear calls per cart ID.
type countingCartStore struct {
	mu     sync.Mutex
	clears map[string]int
}

func newCountingCartStore() *countingCartStore {
	return &countingCartStore{clears: make(map[string]int)}
}

func (s *countingCartStore) Clear(_ context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears[cartID]++
	return nil
}

func (s *countingCartStore) cleared(cartID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears[cartID]
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
