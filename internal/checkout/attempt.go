// Package checkout implements payment-session orchestration: session
// initiation, hand-off to the gateway's hosted page, status polling,
// cancellation and reconciliation of the persisted order with the eventual
// payment outcome.
package checkout

import (
	"errors"
	"sync"
	"time"

	"github.com/onnwee/storefront/internal/gateway"
)

// AttemptStatus is the lifecycle status of one payment attempt.
type AttemptStatus string

// Attempt statuses. Success, Failed and Cancelled are terminal: an attempt
// leaves them only through an explicit Reset or a brand-new attempt.
const (
	AttemptIdle      AttemptStatus = "idle"
	AttemptPending   AttemptStatus = "pending"
	AttemptSuccess   AttemptStatus = "success"
	AttemptFailed    AttemptStatus = "failed"
	AttemptCancelled AttemptStatus = "cancelled"
)

// IsTerminal reports whether the status admits no transition without reset.
func (s AttemptStatus) IsTerminal() bool {
	switch s {
	case AttemptSuccess, AttemptFailed, AttemptCancelled:
		return true
	}
	return false
}

// Attempt errors.
var (
	// ErrAttemptNotFound is returned when an attempt is not tracked.
	ErrAttemptNotFound = errors.New("payment attempt not found")

	// ErrAttemptNotTerminal is returned when Reset is called on an attempt
	// that is still pending.
	ErrAttemptNotTerminal = errors.New("payment attempt still in flight")
)

// Attempt is the in-memory state of one in-flight payment attempt. It
// exclusively owns the hand-off context handle and the active poll stopper;
// no other component mutates either. Exactly one Attempt is live per
// in-flight attempt.
type Attempt struct {
	mu sync.Mutex

	id      string
	orderID string
	cartID  string

	status  AttemptStatus
	errMsg  string
	session *gateway.Session

	handoff  Handoff
	stopPoll func()

	startedAt time.Time
	endedAt   *time.Time
}

func newAttempt(id, orderID, cartID string) *Attempt {
	return &Attempt{
		id:      id,
		orderID: orderID,
		cartID:  cartID,
		status:  AttemptIdle,
	}
}

// ID returns the attempt identifier.
func (a *Attempt) ID() string { return a.id }

// OrderID returns the order this attempt pays for.
func (a *Attempt) OrderID() string { return a.orderID }

// Status returns the current lifecycle status.
func (a *Attempt) Status() AttemptStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Session returns the gateway session tracked for this attempt, or nil.
func (a *Attempt) Session() *gateway.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// markPending moves the attempt into pending before the session exists.
// Session creation is optimistic: the status is set before the gateway
// responds.
func (a *Attempt) markPending() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = AttemptPending
	a.errMsg = ""
	a.startedAt = time.Now()
	a.endedAt = nil
}

// setSession records the created gateway session.
func (a *Attempt) setSession(s *gateway.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = s
}

// trackHandoff takes ownership of a new hand-off context, closing any
// previously tracked one. Only one context is ever tracked per attempt.
func (a *Attempt) trackHandoff(h Handoff) {
	a.mu.Lock()
	prev := a.handoff
	a.handoff = h
	a.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
}

// currentHandoff returns the tracked hand-off context, or nil.
func (a *Attempt) currentHandoff() Handoff {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handoff
}

// trackPoller takes ownership of a new poll stopper, stopping any previous
// poller first. At most one poller is alive per attempt.
func (a *Attempt) trackPoller(stop func()) {
	a.mu.Lock()
	prev := a.stopPoll
	a.stopPoll = stop
	a.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// finish latches a terminal status. It returns false without mutating
// anything when the attempt is already terminal, so a result racing an
// explicit cancel is discarded deterministically: whichever latched first
// wins.
func (a *Attempt) finish(status AttemptStatus, errMsg string) bool {
	a.mu.Lock()
	if a.status.IsTerminal() {
		a.mu.Unlock()
		return false
	}
	a.status = status
	a.errMsg = errMsg
	now := time.Now()
	a.endedAt = &now
	stop := a.stopPoll
	a.stopPoll = nil
	handoff := a.handoff
	a.handoff = nil
	a.mu.Unlock()

	// Releasing the timer and context outside the lock; both are idempotent.
	if stop != nil {
		stop()
	}
	if handoff != nil {
		_ = handoff.Close()
	}
	return true
}

// reset returns the attempt to idle. Only terminal (or idle) attempts can
// be reset; a pending attempt must be cancelled first.
func (a *Attempt) reset() error {
	a.mu.Lock()
	if a.status == AttemptPending {
		a.mu.Unlock()
		return ErrAttemptNotTerminal
	}
	a.status = AttemptIdle
	a.errMsg = ""
	a.session = nil
	stop := a.stopPoll
	a.stopPoll = nil
	handoff := a.handoff
	a.handoff = nil
	a.endedAt = nil
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
	if handoff != nil {
		_ = handoff.Close()
	}
	return nil
}

// concludedBefore reports whether the attempt latched a terminal status
// before cutoff. Idle and pending attempts never qualify.
func (a *Attempt) concludedBefore(cutoff time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status.IsTerminal() && a.endedAt != nil && a.endedAt.Before(cutoff)
}

// Snapshot is a point-in-time copy of attempt state for callers.
type Snapshot struct {
	AttemptID string        `json:"attempt_id"`
	OrderID   string        `json:"order_id"`
	Status    AttemptStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}

// Snapshot returns a copy of the attempt's observable state.
func (a *Attempt) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		AttemptID: a.id,
		OrderID:   a.orderID,
		Status:    a.status,
		Error:     a.errMsg,
	}
	if a.session != nil {
		snap.SessionID = a.session.SessionID
	}
	if !a.startedAt.IsZero() {
		started := a.startedAt
		snap.StartedAt = &started
	}
	if a.endedAt != nil {
		ended := *a.endedAt
		snap.EndedAt = &ended
	}
	return snap
}
