package checkout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/storefront/internal/gateway"
)

// Polling defaults.
const (
	// DefaultPollInterval is the cadence of session status queries.
	DefaultPollInterval = 3 * time.Second

	// DefaultQueryTimeout bounds a single status query.
	DefaultQueryTimeout = 10 * time.Second
)

// OutcomeKind classifies a terminal polling outcome.
type OutcomeKind string

// Terminal outcomes.
const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Outcome is the terminal condition a poll loop observed.
type Outcome struct {
	Kind          OutcomeKind
	Message       string // Empty for success and cancellation
	TransactionID string
	SessionStatus gateway.SessionStatus
}

// Poller repeatedly queries session status and watches the hand-off
// context's lifecycle until a terminal condition.
type Poller struct {
	client       gateway.Client
	interval     time.Duration
	queryTimeout time.Duration
	maxDuration  time.Duration // 0 disables the client-side poll deadline
	logger       *slog.Logger
	metrics      *Metrics
}

// NewPoller creates a poller. Zero durations fall back to defaults; a zero
// maxDuration leaves polling bounded only by the gateway's own session
// expiry. A nil logger uses slog.Default.
func NewPoller(client gateway.Client, interval, maxDuration time.Duration, logger *slog.Logger, metrics *Metrics) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		client:       client,
		interval:     interval,
		queryTimeout: DefaultQueryTimeout,
		maxDuration:  maxDuration,
		logger:       logger,
		metrics:      metrics,
	}
}

// Start launches a poll loop for the attempt's session and returns an
// idempotent stop function. onOutcome is invoked at most once, with the
// terminal condition.
func (p *Poller) Start(att *Attempt, sessionID string, onOutcome func(Outcome)) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	stop = func() {
		once.Do(cancel)
	}

	go p.run(ctx, att, sessionID, onOutcome)
	return stop
}

func (p *Poller) run(ctx context.Context, att *Attempt, sessionID string, onOutcome func(Outcome)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if p.maxDuration > 0 {
		timer := time.NewTimer(p.maxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		// The tracked context can be replaced between ticks; a nil handoff
		// yields a nil channel, which never fires.
		var done <-chan struct{}
		if h := att.currentHandoff(); h != nil {
			done = h.Done()
		}

		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			outcome, final := p.evaluate(ctx, sessionID, done)
			if final {
				onOutcome(outcome)
				return
			}

		case <-done:
			// The context closed mid-interval. One last evaluation gives a
			// terminal status arriving in the same step precedence over
			// closure, so a payment that completed as the window shut is
			// not misclassified as cancelled.
			outcome, final := p.evaluate(ctx, sessionID, done)
			if final {
				onOutcome(outcome)
			}
			return

		case <-deadline:
			p.logger.Warn("poll deadline exceeded", "attempt_id", att.ID(), "session_id", sessionID)
			onOutcome(Outcome{
				Kind:    OutcomeFailed,
				Message: "payment not completed in time",
			})
			return
		}
	}
}

// evaluate performs one evaluation step: query the session status, then
// check context closure. Status is checked first; closure only yields
// cancellation when no terminal status was observed. Transient query errors
// are swallowed so polling survives network blips.
func (p *Poller) evaluate(ctx context.Context, sessionID string, done <-chan struct{}) (Outcome, bool) {
	qctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	res, err := p.client.GetStatus(qctx, sessionID)
	cancel()

	p.metrics.incPollTicks()

	if err != nil {
		if ctx.Err() != nil {
			// Stopped while the query was in flight.
			return Outcome{}, false
		}
		p.metrics.incPollErrors()
		p.logger.Warn("status query failed, continuing to poll", "session_id", sessionID, "error", err)
		res = nil
	}

	if res != nil {
		if outcome, final := mapStatus(res); final {
			return outcome, true
		}
	}

	select {
	case <-done:
		return Outcome{Kind: OutcomeCancelled}, true
	default:
	}

	return Outcome{}, false
}

// mapStatus translates a terminal gateway status to a polling outcome.
func mapStatus(res *gateway.StatusResult) (Outcome, bool) {
	outcome := Outcome{SessionStatus: res.Status}
	if res.TransactionID != nil {
		outcome.TransactionID = *res.TransactionID
	}

	switch res.Status {
	case gateway.SessionCompleted:
		outcome.Kind = OutcomeSuccess
		return outcome, true

	case gateway.SessionFailed, gateway.SessionDeclined:
		outcome.Kind = OutcomeFailed
		outcome.Message = res.ErrorMessage
		if outcome.Message == "" {
			outcome.Message = "payment failed"
		}
		return outcome, true

	case gateway.SessionExpired:
		outcome.Kind = OutcomeFailed
		outcome.Message = "session expired"
		return outcome, true
	}

	return Outcome{}, false
}
