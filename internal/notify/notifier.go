// Package notify provides the notification surface for user-visible
// messages raised during checkout.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Severity classifies a notification.
type Severity string

// Notification severities.
const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier delivers a human-readable message to the user surface.
type Notifier interface {
	Notify(ctx context.Context, message string, severity Severity)
}

// SlogNotifier implements Notifier by logging through slog. It is the
// default surface when no frontend channel is attached.
type SlogNotifier struct {
	logger *slog.Logger
}

// NewSlogNotifier creates a notifier over the given logger.
// A nil logger uses slog.Default.
func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogNotifier{logger: logger}
}

// Notify logs the message at a level matching its severity.
func (n *SlogNotifier) Notify(ctx context.Context, message string, severity Severity) {
	switch severity {
	case SeverityError:
		n.logger.ErrorContext(ctx, "user notification", "message", message, "severity", severity)
	case SeverityWarning:
		n.logger.WarnContext(ctx, "user notification", "message", message, "severity", severity)
	default:
		n.logger.InfoContext(ctx, "user notification", "message", message, "severity", severity)
	}
}

// Recorder implements Notifier by recording notifications in memory.
// Used in tests to assert on surfaced messages.
type Recorder struct {
	mu       sync.Mutex
	Messages []Recorded
}

// Recorded is a captured notification.
type Recorded struct {
	Message  string
	Severity Severity
}

// Notify records the notification.
func (r *Recorder) Notify(_ context.Context, message string, severity Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, Recorded{Message: message, Severity: severity})
}

// Count returns the number of recorded notifications.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Messages)
}
