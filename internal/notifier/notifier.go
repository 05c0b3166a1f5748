package notifier

import "context"

// Severity classifies outgoing notifications. Urgent is reserved for
// conditions needing manual intervention, like a failed exit order while
// price sits below the stop.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityUrgent
)

// Notifier delivers human-facing alerts. Implementations must tolerate
// concurrent calls.
type Notifier interface {
	Notify(ctx context.Context, sev Severity, text string) error
}

// NoopNotifier discards all notifications. Used in tests and when no channel
// is configured.
type NoopNotifier struct{}

func NewNoopNotifier() *NoopNotifier { return &NoopNotifier{} }

func (n *NoopNotifier) Notify(context.Context, Severity, string) error { return nil }
