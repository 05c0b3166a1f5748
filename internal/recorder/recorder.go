package recorder

import (
	"VCPSentinel/internal/model"
)

// Position event types written to the audit log.
const (
	EventOpened     = "OPENED"
	EventStopRaised = "STOP_RAISED"
	EventLevelUp    = "LEVEL_UP"
	EventClosed     = "CLOSED"
	EventRejected   = "REJECTED"
)

// PositionEvent is one row of the position audit log. Position carries the
// full state after the event so any point in a position's life can be
// reconstructed from a single row.
type PositionEvent struct {
	EventType string
	Position  *model.Position
	Price     float64 // price that triggered the event
	RMultiple float64 // set on CLOSED events
	Note      string
}

// Recorder persists scan results and position history. Implementations must
// be safe for concurrent use; the coordinator records from multiple
// goroutines.
type Recorder interface {
	RecordTrendScore(score *model.TrendScore) error
	RecordCandidate(cand *model.VCPCandidate) error
	RecordPositionEvent(evt *PositionEvent) error
	OpenPositions() ([]*model.Position, error)
	Close() error
}
