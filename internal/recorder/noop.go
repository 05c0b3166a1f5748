package recorder

import "VCPSentinel/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordTrendScore(_ *model.TrendScore) error   { return nil }
func (n *NoopRecorder) RecordCandidate(_ *model.VCPCandidate) error  { return nil }
func (n *NoopRecorder) RecordPositionEvent(_ *PositionEvent) error   { return nil }
func (n *NoopRecorder) OpenPositions() ([]*model.Position, error)    { return nil, nil }
func (n *NoopRecorder) Close() error                                 { return nil }
