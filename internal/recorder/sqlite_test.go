package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VCPSentinel/internal/model"
)

func newTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSQLiteRecorder_ScanRecords(t *testing.T) {
	r := newTestRecorder(t)

	require.NoError(t, r.RecordTrendScore(&model.TrendScore{
		Symbol:     "TEST",
		Passed:     true,
		RSRating:   88,
		ComputedAt: time.Now(),
		Criteria:   model.TrendCriteria{CloseAbove50: true},
	}))

	require.NoError(t, r.RecordCandidate(&model.VCPCandidate{
		Symbol:            "TEST",
		Score:             85,
		PivotPrice:        96,
		BaseLow:           80,
		DepthPct:          20,
		ContractionRatios: []float64{20, 10, 4},
		VolumeDryUp:       true,
		DetectedAt:        time.Now(),
		SuggestedStop:     78.4,
	}))
}

func TestSQLiteRecorder_PositionLifecycle(t *testing.T) {
	r := newTestRecorder(t)

	pos := &model.Position{
		Symbol:        "TEST",
		EntryPrice:    97,
		Quantity:      294,
		EntryTime:     time.Now().Truncate(time.Second),
		InitialStop:   90.21,
		CurrentStop:   90.21,
		StopLevel:     0,
		HighWaterMark: 97,
	}
	require.NoError(t, r.RecordPositionEvent(&PositionEvent{
		EventType: EventOpened,
		Position:  pos,
		Price:     97,
	}))

	open, err := r.OpenPositions()
	require.NoError(t, err)
	require.Len(t, open, 1)
	got := open[0]
	assert.Equal(t, "TEST", got.Symbol)
	assert.Equal(t, 294, got.Quantity)
	assert.InDelta(t, 97.0, got.EntryPrice, 1e-9)
	assert.InDelta(t, 90.21, got.CurrentStop, 1e-9)
	assert.Equal(t, 0, got.StopLevel)
	assert.Equal(t, pos.EntryTime.Unix(), got.EntryTime.Unix())

	// Stop advance upserts the open-position row.
	pos.CurrentStop = 108.9
	pos.StopLevel = 3
	pos.HighWaterMark = 121
	require.NoError(t, r.RecordPositionEvent(&PositionEvent{
		EventType: EventLevelUp,
		Position:  pos,
		Price:     121,
	}))

	open, err = r.OpenPositions()
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.InDelta(t, 108.9, open[0].CurrentStop, 1e-9)
	assert.Equal(t, 3, open[0].StopLevel)
	assert.InDelta(t, 121.0, open[0].HighWaterMark, 1e-9)

	// Closing removes it.
	require.NoError(t, r.RecordPositionEvent(&PositionEvent{
		EventType: EventClosed,
		Position:  pos,
		Price:     110,
		RMultiple: 1.9,
		Note:      "trailing stop at level 3",
	}))
	open, err = r.OpenPositions()
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestSQLiteRecorder_RejectionLeavesNoOpenPosition(t *testing.T) {
	r := newTestRecorder(t)

	require.NoError(t, r.RecordPositionEvent(&PositionEvent{
		EventType: EventRejected,
		Position:  &model.Position{Symbol: "TEST"},
		Price:     97,
		Note:      "max positions reached (8/8)",
	}))

	open, err := r.OpenPositions()
	require.NoError(t, err)
	assert.Empty(t, open)
}
