package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dailyBars(closes []float64) []Bar {
	now := time.Now().Truncate(24 * time.Hour)
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{
			Time:   now.AddDate(0, 0, i-len(closes)),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func TestNewSeriesSnapshot_RejectsUnorderedBars(t *testing.T) {
	bars := dailyBars([]float64{1, 2, 3})
	bars[2].Time = bars[1].Time // duplicate timestamp

	_, err := NewSeriesSnapshot("TEST", bars)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnorderedBars)
}

func TestNewSeriesSnapshot_DerivedValues(t *testing.T) {
	closes := make([]float64, 260)
	for i := range closes {
		closes[i] = 100
	}
	snap, err := NewSeriesSnapshot("FLAT", dailyBars(closes))
	require.NoError(t, err)

	assert.InDelta(t, 100.0, snap.SMA50, 1e-9)
	assert.InDelta(t, 100.0, snap.SMA150, 1e-9)
	assert.InDelta(t, 100.0, snap.SMA200, 1e-9)
	assert.InDelta(t, 100.0, snap.SMA200Back, 1e-9)
	assert.InDelta(t, 101.0, snap.High52w, 1e-9)
	assert.InDelta(t, 99.0, snap.Low52w, 1e-9)
	assert.Equal(t, 100.0, snap.Close())
}

func TestNewSeriesSnapshot_ShortHistoryLeavesZeroes(t *testing.T) {
	snap, err := NewSeriesSnapshot("SHORT", dailyBars([]float64{10, 11, 12}))
	require.NoError(t, err)

	assert.Zero(t, snap.SMA50)
	assert.Zero(t, snap.SMA200)
	assert.Zero(t, snap.SMA200Back)
	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, 12.0, snap.Close())
}

func TestNewSeriesSnapshot_RisingSeriesOrdersAverages(t *testing.T) {
	closes := make([]float64, 260)
	for i := range closes {
		closes[i] = 50 + float64(i)*0.25
	}
	snap, err := NewSeriesSnapshot("UP", dailyBars(closes))
	require.NoError(t, err)

	assert.Greater(t, snap.Close(), snap.SMA50)
	assert.Greater(t, snap.SMA50, snap.SMA150)
	assert.Greater(t, snap.SMA150, snap.SMA200)
	assert.Greater(t, snap.SMA200, snap.SMA200Back)
}

func TestTrendCriteria_AllAndMet(t *testing.T) {
	var c TrendCriteria
	assert.False(t, c.All())
	assert.Equal(t, 0, c.Met())

	c = TrendCriteria{
		CloseAbove150And200: true,
		CloseAbove50:        true,
		MAAlignment:         true,
		MA200Rising:         true,
		Above52wLow:         true,
		Near52wHigh:         true,
		RSAboveThreshold:    true,
		AboveBase:           true,
	}
	assert.True(t, c.All())
	assert.Equal(t, 8, c.Met())

	c.RSAboveThreshold = false
	assert.False(t, c.All())
	assert.Equal(t, 7, c.Met())
}

func TestRSRating_ValidFor(t *testing.T) {
	snap, err := NewSeriesSnapshot("TEST", dailyBars([]float64{1, 2, 3}))
	require.NoError(t, err)

	fresh := &RSRating{Symbol: "TEST", Percentile: 90, AsOf: snap.AsOf()}
	assert.True(t, fresh.ValidFor(snap))

	stale := &RSRating{Symbol: "TEST", Percentile: 90, AsOf: snap.AsOf().AddDate(0, 0, -1)}
	assert.False(t, stale.ValidFor(snap))

	var nilRating *RSRating
	assert.False(t, nilRating.ValidFor(snap))
}

func TestPosition_RMultipleAndUnrealized(t *testing.T) {
	pos := &Position{
		Symbol:      "TEST",
		EntryPrice:  100,
		InitialStop: 93,
	}
	assert.InDelta(t, 1.0, pos.RMultiple(107), 1e-9)
	assert.InDelta(t, -1.0, pos.RMultiple(93), 1e-9)
	assert.InDelta(t, 0.0, pos.RMultiple(100), 1e-9)
	assert.InDelta(t, 10.0, pos.UnrealizedPct(110), 1e-9)

	degenerate := &Position{EntryPrice: 100, InitialStop: 100}
	assert.Zero(t, degenerate.RMultiple(120))
}
