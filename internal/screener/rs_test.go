package screener

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VCPSentinel/internal/model"
)

// rankUniverse builds n snapshots whose yearly growth increases with the
// symbol index, so the expected ranking order is known.
func rankUniverse(t *testing.T, n int) map[string]*model.SeriesSnapshot {
	t.Helper()
	universe := make(map[string]*model.SeriesSnapshot, n)
	for i := 0; i < n; i++ {
		step := 0.01 + float64(i)*0.01
		symbol := fmt.Sprintf("SYM%02d", i)
		universe[symbol] = makeSnap(t, symbol, risingCloses(260, 100, step), nil)
	}
	return universe
}

func TestRanker_UniverseTooSmall(t *testing.T) {
	r := NewRanker(DefaultMinUniverse)
	universe := rankUniverse(t, DefaultMinUniverse-1)

	_, err := r.Ratings(universe)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUniverseTooSmall)
}

func TestRanker_PercentilesOrderedByPerformance(t *testing.T) {
	r := NewRanker(DefaultMinUniverse)
	universe := rankUniverse(t, 30)

	ratings, err := r.Ratings(universe)
	require.NoError(t, err)
	require.Len(t, ratings, 30)

	// Strongest grower ranks highest, weakest at zero.
	assert.InDelta(t, 29.0/30.0*100, ratings["SYM29"].Percentile, 1e-9)
	assert.InDelta(t, 0.0, ratings["SYM00"].Percentile, 1e-9)

	for i := 1; i < 30; i++ {
		weaker := ratings[fmt.Sprintf("SYM%02d", i-1)]
		stronger := ratings[fmt.Sprintf("SYM%02d", i)]
		assert.Greater(t, stronger.Percentile, weaker.Percentile)
		assert.Greater(t, stronger.RawRS, weaker.RawRS)
	}

	for _, rt := range ratings {
		assert.GreaterOrEqual(t, rt.Percentile, 0.0)
		assert.LessOrEqual(t, rt.Percentile, 100.0)
	}
}

func TestRanker_ShortHistoryRanksAtZero(t *testing.T) {
	r := NewRanker(DefaultMinUniverse)
	universe := rankUniverse(t, 30)
	universe["STUB"] = makeSnap(t, "STUB", risingCloses(40, 100, 0.5), nil)

	ratings, err := r.Ratings(universe)
	require.NoError(t, err)
	require.Contains(t, ratings, "STUB")

	// Raw performance of 0 beats nothing in an all-positive universe.
	assert.Zero(t, ratings["STUB"].RawRS)
	assert.InDelta(t, 0.0, ratings["STUB"].Percentile, 1e-9)
	assert.Len(t, ratings, 31)
}

func TestRanker_RatingCarriesSnapshotDate(t *testing.T) {
	r := NewRanker(DefaultMinUniverse)
	universe := rankUniverse(t, 30)

	ratings, err := r.Ratings(universe)
	require.NoError(t, err)
	for symbol, rt := range ratings {
		assert.True(t, rt.ValidFor(universe[symbol]), "%s rating should match its snapshot date", symbol)
	}
}
