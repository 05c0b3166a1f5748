package scanner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VCPSentinel/internal/collector"
	"VCPSentinel/internal/model"
	"VCPSentinel/internal/recorder"
	"VCPSentinel/internal/risk"
	"VCPSentinel/internal/screener"
)

// trendingSource serves rising daily series whose slope grows with the
// numeric suffix of the symbol, giving the ranker a known ordering.
type trendingSource struct{}

func (trendingSource) Name() string { return "trending" }

func (trendingSource) GetPriceHistory(_ context.Context, symbol string, days int) ([]model.Bar, error) {
	var idx int
	fmt.Sscanf(symbol, "SYM%d", &idx)
	step := 0.05 + float64(idx)*0.01

	now := time.Now().Truncate(24 * time.Hour)
	bars := make([]model.Bar, days)
	for i := range bars {
		c := 100 + float64(i)*step
		bars[i] = model.Bar{
			Time:   now.AddDate(0, 0, i-days),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars, nil
}

func (trendingSource) CurrentPrice(_ context.Context, symbol string) (float64, error) {
	return 100, nil
}

func testUniverse(n int) []string {
	symbols := make([]string, n)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("SYM%02d", i)
	}
	return symbols
}

func newTestScanner() *Scanner {
	return New(
		collector.NewCollector(trendingSource{}, 4),
		screener.NewRanker(screener.DefaultMinUniverse),
		screener.NewTrendEvaluator(screener.DefaultTrendConfig()),
		screener.NewDetector(screener.DefaultVCPConfig()),
		recorder.NewNoopRecorder(),
		risk.DefaultParams(),
	)
}

func TestScanner_FullPipeline(t *testing.T) {
	s := newTestScanner()

	report, err := s.Scan(context.Background(), testUniverse(30))
	require.NoError(t, err)

	assert.Equal(t, 30, report.UniverseSize)
	assert.Equal(t, 30, report.Collected)
	assert.Len(t, report.Ratings, 30)

	// The strongest risers satisfy the trend template; monotonic rises never
	// form a contraction pattern.
	assert.Greater(t, report.TrendPassed, 0)
	assert.Empty(t, report.Candidates)
}

func TestScanner_UniverseTooSmall(t *testing.T) {
	s := newTestScanner()

	_, err := s.Scan(context.Background(), testUniverse(10))
	require.Error(t, err)
	assert.ErrorIs(t, err, screener.ErrUniverseTooSmall)
}

func TestScanner_CanceledContext(t *testing.T) {
	s := newTestScanner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scan(ctx, testUniverse(30))
	assert.Error(t, err)
}
