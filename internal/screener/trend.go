package screener

import (
	"errors"
	"fmt"
	"time"

	"VCPSentinel/internal/calculator"
	"VCPSentinel/internal/model"
)

// ErrInsufficientHistory is returned when a snapshot is too short to evaluate.
// Callers skip the instrument and continue; this is a data-quality condition,
// not a pipeline fault.
var ErrInsufficientHistory = errors.New("insufficient price history")

// minTrendHistory is the shortest snapshot the trend template accepts: the
// 200-period MA plus the lookback needed to confirm it is rising.
const minTrendHistory = 200 + model.MA200Lookback

// TrendConfig tunes the trend template thresholds.
type TrendConfig struct {
	MinRSRating      float64 // criterion 7 threshold
	Above52wLowPct   float64 // criterion 5: min % above the 52-week low
	Within52wHighPct float64 // criterion 6: max % below the 52-week high
	BaseProxyBars    int     // criterion 8 proxy: consecutive closes above the 50MA
}

// DefaultTrendConfig returns the standard template thresholds.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		MinRSRating:      70,
		Above52wLowPct:   30,
		Within52wHighPct: 25,
		BaseProxyBars:    5,
	}
}

// TrendEvaluator scores a series snapshot against the eight-criterion trend
// template. It is stateless: the same snapshot and rating always produce the
// same score.
type TrendEvaluator struct {
	cfg TrendConfig
}

// NewTrendEvaluator creates an evaluator with the given thresholds.
func NewTrendEvaluator(cfg TrendConfig) *TrendEvaluator {
	if cfg.MinRSRating == 0 {
		cfg.MinRSRating = 70
	}
	if cfg.Above52wLowPct == 0 {
		cfg.Above52wLowPct = 30
	}
	if cfg.Within52wHighPct == 0 {
		cfg.Within52wHighPct = 25
	}
	if cfg.BaseProxyBars <= 0 {
		cfg.BaseProxyBars = 5
	}
	return &TrendEvaluator{cfg: cfg}
}

// Evaluate checks every criterion against the latest bar and moving averages.
// baseLow is the detected base boundary when a VCP result exists for the
// instrument; pass 0 when none is known yet and the evaluator falls back to
// the documented proxy (close above the 50MA for BaseProxyBars consecutive
// periods).
func (e *TrendEvaluator) Evaluate(snap *model.SeriesSnapshot, rs *model.RSRating, baseLow float64) (*model.TrendScore, error) {
	if snap.Len() < minTrendHistory {
		return nil, fmt.Errorf("%s: %d bars (need %d): %w", snap.Symbol, snap.Len(), minTrendHistory, ErrInsufficientHistory)
	}

	closePrice := snap.Close()

	var c model.TrendCriteria
	c.CloseAbove150And200 = closePrice > snap.SMA150 && snap.SMA150 > snap.SMA200
	c.CloseAbove50 = closePrice > snap.SMA50
	c.MAAlignment = snap.SMA50 > snap.SMA150 && snap.SMA150 > snap.SMA200
	c.MA200Rising = snap.SMA200Back > 0 && snap.SMA200 > snap.SMA200Back
	c.Above52wLow = snap.Low52w > 0 && closePrice >= snap.Low52w*(1+e.cfg.Above52wLowPct/100)
	c.Near52wHigh = snap.High52w > 0 && closePrice >= snap.High52w*(1-e.cfg.Within52wHighPct/100)

	// A rating computed against a universe snapshot of a different date is
	// invalid and must not satisfy the template.
	c.RSAboveThreshold = rs != nil && rs.ValidFor(snap) && rs.Percentile >= e.cfg.MinRSRating

	if baseLow > 0 {
		c.AboveBase = closePrice > baseLow
	} else {
		c.AboveBase = e.aboveBaseProxy(snap)
	}

	score := &model.TrendScore{
		Symbol:     snap.Symbol,
		Criteria:   c,
		Passed:     c.All(),
		ComputedAt: time.Now(),
	}
	if rs != nil {
		score.RSRating = rs.Percentile
	}
	return score, nil
}

// aboveBaseProxy reports whether the close has held above the 50-period MA
// for the configured number of consecutive bars.
func (e *TrendEvaluator) aboveBaseProxy(snap *model.SeriesSnapshot) bool {
	closes := snap.Closes()
	for offset := 0; offset < e.cfg.BaseProxyBars; offset++ {
		sma, err := calculator.CalculateSMAAt(closes, 50, offset)
		if err != nil {
			return false
		}
		if closes[len(closes)-1-offset] <= sma {
			return false
		}
	}
	return true
}
