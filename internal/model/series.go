package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnorderedBars is returned when a bar sequence is not strictly ascending in time.
var ErrUnorderedBars = errors.New("bars must be in ascending time order without duplicates")

// SeriesSnapshot holds an instrument's bar history plus derived values.
// A snapshot is never mutated after construction; when new bars arrive a
// replacement snapshot is built from the full sequence.
type SeriesSnapshot struct {
	Symbol string
	Bars   []Bar

	SMA50  float64
	SMA150 float64
	SMA200 float64
	// SMA200Back is the 200-period MA as of MA200Lookback periods ago,
	// used to confirm the long-term trend is rising.
	SMA200Back float64

	High52w float64
	Low52w  float64

	BuiltAt time.Time
}

// MA200Lookback is how many periods back the 200-period MA is sampled
// to decide whether the long-term trend is rising.
const MA200Lookback = 30

// NewSeriesSnapshot validates the bar sequence and computes derived values.
// Short histories are allowed: derived values that cannot be computed stay zero,
// and consumers that need a minimum history enforce it themselves.
func NewSeriesSnapshot(symbol string, bars []Bar) (*SeriesSnapshot, error) {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return nil, fmt.Errorf("%s bar %d: %w", symbol, i, ErrUnorderedBars)
		}
	}

	s := &SeriesSnapshot{
		Symbol:  symbol,
		Bars:    bars,
		BuiltAt: time.Now(),
	}

	closes := s.Closes()
	s.SMA50 = trailingMean(closes, 50, 0)
	s.SMA150 = trailingMean(closes, 150, 0)
	s.SMA200 = trailingMean(closes, 200, 0)
	s.SMA200Back = trailingMean(closes, 200, MA200Lookback)

	// 52 weeks ~ 252 trading days.
	start := len(bars) - 252
	if start < 0 {
		start = 0
	}
	for i := start; i < len(bars); i++ {
		if s.High52w == 0 || bars[i].High > s.High52w {
			s.High52w = bars[i].High
		}
		if s.Low52w == 0 || bars[i].Low < s.Low52w {
			s.Low52w = bars[i].Low
		}
	}

	return s, nil
}

// Len returns the number of bars in the snapshot.
func (s *SeriesSnapshot) Len() int { return len(s.Bars) }

// Last returns the most recent bar. Callers must check Len() > 0 first.
func (s *SeriesSnapshot) Last() Bar { return s.Bars[len(s.Bars)-1] }

// Close returns the most recent closing price, or 0 for an empty series.
func (s *SeriesSnapshot) Close() float64 {
	if len(s.Bars) == 0 {
		return 0
	}
	return s.Bars[len(s.Bars)-1].Close
}

// AsOf returns the timestamp of the most recent bar.
func (s *SeriesSnapshot) AsOf() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Time
}

// Closes extracts the closing prices in bar order.
func (s *SeriesSnapshot) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// trailingMean averages the `period` values ending `offset` periods before the
// last value. Returns 0 when there is not enough data.
func trailingMean(values []float64, period, offset int) float64 {
	end := len(values) - offset
	if period <= 0 || end < period {
		return 0
	}
	sum := 0.0
	for i := end - period; i < end; i++ {
		sum += values[i]
	}
	return sum / float64(period)
}
