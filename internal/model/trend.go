package model

import "time"

// TrendCriteria holds the eight boolean trend template checks.
type TrendCriteria struct {
	CloseAbove150And200 bool // close > 150MA > 200MA
	CloseAbove50        bool // close > 50MA
	MAAlignment         bool // 50MA > 150MA > 200MA
	MA200Rising         bool // 200MA above its value 30 periods ago
	Above52wLow         bool // close >= 52w low x 1.30
	Near52wHigh         bool // close >= 52w high x 0.75
	RSAboveThreshold    bool // RS rating >= configured minimum
	AboveBase           bool // trading above the base/support boundary
}

// All reports whether every criterion is met.
func (c TrendCriteria) All() bool {
	return c.CloseAbove150And200 && c.CloseAbove50 && c.MAAlignment && c.MA200Rising &&
		c.Above52wLow && c.Near52wHigh && c.RSAboveThreshold && c.AboveBase
}

// Met counts the criteria that passed.
func (c TrendCriteria) Met() int {
	n := 0
	for _, b := range []bool{
		c.CloseAbove150And200, c.CloseAbove50, c.MAAlignment, c.MA200Rising,
		c.Above52wLow, c.Near52wHigh, c.RSAboveThreshold, c.AboveBase,
	} {
		if b {
			n++
		}
	}
	return n
}

// TrendScore is the result of evaluating a snapshot against the trend template.
// It is derived state: recomputable from the same snapshot at any time.
type TrendScore struct {
	Symbol     string
	Criteria   TrendCriteria
	Passed     bool
	RSRating   float64
	ComputedAt time.Time
}

// RSRating is an instrument's price-performance percentile against a peer
// universe. It is only comparable to a snapshot sharing the same as-of date.
type RSRating struct {
	Symbol     string
	Percentile float64 // 0..100
	RawRS      float64 // weighted performance before ranking
	AsOf       time.Time
}

// ValidFor reports whether the rating was computed from data of the same date
// as the given snapshot. A stale rating must not satisfy the trend template.
func (r *RSRating) ValidFor(s *SeriesSnapshot) bool {
	if r == nil || s == nil {
		return false
	}
	ry, rm, rd := r.AsOf.Date()
	sy, sm, sd := s.AsOf().Date()
	return ry == sy && rm == sm && rd == sd
}
