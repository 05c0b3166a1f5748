package calculator

import (
	"errors"
)

// CalculateSMA computes the simple moving average of the given prices over the specified period.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// CalculateSMAAt computes the SMA over `period` values ending `offset` values
// before the most recent one. Offset 0 is the same as CalculateSMA.
func CalculateSMAAt(prices []float64, period, offset int) (float64, error) {
	if offset < 0 {
		return 0, errors.New("offset must be non-negative")
	}
	end := len(prices) - offset
	if end < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	return CalculateSMA(prices[:end], period)
}
