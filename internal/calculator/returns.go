package calculator

import "errors"

// Relative-strength lookback windows, in trading days, and their weights.
// The most recent quarter counts double, per the usual RS convention.
var rsWindows = []struct {
	days   int
	weight float64
}{
	{63, 2.0},  // ~3 months
	{126, 1.0}, // ~6 months
	{189, 1.0}, // ~9 months
	{252, 1.0}, // ~12 months
}

// RSLookbackDays is the minimum history required for a weighted performance.
const RSLookbackDays = 252

// PeriodReturn computes the percentage return over the given trailing window.
func PeriodReturn(closes []float64, days int) (float64, error) {
	if days <= 0 {
		return 0, errors.New("days must be positive")
	}
	if len(closes) <= days {
		return 0, errors.New("not enough data for period return")
	}
	current := closes[len(closes)-1]
	past := closes[len(closes)-1-days]
	if past <= 0 {
		return 0, errors.New("non-positive past price")
	}
	return (current - past) / past * 100, nil
}

// WeightedPerformance computes the weighted multi-window price performance
// used as the raw relative-strength value. Requires RSLookbackDays of history.
func WeightedPerformance(closes []float64) (float64, error) {
	if len(closes) <= RSLookbackDays {
		return 0, errors.New("not enough data for weighted performance")
	}
	var weightedSum, totalWeight float64
	for _, w := range rsWindows {
		ret, err := PeriodReturn(closes, w.days)
		if err != nil {
			return 0, err
		}
		weightedSum += ret * w.weight
		totalWeight += w.weight
	}
	return weightedSum / totalWeight, nil
}
