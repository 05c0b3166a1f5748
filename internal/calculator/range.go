package calculator

import (
	"math"

	"VCPSentinel/internal/model"
)

// HighLow returns the highest high and lowest low over a bar slice.
func HighLow(bars []model.Bar) (high, low float64) {
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, b := range bars {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low
}

// AverageVolume returns the mean volume over a bar slice, or 0 when empty.
func AverageVolume(bars []model.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		sum += b.Volume
	}
	return sum / float64(len(bars))
}
