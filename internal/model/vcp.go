package model

import "time"

// Wave is a single decline (contraction) wave inside a base.
type Wave struct {
	Start       time.Time
	End         time.Time
	High        float64
	Low         float64
	DepthPct    float64 // (high-low)/high * 100
	Bars        int
	AvgVolume   float64
	VolumeRatio float64 // wave volume vs trailing baseline
}

// VCPCandidate is a confirmed volatility-contraction pattern awaiting breakout.
// ContractionRatios mirror the wave depths and are strictly decreasing; a
// candidate is only created from a snapshot whose trend template passed.
type VCPCandidate struct {
	Symbol            string
	Waves             []Wave
	ContractionRatios []float64 // depth % per wave, strictly decreasing
	PivotPrice        float64   // high of the final contraction
	BaseLow           float64
	DepthPct          float64 // full base depth, %
	VolumeDryUp       bool
	Score             int // 0..100
	DetectedAt        time.Time

	// AvgVolume is the trailing average daily volume at detection time,
	// the baseline a breakout's volume is confirmed against.
	AvgVolume float64

	// SuggestedStop is the detector's stop hint (just under the base low).
	// The coordinator applies the configured initial stop; this is audit info.
	SuggestedStop float64
}

// FinalDepthPct returns the amplitude of the last contraction wave.
func (c *VCPCandidate) FinalDepthPct() float64 {
	if len(c.Waves) == 0 {
		return 0
	}
	return c.Waves[len(c.Waves)-1].DepthPct
}
