package screener

import (
	"log"
	"time"

	"VCPSentinel/internal/calculator"
	"VCPSentinel/internal/model"
)

// VCPConfig tunes the volatility-contraction detector.
type VCPConfig struct {
	LookbackBars        int     // analysis window
	SwingWindow         int     // bars each side of a swing high
	MinWaves            int     // minimum contraction waves
	MaxWaves            int     // waves kept beyond this are dropped (oldest first)
	MaxWaveRatio        float64 // each wave depth must be <= previous depth x ratio
	MinDepthPct         float64 // full base depth lower bound
	MaxDepthPct         float64 // full base depth upper bound
	DryUpRatio          float64 // late-wave volume must fall below early-wave x ratio
	MinBaseBars         int     // minimum bars after the peak to form a base
	MaxPivotDistancePct float64 // last close must sit within this % below the pivot
	MaxPivotAbovePct    float64 // last close may exceed the pivot by at most this %
}

// DefaultVCPConfig returns the standard detector thresholds.
func DefaultVCPConfig() VCPConfig {
	return VCPConfig{
		LookbackBars:        120,
		SwingWindow:         5,
		MinWaves:            2,
		MaxWaves:            6,
		MaxWaveRatio:        0.7,
		MinDepthPct:         10,
		MaxDepthPct:         35,
		DryUpRatio:          0.7,
		MinBaseBars:         20,
		MaxPivotDistancePct: 10,
		MaxPivotAbovePct:    2,
	}
}

// volumeBaselineBars sets the trailing window for the breakout volume
// baseline carried on the candidate.
const volumeBaselineBars = 50

// Detector finds volatility-contraction patterns in snapshots that already
// passed the trend template. A missing pattern is a normal outcome and is
// reported as a nil candidate, never as an error.
type Detector struct {
	cfg VCPConfig
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(cfg VCPConfig) *Detector {
	def := DefaultVCPConfig()
	if cfg.LookbackBars <= 0 {
		cfg.LookbackBars = def.LookbackBars
	}
	if cfg.SwingWindow <= 0 {
		cfg.SwingWindow = def.SwingWindow
	}
	if cfg.MinWaves < 2 {
		cfg.MinWaves = def.MinWaves
	}
	if cfg.MaxWaves <= 0 {
		cfg.MaxWaves = def.MaxWaves
	}
	if cfg.MaxWaveRatio <= 0 || cfg.MaxWaveRatio >= 1 {
		cfg.MaxWaveRatio = def.MaxWaveRatio
	}
	if cfg.MinDepthPct <= 0 {
		cfg.MinDepthPct = def.MinDepthPct
	}
	if cfg.MaxDepthPct <= 0 {
		cfg.MaxDepthPct = def.MaxDepthPct
	}
	if cfg.DryUpRatio <= 0 {
		cfg.DryUpRatio = def.DryUpRatio
	}
	if cfg.MinBaseBars <= 0 {
		cfg.MinBaseBars = def.MinBaseBars
	}
	if cfg.MaxPivotDistancePct <= 0 {
		cfg.MaxPivotDistancePct = def.MaxPivotDistancePct
	}
	if cfg.MaxPivotAbovePct <= 0 {
		cfg.MaxPivotAbovePct = def.MaxPivotAbovePct
	}
	return &Detector{cfg: cfg}
}

// Detect segments the recent history into contraction waves and returns a
// candidate when a valid pattern exists. The pivot is the high of the final
// contraction; ContractionRatios on the result are strictly decreasing.
func (d *Detector) Detect(snap *model.SeriesSnapshot) *model.VCPCandidate {
	if snap.Len() < d.cfg.LookbackBars {
		return nil
	}
	window := snap.Bars[snap.Len()-d.cfg.LookbackBars:]

	// The base starts at the highest high of the window. A peak too close to
	// the right edge leaves no room for a base to form.
	peakIdx := 0
	for i, b := range window {
		if b.High > window[peakIdx].High {
			peakIdx = i
		}
	}
	if len(window)-peakIdx < d.cfg.MinBaseBars {
		return nil
	}
	base := window[peakIdx:]

	baselineVolume := calculator.AverageVolume(window)
	waves := d.segmentWaves(base, baselineVolume)
	if len(waves) < d.cfg.MinWaves {
		return nil
	}

	// Keep the longest contracting run that ends at the most recent wave.
	// Anchoring on the final wave resolves overlapping interpretations in
	// favor of the most recent, tightest sequence.
	waves = contractingSuffix(waves, d.cfg.MaxWaveRatio)
	if len(waves) < d.cfg.MinWaves {
		return nil
	}
	if len(waves) > d.cfg.MaxWaves {
		waves = waves[len(waves)-d.cfg.MaxWaves:]
	}

	pivot := waves[len(waves)-1].High
	lastClose := snap.Close()
	if lastClose < pivot*(1-d.cfg.MaxPivotDistancePct/100) || lastClose > pivot*(1+d.cfg.MaxPivotAbovePct/100) {
		// The final wave has not settled near the pivot: either price fell
		// away from the base or the breakout already ran.
		return nil
	}

	baseHigh, baseLow := calculator.HighLow(base)
	depthPct := (baseHigh - baseLow) / baseHigh * 100
	if depthPct < d.cfg.MinDepthPct || depthPct > d.cfg.MaxDepthPct {
		return nil
	}

	dryUp := volumeDryUp(waves, d.cfg.DryUpRatio)

	baselineStart := snap.Len() - volumeBaselineBars
	if baselineStart < 0 {
		baselineStart = 0
	}

	ratios := make([]float64, len(waves))
	for i, w := range waves {
		ratios[i] = w.DepthPct
	}

	cand := &model.VCPCandidate{
		Symbol:            snap.Symbol,
		Waves:             waves,
		ContractionRatios: ratios,
		PivotPrice:        pivot,
		BaseLow:           baseLow,
		DepthPct:          depthPct,
		VolumeDryUp:       dryUp,
		Score:             scorePattern(waves, depthPct, len(base), dryUp),
		DetectedAt:        time.Now(),
		SuggestedStop:     baseLow * 0.98,
		AvgVolume:         calculator.AverageVolume(snap.Bars[baselineStart:]),
	}

	log.Printf("[INFO] %s: VCP candidate, score=%d waves=%d depth=%.1f%% pivot=%.2f",
		snap.Symbol, cand.Score, len(waves), depthPct, pivot)
	return cand
}

// segmentWaves splits the base into decline waves between consecutive swing
// highs. Each wave's depth is measured from its own high; volume is compared
// to the trailing baseline of the full analysis window.
func (d *Detector) segmentWaves(base []model.Bar, baselineVolume float64) []model.Wave {
	highs := swingHighIndices(base, d.cfg.SwingWindow)
	if len(highs) == 0 || highs[0] != 0 {
		// The base opens at the window peak, which bounds the first decline
		// even though it is not an interior swing high.
		highs = append([]int{0}, highs...)
	}
	if len(highs) < 2 {
		return nil
	}

	var waves []model.Wave
	for i := 0; i < len(highs); i++ {
		start := highs[i]
		end := len(base) - 1
		if i+1 < len(highs) {
			end = highs[i+1]
		}
		if end-start < 2 {
			continue
		}
		segment := base[start : end+1]
		high, low := calculator.HighLow(segment)
		if high <= 0 {
			continue
		}
		avgVol := calculator.AverageVolume(segment)
		ratio := 1.0
		if baselineVolume > 0 {
			ratio = avgVol / baselineVolume
		}
		waves = append(waves, model.Wave{
			Start:       segment[0].Time,
			End:         segment[len(segment)-1].Time,
			High:        high,
			Low:         low,
			DepthPct:    (high - low) / high * 100,
			Bars:        len(segment),
			AvgVolume:   avgVol,
			VolumeRatio: ratio,
		})
	}
	return waves
}

// swingHighIndices returns positions whose high is the maximum of the
// surrounding window, filtering ordinary intraday noise.
func swingHighIndices(bars []model.Bar, window int) []int {
	var idx []int
	for i := window; i < len(bars)-window; i++ {
		isMax := true
		for j := i - window; j <= i+window; j++ {
			if bars[j].High > bars[i].High {
				isMax = false
				break
			}
		}
		if isMax {
			idx = append(idx, i)
		}
	}
	return idx
}

// contractingSuffix walks back from the final wave while each earlier-to-later
// step both strictly shrinks and satisfies the contraction ratio, returning
// the longest such run.
func contractingSuffix(waves []model.Wave, maxRatio float64) []model.Wave {
	start := len(waves) - 1
	for start > 0 {
		prev, curr := waves[start-1].DepthPct, waves[start].DepthPct
		if curr >= prev || curr > prev*maxRatio {
			break
		}
		start--
	}
	return waves[start:]
}

// volumeDryUp reports whether trading dried up into the later waves: the
// average volume ratio of the second half must fall below the first half
// scaled by the threshold.
func volumeDryUp(waves []model.Wave, threshold float64) bool {
	if len(waves) < 2 {
		return false
	}
	mid := len(waves)/2 + 1
	var early, late float64
	for _, w := range waves[:mid] {
		early += w.VolumeRatio
	}
	early /= float64(mid)
	for _, w := range waves[len(waves)/2:] {
		late += w.VolumeRatio
	}
	late /= float64(len(waves) - len(waves)/2)
	return late < early*threshold
}

// scorePattern weighs contraction count, final-wave tightness, volume dry-up,
// duration compactness, and base depth into a 0-100 score.
func scorePattern(waves []model.Wave, depthPct float64, baseBars int, dryUp bool) int {
	score := 0

	switch n := len(waves); {
	case n >= 4:
		score += 25
	case n == 3:
		score += 20
	default:
		score += 15
	}

	final := waves[len(waves)-1].DepthPct
	switch {
	case final <= 3:
		score += 25
	case final <= 5:
		score += 20
	case final <= 8:
		score += 12
	default:
		score += 5
	}

	if dryUp {
		score += 20
	}

	switch {
	case baseBars <= 40:
		score += 15
	case baseBars <= 65:
		score += 10
	case baseBars <= 90:
		score += 5
	}

	switch {
	case depthPct >= 15 && depthPct <= 25:
		score += 15
	case depthPct >= 10 && depthPct <= 30:
		score += 10
	default:
		score += 5
	}

	if score > 100 {
		score = 100
	}
	return score
}
