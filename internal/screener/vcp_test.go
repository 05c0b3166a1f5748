package screener

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VCPSentinel/internal/model"
)

// vcpSeries builds a 140-bar series whose last 120 bars contain a textbook
// three-wave contraction: 20% then 10% then ~4%, with volume drying up into
// the later waves. The pivot is 96 and the series closes at 95.5.
func vcpSeries() (closes, volumes []float64) {
	// 20 warmup bars plus 74 pre-base bars rising toward the peak.
	for i := 0; i < 94; i++ {
		closes = append(closes, 60+float64(i)*(39.0/93.0))
		volumes = append(volumes, 1500)
	}

	base := []float64{
		100, // window peak
		97, 94, 91, 88, 85, 82, 81, 80, // first decline, 20% deep
		83, 86, 89, 92, 94, 96, 97, // recovery to the second swing high
		95, 93, 91, 89, 88, 87.3, // second decline, 10% deep
		89, 91, 93, 94.5, 95.5, 96, // recovery to the final swing high
		94.5, 93.5, 92.8, 92.2, // final decline, ~4% deep
		93.5, 94.5, 95, 95.5, // settle near the pivot
		95.3, 95.6, 95.4, 95.7, 95.5, 95.8, 95.6, 95.4, 95.9, 95.5,
	}
	closes = append(closes, base...)
	for i := range base {
		switch {
		case i <= 15:
			volumes = append(volumes, 2000)
		case i <= 27:
			volumes = append(volumes, 800)
		default:
			volumes = append(volumes, 400)
		}
	}
	return closes, volumes
}

func TestDetector_FindsContractionPattern(t *testing.T) {
	d := NewDetector(DefaultVCPConfig())
	closes, volumes := vcpSeries()
	snap := makeSnap(t, "VCP", closes, volumes)

	cand := d.Detect(snap)
	require.NotNil(t, cand)

	assert.Equal(t, "VCP", cand.Symbol)
	require.Len(t, cand.Waves, 3)
	assert.InDelta(t, 20.0, cand.Waves[0].DepthPct, 0.1)
	assert.InDelta(t, 10.0, cand.Waves[1].DepthPct, 0.1)
	assert.InDelta(t, 3.96, cand.Waves[2].DepthPct, 0.1)

	assert.Equal(t, 96.0, cand.PivotPrice)
	assert.Equal(t, 80.0, cand.BaseLow)
	assert.InDelta(t, 20.0, cand.DepthPct, 1e-9)
	assert.True(t, cand.VolumeDryUp)
	assert.Equal(t, 85, cand.Score)
	assert.InDelta(t, 80.0*0.98, cand.SuggestedStop, 1e-9)
	assert.Greater(t, cand.AvgVolume, 0.0)

	// Ratios must strictly decrease.
	for i := 1; i < len(cand.ContractionRatios); i++ {
		assert.Less(t, cand.ContractionRatios[i], cand.ContractionRatios[i-1])
	}
}

func TestDetector_NoBaseInMonotonicRise(t *testing.T) {
	d := NewDetector(DefaultVCPConfig())
	snap := makeSnap(t, "UP", risingCloses(200, 50, 0.5), nil)

	assert.Nil(t, d.Detect(snap))
}

func TestDetector_ShortHistory(t *testing.T) {
	d := NewDetector(DefaultVCPConfig())
	snap := makeSnap(t, "SHORT", risingCloses(60, 50, 0.5), nil)

	assert.Nil(t, d.Detect(snap))
}

func TestDetector_LookbackShorterThanVolumeBaseline(t *testing.T) {
	// A lookback below the 50-bar volume baseline must not index past the
	// start of the snapshot.
	cfg := DefaultVCPConfig()
	cfg.LookbackBars = 46

	closes, volumes := vcpSeries()
	snap := makeSnap(t, "SHORTWIN", closes[94:], volumes[94:])
	require.Equal(t, 46, snap.Len())

	cand := NewDetector(cfg).Detect(snap)
	require.NotNil(t, cand)
	require.Len(t, cand.Waves, 3)
	assert.Equal(t, 96.0, cand.PivotPrice)
	assert.InDelta(t, 48800.0/46.0, cand.AvgVolume, 1e-6)
}

func TestDetector_CloseBeyondPivotBand(t *testing.T) {
	closes, volumes := vcpSeries()
	now := time.Now().Truncate(24 * time.Hour)
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{
			Time:   now.AddDate(0, 0, i-len(closes)),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: volumes[i],
		}
	}
	// An anomalous closing print far past every high recorded in the base.
	bars[len(bars)-1].Close = 99
	snap, err := model.NewSeriesSnapshot("RAN", bars)
	require.NoError(t, err)

	assert.Nil(t, NewDetector(DefaultVCPConfig()).Detect(snap))

	loose := DefaultVCPConfig()
	loose.MaxPivotAbovePct = 5
	assert.NotNil(t, NewDetector(loose).Detect(snap))
}

func TestNewDetector_FillsDefaults(t *testing.T) {
	d := NewDetector(VCPConfig{})
	assert.Equal(t, DefaultVCPConfig(), d.cfg)

	tight := NewDetector(VCPConfig{MaxPivotAbovePct: 1.5})
	assert.Equal(t, 1.5, tight.cfg.MaxPivotAbovePct)
}

func TestDetector_PriceFellAwayFromPivot(t *testing.T) {
	d := NewDetector(DefaultVCPConfig())
	closes, volumes := vcpSeries()
	// Crash the last closes well below the pivot proximity band.
	for i := len(closes) - 4; i < len(closes); i++ {
		closes[i] = 82
	}
	snap := makeSnap(t, "FELL", closes, volumes)

	assert.Nil(t, d.Detect(snap))
}

func TestContractingSuffix_EqualWavesRejected(t *testing.T) {
	// 18 -> 11 -> 11 is not a contraction: the run collapses to the last wave
	// and the detector's minimum wave count then rejects the pattern.
	waves := []model.Wave{
		{DepthPct: 18},
		{DepthPct: 11},
		{DepthPct: 11},
	}
	suffix := contractingSuffix(waves, 0.7)
	assert.Len(t, suffix, 1)
}

func TestContractingSuffix_KeepsFullRun(t *testing.T) {
	waves := []model.Wave{
		{DepthPct: 18},
		{DepthPct: 11},
		{DepthPct: 4},
	}
	suffix := contractingSuffix(waves, 0.7)
	assert.Len(t, suffix, 3)
}

func TestContractingSuffix_RatioGate(t *testing.T) {
	// 15 shrinks from 20 but not enough for the 0.7 quality gate.
	waves := []model.Wave{
		{DepthPct: 20},
		{DepthPct: 15},
	}
	suffix := contractingSuffix(waves, 0.7)
	assert.Len(t, suffix, 1)
}

func TestContractingSuffix_AnchorsOnFinalWave(t *testing.T) {
	// An older expansion is dropped; the contracting tail survives.
	waves := []model.Wave{
		{DepthPct: 8},
		{DepthPct: 25},
		{DepthPct: 14},
		{DepthPct: 5},
	}
	suffix := contractingSuffix(waves, 0.7)
	require.Len(t, suffix, 3)
	assert.Equal(t, 25.0, suffix[0].DepthPct)
}

func TestVolumeDryUp(t *testing.T) {
	assert.False(t, volumeDryUp([]model.Wave{{VolumeRatio: 1}}, 0.7))

	drying := []model.Wave{
		{VolumeRatio: 1.5},
		{VolumeRatio: 0.7},
		{VolumeRatio: 0.3},
	}
	assert.True(t, volumeDryUp(drying, 0.7))

	steady := []model.Wave{
		{VolumeRatio: 1.0},
		{VolumeRatio: 1.0},
		{VolumeRatio: 1.0},
	}
	assert.False(t, volumeDryUp(steady, 0.7))
}

func TestSwingHighIndices(t *testing.T) {
	bars := make([]model.Bar, 20)
	for i := range bars {
		bars[i].High = 10
	}
	bars[8].High = 15

	idx := swingHighIndices(bars, 3)
	require.Len(t, idx, 1)
	assert.Equal(t, 8, idx[0])
}
