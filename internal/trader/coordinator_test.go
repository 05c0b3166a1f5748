package trader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VCPSentinel/internal/broker"
	"VCPSentinel/internal/model"
	"VCPSentinel/internal/notifier"
	"VCPSentinel/internal/recorder"
	"VCPSentinel/internal/risk"
)

func testCandidate(symbol string, pivot float64) *model.VCPCandidate {
	return &model.VCPCandidate{
		Symbol:     symbol,
		PivotPrice: pivot,
		BaseLow:    pivot * 0.85,
		Score:      80,
		DetectedAt: time.Now(),
	}
}

func newTestCoordinator(params risk.Params) (*Coordinator, *broker.SimBroker) {
	sim := broker.NewSimBroker(&broker.SyntheticSource{}, 100_000)
	coord := NewCoordinator(sim, params, recorder.NewNoopRecorder(), notifier.NewNoopNotifier())
	return coord, sim
}

func TestCoordinator_BreakoutEntry(t *testing.T) {
	coord, sim := newTestCoordinator(risk.DefaultParams())
	ctx := context.Background()

	coord.WatchCandidate(testCandidate("TEST", 96))
	assert.Equal(t, []string{"TEST"}, coord.Symbols())

	// Below the pivot: no entry.
	sim.SetPrice("TEST", 95)
	coord.OnPriceTick(ctx, "TEST", 95, 0)
	assert.Zero(t, coord.OpenPositionCount())

	// Clearing the pivot triggers a sized market buy.
	sim.SetPrice("TEST", 97)
	coord.OnPriceTick(ctx, "TEST", 97, 0)
	require.Equal(t, 1, coord.OpenPositionCount())

	// The candidate is consumed; the symbol stays tracked for stop management.
	assert.Equal(t, []string{"TEST"}, coord.Symbols())

	summary := coord.StatusSummary()
	assert.Contains(t, summary, "TEST")
	assert.Contains(t, summary, "Positions: 1")
}

func TestCoordinator_BreakoutNeedsConfirmingVolume(t *testing.T) {
	coord, sim := newTestCoordinator(risk.DefaultParams())
	ctx := context.Background()

	cand := testCandidate("TEST", 96)
	cand.AvgVolume = 1_000_000
	coord.WatchCandidate(cand)
	sim.SetPrice("TEST", 97)

	// Pivot cleared on thin volume: no entry.
	coord.OnPriceTick(ctx, "TEST", 97, 400_000)
	assert.Zero(t, coord.OpenPositionCount())

	// Same breakout with volume above the baseline fills.
	coord.OnPriceTick(ctx, "TEST", 97, 1_500_000)
	assert.Equal(t, 1, coord.OpenPositionCount())
}

func TestCoordinator_NoChaseAboveExtensionLimit(t *testing.T) {
	coord, sim := newTestCoordinator(risk.DefaultParams())
	ctx := context.Background()

	coord.WatchCandidate(testCandidate("TEST", 96))

	// 102 is more than 5% past the 96 pivot.
	sim.SetPrice("TEST", 102)
	coord.OnPriceTick(ctx, "TEST", 102, 0)
	assert.Zero(t, coord.OpenPositionCount())
}

func TestCoordinator_MaxPositionsRejection(t *testing.T) {
	params := risk.DefaultParams()
	params.MaxPositions = 1
	coord, sim := newTestCoordinator(params)
	ctx := context.Background()

	coord.WatchCandidate(testCandidate("AAA", 96))
	sim.SetPrice("AAA", 97)
	coord.OnPriceTick(ctx, "AAA", 97, 0)
	require.Equal(t, 1, coord.OpenPositionCount())

	coord.WatchCandidate(testCandidate("BBB", 50))
	sim.SetPrice("BBB", 51)
	coord.OnPriceTick(ctx, "BBB", 51, 0)
	assert.Equal(t, 1, coord.OpenPositionCount(), "second entry must be rejected by the position cap")
}

func TestCoordinator_StopExit(t *testing.T) {
	coord, sim := newTestCoordinator(risk.DefaultParams())
	ctx := context.Background()

	coord.WatchCandidate(testCandidate("TEST", 96))
	sim.SetPrice("TEST", 97)
	coord.OnPriceTick(ctx, "TEST", 97, 0)
	require.Equal(t, 1, coord.OpenPositionCount())

	// Price collapses through the initial stop (7% below the 97 fill).
	sim.SetPrice("TEST", 85)
	coord.OnPriceTick(ctx, "TEST", 85, 0)

	// The exit runs asynchronously; Shutdown drains it.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, coord.Shutdown(shutdownCtx))
	assert.Zero(t, coord.OpenPositionCount())
}

func TestCoordinator_HaltedAfterShutdown(t *testing.T) {
	coord, sim := newTestCoordinator(risk.DefaultParams())
	ctx := context.Background()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, coord.Shutdown(shutdownCtx))

	coord.WatchCandidate(testCandidate("TEST", 96))
	sim.SetPrice("TEST", 97)
	coord.OnPriceTick(ctx, "TEST", 97, 0)
	assert.Zero(t, coord.OpenPositionCount(), "no new entries after shutdown")
}

func TestCoordinator_StopManagementAfterEntry(t *testing.T) {
	coord, sim := newTestCoordinator(risk.DefaultParams())
	ctx := context.Background()

	coord.WatchCandidate(testCandidate("TEST", 96))
	sim.SetPrice("TEST", 97)
	coord.OnPriceTick(ctx, "TEST", 97, 0)
	require.Equal(t, 1, coord.OpenPositionCount())

	// A strong advance must ratchet the stop without exiting.
	coord.OnPriceTick(ctx, "TEST", 120, 0)
	coord.OnPriceTick(ctx, "TEST", 115, 0)
	require.Equal(t, 1, coord.OpenPositionCount())

	summary := coord.StatusSummary()
	assert.Contains(t, summary, "level 3")
}

func TestCoordinator_StatusSummaryDuringTicks(t *testing.T) {
	coord, sim := newTestCoordinator(risk.DefaultParams())
	ctx := context.Background()

	coord.WatchCandidate(testCandidate("TEST", 96))
	sim.SetPrice("TEST", 97)
	coord.OnPriceTick(ctx, "TEST", 97, 0)
	require.Equal(t, 1, coord.OpenPositionCount())

	// Status reads must stay consistent with concurrent stop updates; the
	// race detector flags any unordered access to the shared position.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			_ = coord.StatusSummary()
		}
	}()
	for i := 0; i < 500; i++ {
		coord.OnPriceTick(ctx, "TEST", 97+float64(i)*0.001, 0)
	}
	<-done

	assert.Equal(t, 1, coord.OpenPositionCount())
	assert.Contains(t, coord.StatusSummary(), "TEST")
}

func TestCoordinator_WatchIgnoredWhileHoldingPosition(t *testing.T) {
	coord, sim := newTestCoordinator(risk.DefaultParams())
	ctx := context.Background()

	coord.WatchCandidate(testCandidate("TEST", 96))
	sim.SetPrice("TEST", 97)
	coord.OnPriceTick(ctx, "TEST", 97, 0)
	require.Equal(t, 1, coord.OpenPositionCount())

	coord.WatchCandidate(testCandidate("TEST", 100))
	assert.Equal(t, []string{"TEST"}, coord.Symbols())
	assert.Contains(t, coord.StatusSummary(), "Watching: 0")
}
