package broker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"VCPSentinel/internal/model"
)

// SimBroker simulates order execution on top of any HistorySource. Orders
// fill immediately at the source's current price. Used for dry runs and in
// tests as a stand-in for a live connection.
type SimBroker struct {
	source HistorySource

	mu          sync.Mutex
	equity      float64
	buyingPower float64
	orders      map[string]OrderState
	prices      map[string]float64 // overrides, mostly for tests
	volumes     map[string]float64
}

// NewSimBroker creates a simulator with the given starting equity. All of
// the equity is initially available as buying power.
func NewSimBroker(source HistorySource, startingEquity float64) *SimBroker {
	return &SimBroker{
		source:      source,
		equity:      startingEquity,
		buyingPower: startingEquity,
		orders:      make(map[string]OrderState),
		prices:      make(map[string]float64),
		volumes:     make(map[string]float64),
	}
}

func (s *SimBroker) Name() string { return "sim(" + s.source.Name() + ")" }

// SetPrice pins the current price for a symbol, bypassing the source.
func (s *SimBroker) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

func (s *SimBroker) GetPriceHistory(ctx context.Context, symbol string, days int) ([]model.Bar, error) {
	return s.source.GetPriceHistory(ctx, symbol, days)
}

// SetVolume pins the current session volume for a symbol.
func (s *SimBroker) SetVolume(symbol string, volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volumes[symbol] = volume
}

func (s *SimBroker) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	s.mu.Lock()
	price, ok := s.prices[symbol]
	s.mu.Unlock()
	if ok {
		return price, nil
	}
	return s.source.CurrentPrice(ctx, symbol)
}

// CurrentQuote returns the pinned or source price plus the pinned volume.
// Volume is zero (unknown) unless SetVolume was called.
func (s *SimBroker) CurrentQuote(ctx context.Context, symbol string) (float64, float64, error) {
	price, err := s.CurrentPrice(ctx, symbol)
	if err != nil {
		return 0, 0, err
	}
	s.mu.Lock()
	volume := s.volumes[symbol]
	s.mu.Unlock()
	return price, volume, nil
}

func (s *SimBroker) PlaceOrder(ctx context.Context, symbol string, side Side, quantity int, typ OrderType) (OrderHandle, error) {
	if quantity <= 0 {
		return OrderHandle{}, fmt.Errorf("sim: invalid quantity %d", quantity)
	}
	price, err := s.CurrentPrice(ctx, symbol)
	if err != nil {
		return OrderHandle{}, fmt.Errorf("sim: fill price for %s: %w", symbol, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	value := float64(quantity) * price
	if side == Buy {
		if value > s.buyingPower {
			return OrderHandle{}, fmt.Errorf("sim: order value %.2f exceeds buying power %.2f", value, s.buyingPower)
		}
		s.buyingPower -= value
	} else {
		s.buyingPower += value
	}

	id := uuid.NewString()
	s.orders[id] = OrderState{
		Status:         StatusFilled,
		FilledQuantity: quantity,
		AvgFillPrice:   price,
	}
	return OrderHandle{
		ID:          id,
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		SubmittedAt: time.Now(),
	}, nil
}

func (s *SimBroker) GetOrderStatus(_ context.Context, handle OrderHandle) (OrderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.orders[handle.ID]
	if !ok {
		return OrderState{}, fmt.Errorf("sim: unknown order %s", handle.ID)
	}
	return state, nil
}

func (s *SimBroker) CancelOrder(_ context.Context, handle OrderHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.orders[handle.ID]
	if !ok {
		return fmt.Errorf("sim: unknown order %s", handle.ID)
	}
	if state.Status == StatusFilled {
		return fmt.Errorf("sim: order %s already filled", handle.ID)
	}
	state.Status = StatusCanceled
	s.orders[handle.ID] = state
	return nil
}

func (s *SimBroker) AccountEquity(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.equity, nil
}

// BuyingPower reports simulated cash available for new positions.
func (s *SimBroker) BuyingPower(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buyingPower, nil
}

// SyntheticSource generates deterministic daily bars from a seed price per
// symbol. It exists so dry runs and tests work without any network access.
type SyntheticSource struct {
	BasePrices map[string]float64
}

func (s *SyntheticSource) Name() string { return "synthetic" }

func (s *SyntheticSource) basePrice(symbol string) float64 {
	if p, ok := s.BasePrices[symbol]; ok {
		return p
	}
	// Derive a stable price from the symbol so every instrument differs.
	var h float64
	for _, r := range symbol {
		h = h*31 + float64(r)
	}
	return 20 + math.Mod(h, 180)
}

func (s *SyntheticSource) GetPriceHistory(_ context.Context, symbol string, days int) ([]model.Bar, error) {
	base := s.basePrice(symbol)
	now := time.Now().Truncate(24 * time.Hour)
	bars := make([]model.Bar, days)
	for i := 0; i < days; i++ {
		// Gentle uptrend with a deterministic wobble.
		t := float64(i)
		c := base * (1 + 0.001*t + 0.02*math.Sin(t/9))
		bars[i] = model.Bar{
			Time:   now.AddDate(0, 0, i-days),
			Open:   c * 0.998,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1_000_000 * (1 + 0.3*math.Sin(t/5)),
		}
	}
	return bars, nil
}

func (s *SyntheticSource) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	bars, err := s.GetPriceHistory(ctx, symbol, 1)
	if err != nil {
		return 0, err
	}
	return bars[0].Close, nil
}
