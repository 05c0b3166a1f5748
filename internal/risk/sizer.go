package risk

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateStop is returned when entry <= stop: risk per share is zero or
// negative and a size cannot be defined.
var ErrDegenerateStop = errors.New("entry price must be above the initial stop")

// SizingRequest carries everything needed to size one entry.
type SizingRequest struct {
	Symbol        string
	Equity        float64
	BuyingPower   float64 // cash remaining for new positions
	EntryPrice    float64
	InitialStop   float64
	OpenPositions int
}

// SizingResult is the sizer's decision. A rejected result is a normal policy
// outcome (Quantity 0, Reason set), not an error.
type SizingResult struct {
	Quantity      int
	PositionValue float64
	RiskAmount    float64 // dollars at risk if the initial stop is hit
	Rejected      bool
	Reason        string
}

// Sizer converts account equity, risk tolerance, and stop distance into a
// share quantity.
type Sizer struct {
	params Params
}

// NewSizer creates a sizer bound to the given risk parameters.
func NewSizer(params Params) *Sizer {
	return &Sizer{params: params}
}

// Size computes floor((equity x risk%) / (entry - stop)), then applies the
// max-positions and buying-power policies.
func (s *Sizer) Size(req SizingRequest) (SizingResult, error) {
	if req.EntryPrice <= req.InitialStop {
		return SizingResult{}, fmt.Errorf("%s: entry %.2f stop %.2f: %w",
			req.Symbol, req.EntryPrice, req.InitialStop, ErrDegenerateStop)
	}

	if req.OpenPositions >= s.params.MaxPositions {
		return SizingResult{
			Rejected: true,
			Reason:   fmt.Sprintf("max positions reached (%d/%d)", req.OpenPositions, s.params.MaxPositions),
		}, nil
	}

	riskPerShare := req.EntryPrice - req.InitialStop
	riskBudget := req.Equity * s.params.MaxRiskPerTradePct / 100
	quantity := int(math.Floor(riskBudget / riskPerShare))
	if quantity <= 0 {
		return SizingResult{
			Rejected: true,
			Reason:   "risk budget too small for one share",
		}, nil
	}

	value := float64(quantity) * req.EntryPrice
	if value > req.BuyingPower {
		return SizingResult{
			Rejected: true,
			Reason: fmt.Sprintf("position value %.2f exceeds buying power %.2f",
				value, req.BuyingPower),
		}, nil
	}

	return SizingResult{
		Quantity:      quantity,
		PositionValue: value,
		RiskAmount:    float64(quantity) * riskPerShare,
	}, nil
}
