package risk

// Params is the process-wide risk configuration. It is loaded once at startup
// and passed by value to every component that needs it; nothing mutates it
// after construction.
type Params struct {
	MaxRiskPerTradePct float64 // % of equity risked per trade
	MaxPositions       int     // hard cap on concurrently open positions
	InitialStopPct     float64 // initial stop distance below entry, %
	MinRSRating        float64 // minimum RS percentile for candidacy
	MinVCPScore        int     // minimum VCP score for candidacy
}

// DefaultParams returns conservative defaults matching the standard setup.
func DefaultParams() Params {
	return Params{
		MaxRiskPerTradePct: 2.0,
		MaxPositions:       8,
		InitialStopPct:     7.0,
		MinRSRating:        70,
		MinVCPScore:        70,
	}
}
