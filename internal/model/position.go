package model

import "time"

// MaxStopLevel is the highest trailing-stop level a position can reach.
const MaxStopLevel = 4

// Position is an open long position under trailing-stop management.
// HighWaterMark only moves up, StopLevel only advances, and CurrentStop is
// never lowered for the life of the position.
type Position struct {
	Symbol        string
	EntryPrice    float64
	Quantity      int
	EntryTime     time.Time
	InitialStop   float64
	CurrentStop   float64
	StopLevel     int // 0..MaxStopLevel
	HighWaterMark float64
}

// UnrealizedPct returns the unrealized return at the given price, in percent.
func (p *Position) UnrealizedPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

// RMultiple expresses an exit price as a multiple of the initial risk taken.
// R = (exit - entry) / (entry - initial stop). 1R means the trade made exactly
// what it risked; -1R means the initial stop was hit.
func (p *Position) RMultiple(exitPrice float64) float64 {
	risk := p.EntryPrice - p.InitialStop
	if risk <= 0 {
		return 0
	}
	return (exitPrice - p.EntryPrice) / risk
}
