package risk

import (
	"fmt"

	"VCPSentinel/internal/model"
)

// Level is one rung of the trailing-stop ladder: once unrealized return off
// the high-water mark reaches Threshold, the stop trails the mark by Trail.
type Level struct {
	Threshold float64 // unrealized return %, measured off the high-water mark
	Trail     float64 // stop distance below the high-water mark, %
}

// defaultLevels implement the standard ladder: 5%->5, 10%->8, 20%->10, 50%->15.
var defaultLevels = []Level{
	{Threshold: 5, Trail: 5},
	{Threshold: 10, Trail: 8},
	{Threshold: 20, Trail: 10},
	{Threshold: 50, Trail: 15},
}

// Evaluation is the outcome of one price update. The caller applies it to the
// position under its own serialization; the controller never mutates state.
type Evaluation struct {
	Symbol        string
	HighWaterMark float64
	StopLevel     int
	CurrentStop   float64
	UnrealizedPct float64
	LevelChanged  bool
	StopRaised    bool
	ShouldExit    bool
	ExitReason    string
}

// Controller advances a position through discrete stop levels as unrealized
// return grows. Levels never regress and the stop only ratchets upward.
type Controller struct {
	levels             []Level
	initialStopPct     float64
	useBreakeven       bool
	breakevenThreshold float64
}

// NewController creates a controller from the risk parameters. The breakeven
// floor keeps the stop at or above entry once return has reached 10%.
func NewController(params Params) *Controller {
	return &Controller{
		levels:             defaultLevels,
		initialStopPct:     params.InitialStopPct,
		useBreakeven:       true,
		breakevenThreshold: 10,
	}
}

// InitialStop returns the level-0 stop for an entry price.
func (c *Controller) InitialStop(entryPrice float64) float64 {
	return entryPrice * (1 - c.initialStopPct/100)
}

// Evaluate processes one price update. It must run on every tick: the exit
// check compares the updated stop against the same price that produced it, so
// no tick can slip through unexamined.
func (c *Controller) Evaluate(pos *model.Position, price float64) Evaluation {
	hwm := pos.HighWaterMark
	if price > hwm {
		hwm = price
	}

	// Level advancement keys off the best return seen, so a later pullback
	// can never demote the position.
	hwmReturn := (hwm - pos.EntryPrice) / pos.EntryPrice * 100
	level := c.levelFor(hwmReturn)
	if level < pos.StopLevel {
		level = pos.StopLevel
	}

	candidate := c.stopAt(pos.EntryPrice, hwm, level)
	if c.useBreakeven && hwmReturn >= c.breakevenThreshold {
		if floor := pos.EntryPrice * 1.001; candidate < floor {
			candidate = floor
		}
	}

	stop := pos.CurrentStop
	raised := false
	if candidate > stop {
		stop = candidate
		raised = true
	}

	ev := Evaluation{
		Symbol:        pos.Symbol,
		HighWaterMark: hwm,
		StopLevel:     level,
		CurrentStop:   stop,
		UnrealizedPct: pos.UnrealizedPct(price),
		LevelChanged:  level > pos.StopLevel,
		StopRaised:    raised,
	}

	if price <= stop {
		ev.ShouldExit = true
		if ev.UnrealizedPct < 0 {
			ev.ExitReason = fmt.Sprintf("stop hit at level %d (%.1f%%)", level, ev.UnrealizedPct)
		} else {
			drawdown := (price - hwm) / hwm * 100
			ev.ExitReason = fmt.Sprintf("trailing stop at level %d (%.1f%% off high)", level, drawdown)
		}
	}
	return ev
}

// Apply copies an evaluation onto the position. Callers hold the position's
// serialization while applying.
func Apply(pos *model.Position, ev Evaluation) {
	if ev.HighWaterMark > pos.HighWaterMark {
		pos.HighWaterMark = ev.HighWaterMark
	}
	if ev.StopLevel > pos.StopLevel {
		pos.StopLevel = ev.StopLevel
	}
	if ev.CurrentStop > pos.CurrentStop {
		pos.CurrentStop = ev.CurrentStop
	}
}

// levelFor returns the highest ladder rung whose threshold is met.
func (c *Controller) levelFor(hwmReturnPct float64) int {
	level := 0
	for i, l := range c.levels {
		if hwmReturnPct >= l.Threshold {
			level = i + 1
		}
	}
	return level
}

// stopAt computes the stop for a level: entry-based at level 0, trailing off
// the high-water mark above it.
func (c *Controller) stopAt(entry, hwm float64, level int) float64 {
	if level <= 0 {
		return c.InitialStop(entry)
	}
	if level > len(c.levels) {
		level = len(c.levels)
	}
	return hwm * (1 - c.levels[level-1].Trail/100)
}
