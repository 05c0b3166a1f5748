package trader

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"VCPSentinel/internal/broker"
	"VCPSentinel/internal/model"
	"VCPSentinel/internal/notifier"
	"VCPSentinel/internal/recorder"
	"VCPSentinel/internal/risk"
)

const (
	// fillPollInterval and fillTimeout bound how long an order may sit
	// unfilled before it is canceled.
	fillPollInterval = 2 * time.Second
	fillTimeout      = 45 * time.Second

	// maxExtensionPct rejects chases: no entry once price has run this far
	// past the pivot.
	maxExtensionPct = 5.0

	// candidateTTL expires watched setups that never trigger.
	candidateTTL = 15 * 24 * time.Hour
)

// Coordinator owns every open position and watched candidate. All state
// transitions for one instrument are serialized under that instrument's lock;
// instruments never block each other. Position fields are additionally only
// mutated under mu, so readers like StatusSummary need mu alone. Broker and
// recorder calls happen outside any lock.
type Coordinator struct {
	broker     broker.Broker
	sizer      *risk.Sizer
	controller *risk.Controller
	recorder   recorder.Recorder
	notif      notifier.Notifier
	params     risk.Params

	mu         sync.Mutex
	locks      map[string]*sync.Mutex
	positions  map[string]*model.Position
	candidates map[string]*model.VCPCandidate
	pending    map[string]bool // one outstanding order per instrument
	halted     bool

	wg sync.WaitGroup // in-flight async recording, notification, exits
}

// NewCoordinator wires the coordinator. Recorder and notifier may be noops.
func NewCoordinator(b broker.Broker, params risk.Params, rec recorder.Recorder, n notifier.Notifier) *Coordinator {
	return &Coordinator{
		broker:     b,
		sizer:      risk.NewSizer(params),
		controller: risk.NewController(params),
		recorder:   rec,
		notif:      n,
		params:     params,
		locks:      make(map[string]*sync.Mutex),
		positions:  make(map[string]*model.Position),
		candidates: make(map[string]*model.VCPCandidate),
		pending:    make(map[string]bool),
	}
}

// Restore loads open positions from the recorder so stop management resumes
// across restarts. Stop state only ratchets, so replaying ticks after a gap
// can never loosen a stop.
func (c *Coordinator) Restore() error {
	positions, err := c.recorder.OpenPositions()
	if err != nil {
		return fmt.Errorf("restore positions: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pos := range positions {
		c.positions[pos.Symbol] = pos
		log.Printf("[INFO] restored position %s: %d @ %.2f, stop %.2f (level %d)",
			pos.Symbol, pos.Quantity, pos.EntryPrice, pos.CurrentStop, pos.StopLevel)
	}
	return nil
}

// WatchCandidate registers a detected setup for breakout monitoring. A
// symbol with an open position is not re-watched.
func (c *Coordinator) WatchCandidate(cand *model.VCPCandidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, open := c.positions[cand.Symbol]; open {
		return
	}
	c.candidates[cand.Symbol] = cand
	log.Printf("[INFO] watching %s: pivot %.2f, score %d", cand.Symbol, cand.PivotPrice, cand.Score)
}

// Symbols returns every instrument the coordinator needs prices for.
func (c *Coordinator) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]bool, len(c.positions)+len(c.candidates))
	for s := range c.positions {
		seen[s] = true
	}
	for s := range c.candidates {
		seen[s] = true
	}
	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// OpenPositionCount reports how many positions are currently held.
func (c *Coordinator) OpenPositionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.positions)
}

// OnPriceTick processes one price update for one instrument. Held positions
// get a stop evaluation; watched candidates are checked for a breakout.
// volume is the current session's cumulative volume, or <= 0 when the price
// source cannot report it.
func (c *Coordinator) OnPriceTick(ctx context.Context, symbol string, price, volume float64) {
	if price <= 0 {
		return
	}
	lock := c.symbolLock(symbol)
	lock.Lock()

	c.mu.Lock()
	pos := c.positions[symbol]
	cand := c.candidates[symbol]
	busy := c.pending[symbol]
	halted := c.halted
	c.mu.Unlock()

	if busy {
		lock.Unlock()
		return
	}

	if pos != nil {
		c.evaluatePosition(ctx, lock, pos, price)
		return // evaluatePosition releases the lock
	}

	if cand != nil && !halted {
		if time.Since(cand.DetectedAt) > candidateTTL {
			c.dropCandidate(symbol)
			lock.Unlock()
			return
		}
		if breakout(cand, price, volume) {
			c.enter(ctx, lock, cand, price)
			return // enter releases the lock
		}
	}
	lock.Unlock()
}

// breakout reports whether price has cleared the pivot on confirming volume
// without being too extended to chase. A source that cannot report volume
// does not block the entry.
func breakout(cand *model.VCPCandidate, price, volume float64) bool {
	if price <= cand.PivotPrice {
		return false
	}
	if price > cand.PivotPrice*(1+maxExtensionPct/100) {
		return false
	}
	if volume > 0 && cand.AvgVolume > 0 && volume < cand.AvgVolume {
		return false
	}
	return true
}

// evaluatePosition runs one trailing-stop evaluation. Memory state updates
// synchronously under the symbol lock; recording and notification are
// deferred to a tracked goroutine so a slow sink cannot delay the next tick.
// The caller passes a held lock and this method releases it.
func (c *Coordinator) evaluatePosition(ctx context.Context, lock *sync.Mutex, pos *model.Position, price float64) {
	ev := c.controller.Evaluate(pos, price)
	// Position fields are read under c.mu by StatusSummary, so the write
	// happens under it too. The symbol lock alone serializes tick handlers.
	c.mu.Lock()
	risk.Apply(pos, ev)
	snapshot := *pos
	c.mu.Unlock()

	if ev.ShouldExit {
		c.setPending(pos.Symbol, true)
		lock.Unlock()
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.exit(ctx, &snapshot, price, ev.ExitReason)
		}()
		return
	}
	lock.Unlock()

	if ev.StopRaised || ev.LevelChanged {
		eventType := recorder.EventStopRaised
		if ev.LevelChanged {
			eventType = recorder.EventLevelUp
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.persistEvent(ctx, &recorder.PositionEvent{
				EventType: eventType,
				Position:  &snapshot,
				Price:     price,
			})
			if ev.LevelChanged {
				if err := c.notif.Notify(ctx, notifier.SeverityInfo,
					notifier.FormatStopUpdate(&snapshot, ev)); err != nil {
					log.Printf("[WARN] notify stop update %s: %v", snapshot.Symbol, err)
				}
			}
		}()
	}
}

// enter sizes and places a breakout buy. The caller passes a held symbol
// lock; it is released before any broker call and retaken to commit.
func (c *Coordinator) enter(ctx context.Context, lock *sync.Mutex, cand *model.VCPCandidate, price float64) {
	c.setPending(cand.Symbol, true)
	lock.Unlock()

	defer c.setPending(cand.Symbol, false)

	equity, err := c.broker.AccountEquity(ctx)
	if err != nil {
		log.Printf("[ERROR] entry %s: account equity: %v", cand.Symbol, err)
		return
	}
	buyingPower := equity
	if bp, ok := c.broker.(interface {
		BuyingPower(context.Context) (float64, error)
	}); ok {
		if v, err := bp.BuyingPower(ctx); err == nil {
			buyingPower = v
		}
	}

	initialStop := c.controller.InitialStop(price)
	sizing, err := c.sizer.Size(risk.SizingRequest{
		Symbol:        cand.Symbol,
		Equity:        equity,
		BuyingPower:   buyingPower,
		EntryPrice:    price,
		InitialStop:   initialStop,
		OpenPositions: c.OpenPositionCount(),
	})
	if err != nil {
		log.Printf("[ERROR] sizing %s: %v", cand.Symbol, err)
		return
	}
	if sizing.Rejected {
		log.Printf("[INFO] entry %s rejected: %s", cand.Symbol, sizing.Reason)
		c.recordRejection(ctx, cand.Symbol, price, sizing.Reason)
		return
	}

	handle, err := c.broker.PlaceOrder(ctx, cand.Symbol, broker.Buy, sizing.Quantity, broker.Market)
	if err != nil {
		log.Printf("[ERROR] place buy %s: %v", cand.Symbol, err)
		return
	}

	state, err := c.awaitFill(ctx, handle)
	if err != nil {
		log.Printf("[ERROR] buy %s did not fill: %v", cand.Symbol, err)
		return
	}
	if state.FilledQuantity == 0 {
		log.Printf("[WARN] buy %s: zero fill, abandoning entry", cand.Symbol)
		return
	}

	fillPrice := state.AvgFillPrice
	if fillPrice <= 0 {
		fillPrice = price
	}
	pos := &model.Position{
		Symbol:        cand.Symbol,
		EntryPrice:    fillPrice,
		Quantity:      state.FilledQuantity,
		EntryTime:     time.Now(),
		InitialStop:   c.controller.InitialStop(fillPrice),
		CurrentStop:   c.controller.InitialStop(fillPrice),
		StopLevel:     0,
		HighWaterMark: fillPrice,
	}

	lock.Lock()
	c.mu.Lock()
	c.positions[pos.Symbol] = pos
	delete(c.candidates, pos.Symbol)
	c.mu.Unlock()
	snapshot := *pos
	lock.Unlock()

	log.Printf("[INFO] entered %s: %d @ %.2f, stop %.2f", pos.Symbol, pos.Quantity, pos.EntryPrice, pos.CurrentStop)
	c.persistEvent(ctx, &recorder.PositionEvent{
		EventType: recorder.EventOpened,
		Position:  &snapshot,
		Price:     fillPrice,
	})
	if err := c.notif.Notify(ctx, notifier.SeverityInfo, notifier.FormatEntry(&snapshot, sizing)); err != nil {
		log.Printf("[WARN] notify entry %s: %v", pos.Symbol, err)
	}
}

// exit liquidates a position whose stop was hit. A failed exit order while
// price sits at or below the stop is the one condition that escalates to an
// urgent notification.
func (c *Coordinator) exit(ctx context.Context, snapshot *model.Position, price float64, reason string) {
	symbol := snapshot.Symbol
	defer c.setPending(symbol, false)

	handle, err := c.broker.PlaceOrder(ctx, symbol, broker.Sell, snapshot.Quantity, broker.Market)
	if err != nil {
		log.Printf("[ERROR] place sell %s: %v", symbol, err)
		c.urgent(ctx, fmt.Sprintf("exit order for %s FAILED with price %.2f at or below stop %.2f: %v",
			symbol, price, snapshot.CurrentStop, err))
		return
	}

	state, err := c.awaitFill(ctx, handle)
	if err != nil || state.FilledQuantity < snapshot.Quantity {
		filled := 0
		if err == nil {
			filled = state.FilledQuantity
		}
		log.Printf("[ERROR] sell %s incomplete (%d/%d): %v", symbol, filled, snapshot.Quantity, err)
		c.urgent(ctx, fmt.Sprintf("exit for %s incomplete (%d/%d filled), manual intervention needed",
			symbol, filled, snapshot.Quantity))
		if filled == 0 {
			return
		}
		// Partial exit: shrink the live position and let the next tick retry
		// the remainder.
		lock := c.symbolLock(symbol)
		lock.Lock()
		c.mu.Lock()
		if live := c.positions[symbol]; live != nil {
			live.Quantity -= filled
		}
		c.mu.Unlock()
		lock.Unlock()
		return
	}

	exitPrice := state.AvgFillPrice
	if exitPrice <= 0 {
		exitPrice = price
	}

	lock := c.symbolLock(symbol)
	lock.Lock()
	c.mu.Lock()
	delete(c.positions, symbol)
	c.mu.Unlock()
	lock.Unlock()

	r := snapshot.RMultiple(exitPrice)
	log.Printf("[INFO] exited %s: %d @ %.2f (%+.2fR): %s", symbol, snapshot.Quantity, exitPrice, r, reason)
	c.persistEvent(ctx, &recorder.PositionEvent{
		EventType: recorder.EventClosed,
		Position:  snapshot,
		Price:     exitPrice,
		RMultiple: r,
		Note:      reason,
	})
	if err := c.notif.Notify(ctx, notifier.SeverityInfo, notifier.FormatExit(snapshot, exitPrice, reason)); err != nil {
		log.Printf("[WARN] notify exit %s: %v", symbol, err)
	}
}

// awaitFill polls order status until a terminal state or the fill timeout.
// On timeout the order is canceled; whatever filled before cancellation is
// reported back to the caller.
func (c *Coordinator) awaitFill(ctx context.Context, handle broker.OrderHandle) (broker.OrderState, error) {
	deadline := time.NewTimer(fillTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(fillPollInterval)
	defer ticker.Stop()

	for {
		state, err := c.broker.GetOrderStatus(ctx, handle)
		if err != nil {
			return broker.OrderState{}, err
		}
		switch state.Status {
		case broker.StatusFilled:
			return state, nil
		case broker.StatusRejected:
			return state, fmt.Errorf("order %s rejected", handle.ID)
		case broker.StatusCanceled:
			return state, nil
		}

		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-deadline.C:
			if err := c.broker.CancelOrder(ctx, handle); err != nil {
				log.Printf("[WARN] cancel order %s: %v", handle.ID, err)
			}
			// One final read to capture fills that raced the cancel.
			if final, err := c.broker.GetOrderStatus(ctx, handle); err == nil {
				return final, nil
			}
			return state, nil
		case <-ticker.C:
		}
	}
}

// Shutdown halts new entries and drains in-flight exits and recording. Open
// positions remain open; their state is in the recorder for the next start.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.halted = true
	c.mu.Unlock()
	log.Println("[INFO] coordinator halted, draining in-flight work")

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

// StatusSummary renders current holdings and watched setups for the /status
// command.
func (c *Coordinator) StatusSummary() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Positions: %d/%d\n", len(c.positions), c.params.MaxPositions))
	symbols := make([]string, 0, len(c.positions))
	for s := range c.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for _, s := range symbols {
		p := c.positions[s]
		b.WriteString(fmt.Sprintf("  %s: %d @ %.2f, stop %.2f (level %d), high %.2f\n",
			s, p.Quantity, p.EntryPrice, p.CurrentStop, p.StopLevel, p.HighWaterMark))
	}
	b.WriteString(fmt.Sprintf("Watching: %d\n", len(c.candidates)))
	watched := make([]string, 0, len(c.candidates))
	for s := range c.candidates {
		watched = append(watched, s)
	}
	sort.Strings(watched)
	for _, s := range watched {
		cand := c.candidates[s]
		b.WriteString(fmt.Sprintf("  %s: pivot %.2f, score %d\n", s, cand.PivotPrice, cand.Score))
	}
	return b.String()
}

func (c *Coordinator) symbolLock(symbol string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[symbol] = lock
	}
	return lock
}

func (c *Coordinator) setPending(symbol string, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v {
		c.pending[symbol] = true
	} else {
		delete(c.pending, symbol)
	}
}

func (c *Coordinator) dropCandidate(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.candidates, symbol)
	log.Printf("[INFO] candidate %s expired unwatched", symbol)
}

func (c *Coordinator) recordRejection(ctx context.Context, symbol string, price float64, reason string) {
	c.persistEvent(ctx, &recorder.PositionEvent{
		EventType: recorder.EventRejected,
		Position:  &model.Position{Symbol: symbol},
		Price:     price,
		Note:      reason,
	})
}

// persistEvent writes a lifecycle event, retrying transient failures with
// backoff. In-memory state stays authoritative; a write that never lands is
// escalated to the operator instead of silently dropping audit history.
func (c *Coordinator) persistEvent(ctx context.Context, evt *recorder.PositionEvent) {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	err := backoff.Retry(func() error {
		return c.recorder.RecordPositionEvent(evt)
	}, bo)
	if err != nil {
		log.Printf("[ERROR] record %s %s: %v", evt.EventType, evt.Position.Symbol, err)
		c.urgent(ctx, fmt.Sprintf("failed to persist %s event for %s, state will not survive a restart: %v",
			evt.EventType, evt.Position.Symbol, err))
	}
}

func (c *Coordinator) urgent(ctx context.Context, text string) {
	if err := c.notif.Notify(ctx, notifier.SeverityUrgent, text); err != nil {
		log.Printf("[ERROR] urgent notify failed: %v", err)
	}
}
