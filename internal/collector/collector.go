package collector

import (
	"context"
	"fmt"
	"log"
	"sync"

	"VCPSentinel/internal/broker"
	"VCPSentinel/internal/model"
)

// historyDays is the daily-bar window requested per instrument. It covers the
// 252-day return lookback plus the 30-bar MA200 slope comparison.
const historyDays = 300

// Collector builds price-series snapshots for a universe of instruments. It
// fans fetches out over a bounded worker pool so one slow symbol does not
// serialize the whole scan.
type Collector struct {
	Source  broker.HistorySource
	Workers int
}

// NewCollector creates a collector over the given history source. workers <= 0
// selects a default of 4.
func NewCollector(source broker.HistorySource, workers int) *Collector {
	if workers <= 0 {
		workers = 4
	}
	return &Collector{Source: source, Workers: workers}
}

// Collect fetches history for every symbol and returns the snapshots that
// built successfully. Per-symbol failures are logged and skipped; the scan
// proceeds on whatever survives. An error is returned only when nothing does.
func (c *Collector) Collect(ctx context.Context, symbols []string) (map[string]*model.SeriesSnapshot, error) {
	type result struct {
		symbol string
		snap   *model.SeriesSnapshot
		err    error
	}

	jobs := make(chan string)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < c.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				snap, err := c.collectOne(ctx, symbol)
				results <- result{symbol: symbol, snap: snap, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, symbol := range symbols {
			select {
			case jobs <- symbol:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	snapshots := make(map[string]*model.SeriesSnapshot, len(symbols))
	for r := range results {
		if r.err != nil {
			log.Printf("[WARN] collect %s: %v", r.symbol, r.err)
			continue
		}
		snapshots[r.symbol] = r.snap
	}

	if len(snapshots) == 0 && len(symbols) > 0 {
		return nil, fmt.Errorf("collect: all %d symbols failed", len(symbols))
	}
	return snapshots, nil
}

func (c *Collector) collectOne(ctx context.Context, symbol string) (*model.SeriesSnapshot, error) {
	bars, err := c.Source.GetPriceHistory(ctx, symbol, historyDays)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars returned")
	}
	snap, err := model.NewSeriesSnapshot(symbol, bars)
	if err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}
	return snap, nil
}
