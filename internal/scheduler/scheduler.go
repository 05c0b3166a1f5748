package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"VCPSentinel/internal/broker"
	"VCPSentinel/internal/notifier"
	"VCPSentinel/internal/scanner"
	"VCPSentinel/internal/trader"
)

// Scheduler drives the two loops: a cron-scheduled universe scan and a
// steady price-poll ticker that feeds the coordinator.
type Scheduler struct {
	Cron        *cron.Cron
	Scanner     *scanner.Scanner
	Coordinator *trader.Coordinator
	Source      broker.HistorySource
	Notifier    notifier.Notifier
	Universe    []string
	Ctx         context.Context

	pollInterval time.Duration
}

// New creates a scheduler. pollInterval <= 0 selects 30 seconds.
func New(ctx context.Context, sc *scanner.Scanner, coord *trader.Coordinator,
	source broker.HistorySource, n notifier.Notifier, universe []string, pollInterval time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Scheduler{
		Cron:         cron.New(cron.WithSeconds()),
		Scanner:      sc,
		Coordinator:  coord,
		Source:       source,
		Notifier:     n,
		Universe:     universe,
		Ctx:          ctx,
		pollInterval: pollInterval,
	}
}

// RegisterScan registers the scan job on the given cron expression
// (with-seconds format, e.g. "0 30 16 * * 1-5" for 16:30 on weekdays).
func (s *Scheduler) RegisterScan(scanCron string) error {
	if _, err := s.Cron.AddFunc(scanCron, s.scanTask); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler and the price poll loop.
func (s *Scheduler) Start() {
	s.Cron.Start()
	go s.pollLoop()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler. The poll loop exits with the context.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunScanNow executes the scan immediately (manual trigger / RUN_ON_START).
func (s *Scheduler) RunScanNow() { s.scanTask() }

func (s *Scheduler) scanTask() {
	log.Println("[INFO] running universe scan")
	report, err := s.Scanner.Scan(s.Ctx, s.Universe)
	if err != nil {
		log.Printf("[ERROR] scan: %v", err)
		s.trySend(notifier.SeverityWarning, fmt.Sprintf("scan failed: %v", err))
		return
	}

	for _, cand := range report.Candidates {
		s.Coordinator.WatchCandidate(cand)
		s.trySend(notifier.SeverityInfo, notifier.FormatCandidateAlert(cand, report.Ratings[cand.Symbol]))
	}

	if len(report.Candidates) > 0 {
		if err := notifier.RenderScanTable(os.Stdout, report.Candidates, report.Ratings); err != nil {
			log.Printf("[WARN] render scan table: %v", err)
		}
	}
	s.trySend(notifier.SeverityInfo,
		notifier.FormatScanSummary(report.UniverseSize, report.TrendPassed, report.Candidates))
}

// pollLoop fetches a fresh price for every tracked instrument each interval
// and feeds it to the coordinator. Stop evaluation happens on every price
// the system observes.
func (s *Scheduler) pollLoop() {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.Ctx.Done():
			log.Println("[INFO] price poll loop stopped")
			return
		case <-ticker.C:
		}

		quotes, _ := s.Source.(broker.QuoteSource)
		for _, symbol := range s.Coordinator.Symbols() {
			var price, volume float64
			var err error
			if quotes != nil {
				price, volume, err = quotes.CurrentQuote(s.Ctx, symbol)
			} else {
				price, err = s.Source.CurrentPrice(s.Ctx, symbol)
			}
			if err != nil {
				if s.Ctx.Err() != nil {
					return
				}
				log.Printf("[WARN] price %s: %v", symbol, err)
				continue
			}
			s.Coordinator.OnPriceTick(s.Ctx, symbol, price, volume)
		}
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/scan":
		go s.scanTask()
		return "scan started"
	case "/status", "/positions":
		return s.Coordinator.StatusSummary()
	default:
		return "commands:\n• /scan\n• /status\n• /positions"
	}
}

func (s *Scheduler) trySend(sev notifier.Severity, text string) {
	if err := s.Notifier.Notify(s.Ctx, sev, text); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
