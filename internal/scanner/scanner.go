package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"VCPSentinel/internal/collector"
	"VCPSentinel/internal/model"
	"VCPSentinel/internal/recorder"
	"VCPSentinel/internal/risk"
	"VCPSentinel/internal/screener"
)

// Report is the outcome of one full universe scan.
type Report struct {
	StartedAt    time.Time
	UniverseSize int
	Collected    int
	TrendPassed  int
	Candidates   []*model.VCPCandidate // sorted best score first
	Ratings      map[string]*model.RSRating
}

// Scanner runs the screening pipeline: collect history, rank relative
// strength, apply the trend template, then look for contraction patterns in
// the survivors.
type Scanner struct {
	collector *collector.Collector
	ranker    *screener.Ranker
	trend     *screener.TrendEvaluator
	detector  *screener.Detector
	recorder  recorder.Recorder
	params    risk.Params
}

// New creates a scanner. The recorder may be a NoopRecorder.
func New(c *collector.Collector, ranker *screener.Ranker, trend *screener.TrendEvaluator,
	detector *screener.Detector, rec recorder.Recorder, params risk.Params) *Scanner {
	return &Scanner{
		collector: c,
		ranker:    ranker,
		trend:     trend,
		detector:  detector,
		recorder:  rec,
		params:    params,
	}
}

// Scan runs the pipeline over the universe. Per-symbol failures are logged
// and skipped; the returned error covers only whole-scan failures (nothing
// collected, universe below the ranking minimum).
func (s *Scanner) Scan(ctx context.Context, symbols []string) (*Report, error) {
	report := &Report{
		StartedAt:    time.Now(),
		UniverseSize: len(symbols),
	}

	snapshots, err := s.collector.Collect(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	report.Collected = len(snapshots)

	ratings, err := s.ranker.Ratings(snapshots)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	report.Ratings = ratings

	for symbol, snap := range snapshots {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Detection runs first so the trend template can judge "above base"
		// against the actual base low when a pattern exists.
		cand := s.detector.Detect(snap)
		baseLow := 0.0
		if cand != nil {
			baseLow = cand.BaseLow
		}

		score, err := s.trend.Evaluate(snap, ratings[symbol], baseLow)
		if err != nil {
			if !errors.Is(err, screener.ErrInsufficientHistory) {
				log.Printf("[WARN] trend %s: %v", symbol, err)
			}
			continue
		}
		if err := s.recorder.RecordTrendScore(score); err != nil {
			log.Printf("[WARN] record trend %s: %v", symbol, err)
		}
		if !score.Passed {
			continue
		}
		report.TrendPassed++

		if cand == nil {
			continue
		}
		if cand.Score < s.params.MinVCPScore {
			log.Printf("[INFO] %s: pattern score %d below minimum %d", symbol, cand.Score, s.params.MinVCPScore)
			continue
		}
		if rs := ratings[symbol]; rs == nil || rs.Percentile < s.params.MinRSRating {
			continue
		}

		if err := s.recorder.RecordCandidate(cand); err != nil {
			log.Printf("[WARN] record candidate %s: %v", symbol, err)
		}
		report.Candidates = append(report.Candidates, cand)
	}

	sort.Slice(report.Candidates, func(i, j int) bool {
		if report.Candidates[i].Score != report.Candidates[j].Score {
			return report.Candidates[i].Score > report.Candidates[j].Score
		}
		return report.Candidates[i].Symbol < report.Candidates[j].Symbol
	})

	log.Printf("[INFO] scan complete: %d/%d collected, %d passed trend, %d setups",
		report.Collected, report.UniverseSize, report.TrendPassed, len(report.Candidates))
	return report, nil
}
