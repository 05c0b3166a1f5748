package screener

import (
	"errors"
	"fmt"
	"log"

	"VCPSentinel/internal/calculator"
	"VCPSentinel/internal/model"
)

// ErrUniverseTooSmall is returned when the peer universe is too thin for a
// meaningful percentile. Ranking must not silently degrade below this size.
var ErrUniverseTooSmall = errors.New("peer universe too small for percentile ranking")

// DefaultMinUniverse is the smallest peer universe a percentile is computed against.
const DefaultMinUniverse = 30

// Ranker computes relative-strength percentile ratings for a universe of
// instruments. Performance is a weighted blend of trailing 3/6/9/12-month
// returns, with the most recent quarter counted double.
type Ranker struct {
	MinUniverse int
}

// NewRanker creates a ranker with the given minimum universe size
// (DefaultMinUniverse when <= 0).
func NewRanker(minUniverse int) *Ranker {
	if minUniverse <= 0 {
		minUniverse = DefaultMinUniverse
	}
	return &Ranker{MinUniverse: minUniverse}
}

// Ratings ranks every snapshot against the rest of the universe and returns a
// rating per symbol. Instruments with too little history rank with a raw
// performance of 0 rather than dropping out, so the percentile base stays
// stable across the scan.
func (r *Ranker) Ratings(universe map[string]*model.SeriesSnapshot) (map[string]*model.RSRating, error) {
	if len(universe) < r.MinUniverse {
		return nil, fmt.Errorf("%d peers (need %d): %w", len(universe), r.MinUniverse, ErrUniverseTooSmall)
	}

	raw := make(map[string]float64, len(universe))
	for symbol, snap := range universe {
		perf, err := calculator.WeightedPerformance(snap.Closes())
		if err != nil {
			log.Printf("[WARN] %s: weighted performance unavailable, ranking at 0: %v", symbol, err)
			perf = 0
		}
		raw[symbol] = perf
	}

	values := make([]float64, 0, len(raw))
	for _, v := range raw {
		values = append(values, v)
	}

	ratings := make(map[string]*model.RSRating, len(universe))
	for symbol, v := range raw {
		below := 0
		for _, other := range values {
			if other < v {
				below++
			}
		}
		ratings[symbol] = &model.RSRating{
			Symbol:     symbol,
			Percentile: float64(below) / float64(len(values)) * 100,
			RawRS:      v,
			AsOf:       universe[symbol].AsOf(),
		}
	}
	return ratings, nil
}
