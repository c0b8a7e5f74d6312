// internal/analytics/projector.go
package analytics

import (
	"errors"
	"fmt"
	"math"

	"shoe-size-analytics/internal/models"
)

var ErrInvalidWeights = errors.New("invalid projector weights")

// Projector scores next-cycle demand per size:
//
//	predicted = currentCount·decay + trendWeight·totalCurrent·max(0, currentShare − priorShare)
//
// Without a prior period the trend term is zero and the ranking equals the
// historical one.
type Projector struct {
	decay       float64
	trendWeight float64
}

func NewProjector(decay, trendWeight float64) (*Projector, error) {
	if !(decay > 0 && decay <= 1) {
		return nil, fmt.Errorf("%w: decay weight %v not in (0,1]", ErrInvalidWeights, decay)
	}
	if trendWeight < 0 || math.IsNaN(trendWeight) || math.IsInf(trendWeight, 0) {
		return nil, fmt.Errorf("%w: trend weight %v must be >= 0", ErrInvalidWeights, trendWeight)
	}
	return &Projector{decay: decay, trendWeight: trendWeight}, nil
}

// Scores returns the unrounded predicted demand for every size in current.
func (p *Projector) Scores(current, prior map[float64]int) map[float64]float64 {
	scores := make(map[float64]float64, len(current))

	total := sum(current)
	priorTotal := sum(prior)
	for size, count := range current {
		if count <= 0 {
			continue
		}
		bonus := 0.0
		if priorTotal > 0 && total > 0 {
			share := float64(count) / float64(total)
			priorShare := float64(prior[size]) / float64(priorTotal)
			bonus = p.trendWeight * float64(total) * math.Max(0, share-priorShare)
		}
		scores[size] = float64(count)*p.decay + bonus
	}
	return scores
}

// Project ranks the unrounded scores and keeps n entries at most. Only the
// reported demand is rounded to two decimals, so a small decay never reorders
// or drops sizes.
func (p *Projector) Project(current, prior map[float64]int, n int) []models.PredictedSizeStat {
	ranked := TopN(p.Scores(current, prior), n)
	out := make([]models.PredictedSizeStat, len(ranked))
	for i, r := range ranked {
		out[i] = models.PredictedSizeStat{Size: r.Key, PredictedDemand: round2(r.Value)}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sum(m map[float64]int) int {
	total := 0
	for _, c := range m {
		if c > 0 {
			total += c
		}
	}
	return total
}
