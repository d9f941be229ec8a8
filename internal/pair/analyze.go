package pair

import (
	"math"
	"sort"

	"github.com/lamim/prefforge/pkg/models"
)

// ScoreStats summarizes one side's score distribution.
type ScoreStats struct {
	Count  int
	Mean   float64
	Median float64
	Min    float64
	Max    float64
	Stdev  float64
}

// Analysis reports how chosen and rejected scores relate across a collection.
type Analysis struct {
	TotalPairs    int
	ScoredPairs   int
	UnscoredPairs int
	GreaterCount  int // chosen_score > rejected_score
	EqualCount    int
	LessCount     int
	ChosenStats   ScoreStats
	RejectedStats ScoreStats
}

// GreaterRatio is the key rebalancing metric: the fraction of scored pairs
// where the chosen side actually scored higher.
func (a Analysis) GreaterRatio() float64 {
	if a.ScoredPairs == 0 {
		return 0
	}
	return float64(a.GreaterCount) / float64(a.ScoredPairs)
}

// Analyze computes score statistics over a pair collection. Pairs lacking
// either score are counted but excluded from the distributions.
func Analyze(pairs []models.ComparisonPair) Analysis {
	a := Analysis{TotalPairs: len(pairs)}

	var chosenScores, rejectedScores []float64
	for _, p := range pairs {
		if !p.HasScores() {
			a.UnscoredPairs++
			continue
		}
		a.ScoredPairs++
		cs, rs := *p.ChosenScore, *p.RejectedScore
		chosenScores = append(chosenScores, cs)
		rejectedScores = append(rejectedScores, rs)

		switch {
		case cs > rs:
			a.GreaterCount++
		case cs == rs:
			a.EqualCount++
		default:
			a.LessCount++
		}
	}

	a.ChosenStats = summarize(chosenScores)
	a.RejectedStats = summarize(rejectedScores)
	return a
}

func summarize(scores []float64) ScoreStats {
	s := ScoreStats{Count: len(scores)}
	if len(scores) == 0 {
		return s
	}

	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	s.Mean = sum / float64(len(sorted))

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		s.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		s.Median = sorted[mid]
	}

	if len(sorted) > 1 {
		var sq float64
		for _, v := range sorted {
			d := v - s.Mean
			sq += d * d
		}
		s.Stdev = math.Sqrt(sq / float64(len(sorted)-1))
	}

	return s
}
