package pair

import (
	"fmt"
	"math/rand"

	"github.com/lamim/prefforge/pkg/models"
)

// Mislabeled is the rebalancing predicate: true when the chosen side scored
// strictly below the rejected side. Pairs lacking either score are treated as
// NOT mislabeled — they fall into the keep class and are never dropped for
// missing data. This is a named policy, not an accident: unscored pairs must
// not be lost silently.
func Mislabeled(p *models.ComparisonPair) bool {
	return p.HasScores() && *p.ChosenScore < *p.RejectedScore
}

// RebalancePlan records what the rebalancer decided and achieved.
type RebalancePlan struct {
	TotalMislabeled int     // class size a (predicate true)
	TotalWellabeled int     // class size b (predicate false, incl. unscored)
	KeptMislabeled  int
	KeptWellabeled  int
	AchievedRatio   float64
	Passthrough     bool    // input had no mislabeled pairs and was returned unchanged
}

// Rebalance samples the input so that the fraction of mislabeled pairs
// (chosen_score < rejected_score) in the output equals targetRatio, keeping
// as many pairs as possible.
//
// The larger class is kept intact where the arithmetic allows: with class
// sizes a (mislabeled) and b (rest), keeping all of B requires
// floor(r*b/(1-r)) mislabeled pairs; when A cannot supply that many, all of A
// is kept instead and B is cut to floor(a*(1-r)/r). Counts are clamped to
// [0, class size]. Sampling within a class is a seeded shuffle followed by a
// prefix take (uniform, without replacement), and the concatenated result is
// shuffled once more so output order carries no class information.
//
// A collection with no mislabeled pairs is returned unchanged with
// Passthrough set: dropping pairs cannot move the ratio anywhere but zero, so
// discarding data would be pure loss. Canonicalized files hit this case.
func Rebalance(pairs []models.ComparisonPair, targetRatio float64, rng *rand.Rand) ([]models.ComparisonPair, RebalancePlan, error) {
	if targetRatio < 0 || targetRatio > 1 {
		return nil, RebalancePlan{}, fmt.Errorf("target ratio must be between 0.0 and 1.0 (got %v)", targetRatio)
	}

	var mislabeled, rest []models.ComparisonPair
	for _, p := range pairs {
		if Mislabeled(&p) {
			mislabeled = append(mislabeled, p)
		} else {
			rest = append(rest, p)
		}
	}

	a := len(mislabeled)
	b := len(rest)
	plan := RebalancePlan{TotalMislabeled: a, TotalWellabeled: b}

	if a == 0 {
		plan.KeptWellabeled = b
		plan.Passthrough = true
		out := make([]models.ComparisonPair, len(pairs))
		copy(out, pairs)
		return out, plan, nil
	}

	var neededA, neededB int
	switch {
	case targetRatio == 0:
		neededA, neededB = 0, b
	case targetRatio == 1:
		neededA, neededB = a, 0
	default:
		// Keep all of B if A can supply the ratio.
		neededA = int(targetRatio * float64(b) / (1 - targetRatio))
		if neededA > a {
			// A is the bottleneck: keep all of A, cut B.
			neededA = a
			neededB = int(float64(a) * (1 - targetRatio) / targetRatio)
		} else {
			neededB = b
		}
	}

	neededA = clamp(neededA, 0, a)
	neededB = clamp(neededB, 0, b)

	sampledA := sample(mislabeled, neededA, rng)
	sampledB := sample(rest, neededB, rng)

	out := make([]models.ComparisonPair, 0, len(sampledA)+len(sampledB))
	out = append(out, sampledA...)
	out = append(out, sampledB...)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})

	plan.KeptMislabeled = neededA
	plan.KeptWellabeled = neededB
	if len(out) > 0 {
		plan.AchievedRatio = float64(neededA) / float64(len(out))
	}

	return out, plan, nil
}

// sample returns n pairs drawn uniformly without replacement: shuffle a copy,
// take the prefix. The input slice is not modified.
func sample(pairs []models.ComparisonPair, n int, rng *rand.Rand) []models.ComparisonPair {
	shuffled := make([]models.ComparisonPair, len(pairs))
	copy(shuffled, pairs)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
