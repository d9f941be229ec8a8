package pair

import (
	"math/rand"

	"github.com/lamim/prefforge/pkg/models"
)

// Canonicalize enforces the invariant chosen_score >= rejected_score on every
// pair: where the chosen side scored strictly below the rejected side, the
// chosen and rejected sub-records (text, score, source) are swapped. Pairs
// already satisfying the invariant, and pairs lacking either score, pass
// through untouched. The operation is idempotent.
//
// Swapped pairs are rebuilt as new records rather than mutated in place, so
// shared text or score values are never aliased across pairs.
func Canonicalize(pairs []models.ComparisonPair) ([]models.ComparisonPair, int) {
	out := make([]models.ComparisonPair, len(pairs))
	flipped := 0

	for i, p := range pairs {
		if Mislabeled(&p) {
			out[i] = swapSides(p, true)
			flipped++
		} else {
			out[i] = p
		}
	}

	return out, flipped
}

// FlipNoise independently swaps each pair's chosen and rejected responses
// with probability flipRatio (a Bernoulli trial per pair), producing a
// controlled fraction of mislabeled pairs for robustness experiments.
//
// Scores are not consulted and not moved: the swap is a structural
// permutation of the response texts only, so scored pairs keep their score
// fields describing the original assignment. Unlike Canonicalize this is not
// idempotent; reproducibility requires an identically seeded generator.
func FlipNoise(pairs []models.ComparisonPair, flipRatio float64, rng *rand.Rand) ([]models.ComparisonPair, int) {
	out := make([]models.ComparisonPair, len(pairs))
	flipped := 0

	for i, p := range pairs {
		if rng.Float64() < flipRatio {
			out[i] = swapSides(p, false)
			flipped++
		} else {
			out[i] = p
		}
	}

	return out, flipped
}

// swapSides returns a new pair with chosen and rejected exchanged. When
// withScores is set, the score and source fields travel with their text;
// otherwise only the response sub-records move.
func swapSides(p models.ComparisonPair, withScores bool) models.ComparisonPair {
	swapped := p
	swapped.Chosen = p.Rejected
	swapped.Rejected = p.Chosen
	if withScores {
		swapped.ChosenScore = p.RejectedScore
		swapped.RejectedScore = p.ChosenScore
		swapped.ChosenSource = p.RejectedSource
		swapped.RejectedSource = p.ChosenSource
	}
	return swapped
}
