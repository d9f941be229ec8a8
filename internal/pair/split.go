package pair

import (
	"math/rand"

	"github.com/lamim/prefforge/pkg/models"
)

// Split deterministically shuffles a pair collection and partitions it into
// disjoint (train, test) subsets with |train| = floor(len(pairs) * trainRatio).
//
// The shuffle is a Fisher–Yates shuffle as implemented by math/rand's
// (*Rand).Shuffle; the generator must be created with rand.New(rand.NewSource(seed))
// so that identical input order and identical seed produce a bit-for-bit
// identical split across runs. The input slice is not modified.
func Split(pairs []models.ComparisonPair, trainRatio float64, rng *rand.Rand) (train, test []models.ComparisonPair) {
	shuffled := make([]models.ComparisonPair, len(pairs))
	copy(shuffled, pairs)

	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	splitIdx := int(float64(len(shuffled)) * trainRatio)
	return shuffled[:splitIdx], shuffled[splitIdx:]
}
