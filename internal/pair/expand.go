// Package pair implements the preference-pair construction and rebalancing
// engine: pairwise expansion of ranked records, seeded train/test splitting,
// exact-ratio downsampling, and canonicalization / controlled-noise flipping.
package pair

import (
	"github.com/lamim/prefforge/pkg/models"
)

// Expand turns one multi-candidate ranked record into all valid binary
// comparisons. Every unordered index pair (i, j) with i < j is considered;
// the higher-scoring candidate becomes chosen and the other rejected. Pairs
// with tied scores are dropped: they carry no signal to learn from, which is
// a deliberate policy rather than an oversight.
//
// A record with fewer than two candidates yields zero pairs, not an error.
func Expand(rec models.PromptRecord) []models.ComparisonPair {
	if len(rec.Candidates) < 2 {
		return nil
	}

	var pairs []models.ComparisonPair
	for i := 0; i < len(rec.Candidates); i++ {
		for j := i + 1; j < len(rec.Candidates); j++ {
			a := rec.Candidates[i]
			b := rec.Candidates[j]

			var chosen, rejected models.Candidate
			switch {
			case a.Score > b.Score:
				chosen, rejected = a, b
			case b.Score > a.Score:
				chosen, rejected = b, a
			default:
				// Tie: no preference signal, skip the pair.
				continue
			}

			chosenScore := chosen.Score
			rejectedScore := rejected.Score
			pairs = append(pairs, models.ComparisonPair{
				Conversations: []models.Turn{
					{From: "human", Value: rec.Prompt},
				},
				Chosen:         models.Response{From: "gpt", Value: chosen.Response},
				Rejected:       models.Response{From: "gpt", Value: rejected.Response},
				ChosenScore:    &chosenScore,
				RejectedScore:  &rejectedScore,
				ChosenSource:   chosen.Source,
				RejectedSource: rejected.Source,
			})
		}
	}

	return pairs
}

// ExpandAll expands every record into a flat pair collection, preserving
// record order. It also returns the number of input records that produced no
// pairs (empty candidate lists or all-tied scores) so callers can surface a
// skip count.
func ExpandAll(recs []models.PromptRecord) ([]models.ComparisonPair, int) {
	var all []models.ComparisonPair
	skipped := 0

	for _, rec := range recs {
		pairs := Expand(rec)
		if len(pairs) == 0 {
			skipped++
			continue
		}
		all = append(all, pairs...)
	}

	return all, skipped
}
