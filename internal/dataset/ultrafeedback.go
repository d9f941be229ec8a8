package dataset

import (
	"github.com/lamim/prefforge/pkg/models"
)

// FromUltraFeedback converts one binarized preference record into a
// ComparisonPair. The user turns of the chosen conversation become the
// conversation context; the final assistant turn of each side becomes the
// chosen/rejected response. Records with no assistant turn on either side
// are unusable and reported via the boolean.
func FromUltraFeedback(rec models.UltraFeedbackRecord) (models.ComparisonPair, bool) {
	var turns []models.Turn
	var chosen string
	for _, msg := range rec.Chosen {
		switch msg.Role {
		case "user":
			turns = append(turns, models.Turn{From: "human", Value: msg.Content})
		case "assistant":
			chosen = msg.Content
		}
	}

	var rejected string
	for _, msg := range rec.Rejected {
		if msg.Role == "assistant" {
			rejected = msg.Content
		}
	}

	if chosen == "" || rejected == "" {
		return models.ComparisonPair{}, false
	}
	if len(turns) == 0 && rec.Prompt != "" {
		turns = []models.Turn{{From: "human", Value: rec.Prompt}}
	}

	pair := models.ComparisonPair{
		Conversations:  turns,
		Chosen:         models.Response{From: "gpt", Value: chosen},
		Rejected:       models.Response{From: "gpt", Value: rejected},
		ChosenScore:    rec.ScoreChosen,
		RejectedScore:  rec.ScoreRejected,
		ChosenSource:   rec.Source,
		RejectedSource: rec.Source,
	}
	return pair, true
}

// FromUltraFeedbackAll converts a record slice, skipping unusable records and
// returning the skip count. An optional cap limits how many records are
// converted (0 means no cap).
func FromUltraFeedbackAll(recs []models.UltraFeedbackRecord, maxSamples int) ([]models.ComparisonPair, int) {
	if maxSamples > 0 && maxSamples < len(recs) {
		recs = recs[:maxSamples]
	}

	var pairs []models.ComparisonPair
	skipped := 0
	for _, rec := range recs {
		pair, ok := FromUltraFeedback(rec)
		if !ok {
			skipped++
			continue
		}
		pairs = append(pairs, pair)
	}
	return pairs, skipped
}
