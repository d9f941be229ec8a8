package pair

import (
	"strings"

	"github.com/lamim/prefforge/pkg/models"
)

// ToSFT projects a pair collection into single-output supervised records:
// the first human turn in the conversation becomes the instruction, the
// chosen response becomes the output, and input stays empty by convention.
//
// The projection is strictly lossy: the rejected side and both scores are
// discarded. Pairs with no human turn or an empty chosen response are skipped
// as a data-quality filter, not an error; the skip count is returned.
func ToSFT(pairs []models.ComparisonPair) ([]models.SFTRecord, int) {
	var out []models.SFTRecord
	skipped := 0

	for _, p := range pairs {
		instruction := FirstHumanTurn(p.Conversations)
		if instruction == "" || p.Chosen.Value == "" {
			skipped++
			continue
		}

		out = append(out, models.SFTRecord{
			Instruction: instruction,
			Input:       "",
			Output:      p.Chosen.Value,
		})
	}

	return out, skipped
}

// FirstHumanTurn returns the value of the first human-originated turn, or the
// empty string when the conversation has none.
func FirstHumanTurn(turns []models.Turn) string {
	for _, t := range turns {
		from := strings.ToLower(strings.TrimSpace(t.From))
		if from == "human" || from == "user" {
			return t.Value
		}
	}
	return ""
}
