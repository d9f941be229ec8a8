package pair

import (
	"testing"

	"github.com/lamim/prefforge/pkg/models"
)

func TestExpand_AllPairsNoTies(t *testing.T) {
	rec := models.PromptRecord{
		Prompt: "P",
		Candidates: []models.Candidate{
			{Response: "A", Score: 1, Source: "m1"},
			{Response: "B", Score: 2, Source: "m2"},
			{Response: "C", Score: 3, Source: "m3"},
			{Response: "D", Score: 4, Source: "m4"},
		},
	}

	pairs := Expand(rec)

	// C(4,2) = 6 pairs with no ties
	if len(pairs) != 6 {
		t.Fatalf("Expected 6 pairs, got %d", len(pairs))
	}

	for i, p := range pairs {
		if p.ChosenScore == nil || p.RejectedScore == nil {
			t.Fatalf("Pair %d missing scores", i)
		}
		if *p.ChosenScore <= *p.RejectedScore {
			t.Errorf("Pair %d: chosen score %v not strictly greater than rejected %v",
				i, *p.ChosenScore, *p.RejectedScore)
		}
		if len(p.Conversations) != 1 || p.Conversations[0].From != "human" || p.Conversations[0].Value != "P" {
			t.Errorf("Pair %d: unexpected conversation context %+v", i, p.Conversations)
		}
		if p.Chosen.From != "gpt" || p.Rejected.From != "gpt" {
			t.Errorf("Pair %d: responses should be tagged gpt", i)
		}
	}
}

func TestExpand_TiesDropped(t *testing.T) {
	// A=3, B=5, C=5: (A,B) and (A,C) survive, (B,C) is a tie and is dropped.
	rec := models.PromptRecord{
		Prompt: "P",
		Candidates: []models.Candidate{
			{Response: "A", Score: 3},
			{Response: "B", Score: 5},
			{Response: "C", Score: 5},
		},
	}

	pairs := Expand(rec)

	if len(pairs) != 2 {
		t.Fatalf("Expected 2 pairs, got %d", len(pairs))
	}

	if pairs[0].Chosen.Value != "B" || pairs[0].Rejected.Value != "A" {
		t.Errorf("Pair 0: expected chosen B / rejected A, got %q / %q",
			pairs[0].Chosen.Value, pairs[0].Rejected.Value)
	}
	if pairs[1].Chosen.Value != "C" || pairs[1].Rejected.Value != "A" {
		t.Errorf("Pair 1: expected chosen C / rejected A, got %q / %q",
			pairs[1].Chosen.Value, pairs[1].Rejected.Value)
	}
}

func TestExpand_CopiesScoreAndSource(t *testing.T) {
	rec := models.PromptRecord{
		Prompt: "P",
		Candidates: []models.Candidate{
			{Response: "low", Score: 1.5, Source: "weak-model"},
			{Response: "high", Score: 7.25, Source: "strong-model"},
		},
	}

	pairs := Expand(rec)
	if len(pairs) != 1 {
		t.Fatalf("Expected 1 pair, got %d", len(pairs))
	}

	p := pairs[0]
	if *p.ChosenScore != 7.25 || *p.RejectedScore != 1.5 {
		t.Errorf("Scores not copied: chosen=%v rejected=%v", *p.ChosenScore, *p.RejectedScore)
	}
	if p.ChosenSource != "strong-model" || p.RejectedSource != "weak-model" {
		t.Errorf("Sources not copied: chosen=%q rejected=%q", p.ChosenSource, p.RejectedSource)
	}
}

func TestExpand_DegenerateRecords(t *testing.T) {
	tests := []struct {
		name string
		rec  models.PromptRecord
	}{
		{name: "no_candidates", rec: models.PromptRecord{Prompt: "P"}},
		{name: "one_candidate", rec: models.PromptRecord{
			Prompt:     "P",
			Candidates: []models.Candidate{{Response: "A", Score: 1}},
		}},
		{name: "all_tied", rec: models.PromptRecord{
			Prompt: "P",
			Candidates: []models.Candidate{
				{Response: "A", Score: 2},
				{Response: "B", Score: 2},
				{Response: "C", Score: 2},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if pairs := Expand(tt.rec); len(pairs) != 0 {
				t.Errorf("Expected 0 pairs, got %d", len(pairs))
			}
		})
	}
}

func TestExpandAll_CountsSkippedRecords(t *testing.T) {
	recs := []models.PromptRecord{
		{Prompt: "A", Candidates: []models.Candidate{
			{Response: "r1", Score: 1},
			{Response: "r2", Score: 2},
		}},
		{Prompt: "B"}, // no candidates
		{Prompt: "C", Candidates: []models.Candidate{
			{Response: "r1", Score: 3},
			{Response: "r2", Score: 3}, // tie only
		}},
	}

	pairs, skipped := ExpandAll(recs)

	if len(pairs) != 1 {
		t.Errorf("Expected 1 pair, got %d", len(pairs))
	}
	if skipped != 2 {
		t.Errorf("Expected 2 skipped records, got %d", skipped)
	}
}
