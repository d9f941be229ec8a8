package dataset

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/lamim/prefforge/pkg/models"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}

func TestReadPairs_RoundTrip(t *testing.T) {
	cs, rs := 4.5, 1.25
	pairs := []models.ComparisonPair{
		{
			Conversations: []models.Turn{{From: "human", Value: "question"}},
			Chosen:        models.Response{From: "gpt", Value: "good"},
			Rejected:      models.Response{From: "gpt", Value: "bad"},
			ChosenScore:   &cs,
			RejectedScore: &rs,
			ChosenSource:  "m1",
		},
		{
			Conversations: []models.Turn{{From: "human", Value: "another"}},
			Chosen:        models.Response{From: "gpt", Value: "a"},
			Rejected:      models.Response{From: "gpt", Value: "b"},
		},
	}

	path := filepath.Join(t.TempDir(), "pairs.json")
	if err := WriteJSON(path, pairs); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	got, err := ReadPairs(path)
	if err != nil {
		t.Fatalf("ReadPairs failed: %v", err)
	}
	if !reflect.DeepEqual(got, pairs) {
		t.Errorf("Round trip mismatch:\ngot  %+v\nwant %+v", got, pairs)
	}

	// Absent scores must stay absent, not become zero.
	if got[1].ChosenScore != nil || got[1].RejectedScore != nil {
		t.Error("Missing scores were materialized on round trip")
	}
}

func TestWriteJSON_DoesNotEscapeHTML(t *testing.T) {
	pairs := []models.ComparisonPair{{
		Chosen:   models.Response{From: "gpt", Value: "a < b && c > d"},
		Rejected: models.Response{From: "gpt", Value: "x"},
	}}

	path := filepath.Join(t.TempDir(), "out.json")
	if err := WriteJSON(path, pairs); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if strings.Contains(string(data), `\u003c`) || strings.Contains(string(data), `\u0026`) {
		t.Error("Output contains escaped HTML characters")
	}
	if !strings.Contains(string(data), "a < b && c > d") {
		t.Error("Output does not contain the literal text")
	}
}

func TestWriteJSON_CreatesOutputDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.json")
	if err := WriteJSON(path, []models.ComparisonPair{}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Output file missing: %v", err)
	}
}

func TestReadPairs_RejectsNonArray(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "object", content: `{"conversations": []}`},
		{name: "scalar", content: `42`},
		{name: "string", content: `"hello"`},
		{name: "garbage", content: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, "bad.json", tt.content)
			if _, err := ReadPairs(path); err == nil {
				t.Error("Expected error for non-array input, got nil")
			}
		})
	}
}

func TestReadPairs_MissingFile(t *testing.T) {
	if _, err := ReadPairs(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}

func TestReadPromptRecords(t *testing.T) {
	content := `[
  {
    "user_input": "write a poem",
    "responses_and_scores": [
      {"response": "roses are red", "score": 3.5, "source": "model-a"},
      {"response": "violets are blue", "score": 1.0, "source": "model-b"}
    ]
  }
]`
	path := writeTempFile(t, "prompts.json", content)

	recs, err := ReadPromptRecords(path)
	if err != nil {
		t.Fatalf("ReadPromptRecords failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(recs))
	}
	if recs[0].Prompt != "write a poem" {
		t.Errorf("Prompt = %q", recs[0].Prompt)
	}
	if len(recs[0].Candidates) != 2 || recs[0].Candidates[0].Score != 3.5 {
		t.Errorf("Candidates not decoded: %+v", recs[0].Candidates)
	}
}

func TestDerivedPath(t *testing.T) {
	tests := []struct {
		input  string
		suffix string
		want   string
	}{
		{input: "data.json", suffix: "_sft", want: "data_sft.json"},
		{input: "out/data.json", suffix: "_0_3", want: "out/data_0_3.json"},
		{input: "data", suffix: "_with_scores", want: "data_with_scores.json"},
		{input: "data.test.json", suffix: "_all_flipped", want: "data.test_all_flipped.json"},
	}

	for _, tt := range tests {
		t.Run(tt.input+tt.suffix, func(t *testing.T) {
			if got := DerivedPath(tt.input, tt.suffix); got != tt.want {
				t.Errorf("DerivedPath(%q, %q) = %q, want %q", tt.input, tt.suffix, got, tt.want)
			}
		})
	}
}

func TestRatioSuffix(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{ratio: 0.3, want: "0_3"},
		{ratio: 0.15, want: "0_15"},
		{ratio: 0.5, want: "0_5"},
		{ratio: 1, want: "1"},
		{ratio: 0.25, want: "0_25"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := RatioSuffix(tt.ratio); got != tt.want {
				t.Errorf("RatioSuffix(%v) = %q, want %q", tt.ratio, got, tt.want)
			}
		})
	}
}
