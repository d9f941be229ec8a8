package models

import "time"

// Turn is a single message in a conversation context. The "from" tag follows
// the ShareGPT convention: "human" for user turns, "gpt" for model turns.
type Turn struct {
	From  string `json:"from"`
	Value string `json:"value"`
}

// Response is one side of a preference pair (always a model turn).
type Response struct {
	From  string `json:"from"`
	Value string `json:"value"`
}

// Candidate is a single scored response attached to a prompt. Score ties are
// meaningful: tied candidates carry no preference signal against each other.
type Candidate struct {
	Response string  `json:"response"`
	Score    float64 `json:"score"`
	Source   string  `json:"source,omitempty"`
}

// PromptRecord is one multi-candidate ranked record from upstream ingestion.
type PromptRecord struct {
	Prompt     string      `json:"user_input"`
	Candidates []Candidate `json:"responses_and_scores"`
}

// ComparisonPair is a single (chosen, rejected) preference pair.
//
// Scores are pointers because their absence is meaningful: the rebalancer
// treats unscored pairs as belonging to the keep class, and the annotator
// only issues oracle calls for pairs lacking a score. The invariant
// chosen_score >= rejected_score holds only after Canonicalize has run.
type ComparisonPair struct {
	Conversations  []Turn   `json:"conversations"`
	Chosen         Response `json:"chosen"`
	Rejected       Response `json:"rejected"`
	ChosenScore    *float64 `json:"chosen_score,omitempty"`
	RejectedScore  *float64 `json:"rejected_score,omitempty"`
	ChosenSource   string   `json:"chosen_source,omitempty"`
	RejectedSource string   `json:"rejected_source,omitempty"`
}

// HasScores reports whether both sides of the pair carry a score.
func (p *ComparisonPair) HasScores() bool {
	return p.ChosenScore != nil && p.RejectedScore != nil
}

// SFTRecord is the lossy single-output projection of a ComparisonPair.
// Input is always the empty string by convention.
type SFTRecord struct {
	Instruction string `json:"instruction"`
	Input       string `json:"input"`
	Output      string `json:"output"`
}

// UltraFeedbackMessage is a role-tagged message in a binarized preference record.
type UltraFeedbackMessage struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// UltraFeedbackRecord is one record of the ultrafeedback_binarized_cleaned
// dataset family: chosen/rejected are full conversations ending in the
// assistant response being compared.
type UltraFeedbackRecord struct {
	Prompt        string                 `json:"prompt"`
	Chosen        []UltraFeedbackMessage `json:"chosen"`
	Rejected      []UltraFeedbackMessage `json:"rejected"`
	ScoreChosen   *float64               `json:"score_chosen,omitempty"`
	ScoreRejected *float64               `json:"score_rejected,omitempty"`
	Source        string                 `json:"source,omitempty"`
}

// AnnotationJob is one pair queued for oracle scoring.
type AnnotationJob struct {
	ID     int
	Prompt string
	Pair   ComparisonPair
}

// AnnotationResult is the outcome of scoring one pair.
type AnnotationResult struct {
	Job      AnnotationJob
	Pair     ComparisonPair
	Err      error
	Duration time.Duration
}

// AnnotationStats tracks an annotation run for the end-of-run summary.
type AnnotationStats struct {
	StartTime        time.Time
	EndTime          time.Time
	TotalPairs       int
	AnnotatedCount   int
	RestoredCount    int
	PassthroughCount int
	FailureCount     int
	CacheHits        int
	OracleCalls      int
	TotalDuration    time.Duration
}
