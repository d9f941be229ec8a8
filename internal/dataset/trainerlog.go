package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// trainerLogEntry is one line of a newline-delimited JSON trainer log.
// Only the fields needed for extraction are decoded.
type trainerLogEntry struct {
	Name                  string   `json:"name"`
	EvalRewardsAccuracies *float64 `json:"eval_rewards_accuracies"`
}

// MaxEvalRewardAccuracy scans a JSONL trainer log and returns the maximum
// eval_rewards_accuracies value among entries whose name matches. Lines that
// are blank or not valid JSON are skipped. The boolean reports whether any
// matching entry was found.
func MaxEvalRewardAccuracy(path, name string) (float64, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, false, fmt.Errorf("failed to open trainer log: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	var maxVal float64
	found := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry trainerLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry.Name != name || entry.EvalRewardsAccuracies == nil {
			continue
		}

		if !found || *entry.EvalRewardsAccuracies > maxVal {
			maxVal = *entry.EvalRewardsAccuracies
			found = true
		}
	}

	if err := scanner.Err(); err != nil {
		return 0, false, fmt.Errorf("failed while reading trainer log: %w", err)
	}

	return maxVal, found, nil
}
