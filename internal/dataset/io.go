// Package dataset handles reading and writing the JSON documents the pipeline
// consumes and produces, plus the record-shape adapters for external dataset
// families.
package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lamim/prefforge/pkg/models"
)

// ReadPromptRecords loads a JSON array of multi-candidate ranked records.
// A document that is not a JSON array is a fatal input error.
func ReadPromptRecords(path string) ([]models.PromptRecord, error) {
	var recs []models.PromptRecord
	if err := readArray(path, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// ReadPairs loads a JSON array of comparison pairs.
func ReadPairs(path string) ([]models.ComparisonPair, error) {
	var pairs []models.ComparisonPair
	if err := readArray(path, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

// ReadUltraFeedback loads a JSON array of binarized preference records.
func ReadUltraFeedback(path string) ([]models.UltraFeedbackRecord, error) {
	var recs []models.UltraFeedbackRecord
	if err := readArray(path, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func readArray(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("input file %s must contain a JSON array", path)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes records as a human-readable JSON array: two-space
// indentation, HTML escaping disabled so non-ASCII and markup characters are
// preserved as-is. The output directory is created if missing.
func WriteJSON(path string, v interface{}) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// DerivedPath builds the default output path for an input file by appending
// a suffix to its stem: input.json + "_sft" -> input_sft.json.
func DerivedPath(inputPath, suffix string) string {
	ext := filepath.Ext(inputPath)
	stem := strings.TrimSuffix(inputPath, ext)
	if ext == "" {
		ext = ".json"
	}
	return stem + suffix + ext
}

// RatioSuffix renders a ratio for use in a derived filename, replacing the
// decimal point with an underscore: 0.3 -> "0_3", 0.15 -> "0_15".
func RatioSuffix(ratio float64) string {
	return strings.ReplaceAll(strconv.FormatFloat(ratio, 'g', -1, 64), ".", "_")
}
