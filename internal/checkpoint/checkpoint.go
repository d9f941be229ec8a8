// Package checkpoint persists annotation progress so an interrupted oracle
// run can resume without re-paying for completed scoring calls.
package checkpoint

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultInterval is how many completed pairs trigger a save when the caller
// does not choose one.
const DefaultInterval = 25

// PairScores records the oracle result for one pair, keyed by the pair's
// index in the input collection.
type PairScores struct {
	ChosenScore   float64 `json:"chosen_score"`
	RejectedScore float64 `json:"rejected_score"`
}

// Checkpoint is the on-disk state of a partially annotated input file.
type Checkpoint struct {
	SessionID   string             `json:"session_id"`
	CreatedAt   time.Time          `json:"created_at"`
	LastSavedAt time.Time          `json:"last_saved_at"`
	InputHash   string             `json:"input_hash"`
	Completed   map[int]PairScores `json:"completed"`
}

// Manager accumulates completed pair scores and writes them to disk every
// interval completions, atomically (temp file + rename) so a crash never
// leaves a truncated checkpoint.
type Manager struct {
	path     string
	interval int
	logger   *slog.Logger

	mu         sync.Mutex
	checkpoint *Checkpoint
	counter    int
}

// NewManager starts a fresh checkpoint for the given input hash.
func NewManager(path, inputHash string, interval int, logger *slog.Logger) *Manager {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Manager{
		path:     path,
		interval: interval,
		logger:   logger.With("component", "checkpoint"),
		checkpoint: &Checkpoint{
			SessionID: uuid.NewString(),
			CreatedAt: time.Now(),
			InputHash: inputHash,
			Completed: make(map[int]PairScores),
		},
	}
}

// Resume loads an existing checkpoint file and validates it against the
// current input. A missing file is not an error: a fresh manager is returned.
// A hash mismatch is an error, because the recorded pair indexes would point
// into a different dataset.
func Resume(path, inputHash string, interval int, logger *slog.Logger) (*Manager, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewManager(path, inputHash, interval, logger), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", path, err)
	}
	if cp.InputHash != inputHash {
		return nil, fmt.Errorf("checkpoint %s was created for a different input (hash %s vs %s)",
			path, cp.InputHash, inputHash)
	}
	if cp.Completed == nil {
		cp.Completed = make(map[int]PairScores)
	}

	if interval <= 0 {
		interval = DefaultInterval
	}
	m := &Manager{
		path:       path,
		interval:   interval,
		logger:     logger.With("component", "checkpoint"),
		checkpoint: &cp,
	}

	m.logger.Info("Resuming from checkpoint",
		"path", path,
		"session_id", cp.SessionID,
		"completed_pairs", len(cp.Completed))

	return m, nil
}

// HashInput fingerprints the input file so a checkpoint cannot be replayed
// against different data.
func HashInput(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to hash input file: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:8]), nil
}

// Completed returns a copy of the scores recorded so far.
func (m *Manager) Completed() map[int]PairScores {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[int]PairScores, len(m.checkpoint.Completed))
	for k, v := range m.checkpoint.Completed {
		out[k] = v
	}
	return out
}

// MarkPairComplete records one finished pair and saves when the interval is
// reached.
func (m *Manager) MarkPairComplete(pairIndex int, chosen, rejected float64) error {
	m.mu.Lock()
	m.checkpoint.Completed[pairIndex] = PairScores{ChosenScore: chosen, RejectedScore: rejected}
	m.counter++
	shouldSave := m.counter >= m.interval
	if shouldSave {
		m.counter = 0
	}
	m.mu.Unlock()

	if shouldSave {
		return m.Save()
	}
	return nil
}

// Save writes the checkpoint to disk.
func (m *Manager) Save() error {
	m.mu.Lock()
	m.checkpoint.LastSavedAt = time.Now()
	data, err := json.MarshalIndent(m.checkpoint, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	tempPath := m.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp checkpoint: %w", err)
	}
	if err := os.Rename(tempPath, m.path); err != nil {
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint saved", "path", m.path, "completed_pairs", len(m.checkpoint.Completed))
	return nil
}

// Clear removes the checkpoint file after a run completes successfully.
func (m *Manager) Clear() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return nil
}
