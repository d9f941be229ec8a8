package checkpoint

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_SaveAndResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotate.checkpoint.json")

	m := NewManager(path, "abc123", 0, testLogger())
	if err := m.MarkPairComplete(3, 4.5, 1.0); err != nil {
		t.Fatalf("MarkPairComplete failed: %v", err)
	}
	if err := m.MarkPairComplete(7, 2.0, 3.0); err != nil {
		t.Fatalf("MarkPairComplete failed: %v", err)
	}
	if err := m.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	resumed, err := Resume(path, "abc123", 0, testLogger())
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	completed := resumed.Completed()
	if len(completed) != 2 {
		t.Fatalf("Expected 2 completed pairs, got %d", len(completed))
	}
	if got := completed[3]; got.ChosenScore != 4.5 || got.RejectedScore != 1.0 {
		t.Errorf("Pair 3 scores = %+v", got)
	}
	if got := completed[7]; got.ChosenScore != 2.0 || got.RejectedScore != 3.0 {
		t.Errorf("Pair 7 scores = %+v", got)
	}
}

func TestResume_MissingFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.checkpoint.json")

	m, err := Resume(path, "abc123", 0, testLogger())
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if len(m.Completed()) != 0 {
		t.Error("Fresh manager should have no completed pairs")
	}
}

func TestResume_RejectsDifferentInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotate.checkpoint.json")

	m := NewManager(path, "hash-a", 0, testLogger())
	if err := m.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := Resume(path, "hash-b", 0, testLogger()); err == nil {
		t.Error("Expected error resuming against a different input hash")
	}
}

func TestManager_IntervalSaving(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotate.checkpoint.json")

	m := NewManager(path, "abc123", 3, testLogger())
	_ = m.MarkPairComplete(0, 1, 0)
	_ = m.MarkPairComplete(1, 1, 0)

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Checkpoint written before the interval was reached")
	}

	_ = m.MarkPairComplete(2, 1, 0)

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Checkpoint not written at the interval: %v", err)
	}
}

func TestManager_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotate.checkpoint.json")

	m := NewManager(path, "abc123", 0, testLogger())
	if err := m.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := m.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Checkpoint file still exists after Clear")
	}

	// Clearing twice is fine.
	if err := m.Clear(); err != nil {
		t.Errorf("Second Clear failed: %v", err)
	}
}

func TestHashInput(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.json")
	pathB := filepath.Join(dir, "b.json")
	if err := os.WriteFile(pathA, []byte(`[1,2,3]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pathB, []byte(`[1,2,4]`), 0o644); err != nil {
		t.Fatal(err)
	}

	hashA1, err := HashInput(pathA)
	if err != nil {
		t.Fatalf("HashInput failed: %v", err)
	}
	hashA2, _ := HashInput(pathA)
	hashB, _ := HashInput(pathB)

	if hashA1 != hashA2 {
		t.Error("Hash is not deterministic")
	}
	if hashA1 == hashB {
		t.Error("Different contents produced the same hash")
	}
	if _, err := HashInput(filepath.Join(dir, "absent.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}
