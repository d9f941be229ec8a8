package oracle

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// countingScorer is a deterministic stub that records how many times each key
// was actually scored.
type countingScorer struct {
	mu    sync.Mutex
	calls map[string]int
	score float64
	err   error
}

func newCountingScorer(score float64) *countingScorer {
	return &countingScorer{calls: make(map[string]int), score: score}
}

func (s *countingScorer) Score(_ context.Context, prompt, response string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[prompt+"\x00"+response]++
	if s.err != nil {
		return 0, s.err
	}
	return s.score, nil
}

func (s *countingScorer) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func TestCachingScorer_ScoresEachKeyOnce(t *testing.T) {
	inner := newCountingScorer(3.5)
	c := NewCachingScorer(inner)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		score, err := c.Score(ctx, "prompt", "response")
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if score != 3.5 {
			t.Fatalf("Score = %v, want 3.5", score)
		}
	}

	if inner.totalCalls() != 1 {
		t.Errorf("Inner scorer called %d times, want 1", inner.totalCalls())
	}

	calls, hits := c.Counts()
	if calls != 1 || hits != 4 {
		t.Errorf("Counts() = %d calls / %d hits, want 1 / 4", calls, hits)
	}
}

func TestCachingScorer_DistinctKeysScoreSeparately(t *testing.T) {
	inner := newCountingScorer(1.0)
	c := NewCachingScorer(inner)
	ctx := context.Background()

	_, _ = c.Score(ctx, "p1", "r1")
	_, _ = c.Score(ctx, "p1", "r2")
	_, _ = c.Score(ctx, "p2", "r1")

	if inner.totalCalls() != 3 {
		t.Errorf("Inner scorer called %d times, want 3", inner.totalCalls())
	}
}

func TestCachingScorer_ErrorsNotCached(t *testing.T) {
	inner := newCountingScorer(2.0)
	inner.err = errors.New("oracle unavailable")
	c := NewCachingScorer(inner)
	ctx := context.Background()

	if _, err := c.Score(ctx, "p", "r"); err == nil {
		t.Fatal("Expected error from failing scorer")
	}

	// Recovery: the next request for the same key retries the call.
	inner.mu.Lock()
	inner.err = nil
	inner.mu.Unlock()

	score, err := c.Score(ctx, "p", "r")
	if err != nil {
		t.Fatalf("Retry after failure returned error: %v", err)
	}
	if score != 2.0 {
		t.Errorf("Score = %v, want 2.0", score)
	}
	if inner.totalCalls() != 2 {
		t.Errorf("Inner scorer called %d times, want 2 (failure + retry)", inner.totalCalls())
	}
}

func TestCachingScorer_ConcurrentRequestsDeduplicated(t *testing.T) {
	inner := newCountingScorer(4.0)
	c := NewCachingScorer(inner)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			score, err := c.Score(ctx, "shared prompt", "shared response")
			if err != nil {
				t.Errorf("Score failed: %v", err)
				return
			}
			if score != 4.0 {
				t.Errorf("Score = %v, want 4.0", score)
			}
		}()
	}
	wg.Wait()

	if inner.totalCalls() != 1 {
		t.Errorf("Inner scorer called %d times under concurrency, want 1", inner.totalCalls())
	}
}
