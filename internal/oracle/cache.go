package oracle

import (
	"context"
	"sync"
)

// CachingScorer wraps a Scorer with a per-run cache keyed by the exact
// (prompt, response) text, so a response that appears in multiple pairs is
// scored once. Concurrent requests for the same key wait for the first
// in-flight call instead of issuing a duplicate one.
//
// Errors are not cached: a failed call is retried the next time the key is
// requested.
type CachingScorer struct {
	inner Scorer

	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
	hits    int
	calls   int
}

type cacheKey struct {
	prompt   string
	response string
}

type cacheEntry struct {
	done  chan struct{}
	score float64
	err   error
}

// NewCachingScorer wraps inner with a fresh cache.
func NewCachingScorer(inner Scorer) *CachingScorer {
	return &CachingScorer{
		inner:   inner,
		entries: make(map[cacheKey]*cacheEntry),
	}
}

// Score implements Scorer.
func (c *CachingScorer) Score(ctx context.Context, prompt, response string) (float64, error) {
	key := cacheKey{prompt: prompt, response: response}

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()

		select {
		case <-entry.done:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		return entry.score, entry.err
	}

	entry := &cacheEntry{done: make(chan struct{})}
	c.entries[key] = entry
	c.calls++
	c.mu.Unlock()

	entry.score, entry.err = c.inner.Score(ctx, prompt, response)
	close(entry.done)

	if entry.err != nil {
		// Drop failed entries so a later request retries the call.
		c.mu.Lock()
		if c.entries[key] == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}

	return entry.score, entry.err
}

// Counts returns how many oracle calls were issued and how many requests
// were served from cache.
func (c *CachingScorer) Counts() (calls, hits int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls, c.hits
}
