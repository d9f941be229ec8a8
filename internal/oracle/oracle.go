// Package oracle abstracts the external scoring model as a capability
// interface, so annotation can run against a deterministic stub in tests and
// a reward-model endpoint in production.
package oracle

import (
	"context"
	"log/slog"

	"github.com/lamim/prefforge/internal/api"
	"github.com/lamim/prefforge/internal/config"
)

// Scorer scores a single (prompt, response) pair. Implementations may be
// expensive (network or model calls) and are not assumed deterministic
// across calls; callers enforce whatever consistency they need by caching.
type Scorer interface {
	Score(ctx context.Context, prompt, response string) (float64, error)
}

// RewardScorer scores pairs against a reward-model HTTP endpoint.
type RewardScorer struct {
	cfg    config.OracleConfig
	apiKey string
	client *api.Client
	logger *slog.Logger
}

// NewRewardScorer creates a scorer backed by the configured oracle endpoint.
func NewRewardScorer(cfg config.OracleConfig, apiKey string, client *api.Client, logger *slog.Logger) *RewardScorer {
	return &RewardScorer{
		cfg:    cfg,
		apiKey: apiKey,
		client: client,
		logger: logger.With("component", "oracle"),
	}
}

// Score implements Scorer.
func (r *RewardScorer) Score(ctx context.Context, prompt, response string) (float64, error) {
	return r.client.Score(ctx, r.cfg, r.apiKey, prompt, response)
}
