package api

import (
	"log/slog"

	"golang.org/x/time/rate"
)

// newScoreLimiter builds the request limiter for the configured oracle
// endpoint. The per-minute budget is spread evenly over seconds, with enough
// burst headroom that a worker pool starting up does not serialize its first
// requests.
func newScoreLimiter(requestsPerMinute int, logger *slog.Logger) *rate.Limiter {
	rps := float64(requestsPerMinute) / 60.0
	burst := max(5, requestsPerMinute/5)

	logger.Debug("Created oracle rate limiter",
		"rpm", requestsPerMinute,
		"rps", rps,
		"burst", burst)

	return rate.NewLimiter(rate.Limit(rps), burst)
}
