// Package annotate merges oracle scores onto comparison pairs that lack them,
// using a bounded worker pool over independent (prompt, response) calls.
package annotate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/lamim/prefforge/internal/checkpoint"
	"github.com/lamim/prefforge/internal/metrics"
	"github.com/lamim/prefforge/internal/oracle"
	"github.com/lamim/prefforge/internal/pair"
	"github.com/lamim/prefforge/pkg/models"
)

// Options controls an annotation run.
type Options struct {
	// Concurrency is the worker pool size (defaults to 8).
	Concurrency int
	// MaxSamples caps how many unscored pairs are annotated; pairs beyond
	// the cap pass through unscored (0 = no cap). Oracle calls are costly.
	MaxSamples int
	// ShowProgress renders a progress bar on stderr.
	ShowProgress bool
	// Checkpoint, when set, records completed pairs so an interrupted run
	// resumes without repeating oracle calls. Scores already recorded in the
	// checkpoint are restored instead of re-scored.
	Checkpoint *checkpoint.Manager
}

// Annotator issues oracle calls for pairs lacking scores and merges the
// results back onto the originating pairs.
type Annotator struct {
	scorer  *oracle.CachingScorer
	metrics *metrics.Collector
	logger  *slog.Logger
}

// New creates an annotator. The scorer is wrapped in a per-run cache so a
// response text that appears in multiple pairs is scored only once.
func New(scorer oracle.Scorer, collector *metrics.Collector, logger *slog.Logger) *Annotator {
	return &Annotator{
		scorer:  oracle.NewCachingScorer(scorer),
		metrics: collector,
		logger:  logger.With("component", "annotator", "run_id", uuid.NewString()),
	}
}

// Run annotates the collection. Already-scored pairs pass through unchanged
// and keep their position relative to annotated pairs: results are merged by
// pair identity, never by call completion order. A failed oracle call drops
// only the affected pair; the failure is counted and processing continues.
func (a *Annotator) Run(ctx context.Context, pairs []models.ComparisonPair, opts Options) ([]models.ComparisonPair, models.AnnotationStats, error) {
	stats := models.AnnotationStats{
		StartTime:  time.Now(),
		TotalPairs: len(pairs),
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	var restored map[int]checkpoint.PairScores
	if opts.Checkpoint != nil {
		restored = opts.Checkpoint.Completed()
	}

	// Collect the pairs that actually need oracle calls. Restored pairs count
	// against the cap so a resumed run never exceeds the original budget.
	var jobs []models.AnnotationJob
	budgetUsed := 0
	for i, p := range pairs {
		if p.HasScores() {
			continue
		}
		if opts.MaxSamples > 0 && budgetUsed >= opts.MaxSamples {
			break
		}
		budgetUsed++
		if _, ok := restored[i]; ok {
			continue
		}
		jobs = append(jobs, models.AnnotationJob{
			ID:     i,
			Prompt: pair.FirstHumanTurn(p.Conversations),
			Pair:   p,
		})
	}

	a.logger.Info("Starting annotation",
		"total_pairs", len(pairs),
		"pairs_to_annotate", len(jobs),
		"restored_from_checkpoint", len(restored),
		"concurrency", concurrency)

	var bar *progressbar.ProgressBar
	if opts.ShowProgress && len(jobs) > 0 {
		bar = progressbar.Default(int64(len(jobs)), "Scoring pairs")
	}

	jobCh := make(chan models.AnnotationJob)
	resultCh := make(chan models.AnnotationResult)
	var wg sync.WaitGroup

	a.metrics.SetActiveWorkers(concurrency)
	defer a.metrics.SetActiveWorkers(0)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-jobCh:
					if !ok {
						return
					}

					res := a.annotateOne(ctx, job)

					select {
					case <-ctx.Done():
						return
					case resultCh <- res:
					}
				}
			}
		}()
	}

	// Feed jobs; stop issuing new calls on cancellation and let in-flight
	// calls drain.
	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case <-ctx.Done():
				return
			case jobCh <- job:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// Merge results keyed by pair index so output order is independent of
	// call latency.
	annotated := make(map[int]models.ComparisonPair, len(jobs))
	failed := make(map[int]bool)

	for res := range resultCh {
		if bar != nil {
			_ = bar.Add(1)
		}
		if res.Err != nil {
			failed[res.Job.ID] = true
			stats.FailureCount++
			a.metrics.RecordPair("error", res.Duration)
			a.logger.Warn("Oracle call failed, skipping pair",
				"pair_index", res.Job.ID,
				"error", res.Err)
			continue
		}
		annotated[res.Job.ID] = res.Pair
		stats.AnnotatedCount++
		a.metrics.RecordPair("success", res.Duration)

		if opts.Checkpoint != nil && res.Pair.HasScores() {
			if err := opts.Checkpoint.MarkPairComplete(res.Job.ID, *res.Pair.ChosenScore, *res.Pair.RejectedScore); err != nil {
				a.logger.Warn("Failed to save checkpoint", "error", err)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, stats, fmt.Errorf("annotation interrupted: %w", err)
	}

	out := make([]models.ComparisonPair, 0, len(pairs))
	for i, p := range pairs {
		if failed[i] {
			continue
		}
		if merged, ok := annotated[i]; ok {
			out = append(out, merged)
			continue
		}
		if ps, ok := restored[i]; ok && !p.HasScores() {
			cs, rs := ps.ChosenScore, ps.RejectedScore
			p.ChosenScore, p.RejectedScore = &cs, &rs
			stats.RestoredCount++
			out = append(out, p)
			continue
		}
		if !p.HasScores() {
			stats.PassthroughCount++
			a.metrics.RecordPair("passthrough", 0)
		}
		out = append(out, p)
	}

	stats.OracleCalls, stats.CacheHits = a.scorer.Counts()
	stats.EndTime = time.Now()
	stats.TotalDuration = stats.EndTime.Sub(stats.StartTime)

	if opts.Checkpoint != nil {
		if err := opts.Checkpoint.Save(); err != nil {
			a.logger.Warn("Failed to save final checkpoint", "error", err)
		}
	}

	a.logger.Info("Annotation complete",
		"annotated", stats.AnnotatedCount,
		"restored", stats.RestoredCount,
		"failed", stats.FailureCount,
		"passthrough", stats.PassthroughCount,
		"oracle_calls", stats.OracleCalls,
		"cache_hits", stats.CacheHits,
		"duration", stats.TotalDuration)

	return out, stats, nil
}

// annotateOne issues one oracle call per side that lacks a score.
func (a *Annotator) annotateOne(ctx context.Context, job models.AnnotationJob) models.AnnotationResult {
	start := time.Now()
	res := models.AnnotationResult{Job: job, Pair: job.Pair}

	if job.Prompt == "" {
		res.Err = fmt.Errorf("pair has no human turn to score against")
		res.Duration = time.Since(start)
		return res
	}

	if res.Pair.ChosenScore == nil {
		score, err := a.scorer.Score(ctx, job.Prompt, job.Pair.Chosen.Value)
		if err != nil {
			res.Err = fmt.Errorf("scoring chosen response: %w", err)
			res.Duration = time.Since(start)
			return res
		}
		res.Pair.ChosenScore = &score
	}

	if res.Pair.RejectedScore == nil {
		score, err := a.scorer.Score(ctx, job.Prompt, job.Pair.Rejected.Value)
		if err != nil {
			res.Err = fmt.Errorf("scoring rejected response: %w", err)
			res.Duration = time.Since(start)
			return res
		}
		res.Pair.RejectedScore = &score
	}

	res.Duration = time.Since(start)
	return res
}
