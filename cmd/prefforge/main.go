package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lamim/prefforge/internal/annotate"
	"github.com/lamim/prefforge/internal/api"
	"github.com/lamim/prefforge/internal/checkpoint"
	"github.com/lamim/prefforge/internal/config"
	"github.com/lamim/prefforge/internal/dataset"
	"github.com/lamim/prefforge/internal/hfhub"
	"github.com/lamim/prefforge/internal/metrics"
	"github.com/lamim/prefforge/internal/oracle"
	"github.com/lamim/prefforge/internal/pair"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "prefforge",
		Short: "prefforge - Preference-pair dataset construction and rebalancing",
		Long: `prefforge builds and rebalances pairwise preference datasets for
preference-optimization training: it expands multi-candidate ranked records
into preference pairs, splits them reproducibly, rebalances them to a target
label-accuracy ratio, injects controlled label noise, converts pairs to SFT
format, and annotates pairs with scores from an external reward model.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(newConvertCmd())
	rootCmd.AddCommand(newConvertUltraFeedbackCmd())
	rootCmd.AddCommand(newRebalanceCmd())
	rootCmd.AddCommand(newCanonicalizeCmd())
	rootCmd.AddCommand(newFlipCmd())
	rootCmd.AddCommand(newToSFTCmd())
	rootCmd.AddCommand(newAnnotateCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newMaxAccuracyCmd())
	rootCmd.AddCommand(newPushCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

func newConvertCmd() *cobra.Command {
	var (
		inputPath   string
		trainOutput string
		testOutput  string
		trainRatio  float64
		seed        int64
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Expand ranked records into preference pairs and split train/test",
		Long: `Expand multi-candidate ranked records into all pairwise preference
comparisons (tied scores are dropped), shuffle with a fixed seed, and split
into train/test sets by ratio.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			if trainRatio <= 0 || trainRatio > 1 {
				return fmt.Errorf("train ratio must be in (0.0, 1.0] (got %v)", trainRatio)
			}
			if trainOutput == "" {
				trainOutput = dataset.DerivedPath(inputPath, "_train")
			}
			if testOutput == "" {
				testOutput = dataset.DerivedPath(inputPath, "_test")
			}

			recs, err := dataset.ReadPromptRecords(inputPath)
			if err != nil {
				return err
			}

			pairs, skipped := pair.ExpandAll(recs)
			logger.Info("Expanded records into preference pairs",
				"input_records", len(recs),
				"pairs", len(pairs),
				"records_without_pairs", skipped)

			rng := rand.New(rand.NewSource(seed))
			train, test := pair.Split(pairs, trainRatio, rng)

			if err := dataset.WriteJSON(trainOutput, train); err != nil {
				return err
			}
			if err := dataset.WriteJSON(testOutput, test); err != nil {
				return err
			}

			logger.Info("Conversion complete",
				"train", trainOutput,
				"train_pairs", len(train),
				"test", testOutput,
				"test_pairs", len(test),
				"train_ratio", trainRatio,
				"seed", seed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Path to ranked-record JSON file")
	cmd.Flags().StringVarP(&trainOutput, "train-output", "t", "", "Output path for train pairs (default: <input>_train.json)")
	cmd.Flags().StringVarP(&testOutput, "test-output", "e", "", "Output path for test pairs (default: <input>_test.json)")
	cmd.Flags().Float64VarP(&trainRatio, "train-ratio", "r", 0.8, "Train/test split ratio")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for the split shuffle")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func newConvertUltraFeedbackCmd() *cobra.Command {
	var (
		outputPath string
		maxSamples int
	)

	cmd := &cobra.Command{
		Use:   "convert-ultrafeedback <input>",
		Short: "Convert binarized preference records into preference pairs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			inputPath := args[0]

			if outputPath == "" {
				outputPath = dataset.DerivedPath(inputPath, "_dpo")
			}

			recs, err := dataset.ReadUltraFeedback(inputPath)
			if err != nil {
				return err
			}

			pairs, skipped := dataset.FromUltraFeedbackAll(recs, maxSamples)
			if err := dataset.WriteJSON(outputPath, pairs); err != nil {
				return err
			}

			logger.Info("Conversion complete",
				"input_records", len(recs),
				"pairs", len(pairs),
				"skipped", skipped,
				"output", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path (default: <input>_dpo.json)")
	cmd.Flags().IntVar(&maxSamples, "max-samples", 0, "Maximum number of records to convert (0 = all)")

	return cmd
}

func newRebalanceCmd() *cobra.Command {
	var (
		outputPath string
		seed       int64
	)

	cmd := &cobra.Command{
		Use:   "rebalance <input> <target-ratio>",
		Short: "Downsample pairs so mislabeled pairs hit a target proportion",
		Long: `Downsample a pair collection so that the fraction of pairs with
chosen_score < rejected_score equals the target ratio, keeping as many pairs
as possible. Pairs lacking scores are never dropped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			inputPath := args[0]

			targetRatio, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("target ratio must be a number (got %q)", args[1])
			}
			if targetRatio < 0 || targetRatio > 1 {
				return fmt.Errorf("target ratio must be between 0.0 and 1.0 (got %v)", targetRatio)
			}
			if outputPath == "" {
				outputPath = dataset.DerivedPath(inputPath, "_"+dataset.RatioSuffix(targetRatio))
			}

			pairs, err := dataset.ReadPairs(inputPath)
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(seed))
			sampled, plan, err := pair.Rebalance(pairs, targetRatio, rng)
			if err != nil {
				return err
			}
			if plan.Passthrough {
				logger.Warn("Input has no mislabeled pairs, nothing to rebalance; writing data unchanged",
					"target_ratio", targetRatio)
			}

			if err := dataset.WriteJSON(outputPath, sampled); err != nil {
				return err
			}

			logger.Info("Rebalance complete",
				"input_pairs", len(pairs),
				"mislabeled", plan.TotalMislabeled,
				"rest", plan.TotalWellabeled,
				"kept_mislabeled", plan.KeptMislabeled,
				"kept_rest", plan.KeptWellabeled,
				"output_pairs", len(sampled),
				"target_ratio", targetRatio,
				"achieved_ratio", plan.AchievedRatio,
				"output", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path (default: <input>_<ratio>.json)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for sampling")

	return cmd
}

func newCanonicalizeCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "canonicalize <input>",
		Short: "Swap pairs so the higher-scored side is always chosen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			inputPath := args[0]

			if outputPath == "" {
				outputPath = dataset.DerivedPath(inputPath, "_all_flipped")
			}

			pairs, err := dataset.ReadPairs(inputPath)
			if err != nil {
				return err
			}

			out, flipped := pair.Canonicalize(pairs)
			if err := dataset.WriteJSON(outputPath, out); err != nil {
				return err
			}

			logger.Info("Canonicalization complete",
				"total_pairs", len(pairs),
				"flipped", flipped,
				"output", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path (default: <input>_all_flipped.json)")

	return cmd
}

func newFlipCmd() *cobra.Command {
	var (
		flipRatio float64
		seed      int64
		outputDPO string
		outputSFT string
	)

	cmd := &cobra.Command{
		Use:   "flip <input>",
		Short: "Inject label noise by randomly swapping chosen/rejected, then project to SFT",
		Long: `Independently swap each pair's chosen and rejected responses with the
given probability (a Bernoulli trial per pair), producing a known rate of
label noise for robustness experiments. The flipped pairs are written out
along with their SFT projection.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			inputPath := args[0]

			if flipRatio < 0 || flipRatio > 1 {
				return fmt.Errorf("flip ratio must be between 0.0 and 1.0 (got %v)", flipRatio)
			}

			suffix := "_artificial_flipped_" + dataset.RatioSuffix(flipRatio)
			if outputDPO == "" {
				outputDPO = dataset.DerivedPath(inputPath, suffix)
			}
			if outputSFT == "" {
				outputSFT = dataset.DerivedPath(inputPath, suffix+"_sft")
			}

			pairs, err := dataset.ReadPairs(inputPath)
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(seed))
			flippedPairs, flipped := pair.FlipNoise(pairs, flipRatio, rng)
			logger.Info("Flipped pairs",
				"total_pairs", len(pairs),
				"flipped", flipped,
				"flip_ratio", flipRatio,
				"seed", seed)

			if err := dataset.WriteJSON(outputDPO, flippedPairs); err != nil {
				return err
			}

			// The SFT projection uses the flipped chosen values.
			sftRecords, skipped := pair.ToSFT(flippedPairs)
			if err := dataset.WriteJSON(outputSFT, sftRecords); err != nil {
				return err
			}

			logger.Info("Flip complete",
				"output_dpo", outputDPO,
				"output_sft", outputSFT,
				"sft_records", len(sftRecords),
				"sft_skipped", skipped)
			return nil
		},
	}

	cmd.Flags().Float64Var(&flipRatio, "flip-ratio", 0.0, "Probability of swapping each pair")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for the Bernoulli trials")
	cmd.Flags().StringVar(&outputDPO, "output-dpo", "", "Output path for flipped pairs (default: <input>_artificial_flipped_<ratio>.json)")
	cmd.Flags().StringVar(&outputSFT, "output-sft", "", "Output path for SFT records (default: <input>_artificial_flipped_<ratio>_sft.json)")

	return cmd
}

func newToSFTCmd() *cobra.Command {
	var (
		inputPath  string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "to-sft",
		Short: "Project preference pairs to single-output SFT records",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			if outputPath == "" {
				outputPath = dataset.DerivedPath(inputPath, "_sft")
			}

			pairs, err := dataset.ReadPairs(inputPath)
			if err != nil {
				return err
			}

			records, skipped := pair.ToSFT(pairs)
			if err := dataset.WriteJSON(outputPath, records); err != nil {
				return err
			}

			logger.Info("SFT conversion complete",
				"input_pairs", len(pairs),
				"sft_records", len(records),
				"skipped", skipped,
				"output", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Path to pair JSON file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path (default: <input>_sft.json)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func newAnnotateCmd() *cobra.Command {
	var (
		configPath         string
		envFile            string
		inputPath          string
		outputPath         string
		maxSamples         int
		concurrency        int
		resume             bool
		checkpointInterval int
	)

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Score preference pairs with an external reward model",
		Long: `Issue one oracle call per missing score and merge the results back onto
the originating pairs. Oracle calls run on a bounded worker pool; a failed
call drops only the affected pair.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			if envFile != "" {
				if err := loadEnvFile(envFile); err != nil {
					logger.Debug("No env file loaded", "path", envFile, "error", err)
				}
			}

			cfg, secrets, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if concurrency <= 0 {
				concurrency = cfg.Oracle.Concurrency
			}
			if outputPath == "" {
				outputPath = dataset.DerivedPath(inputPath, "_with_scores")
			}

			apiKey := secrets.GetAPIKey()
			if apiKey == "" && !config.IsLocalEndpoint(cfg.Oracle.BaseURL) {
				logger.Warn("No API key found for oracle base URL", "base_url", cfg.Oracle.BaseURL)
			}

			pairs, err := dataset.ReadPairs(inputPath)
			if err != nil {
				return err
			}

			apiClient := api.NewClient(logger, cfg.Oracle)
			scorer := oracle.NewRewardScorer(cfg.Oracle, apiKey, apiClient, logger)
			collector := metrics.NewCollector(logger)
			annotator := annotate.New(scorer, collector, logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var cp *checkpoint.Manager
			if resume {
				inputHash, err := checkpoint.HashInput(inputPath)
				if err != nil {
					return err
				}
				cp, err = checkpoint.Resume(outputPath+".checkpoint", inputHash, checkpointInterval, logger)
				if err != nil {
					return err
				}
			}

			out, stats, err := annotator.Run(ctx, pairs, annotate.Options{
				Concurrency:  concurrency,
				MaxSamples:   maxSamples,
				ShowProgress: true,
				Checkpoint:   cp,
			})
			if err != nil {
				return fmt.Errorf("annotation failed: %w", err)
			}

			if err := dataset.WriteJSON(outputPath, out); err != nil {
				return err
			}

			if cp != nil {
				if err := cp.Clear(); err != nil {
					logger.Warn("Failed to remove checkpoint file", "error", err)
				}
			}

			logger.Info("Annotation complete",
				"output", outputPath,
				"output_pairs", len(out),
				"annotated", stats.AnnotatedCount,
				"restored", stats.RestoredCount,
				"failed", stats.FailureCount,
				"oracle_calls", stats.OracleCalls,
				"cache_hits", stats.CacheHits)

			printAnalysis(pair.Analyze(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Path to pair JSON file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path (default: <input>_with_scores.json)")
	cmd.Flags().IntVar(&maxSamples, "max-samples", 0, "Maximum number of pairs to annotate (0 = all)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Worker pool size (default: from config)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Checkpoint progress and resume an interrupted run")
	cmd.Flags().IntVar(&checkpointInterval, "checkpoint-interval", checkpoint.DefaultInterval, "Save the checkpoint every N annotated pairs")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func newPushCmd() *cobra.Command {
	var (
		envFile string
		message string
		repoDir string
	)

	cmd := &cobra.Command{
		Use:   "push <repo-id> <file>...",
		Short: "Upload dataset files to a Hugging Face dataset repository",
		Long: `Upload one or more output files to a Hugging Face dataset repository
(created if missing) as a single commit. The token is read from the HF_TOKEN
environment variable.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			repoID := args[0]

			if envFile != "" {
				if err := loadEnvFile(envFile); err != nil {
					logger.Debug("No env file loaded", "path", envFile, "error", err)
				}
			}

			secrets, err := config.LoadSecrets()
			if err != nil {
				return err
			}
			token := secrets.GetHFToken()
			if token == "" {
				return fmt.Errorf("HF_TOKEN is not set; a write token is required to push")
			}

			var files []hfhub.DatasetFile
			for _, localPath := range args[1:] {
				repoPath := filepath.Base(localPath)
				if repoDir != "" {
					repoPath = repoDir + "/" + repoPath
				}
				files = append(files, hfhub.DatasetFile{LocalPath: localPath, RepoPath: repoPath})
			}

			if message == "" {
				message = fmt.Sprintf("Upload preference dataset (%d files)", len(files))
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			uploader := hfhub.NewUploader(token, logger)
			return uploader.Push(ctx, repoID, files, message)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message")
	cmd.Flags().StringVar(&repoDir, "repo-dir", "", "Directory inside the repository to upload into")

	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <input>",
		Short: "Report score statistics for a pair collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := dataset.ReadPairs(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Analyzing: %s\n\n", args[0])
			printAnalysis(pair.Analyze(pairs))
			return nil
		},
	}

	return cmd
}

func newMaxAccuracyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "max-accuracy <jsonl> <name>",
		Short: "Extract the maximum eval_rewards_accuracies for a name from a trainer log",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxVal, found, err := dataset.MaxEvalRewardAccuracy(args[0], args[1])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no entry with name=%q and eval_rewards_accuracies found", args[1])
			}

			fmt.Println(maxVal)
			return nil
		},
	}

	return cmd
}

func printAnalysis(a pair.Analysis) {
	fmt.Printf("Total pairs:        %d\n", a.TotalPairs)
	fmt.Printf("Pairs with scores:  %d\n", a.ScoredPairs)
	fmt.Printf("Pairs without:      %d\n", a.UnscoredPairs)

	if a.ScoredPairs == 0 {
		fmt.Println("\nNo scored pairs to analyze.")
		return
	}

	fmt.Println()
	fmt.Printf("chosen_score > rejected_score: %d (%.2f%%)\n", a.GreaterCount, 100*a.GreaterRatio())
	fmt.Printf("chosen_score = rejected_score: %d\n", a.EqualCount)
	fmt.Printf("chosen_score < rejected_score: %d\n", a.LessCount)
	fmt.Println()
	printScoreStats("chosen_score", a.ChosenStats)
	fmt.Println()
	printScoreStats("rejected_score", a.RejectedStats)
}

func printScoreStats(name string, s pair.ScoreStats) {
	fmt.Printf("%s stats:\n", name)
	fmt.Printf("  count:  %d\n", s.Count)
	fmt.Printf("  mean:   %.4f\n", s.Mean)
	fmt.Printf("  median: %.4f\n", s.Median)
	fmt.Printf("  min:    %.4f\n", s.Min)
	fmt.Printf("  max:    %.4f\n", s.Max)
	fmt.Printf("  stdev:  %.4f\n", s.Stdev)
}

// loadEnvFile loads KEY=VALUE lines from a file into the environment.
func loadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}

	return nil
}
