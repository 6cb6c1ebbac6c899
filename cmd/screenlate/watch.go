package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oukeidos/screenlate/internal/cleanup"
	"github.com/oukeidos/screenlate/internal/files"
	"github.com/oukeidos/screenlate/internal/logger"
	"github.com/oukeidos/screenlate/internal/pipeline"
	"github.com/oukeidos/screenlate/internal/prompt"
	"github.com/spf13/cobra"
)

type watchOptions struct {
	geminiModel string
	openaiModel string
	regions     []string
	fps         int
	sensitivity float64
	scale       float64
	mode        string
	threshold   float64
	cacheSize   int
	cooldown    time.Duration
	timeout     time.Duration
	workers     int
	outputPath  string
	overwrite   bool
	statsPath   string
	logFilePath string
	sourceLang  string
	targetLang  string
	allowEnv    bool
	envOnly     bool
	debug       bool
}

func newWatchCmd() *cobra.Command {
	opts := watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch screen regions and translate text as it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, &opts)
		},
		SilenceUsage: true,
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addWatchFlags(cmd, &opts)
	return cmd
}

func addWatchFlags(cmd *cobra.Command, opts *watchOptions) {
	cmd.Flags().StringArrayVar(&opts.regions, "region", nil, "Region to watch as x1,y1,x2,y2 (repeatable)")
	cmd.Flags().StringVar(&opts.geminiModel, "model", "gemini-3-flash-preview", "Gemini model name")
	cmd.Flags().StringVar(&opts.openaiModel, "openai-model", "gpt-5-mini", "OpenAI model name")
	cmd.Flags().IntVar(&opts.fps, "fps", 15, "Sampling rate in frames per second (1-30)")
	cmd.Flags().Float64Var(&opts.sensitivity, "sensitivity", 0.6, "Change detection sensitivity (0-1)")
	cmd.Flags().Float64Var(&opts.scale, "scale", 1.0, "Logical to physical pixel scale for HiDPI displays")
	cmd.Flags().StringVar(&opts.mode, "mode", "realtime", "Scan mode: realtime or snapshot")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0, "Confidence threshold override (0 = mode default)")
	cmd.Flags().IntVar(&opts.cacheSize, "cache-size", 0, "Translation cache capacity (0 = default)")
	cmd.Flags().DurationVar(&opts.cooldown, "cooldown", time.Minute, "Backend cooldown after a rate limit")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Per-request translation timeout")
	cmd.Flags().IntVar(&opts.workers, "workers", 4, "Concurrent region pipelines (1-20)")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Write translations to a JSONL file instead of the log")
	cmd.Flags().BoolVarP(&opts.overwrite, "yes", "y", false, "Overwrite the output file without asking")
	cmd.Flags().StringVar(&opts.statsPath, "stats-file", "", "Write session stats as JSON on exit")
	cmd.Flags().StringVar(&opts.logFilePath, "log-file", "", "Path to save machine-readable JSONL logs")
	cmd.Flags().StringVar(&opts.sourceLang, "source", "auto", "Source language code or 'auto'")
	cmd.Flags().StringVar(&opts.targetLang, "target", "en", "Target language code")
	cmd.Flags().BoolVar(&opts.allowEnv, "allow-env", false, "Allow reading API keys from environment variables")
	cmd.Flags().BoolVar(&opts.envOnly, "env-only", false, "Use only environment variables for API keys")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
}

func runWatch(cmd *cobra.Command, opts *watchOptions) error {
	if len(opts.regions) == 0 {
		_ = cmd.Usage()
		return fmt.Errorf("at least one --region is required")
	}
	if opts.mode != "realtime" && opts.mode != "snapshot" {
		return fmt.Errorf("invalid mode %q (must be realtime or snapshot)", opts.mode)
	}

	logLevel := logger.LevelInfo
	if opts.debug {
		logLevel = logger.LevelDebug
	}
	var logFileW io.Writer
	if opts.logFilePath != "" {
		if err := files.RejectSymlinkPath(opts.logFilePath); err != nil {
			return err
		}
		f, err := os.OpenFile(opts.logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cleanup.Register(f.Close)
		logFileW = f
	}
	logger.Init(logLevel, logFileW)

	regions, err := parseRegions(opts.regions)
	if err != nil {
		return err
	}
	if opts.outputPath != "" {
		if _, statErr := os.Stat(opts.outputPath); statErr == nil {
			ok, confirmErr := prompt.DefaultConfirmer().ConfirmOverwrite(opts.outputPath, opts.overwrite)
			if confirmErr != nil {
				return confirmErr
			}
			if !ok {
				return fmt.Errorf("aborted: output file %s already exists", opts.outputPath)
			}
			if err := os.Remove(opts.outputPath); err != nil {
				return fmt.Errorf("failed to remove existing output file: %w", err)
			}
		}
	}
	sourceCode, err := resolveLanguageCode(opts.sourceLang)
	if err != nil {
		return err
	}
	targetCode, err := resolveLanguageCode(opts.targetLang)
	if err != nil {
		return err
	}

	geminiKey, geminiSource, geminiErr := resolveAPIKey("gemini", opts.allowEnv, opts.envOnly)
	if geminiErr == nil {
		logger.Info("Using API Key", "service", "gemini", "source", geminiSource)
	}
	openaiKey, openaiSource := optionalAPIKey("openai", opts.allowEnv || opts.envOnly)
	if openaiKey != "" {
		logger.Info("Using API Key", "service", "openai", "source", openaiSource)
	}
	if geminiKey == "" && openaiKey == "" {
		return geminiErr
	}

	cfg := pipeline.Config{
		GeminiAPIKey:        geminiKey,
		GeminiModel:         opts.geminiModel,
		OpenAIAPIKey:        openaiKey,
		OpenAIModel:         opts.openaiModel,
		FPS:                 opts.fps,
		Scale:               opts.scale,
		Sensitivity:         opts.sensitivity,
		Regions:             regions,
		SourceLang:          sourceCode,
		TargetLang:          targetCode,
		Realtime:            opts.mode == "realtime",
		ConfidenceThreshold: opts.threshold,
		CacheCapacity:       opts.cacheSize,
		Cooldown:            opts.cooldown,
		Timeout:             opts.timeout,
		Workers:             opts.workers,
		OutputPath:          opts.outputPath,
		LogPath:             opts.logFilePath,
	}

	startTime := time.Now()
	ctx, stop := signalContext()
	defer stop()

	result, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return err
	}

	printSessionStats(result, time.Since(startTime))
	if opts.statsPath != "" {
		if err := writeSessionStats(opts.statsPath, result); err != nil {
			return err
		}
	}
	return nil
}

func writeSessionStats(path string, result pipeline.SessionResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session stats: %w", err)
	}
	if err := files.AtomicWrite(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write session stats: %w", err)
	}
	return nil
}

func printSessionStats(result pipeline.SessionResult, duration time.Duration) {
	fmt.Println("\n--- Session Stats ---")
	fmt.Printf("Time: %s\n", duration.Round(time.Second))
	fmt.Printf("Ticks: %d (capture failures: %d)\n", result.Ticks, result.CaptureFailures)
	fmt.Printf("Changes: %d, Pipelines: %d, Published: %d\n", result.Changes, result.PipelineRuns, result.Published)
	fmt.Printf("Dropped: %d, Discarded: %d, Cached: %d\n", result.Dropped, result.Discarded, result.CachedResults)
}
