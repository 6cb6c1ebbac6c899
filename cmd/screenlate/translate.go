package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/oukeidos/screenlate/internal/logger"
	"github.com/oukeidos/screenlate/internal/pipeline"
	"github.com/spf13/cobra"
)

type translateOptions struct {
	geminiModel string
	openaiModel string
	sourceLang  string
	targetLang  string
	mode        string
	timeout     time.Duration
	allowEnv    bool
	envOnly     bool
	debug       bool
}

func newTranslateCmd() *cobra.Command {
	opts := translateOptions{}
	cmd := &cobra.Command{
		Use:   "translate <text>",
		Short: "Translate a single text without watching the screen",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslateOnce(cmd, args, &opts)
		},
		SilenceUsage: true,
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	cmd.Flags().StringVar(&opts.geminiModel, "model", "gemini-3-flash-preview", "Gemini model name")
	cmd.Flags().StringVar(&opts.openaiModel, "openai-model", "gpt-5-mini", "OpenAI model name")
	cmd.Flags().StringVar(&opts.sourceLang, "source", "auto", "Source language code or 'auto'")
	cmd.Flags().StringVar(&opts.targetLang, "target", "en", "Target language code")
	cmd.Flags().StringVar(&opts.mode, "mode", "snapshot", "Scan mode: realtime or snapshot")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Translation timeout")
	cmd.Flags().BoolVar(&opts.allowEnv, "allow-env", false, "Allow reading API keys from environment variables")
	cmd.Flags().BoolVar(&opts.envOnly, "env-only", false, "Use only environment variables for API keys")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	return cmd
}

func runTranslateOnce(cmd *cobra.Command, args []string, opts *translateOptions) error {
	if opts.mode != "realtime" && opts.mode != "snapshot" {
		return fmt.Errorf("invalid mode %q (must be realtime or snapshot)", opts.mode)
	}

	logLevel := logger.LevelInfo
	if opts.debug {
		logLevel = logger.LevelDebug
	}
	logger.Init(logLevel, nil)

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
		GeminiAPIKey: geminiKey,
		GeminiModel:  opts.geminiModel,
		OpenAIAPIKey: openaiKey,
		OpenAIModel:  opts.openaiModel,
		SourceLang:   sourceCode,
		TargetLang:   targetCode,
		Realtime:     opts.mode == "realtime",
		Timeout:      opts.timeout,
	}

	ctx, stop := signalContext()
	defer stop()

	text := strings.Join(args, " ")
	result, ok, err := pipeline.TranslateOnce(ctx, cfg, text)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no translation available")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.Text)
	fmt.Fprintf(out, "(%s -> %s, model=%s, confidence=%.2f)\n",
		result.SourceLang, result.TargetLang, result.Model, result.Confidence)
	return nil
}
