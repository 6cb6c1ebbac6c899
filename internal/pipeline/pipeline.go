// Package pipeline wires the capture loop, OCR, translation router and
// presentation sink into a running watch session.
package pipeline

import (
	"context"
	"fmt"

	"github.com/oukeidos/screenlate/internal/capture"
	"github.com/oukeidos/screenlate/internal/gemini"
	"github.com/oukeidos/screenlate/internal/language"
	"github.com/oukeidos/screenlate/internal/logger"
	"github.com/oukeidos/screenlate/internal/ocr"
	"github.com/oukeidos/screenlate/internal/openai"
	"github.com/oukeidos/screenlate/internal/orchestrator"
	"github.com/oukeidos/screenlate/internal/overlay"
	"github.com/oukeidos/screenlate/internal/sampler"
	"github.com/oukeidos/screenlate/internal/translate"
)

// SessionResult summarizes a finished watch session.
type SessionResult struct {
	Ticks           uint64 `json:"ticks"`
	CaptureFailures uint64 `json:"capture_failures"`
	Changes         uint64 `json:"changes"`
	PipelineRuns    uint64 `json:"pipeline_runs"`
	Published       uint64 `json:"published"`
	Dropped         uint64 `json:"dropped"`
	Discarded       uint64 `json:"discarded"`
	CachedResults   int    `json:"cached_results"`
}

// buildRouter assembles the translation router from the configured API
// keys. The returned closer releases backend clients.
func buildRouter(ctx context.Context, cfg Config) (*translate.Router, func(), error) {
	var backends []translate.Backend
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.GeminiAPIKey != "" {
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		backends = append(backends, gemini.NewBackend(client))
	}
	if cfg.OpenAIAPIKey != "" {
		backends = append(backends, openai.NewBackend(openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)))
	}

	router, err := translate.NewRouter(backends, language.NewDetector(), translate.Config{
		Realtime:            cfg.Realtime,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		Timeout:             cfg.Timeout,
		Cooldown:            cfg.Cooldown,
		CacheCapacity:       cfg.CacheCapacity,
	})
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return router, closeAll, nil
}

// Run executes a watch session until ctx is cancelled.
func Run(ctx context.Context, cfg Config) (SessionResult, error) {
	var notes []string
	cfg, notes = cfg.Normalize()
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}
	if err := cfg.Validate(); err != nil {
		return SessionResult{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if len(cfg.Regions) == 0 {
		return SessionResult{}, fmt.Errorf("at least one region is required")
	}

	router, closeBackends, err := buildRouter(ctx, cfg)
	if err != nil {
		return SessionResult{}, err
	}
	defer closeBackends()

	extractor, err := ocr.NewTesseractExtractor(cfg.SourceLang)
	if err != nil {
		return SessionResult{}, err
	}

	var sink overlay.Sink
	if cfg.OutputPath != "" {
		jsonl, err := overlay.NewJSONLSink(cfg.OutputPath)
		if err != nil {
			return SessionResult{}, err
		}
		defer jsonl.Close()
		logger.Info("Writing translations", "path", jsonl.Path())
		sink = jsonl
	} else {
		sink = overlay.NewLogSink()
	}

	orch, err := orchestrator.New(extractor, router, sink, cfg.SourceLang, cfg.TargetLang, cfg.Workers)
	if err != nil {
		return SessionResult{}, err
	}

	smp, err := sampler.New(capture.NewScreenSource(), orch.HandleChange, cfg.FPS, cfg.Scale)
	if err != nil {
		return SessionResult{}, err
	}
	for _, rect := range cfg.Regions {
		id := smp.AddRegion(rect, cfg.Sensitivity)
		logger.Info("Watching region", "region", id, "rect", rect.String())
	}

	if cfg.Realtime {
		if err := smp.Start(); err != nil {
			return SessionResult{}, err
		}
		logger.Info("Watch session started",
			"regions", len(cfg.Regions), "fps", cfg.FPS, "target", cfg.TargetLang, "realtime", true)

		<-ctx.Done()

		smp.Stop()
		orch.Close()
	} else {
		// Snapshot mode: one pass over every region, then drain the
		// pipelines and stop.
		logger.Info("Snapshot scan started", "regions", len(cfg.Regions), "target", cfg.TargetLang)
		if err := smp.ScanOnce(); err != nil {
			return SessionResult{}, err
		}
		orch.Wait()
		orch.Close()
	}

	samplerStats := smp.Stats()
	orchStats := orch.Stats()
	routerStats := router.Stats()
	result := SessionResult{
		Ticks:           samplerStats.Ticks,
		CaptureFailures: samplerStats.CaptureFailures,
		Changes:         samplerStats.Changes,
		PipelineRuns:    orchStats.Runs,
		Published:       orchStats.Published,
		Dropped:         orchStats.Dropped,
		Discarded:       orchStats.Discarded,
		CachedResults:   routerStats.CachedResults,
	}
	logger.Info("Watch session finished",
		"ticks", result.Ticks,
		"changes", result.Changes,
		"published", result.Published,
		"dropped", result.Dropped,
		"cached", result.CachedResults)
	return result, nil
}

// TranslateOnce translates a single text without a capture session. Used by
// the one-shot translate command.
func TranslateOnce(ctx context.Context, cfg Config, text string) (translate.Result, bool, error) {
	var notes []string
	cfg, notes = cfg.Normalize()
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}
	if err := cfg.Validate(); err != nil {
		return translate.Result{}, false, fmt.Errorf("invalid configuration: %w", err)
	}

	router, closeBackends, err := buildRouter(ctx, cfg)
	if err != nil {
		return translate.Result{}, false, err
	}
	defer closeBackends()

	result, ok := router.Translate(ctx, text, cfg.SourceLang, cfg.TargetLang)
	return result, ok, nil
}
