package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oukeidos/screenlate/internal/apperrors"
	"github.com/oukeidos/screenlate/internal/logger"
)

// Confidence thresholds driving the early-accept decision. Realtime trades a
// little quality for latency.
const (
	RealtimeThreshold = 0.6
	StandardThreshold = 0.7
)

// DefaultTimeout bounds a whole translation race, pivot hops included.
const DefaultTimeout = 30 * time.Second

// DefaultDetectionCacheCapacity bounds the language-detection memo.
const DefaultDetectionCacheCapacity = 256

// pivotEchoConfidence is reported when the pivot path needs no second hop
// because the target is already the pivot language.
const pivotEchoConfidence = 0.7

// Detector guesses the language of a text. Implementations must be safe for
// concurrent use.
type Detector interface {
	Detect(text string) (code string, ok bool)
}

// Config tunes a Router. Zero values select the documented defaults.
type Config struct {
	// Realtime lowers the confidence threshold for faster early exits.
	Realtime bool
	// ConfidenceThreshold overrides the Realtime-derived threshold when > 0.
	ConfidenceThreshold float64
	// Timeout bounds each Translate call end to end.
	Timeout time.Duration
	// Cooldown is how long a rate-limited backend is skipped.
	Cooldown time.Duration
	// CacheCapacity bounds the translation result cache.
	CacheCapacity int
	// DetectionCacheCapacity bounds the language-detection cache.
	DetectionCacheCapacity int
}

func (c Config) threshold() float64 {
	if c.ConfidenceThreshold > 0 {
		return c.ConfidenceThreshold
	}
	if c.Realtime {
		return RealtimeThreshold
	}
	return StandardThreshold
}

// Router races translation backends per the quality matrix and memoizes
// results. It never returns an error for an ordinary translation failure;
// a false ok means no backend produced any usable result.
type Router struct {
	backends  map[string]Backend
	matrix    Matrix
	cache     *Cache
	detection *lru.Cache[string, string]
	detector  Detector
	cooldowns *cooldownTracker
	threshold float64
	timeout   time.Duration
}

// NewRouter creates a Router over the given backends. detector may be nil,
// in which case "auto" sources fall back to the pivot language.
func NewRouter(backends []Backend, detector Detector, cfg Config) (*Router, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("at least one backend is required")
	}
	capacity := cfg.CacheCapacity
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	cache, err := NewCache(capacity)
	if err != nil {
		return nil, err
	}
	detCap := cfg.DetectionCacheCapacity
	if detCap <= 0 {
		detCap = DefaultDetectionCacheCapacity
	}
	detection, err := lru.New[string, string](detCap)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]Backend, len(backends))
	for _, b := range backends {
		if b == nil {
			continue
		}
		byName[b.Name()] = b
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Router{
		backends:  byName,
		matrix:    DefaultMatrix(),
		cache:     cache,
		detection: detection,
		detector:  detector,
		cooldowns: newCooldownTracker(cfg.Cooldown),
		threshold: cfg.threshold(),
		timeout:   timeout,
	}, nil
}

// SetMatrix replaces the quality matrix. Intended for configuration at
// startup, not for concurrent mutation.
func (r *Router) SetMatrix(m Matrix) {
	if m != nil {
		r.matrix = m
	}
}

// Translate produces a result for (text, sourceLang, targetLang). A
// sourceLang of "auto" triggers cached language detection. The first backend
// result meeting the confidence threshold wins and cancels the rest; if none
// qualifies before the timeout, the best sub-threshold result is returned.
// ok is false only for empty input or when every backend failed.
func (r *Router) Translate(ctx context.Context, text, sourceLang, targetLang string) (Result, bool) {
	if strings.TrimSpace(text) == "" {
		return Result{}, false
	}
	if sourceLang == "auto" {
		sourceLang = r.detectLanguage(text)
	}
	if sourceLang == targetLang {
		return Result{
			Text:       text,
			Confidence: 1,
			Model:      "identity",
			SourceLang: sourceLang,
			TargetLang: targetLang,
		}, true
	}

	key := Key{Text: text, SourceLang: sourceLang, TargetLang: targetLang}
	if cached, ok := r.cache.Get(key); ok {
		return cached, true
	}

	result, ok := r.race(ctx, text, sourceLang, targetLang)
	if ok {
		r.cache.Put(key, result)
	}
	return result, ok
}

type raceOutcome struct {
	result  Result
	err     error
	backend string
}

func (r *Router) race(parent context.Context, text, sourceLang, targetLang string) (Result, bool) {
	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	order := r.matrix.Lookup(sourceLang, targetLang)
	outcomes := make(chan raceOutcome, len(order))
	inFlight := 0
	for _, name := range order {
		switch {
		case name == BackendPivot:
			// A pivot hop through a pair that already touches the pivot
			// language would recurse into itself.
			if sourceLang == PivotLang || targetLang == PivotLang {
				continue
			}
			inFlight++
			go func() {
				result, err := r.pivot(ctx, text, sourceLang, targetLang)
				outcomes <- raceOutcome{result: result, err: err, backend: BackendPivot}
			}()
		default:
			backend, registered := r.backends[name]
			if !registered {
				continue
			}
			if r.cooldowns.active(name) {
				logger.Debug("Backend in cooldown, skipping", "backend", name)
				continue
			}
			inFlight++
			go func(b Backend) {
				result, err := b.Translate(ctx, text, sourceLang, targetLang)
				// Record rate limits here rather than in the receive loop:
				// once a winner is returned the loop stops reading, and a
				// 429 arriving after the winner must still start a cooldown.
				if err != nil && apperrors.IsRateLimit(err) {
					r.cooldowns.trip(b.Name())
					logger.Warn("Backend rate limited, starting cooldown",
						"backend", b.Name(), "cooldown", r.cooldowns.duration)
				}
				outcomes <- raceOutcome{result: result, err: err, backend: b.Name()}
			}(backend)
		}
	}
	if inFlight == 0 {
		logger.Warn("No dispatchable backends for language pair",
			"source", sourceLang, "target", targetLang)
		return Result{}, false
	}

	var best Result
	haveBest := false
	for received := 0; received < inFlight; received++ {
		select {
		case <-ctx.Done():
			return best, haveBest
		case out := <-outcomes:
			if out.err != nil {
				if ctx.Err() == nil && !apperrors.IsRateLimit(out.err) {
					logger.Debug("Backend failed", "backend", out.backend, "error", out.err)
				}
				continue
			}
			if out.result.Confidence >= r.threshold {
				return out.result, true
			}
			if !haveBest || out.result.Confidence > best.Confidence {
				best = out.result
				haveBest = true
			}
		}
	}
	if haveBest {
		logger.Debug("Race ended below threshold, using best result",
			"backend", best.Model, "confidence", best.Confidence)
	}
	return best, haveBest
}

// pivot translates through the pivot language with two recursive router
// calls, skipping a hop when one side is already the pivot language.
func (r *Router) pivot(ctx context.Context, text, sourceLang, targetLang string) (Result, error) {
	intermediate := text
	if sourceLang != PivotLang {
		step, ok := r.Translate(ctx, text, sourceLang, PivotLang)
		if !ok || strings.TrimSpace(step.Text) == "" {
			return Result{}, fmt.Errorf("pivot hop %s->%s produced no result", sourceLang, PivotLang)
		}
		intermediate = step.Text
	}
	if targetLang == PivotLang {
		return Result{
			Text:       intermediate,
			Confidence: pivotEchoConfidence,
			Model:      BackendPivot,
			SourceLang: sourceLang,
			TargetLang: targetLang,
		}, nil
	}
	step, ok := r.Translate(ctx, intermediate, PivotLang, targetLang)
	if !ok {
		return Result{}, fmt.Errorf("pivot hop %s->%s produced no result", PivotLang, targetLang)
	}
	return Result{
		Text:       step.Text,
		Confidence: step.Confidence,
		Model:      BackendPivot,
		SourceLang: sourceLang,
		TargetLang: targetLang,
	}, nil
}

func (r *Router) detectLanguage(text string) string {
	if code, ok := r.detection.Get(text); ok {
		return code
	}
	code := PivotLang
	if r.detector != nil {
		if detected, ok := r.detector.Detect(text); ok {
			code = detected
		}
	}
	r.detection.Add(text, code)
	return code
}

// BackendStatus describes one backend for stats reporting.
type BackendStatus struct {
	Name        string
	CoolingDown bool
	Cooldown    time.Duration
}

// Stats is a point-in-time snapshot of router state.
type Stats struct {
	CachedResults    int
	CachedDetections int
	Threshold        float64
	Backends         []BackendStatus
}

// Stats reports cache sizes and per-backend cooldown state.
func (r *Router) Stats() Stats {
	s := Stats{
		CachedResults:    r.cache.Len(),
		CachedDetections: r.detection.Len(),
		Threshold:        r.threshold,
	}
	for name := range r.backends {
		s.Backends = append(s.Backends, BackendStatus{
			Name:        name,
			CoolingDown: r.cooldowns.active(name),
			Cooldown:    r.cooldowns.remaining(name),
		})
	}
	return s
}
