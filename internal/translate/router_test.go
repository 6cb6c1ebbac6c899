package translate

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oukeidos/screenlate/internal/apperrors"
)

type mockBackend struct {
	name       string
	confidence float64
	delay      time.Duration
	err        error
	calls      atomic.Int64
	translate  func(text, sourceLang, targetLang string) (Result, error)
}

func (m *mockBackend) Name() string { return m.name }

func (m *mockBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (Result, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	if m.translate != nil {
		return m.translate(text, sourceLang, targetLang)
	}
	if m.err != nil {
		return Result{}, m.err
	}
	return Result{
		Text:       "[" + m.name + "] " + text,
		Confidence: m.confidence,
		Model:      m.name,
		SourceLang: sourceLang,
		TargetLang: targetLang,
	}, nil
}

func newTestRouter(t *testing.T, cfg Config, backends ...Backend) *Router {
	t.Helper()
	router, err := NewRouter(backends, nil, cfg)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	return router
}

func TestRouter_FastConfidentBackendWinsWithoutWaiting(t *testing.T) {
	fast := &mockBackend{name: BackendGemini, confidence: 0.9}
	slow := &mockBackend{name: BackendOpenAI, confidence: 0.95, delay: 2 * time.Second}
	router := newTestRouter(t, Config{ConfidenceThreshold: 0.7}, fast, slow)

	start := time.Now()
	result, ok := router.Translate(context.Background(), "hello", "en", "vi")
	elapsed := time.Since(start)

	if !ok {
		t.Fatal("expected a result")
	}
	if result.Model != BackendGemini {
		t.Fatalf("expected the fast backend to win, got %s", result.Model)
	}
	if elapsed > 1*time.Second {
		t.Fatalf("router waited for the slow backend: %v", elapsed)
	}
}

func TestRouter_SubThresholdResultsFallBackToBest(t *testing.T) {
	low := &mockBackend{name: BackendGemini, confidence: 0.3}
	lower := &mockBackend{name: BackendOpenAI, confidence: 0.2}
	router := newTestRouter(t, Config{ConfidenceThreshold: 0.7}, low, lower)

	result, ok := router.Translate(context.Background(), "hello", "en", "vi")
	if !ok {
		t.Fatal("expected best-effort result, got none")
	}
	if result.Model != BackendGemini {
		t.Fatalf("expected highest sub-threshold confidence to win, got %s", result.Model)
	}
	if result.Confidence != 0.3 {
		t.Fatalf("unexpected confidence %v", result.Confidence)
	}
}

func TestRouter_RateLimitedBackendEntersCooldown(t *testing.T) {
	limited := &mockBackend{name: BackendGemini, err: apperrors.RateLimit(nil)}
	healthy := &mockBackend{name: BackendOpenAI, confidence: 0.8}
	router := newTestRouter(t, Config{ConfidenceThreshold: 0.7, Cooldown: time.Minute}, limited, healthy)

	if _, ok := router.Translate(context.Background(), "first", "en", "vi"); !ok {
		t.Fatal("healthy backend should have served the request")
	}
	if limited.calls.Load() != 1 {
		t.Fatalf("expected exactly one call to the limited backend, got %d", limited.calls.Load())
	}

	if _, ok := router.Translate(context.Background(), "second", "en", "vi"); !ok {
		t.Fatal("healthy backend should have served the second request")
	}
	if limited.calls.Load() != 1 {
		t.Fatalf("rate-limited backend dispatched during cooldown: %d calls", limited.calls.Load())
	}
}

func TestRouter_RateLimitAfterWinnerStillTripsCooldown(t *testing.T) {
	limited := &mockBackend{name: BackendGemini}
	limited.translate = func(text, sourceLang, targetLang string) (Result, error) {
		// Report the rate limit only after the healthy backend has already
		// won the race; the cooldown must be recorded anyway.
		time.Sleep(30 * time.Millisecond)
		return Result{}, apperrors.RateLimit(nil)
	}
	healthy := &mockBackend{name: BackendOpenAI, confidence: 0.9}
	router := newTestRouter(t, Config{ConfidenceThreshold: 0.7, Cooldown: time.Minute}, limited, healthy)

	result, ok := router.Translate(context.Background(), "first", "en", "vi")
	if !ok || result.Model != BackendOpenAI {
		t.Fatalf("expected the healthy backend to win, got %+v ok=%v", result, ok)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !router.cooldowns.active(BackendGemini) {
		if time.Now().After(deadline) {
			t.Fatal("cooldown not recorded for a rate limit reported after the winner")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, ok := router.Translate(context.Background(), "second", "en", "vi"); !ok {
		t.Fatal("healthy backend should have served the second request")
	}
	if limited.calls.Load() != 1 {
		t.Fatalf("rate-limited backend dispatched again during cooldown: %d calls", limited.calls.Load())
	}
}

func TestRouter_EmptyTextYieldsNoResult(t *testing.T) {
	backend := &mockBackend{name: BackendGemini, confidence: 0.9}
	router := newTestRouter(t, Config{}, backend)

	if _, ok := router.Translate(context.Background(), "   ", "en", "vi"); ok {
		t.Fatal("expected no result for blank input")
	}
	if backend.calls.Load() != 0 {
		t.Fatal("no backend should be dispatched for blank input")
	}
}

func TestRouter_AllBackendsFailingYieldsNoResult(t *testing.T) {
	a := &mockBackend{name: BackendGemini, err: apperrors.Transient(nil)}
	b := &mockBackend{name: BackendOpenAI, err: apperrors.Transient(nil)}
	router := newTestRouter(t, Config{}, a, b)

	if _, ok := router.Translate(context.Background(), "hello", "en", "vi"); ok {
		t.Fatal("expected no result when every backend fails")
	}
}

func TestRouter_CacheHitSkipsBackends(t *testing.T) {
	backend := &mockBackend{name: BackendGemini, confidence: 0.9}
	router := newTestRouter(t, Config{ConfidenceThreshold: 0.7}, backend)

	first, ok := router.Translate(context.Background(), "hello", "en", "vi")
	if !ok {
		t.Fatal("expected a result")
	}
	second, ok := router.Translate(context.Background(), "hello", "en", "vi")
	if !ok {
		t.Fatal("expected a cached result")
	}
	if first != second {
		t.Fatalf("cached result differs: %+v vs %+v", first, second)
	}
	if backend.calls.Load() != 1 {
		t.Fatalf("expected a single backend call, got %d", backend.calls.Load())
	}
}

func TestRouter_IdentityPairShortCircuits(t *testing.T) {
	backend := &mockBackend{name: BackendGemini, confidence: 0.9}
	router := newTestRouter(t, Config{}, backend)

	result, ok := router.Translate(context.Background(), "hello", "en", "en")
	if !ok || result.Text != "hello" {
		t.Fatalf("expected identity result, got %+v ok=%v", result, ok)
	}
	if backend.calls.Load() != 0 {
		t.Fatal("identity pair must not dispatch backends")
	}
}

func TestRouter_PivotTranslatesThroughEnglish(t *testing.T) {
	backend := &mockBackend{name: BackendGemini, confidence: 0.9}
	backend.translate = func(text, sourceLang, targetLang string) (Result, error) {
		// Only the hops through English succeed; the direct pair fails.
		if sourceLang != PivotLang && targetLang != PivotLang {
			return Result{}, apperrors.Transient(nil)
		}
		return Result{
			Text:       text + " (" + sourceLang + ">" + targetLang + ")",
			Confidence: 0.9,
			Model:      BackendGemini,
			SourceLang: sourceLang,
			TargetLang: targetLang,
		}, nil
	}
	router := newTestRouter(t, Config{ConfidenceThreshold: 0.7}, backend)
	router.SetMatrix(Matrix{
		{Source: "vi", Target: "ja"}: {BackendGemini, BackendPivot},
		{Source: "vi", Target: "en"}: {BackendGemini},
		{Source: "en", Target: "ja"}: {BackendGemini},
	})

	result, ok := router.Translate(context.Background(), "xin chào", "vi", "ja")
	if !ok {
		t.Fatal("expected pivot to produce a result")
	}
	if result.Model != BackendPivot {
		t.Fatalf("expected pivot result, got model %s", result.Model)
	}
	if !strings.Contains(result.Text, "(vi>en)") || !strings.Contains(result.Text, "(en>ja)") {
		t.Fatalf("expected both pivot hops in output, got %q", result.Text)
	}
	if result.SourceLang != "vi" || result.TargetLang != "ja" {
		t.Fatalf("pivot result carries wrong pair: %+v", result)
	}
}

type fixedDetector struct {
	code  string
	calls atomic.Int64
}

func (d *fixedDetector) Detect(text string) (string, bool) {
	d.calls.Add(1)
	return d.code, d.code != ""
}

func TestRouter_AutoSourceUsesCachedDetection(t *testing.T) {
	detector := &fixedDetector{code: "ja"}
	backend := &mockBackend{name: BackendGemini, confidence: 0.9}
	router, err := NewRouter([]Backend{backend}, detector, Config{ConfidenceThreshold: 0.7})
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}

	result, ok := router.Translate(context.Background(), "こんにちは", "auto", "vi")
	if !ok {
		t.Fatal("expected a result")
	}
	if result.SourceLang != "ja" {
		t.Fatalf("expected detected source ja, got %s", result.SourceLang)
	}

	// Same text again: detection must come from the cache.
	router.cache.entries.Purge()
	if _, ok := router.Translate(context.Background(), "こんにちは", "auto", "vi"); !ok {
		t.Fatal("expected a result on second call")
	}
	if detector.calls.Load() != 1 {
		t.Fatalf("expected one detector call, got %d", detector.calls.Load())
	}
}

func TestRouter_TimeoutReturnsBestSoFar(t *testing.T) {
	quick := &mockBackend{name: BackendGemini, confidence: 0.3}
	stuck := &mockBackend{name: BackendOpenAI, confidence: 0.99, delay: 5 * time.Second}
	router := newTestRouter(t, Config{ConfidenceThreshold: 0.7, Timeout: 200 * time.Millisecond}, quick, stuck)

	start := time.Now()
	result, ok := router.Translate(context.Background(), "hello", "en", "vi")
	if time.Since(start) > 2*time.Second {
		t.Fatal("router did not honor the global timeout")
	}
	if !ok {
		t.Fatal("expected the quick sub-threshold result")
	}
	if result.Model != BackendGemini {
		t.Fatalf("expected quick backend result, got %s", result.Model)
	}
}
