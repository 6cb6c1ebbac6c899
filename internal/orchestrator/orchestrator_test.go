package orchestrator

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oukeidos/screenlate/internal/ocr"
	"github.com/oukeidos/screenlate/internal/overlay"
	"github.com/oukeidos/screenlate/internal/sampler"
	"github.com/oukeidos/screenlate/internal/translate"
)

type fakeExtractor struct {
	mu           sync.Mutex
	items        []ocr.TextItem
	err          error
	block        chan struct{} // when set, Extract waits for close or ctx
	ignoreCancel bool          // when set, only close(block) releases Extract
	calls        int
}

func (f *fakeExtractor) Extract(ctx context.Context, img image.Image) ([]ocr.TextItem, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	items, err := f.items, f.err
	ignoreCancel := f.ignoreCancel
	f.mu.Unlock()

	if block != nil {
		if ignoreCancel {
			<-block
		} else {
			select {
			case <-block:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return items, err
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTranslator struct {
	ok bool
}

func (f *fakeTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (translate.Result, bool) {
	if !f.ok {
		return translate.Result{}, false
	}
	return translate.Result{
		Text:       strings.ToUpper(text),
		Confidence: 0.9,
		Model:      "mock",
		SourceLang: sourceLang,
		TargetLang: targetLang,
	}, true
}

type fakeSink struct {
	mu        sync.Mutex
	published map[int][][]overlay.Item
	cleared   []int
}

func newFakeSink() *fakeSink {
	return &fakeSink{published: make(map[int][][]overlay.Item)}
}

func (f *fakeSink) Publish(regionID int, items []overlay.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[regionID] = append(f.published[regionID], items)
	return nil
}

func (f *fakeSink) Clear(regionID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, regionID)
	return nil
}

func (f *fakeSink) publishCount(regionID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published[regionID])
}

func someItems() []ocr.TextItem {
	return []ocr.TextItem{{Text: "hello there", Confidence: 0.9, Bounds: image.Rect(0, 0, 40, 12)}}
}

func event(regionID int) sampler.ChangeEvent {
	return sampler.ChangeEvent{
		RegionID: regionID,
		Crop:     image.NewGray(image.Rect(0, 0, 8, 8)),
		Scan:     1,
		At:       time.Now(),
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestPipelinePublishes(t *testing.T) {
	extractor := &fakeExtractor{items: someItems()}
	sink := newFakeSink()
	o, err := New(extractor, &fakeTranslator{ok: true}, sink, "auto", "en", 2)
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	o.HandleChange(event(1))
	waitUntil(t, 2*time.Second, func() bool { return sink.publishCount(1) == 1 })

	sink.mu.Lock()
	got := sink.published[1][0]
	sink.mu.Unlock()
	if len(got) != 1 || got[0].Text != "HELLO THERE" || got[0].SourceText != "hello there" {
		t.Fatalf("unexpected published items: %+v", got)
	}
}

func TestAtMostOnePipelinePerRegion(t *testing.T) {
	block := make(chan struct{})
	extractor := &fakeExtractor{items: someItems(), block: block}
	sink := newFakeSink()
	o, err := New(extractor, &fakeTranslator{ok: true}, sink, "auto", "en", 2)
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	o.HandleChange(event(1))
	waitUntil(t, 2*time.Second, func() bool { return extractor.callCount() == 1 })

	// The region is busy, so this event must be dropped, not queued.
	o.HandleChange(event(1))
	waitUntil(t, 2*time.Second, func() bool { return o.Stats().Dropped == 1 })

	close(block)
	waitUntil(t, 2*time.Second, func() bool { return sink.publishCount(1) == 1 })
	if extractor.callCount() != 1 {
		t.Fatalf("expected the dropped event to never start a pipeline, got %d calls", extractor.callCount())
	}

	// With the region idle again, a new event runs.
	o.HandleChange(event(1))
	waitUntil(t, 2*time.Second, func() bool { return sink.publishCount(1) == 2 })
}

func TestRemoveRegionDiscardsInFlightResult(t *testing.T) {
	block := make(chan struct{})
	extractor := &fakeExtractor{items: someItems(), block: block}
	sink := newFakeSink()
	o, err := New(extractor, &fakeTranslator{ok: true}, sink, "auto", "en", 2)
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	o.HandleChange(event(3))
	waitUntil(t, 2*time.Second, func() bool { return extractor.callCount() == 1 })

	o.RemoveRegion(3)
	close(block)
	waitUntil(t, 2*time.Second, func() bool { return o.Stats().Discarded == 1 })
	waitUntil(t, 2*time.Second, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.cleared) == 1
	})

	if sink.publishCount(3) != 0 {
		t.Fatal("expected zero publishes after region removal")
	}
	sink.mu.Lock()
	cleared := append([]int(nil), sink.cleared...)
	sink.mu.Unlock()
	if len(cleared) != 1 || cleared[0] != 3 {
		t.Fatalf("expected one clear for region 3, got %v", cleared)
	}

	// Later events for the tombstoned id are dropped outright.
	o.HandleChange(event(3))
	waitUntil(t, 2*time.Second, func() bool { return o.Stats().Dropped == 1 })
	if extractor.callCount() != 1 {
		t.Fatal("expected no pipeline for a tombstoned region")
	}
}

func TestIndependentRegionsRunConcurrently(t *testing.T) {
	block := make(chan struct{})
	extractor := &fakeExtractor{items: someItems(), block: block}
	sink := newFakeSink()
	o, err := New(extractor, &fakeTranslator{ok: true}, sink, "auto", "en", 4)
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	o.HandleChange(event(1))
	o.HandleChange(event(2))
	waitUntil(t, 2*time.Second, func() bool { return extractor.callCount() == 2 })

	close(block)
	waitUntil(t, 2*time.Second, func() bool {
		return sink.publishCount(1) == 1 && sink.publishCount(2) == 1
	})
}

func TestExtractionFailureIsIsolated(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New("ocr exploded")}
	sink := newFakeSink()
	o, err := New(extractor, &fakeTranslator{ok: true}, sink, "auto", "en", 2)
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	o.HandleChange(event(1))
	waitUntil(t, 2*time.Second, func() bool { return o.Stats().Runs == 1 })
	waitUntil(t, 2*time.Second, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return len(o.running) == 0
	})
	if sink.publishCount(1) != 0 {
		t.Fatal("expected no publish after extraction failure")
	}

	// The region recovers on the next event.
	extractor.mu.Lock()
	extractor.err = nil
	extractor.items = someItems()
	extractor.mu.Unlock()

	o.HandleChange(event(1))
	waitUntil(t, 2*time.Second, func() bool { return sink.publishCount(1) == 1 })
}

func TestNoTranslationMeansNoUpdate(t *testing.T) {
	extractor := &fakeExtractor{items: someItems()}
	sink := newFakeSink()
	o, err := New(extractor, &fakeTranslator{ok: false}, sink, "auto", "en", 2)
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	o.HandleChange(event(1))
	waitUntil(t, 2*time.Second, func() bool { return o.Stats().Runs == 1 })
	waitUntil(t, 2*time.Second, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return len(o.running) == 0
	})
	if sink.publishCount(1) != 0 {
		t.Fatal("expected no publish when no backend produced a result")
	}
}

func TestWaitDrainsWithoutCancelling(t *testing.T) {
	block := make(chan struct{})
	extractor := &fakeExtractor{items: someItems(), block: block}
	sink := newFakeSink()
	o, err := New(extractor, &fakeTranslator{ok: true}, sink, "auto", "en", 2)
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	o.HandleChange(event(1))
	o.HandleChange(event(2))
	waitUntil(t, 2*time.Second, func() bool { return extractor.callCount() == 2 })

	done := make(chan struct{})
	go func() {
		o.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned while pipelines were still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after pipelines finished")
	}

	if sink.publishCount(1) != 1 || sink.publishCount(2) != 1 {
		t.Fatal("expected both pipelines to publish before Wait returned")
	}
}

func TestRemoveRegionClearWaitsForInFlightRun(t *testing.T) {
	block := make(chan struct{})
	extractor := &fakeExtractor{items: someItems(), block: block, ignoreCancel: true}
	sink := newFakeSink()
	o, err := New(extractor, &fakeTranslator{ok: true}, sink, "auto", "en", 2)
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	o.HandleChange(event(5))
	waitUntil(t, 2*time.Second, func() bool { return extractor.callCount() == 1 })

	// The run does not observe the cancellation, so the clear must be
	// held back until the run finishes.
	o.RemoveRegion(5)
	sink.mu.Lock()
	clearedEarly := len(sink.cleared)
	sink.mu.Unlock()
	if clearedEarly != 0 {
		t.Fatal("expected the clear to wait for the in-flight run")
	}

	close(block)
	waitUntil(t, 2*time.Second, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.cleared) == 1
	})
	if sink.publishCount(5) != 0 {
		t.Fatal("expected no publish for a removed region")
	}
}

func TestRemoveIdleRegionClearsImmediately(t *testing.T) {
	extractor := &fakeExtractor{items: someItems()}
	sink := newFakeSink()
	o, err := New(extractor, &fakeTranslator{ok: true}, sink, "auto", "en", 2)
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	o.RemoveRegion(9)
	sink.mu.Lock()
	cleared := append([]int(nil), sink.cleared...)
	sink.mu.Unlock()
	if len(cleared) != 1 || cleared[0] != 9 {
		t.Fatalf("expected an immediate clear for an idle region, got %v", cleared)
	}
}
