// Package orchestrator turns change events into presentation updates. Each
// region runs an extract-translate-publish pipeline with at most one run in
// flight per region; further change events for a busy region are dropped,
// since the region is re-sampled on the next tick anyway.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/oukeidos/screenlate/internal/logger"
	"github.com/oukeidos/screenlate/internal/ocr"
	"github.com/oukeidos/screenlate/internal/overlay"
	"github.com/oukeidos/screenlate/internal/sampler"
	"github.com/oukeidos/screenlate/internal/translate"
)

// DefaultWorkers bounds the number of concurrently running pipelines.
const DefaultWorkers = 4

// Translator produces a translation result, or reports that none is
// available. The router satisfies this.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (translate.Result, bool)
}

// Stats is a snapshot of the orchestrator's counters.
type Stats struct {
	Runs      uint64
	Dropped   uint64
	Published uint64
	Discarded uint64
}

// Orchestrator owns per-region pipeline state.
type Orchestrator struct {
	extractor  ocr.TextExtractor
	translator Translator
	sink       overlay.Sink
	sourceLang string
	targetLang string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu sync.Mutex
	// running maps a region id to the cancel func of its in-flight run.
	running map[int]context.CancelFunc
	// tombstones holds removed region ids. Ids are never reused, so
	// tombstones are never dropped.
	tombstones map[int]struct{}
	// pendingClear holds removed ids whose sink.Clear is deferred until
	// the in-flight run finishes, so the clear always lands last.
	pendingClear map[int]struct{}

	workers chan struct{}

	runs      atomic.Uint64
	dropped   atomic.Uint64
	published atomic.Uint64
	discarded atomic.Uint64
}

// New creates an orchestrator translating from sourceLang (or "auto") to
// targetLang. workers <= 0 selects DefaultWorkers.
func New(extractor ocr.TextExtractor, translator Translator, sink overlay.Sink, sourceLang, targetLang string, workers int) (*Orchestrator, error) {
	if extractor == nil {
		return nil, fmt.Errorf("text extractor is required")
	}
	if translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("presentation sink is required")
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		extractor:  extractor,
		translator: translator,
		sink:       sink,
		sourceLang: sourceLang,
		targetLang: targetLang,
		ctx:        ctx,
		cancel:     cancel,
		running:      make(map[int]context.CancelFunc),
		tombstones:   make(map[int]struct{}),
		pendingClear: make(map[int]struct{}),
		workers:      make(chan struct{}, workers),
	}, nil
}

// HandleChange is the sampler callback. It never blocks the sampling loop;
// the pipeline runs on its own goroutine gated by the worker pool.
func (o *Orchestrator) HandleChange(event sampler.ChangeEvent) {
	o.mu.Lock()
	if _, dead := o.tombstones[event.RegionID]; dead {
		o.mu.Unlock()
		o.dropped.Add(1)
		return
	}
	if _, busy := o.running[event.RegionID]; busy {
		o.mu.Unlock()
		o.dropped.Add(1)
		return
	}
	runCtx, cancel := context.WithCancel(o.ctx)
	o.running[event.RegionID] = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.finish(event.RegionID, cancel)

		select {
		case o.workers <- struct{}{}:
			defer func() { <-o.workers }()
		case <-runCtx.Done():
			o.discarded.Add(1)
			return
		}

		o.runs.Add(1)
		o.pipeline(runCtx, event)
	}()
}

func (o *Orchestrator) finish(id int, cancel context.CancelFunc) {
	cancel()
	o.mu.Lock()
	delete(o.running, id)
	_, clearPending := o.pendingClear[id]
	delete(o.pendingClear, id)
	o.mu.Unlock()
	if clearPending {
		o.clear(id)
	}
}

// RemoveRegion tombstones a region id, cancels its in-flight pipeline and
// clears the sink. It never blocks on the pipeline; when a run is in flight
// the clear is deferred to that run's finish, so even a publish that slips
// past the tombstone check is wiped by the clear that follows it.
func (o *Orchestrator) RemoveRegion(id int) {
	o.mu.Lock()
	o.tombstones[id] = struct{}{}
	cancel := o.running[id]
	if cancel != nil {
		o.pendingClear[id] = struct{}{}
	}
	o.mu.Unlock()

	if cancel != nil {
		cancel()
		return
	}
	o.clear(id)
}

func (o *Orchestrator) clear(id int) {
	if err := o.sink.Clear(id); err != nil {
		logger.Warn("failed to clear region", "region", id, "error", err)
	}
}

func (o *Orchestrator) tombstoned(id int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, dead := o.tombstones[id]
	return dead
}

func (o *Orchestrator) pipeline(ctx context.Context, event sampler.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panicked", "region", event.RegionID, "panic", r)
		}
	}()

	items, err := o.extractor.Extract(ctx, event.Crop)
	if err != nil {
		if ctx.Err() != nil {
			o.discarded.Add(1)
			return
		}
		logger.Warn("text extraction failed", "region", event.RegionID, "error", err)
		return
	}
	if len(items) == 0 {
		return
	}

	translated := make([]overlay.Item, 0, len(items))
	for _, item := range items {
		if ctx.Err() != nil {
			o.discarded.Add(1)
			return
		}
		result, ok := o.translator.Translate(ctx, item.Text, o.sourceLang, o.targetLang)
		if !ok {
			continue
		}
		translated = append(translated, overlay.Item{
			SourceText: item.Text,
			Text:       result.Text,
			SourceLang: result.SourceLang,
			TargetLang: result.TargetLang,
			Model:      result.Model,
			Confidence: result.Confidence,
			Bounds:     item.Bounds,
		})
	}

	// Tombstone check happens after translation so a region removed
	// mid-flight discards instead of publishing stale content.
	if ctx.Err() != nil || o.tombstoned(event.RegionID) {
		o.discarded.Add(1)
		return
	}
	if len(translated) == 0 {
		// Nothing translatable right now; the region simply keeps its
		// previous presentation.
		return
	}

	if err := o.sink.Publish(event.RegionID, translated); err != nil {
		logger.Warn("failed to publish region", "region", event.RegionID, "error", err)
		return
	}
	o.published.Add(1)
	logger.Debug("region published", "region", event.RegionID, "items", len(translated), "scan", event.Scan)
}

// Stats returns a snapshot of the orchestrator's counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Runs:      o.runs.Load(),
		Dropped:   o.dropped.Load(),
		Published: o.published.Load(),
		Discarded: o.discarded.Load(),
	}
}

// Wait blocks until all in-flight pipelines have finished, without
// cancelling them. Used by single-pass scans.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close cancels all in-flight pipelines and waits for them to exit.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}
