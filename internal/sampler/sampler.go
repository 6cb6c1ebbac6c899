// Package sampler runs the fixed-rate capture loop. Each tick grabs one
// full-surface frame, crops every registered region, runs change detection
// and emits change events to a registered callback.
package sampler

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"github.com/oukeidos/screenlate/internal/capture"
	"github.com/oukeidos/screenlate/internal/detector"
	"github.com/oukeidos/screenlate/internal/logger"
)

const (
	MinFPS = 1
	MaxFPS = 30
)

// captureFailureBackoff is added to the inter-tick sleep after a failed
// grab, so a wedged capture surface is not hammered at full frame rate.
const captureFailureBackoff = 150 * time.Millisecond

// Region is a watched rectangle in logical surface coordinates. IDs are
// assigned monotonically and never reused.
type Region struct {
	ID          int
	Rect        image.Rectangle
	Sensitivity float64
}

// ChangeEvent reports that a region's content changed. Crop is an
// independent copy of the region's pixels and may outlive the frame.
type ChangeEvent struct {
	RegionID int
	Crop     image.Image
	Scan     uint64
	At       time.Time
}

// Callback receives change events synchronously on the sampling goroutine.
// A panicking callback is recovered and does not abort the tick.
type Callback func(ChangeEvent)

// Stats is a snapshot of the sampler's counters.
type Stats struct {
	Scan            uint64
	Ticks           uint64
	CaptureFailures uint64
	Changes         uint64
}

type regionState struct {
	region Region
	det    *detector.Detector
}

// Sampler owns the capture loop and the region registry.
type Sampler struct {
	source   capture.FrameSource
	onChange Callback
	interval time.Duration
	scale    float64

	mu      sync.Mutex
	regions map[int]*regionState
	nextID  int

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}

	scan            atomic.Uint64
	ticks           atomic.Uint64
	captureFailures atomic.Uint64
	changes         atomic.Uint64
}

// New creates a sampler. FPS is clamped to [MinFPS, MaxFPS]. Scale converts
// logical region coordinates to physical frame pixels; values <= 0 mean no
// scaling.
func New(source capture.FrameSource, onChange Callback, fps int, scale float64) (*Sampler, error) {
	if source == nil {
		return nil, fmt.Errorf("frame source is required")
	}
	if onChange == nil {
		return nil, fmt.Errorf("change callback is required")
	}
	if fps < MinFPS {
		fps = MinFPS
	}
	if fps > MaxFPS {
		fps = MaxFPS
	}
	if scale <= 0 {
		scale = 1
	}
	return &Sampler{
		source:   source,
		onChange: onChange,
		interval: time.Second / time.Duration(fps),
		scale:    scale,
		regions:  make(map[int]*regionState),
	}, nil
}

// AddRegion registers a rectangle and returns its id. Sensitivity is
// clamped by the detector. Safe to call while the loop is running; the new
// region is picked up at the next tick boundary.
func (s *Sampler) AddRegion(rect image.Rectangle, sensitivity float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	physical := scaleRect(rect, s.scale)
	s.regions[id] = &regionState{
		region: Region{ID: id, Rect: rect, Sensitivity: sensitivity},
		det:    detector.New(physical.Dx()*physical.Dy(), sensitivity),
	}
	logger.Debug("region added", "region", id, "rect", rect.String())
	return id
}

// RemoveRegion unregisters a region. Removal is observed at the next tick
// boundary, never mid-iteration.
func (s *Sampler) RemoveRegion(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.regions[id]; !ok {
		return false
	}
	delete(s.regions, id)
	logger.Debug("region removed", "region", id)
	return true
}

// Regions returns a snapshot of the registered regions.
func (s *Sampler) Regions() []Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Region, 0, len(s.regions))
	for _, st := range s.regions {
		out = append(out, st.region)
	}
	return out
}

// Start launches the sampling loop.
func (s *Sampler) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sampler already running")
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop()
	return nil
}

// Stop halts the loop and waits for it to exit. Shutdown latency is bounded
// by roughly one frame interval.
func (s *Sampler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stop)
	<-s.done
}

// ScanOnce runs a single synchronous tick over all registered regions.
// It cannot be used while the loop is running.
func (s *Sampler) ScanOnce() error {
	if s.running.Load() {
		return fmt.Errorf("sampler loop is running")
	}
	s.tick()
	return nil
}

// Scan returns the current value of the global scan counter.
func (s *Sampler) Scan() uint64 {
	return s.scan.Load()
}

// Stats returns a snapshot of the sampler's counters.
func (s *Sampler) Stats() Stats {
	return Stats{
		Scan:            s.scan.Load(),
		Ticks:           s.ticks.Load(),
		CaptureFailures: s.captureFailures.Load(),
		Changes:         s.changes.Load(),
	}
}

func (s *Sampler) loop() {
	defer close(s.done)
	for {
		start := time.Now()
		ok := s.tick()
		sleep := s.interval - time.Since(start)
		if sleep < 0 {
			sleep = 0
		}
		if !ok {
			sleep += captureFailureBackoff
		}
		select {
		case <-s.stop:
			return
		case <-time.After(sleep):
		}
	}
}

// tick runs one sampling pass. It reports false when the grab failed and
// the tick was skipped.
func (s *Sampler) tick() bool {
	scan := s.scan.Add(1)
	s.ticks.Add(1)

	frame, err := s.source.Grab()
	if err != nil {
		s.captureFailures.Add(1)
		logger.Debug("capture failed, skipping tick", "scan", scan, "error", err)
		return false
	}
	bounds := frame.Bounds()

	for _, st := range s.snapshotRegions() {
		s.sampleRegion(st, frame, bounds, scan)
	}
	return true
}

// snapshotRegions reads the region set once per tick so concurrent
// add/remove is only observed at tick boundaries.
func (s *Sampler) snapshotRegions() []*regionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*regionState, 0, len(s.regions))
	for _, st := range s.regions {
		out = append(out, st)
	}
	return out
}

func (s *Sampler) sampleRegion(st *regionState, frame image.Image, bounds image.Rectangle, scan uint64) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("region sampling panicked", "region", st.region.ID, "panic", r)
		}
	}()

	rect := scaleRect(st.region.Rect, s.scale).Intersect(bounds)
	if rect.Empty() {
		return
	}

	crop := imaging.Crop(frame, rect)
	if !st.det.Changed(crop) {
		return
	}

	s.changes.Add(1)
	s.emit(ChangeEvent{
		RegionID: st.region.ID,
		Crop:     crop,
		Scan:     scan,
		At:       time.Now(),
	})
}

func (s *Sampler) emit(event ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("change callback panicked", "region", event.RegionID, "panic", r)
		}
	}()
	s.onChange(event)
}

func scaleRect(r image.Rectangle, scale float64) image.Rectangle {
	if scale == 1 {
		return r
	}
	return image.Rect(
		int(float64(r.Min.X)*scale+0.5),
		int(float64(r.Min.Y)*scale+0.5),
		int(float64(r.Max.X)*scale+0.5),
		int(float64(r.Max.Y)*scale+0.5),
	)
}
