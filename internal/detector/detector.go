// Package detector decides whether a region of the screen has visibly
// changed between two successive crops. Detection is tiered so the common
// no-change case stays cheap: a low resolution grayscale gate first, then
// either a perceptual difference hash (small regions) or a block mean
// comparison (large regions).
package detector

import (
	"image"
	"math/bits"

	"github.com/disintegration/imaging"
)

const (
	// gateSize is the side of the downscaled grayscale sample used by the
	// quick rejection gate.
	gateSize = 32
	// hashSize is the side of the dHash grid. 8 rows of 8 horizontal
	// gradients make a 64-bit hash.
	hashSize = 8
	// blockGrid is the side of the cell grid used for large regions.
	blockGrid = 16
	// smallAreaThreshold selects the detection path. Regions below this
	// pixel count use hashing, larger ones use block comparison.
	smallAreaThreshold = 65536
)

// Detector holds per-region detection state. It is stateful and expects a
// single caller; the sampler guarantees one goroutine per region state.
type Detector struct {
	sensitivity float64
	useHash     bool

	primed     bool
	prevGate   []uint8
	prevHash   uint64
	prevBlocks []float64
}

// New builds a detector for a region of the given pixel area. The detection
// path is fixed here and never switches mid-life, even if later crops are
// clamped to a different size. Sensitivity is clamped to [0,1].
func New(regionArea int, sensitivity float64) *Detector {
	if sensitivity < 0 {
		sensitivity = 0
	}
	if sensitivity > 1 {
		sensitivity = 1
	}
	return &Detector{
		sensitivity: sensitivity,
		useHash:     regionArea < smallAreaThreshold,
	}
}

// Reset drops the baseline so the next observation reports a change.
func (d *Detector) Reset() {
	d.primed = false
	d.prevGate = nil
	d.prevHash = 0
	d.prevBlocks = nil
}

// Changed reports whether the crop differs meaningfully from the previous
// one. The first observation always reports a change and establishes the
// baseline. Zero area crops report no change and leave the baseline alone.
func (d *Detector) Changed(crop image.Image) bool {
	if crop == nil {
		return false
	}
	bounds := crop.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return false
	}

	gate := graySample(crop, gateSize, gateSize)

	if !d.primed {
		d.rebaseline(crop, gate)
		return true
	}

	// Tier 1: cheap gate. Most ticks end here.
	if meanAbsDiff(gate, d.prevGate) < d.gateEpsilon() {
		return false
	}

	var changed bool
	if d.useHash {
		hash := dhash(crop)
		changed = bits.OnesCount64(hash^d.prevHash) >= d.hammingThreshold()
		if changed {
			d.prevHash = hash
		}
	} else {
		blocks := blockMeans(crop)
		changed = d.blocksChanged(blocks)
		if changed {
			d.prevBlocks = blocks
		}
	}

	if changed {
		d.prevGate = gate
	}
	return changed
}

func (d *Detector) rebaseline(crop image.Image, gate []uint8) {
	d.prevGate = gate
	if d.useHash {
		d.prevHash = dhash(crop)
	} else {
		d.prevBlocks = blockMeans(crop)
	}
	d.primed = true
}

// gateEpsilon shrinks as sensitivity grows, so sensitive regions fall
// through the gate more readily.
func (d *Detector) gateEpsilon() float64 {
	return 0.5 + 7.5*(1-d.sensitivity)
}

// hammingThreshold grows as sensitivity shrinks. Range is 2..16 bits out
// of the 64-bit hash.
func (d *Detector) hammingThreshold() int {
	return 2 + int((1-d.sensitivity)*14+0.5)
}

func (d *Detector) blocksChanged(blocks []float64) bool {
	cellDelta := 4 + (1-d.sensitivity)*24
	minFraction := 0.02 + (1-d.sensitivity)*0.18

	if len(blocks) != len(d.prevBlocks) {
		return true
	}
	differing := 0
	for i := range blocks {
		delta := blocks[i] - d.prevBlocks[i]
		if delta < 0 {
			delta = -delta
		}
		if delta > cellDelta {
			differing++
		}
	}
	return float64(differing)/float64(len(blocks)) > minFraction
}

// graySample downscales to w x h and returns one luminance byte per pixel.
func graySample(img image.Image, w, h int) []uint8 {
	resized := imaging.Grayscale(imaging.Resize(img, w, h, imaging.Box))
	out := make([]uint8, w*h)
	for i := range out {
		out[i] = resized.Pix[i*4]
	}
	return out
}

func meanAbsDiff(a, b []uint8) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 256
	}
	var total int
	for i := range a {
		d := int(a[i]) - int(b[i])
		if d < 0 {
			d = -d
		}
		total += d
	}
	return float64(total) / float64(len(a))
}

// dhash computes a 64-bit difference hash: the sign of the horizontal
// brightness gradient over a (hashSize+1) x hashSize grayscale grid.
func dhash(img image.Image) uint64 {
	pixels := graySample(img, hashSize+1, hashSize)
	var hash uint64
	for row := 0; row < hashSize; row++ {
		for col := 0; col < hashSize; col++ {
			left := pixels[row*(hashSize+1)+col]
			right := pixels[row*(hashSize+1)+col+1]
			hash <<= 1
			if right > left {
				hash |= 1
			}
		}
	}
	return hash
}

// blockMeans partitions the crop into a blockGrid x blockGrid grid and
// returns each cell's mean brightness. A box filter resize to grid size
// computes exactly that.
func blockMeans(img image.Image) []float64 {
	pixels := graySample(img, blockGrid, blockGrid)
	out := make([]float64, len(pixels))
	for i, p := range pixels {
		out[i] = float64(p)
	}
	return out
}
