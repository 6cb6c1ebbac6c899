// Package capture acquires full-surface frames for the sampling loop.
package capture

import (
	"fmt"
	"image"

	"github.com/vova616/screenshot"
)

// FrameSource produces one full-surface frame per call. Grab may fail
// transiently (display sleep, minimized surface, permission loss); callers
// are expected to skip the frame and retry rather than abort.
type FrameSource interface {
	Grab() (image.Image, error)
}

// ScreenSource captures the primary display.
type ScreenSource struct{}

func NewScreenSource() *ScreenSource {
	return &ScreenSource{}
}

var _ FrameSource = (*ScreenSource)(nil)

func (s *ScreenSource) Grab() (image.Image, error) {
	img, err := screenshot.CaptureScreen()
	if err != nil {
		return nil, fmt.Errorf("screen capture failed: %w", err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("screen capture returned an empty frame")
	}
	return img, nil
}

// StaticSource serves a fixed frame. Useful for tests and one-shot runs.
type StaticSource struct {
	Frame image.Image
}

var _ FrameSource = (*StaticSource)(nil)

func (s *StaticSource) Grab() (image.Image, error) {
	if s.Frame == nil || s.Frame.Bounds().Empty() {
		return nil, fmt.Errorf("no frame available")
	}
	return s.Frame, nil
}
