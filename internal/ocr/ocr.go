// Package ocr recognizes text inside region crops.
package ocr

import (
	"context"
	"image"
	"strings"

	"github.com/rivo/uniseg"
)

// TextItem is one recognized span of text inside a crop. Bounds are in crop
// coordinates.
type TextItem struct {
	Text       string
	Confidence float64
	Bounds     image.Rectangle
}

// TextExtractor recognizes text in a crop. May return an empty list.
// Implementations must be safe for concurrent use across region pipelines.
type TextExtractor interface {
	Extract(ctx context.Context, img image.Image) ([]TextItem, error)
}

const (
	// MinConfidence drops low quality recognitions before translation.
	MinConfidence = 0.4
	// MinGraphemes drops specks and stray marks recognized as text.
	MinGraphemes = 2
)

// Filter removes blank, low confidence and too-short recognitions. Length
// is measured in grapheme clusters rather than bytes so CJK text and
// combining marks count the way a reader would see them.
func Filter(items []TextItem) []TextItem {
	out := make([]TextItem, 0, len(items))
	for _, item := range items {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		if item.Confidence > 0 && item.Confidence < MinConfidence {
			continue
		}
		if uniseg.GraphemeClusterCount(text) < MinGraphemes {
			continue
		}
		item.Text = text
		out = append(out, item)
	}
	return out
}

// JoinText concatenates item texts into a single block, one item per line.
func JoinText(items []TextItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, item.Text)
	}
	return strings.Join(parts, "\n")
}
