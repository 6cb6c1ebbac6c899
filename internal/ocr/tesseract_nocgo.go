//go:build !cgo

package ocr

import (
	"context"
	"fmt"
	"image"
)

// TesseractExtractor requires cgo for the native Tesseract bindings.
type TesseractExtractor struct{}

func NewTesseractExtractor(language string) (*TesseractExtractor, error) {
	return nil, fmt.Errorf("tesseract ocr requires a cgo-enabled build")
}

var _ TextExtractor = (*TesseractExtractor)(nil)

func (e *TesseractExtractor) Extract(ctx context.Context, img image.Image) ([]TextItem, error) {
	return nil, fmt.Errorf("tesseract ocr requires a cgo-enabled build")
}
