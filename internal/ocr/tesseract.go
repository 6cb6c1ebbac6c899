//go:build cgo

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// tesseractLanguages maps ISO 639-1 codes to Tesseract traineddata names.
var tesseractLanguages = map[string]string{
	"ar": "ara",
	"de": "deu",
	"en": "eng",
	"es": "spa",
	"fr": "fra",
	"hi": "hin",
	"id": "ind",
	"it": "ita",
	"ja": "jpn",
	"ko": "kor",
	"nl": "nld",
	"pl": "pol",
	"pt": "por",
	"ru": "rus",
	"th": "tha",
	"tr": "tur",
	"uk": "ukr",
	"vi": "vie",
	"zh": "chi_sim",
}

// TesseractExtractor runs Tesseract through gosseract. A fresh client is
// created per call, so the extractor is safe for concurrent use.
type TesseractExtractor struct {
	language string
}

// NewTesseractExtractor builds an extractor for the given ISO 639-1 source
// language. "auto" and unknown codes fall back to English traineddata,
// which still finds Latin text; language detection happens downstream on
// the recognized text.
func NewTesseractExtractor(language string) (*TesseractExtractor, error) {
	tess, ok := tesseractLanguages[language]
	if !ok {
		tess = "eng"
	}
	return &TesseractExtractor{language: tess}, nil
}

var _ TextExtractor = (*TesseractExtractor)(nil)

func (e *TesseractExtractor) Extract(ctx context.Context, img image.Image) ([]TextItem, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		// Fall back to the whole-crop text without positions.
		text, terr := client.Text()
		if terr != nil {
			return nil, fmt.Errorf("ocr failed: %w", terr)
		}
		if text == "" {
			return nil, nil
		}
		return Filter([]TextItem{{Text: text, Bounds: img.Bounds()}}), nil
	}

	items := make([]TextItem, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		items = append(items, TextItem{
			Text:       box.Word,
			Confidence: box.Confidence / 100.0,
			Bounds:     box.Box,
		})
	}
	return Filter(items), nil
}
