package language

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// Detector guesses the language of a text. Safe for concurrent use.
type Detector interface {
	Detect(text string) (code string, ok bool)
}

type linguaDetector struct {
	detector lingua.LanguageDetector
}

// NewDetector builds a statistical detector restricted to the supported
// language set. Construction is relatively expensive (it loads language
// models); build one and share it.
func NewDetector() Detector {
	candidates := []lingua.Language{
		lingua.Arabic,
		lingua.Chinese,
		lingua.Dutch,
		lingua.English,
		lingua.French,
		lingua.German,
		lingua.Hindi,
		lingua.Indonesian,
		lingua.Italian,
		lingua.Japanese,
		lingua.Korean,
		lingua.Polish,
		lingua.Portuguese,
		lingua.Russian,
		lingua.Spanish,
		lingua.Thai,
		lingua.Turkish,
		lingua.Ukrainian,
		lingua.Vietnamese,
	}
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(candidates...).
		Build()
	return &linguaDetector{detector: detector}
}

func (d *linguaDetector) Detect(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	detected, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	code := strings.ToLower(detected.IsoCode639_1().String())
	if _, known := Languages[code]; !known {
		return "", false
	}
	return code, true
}
