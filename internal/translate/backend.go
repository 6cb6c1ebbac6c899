package translate

import "context"

// Well-known backend names used in the quality matrix. Pivot is synthetic:
// it is implemented by the router itself as two recursive hops through the
// pivot language rather than by an external client.
const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
	BackendPivot  = "pivot"
)

// PivotLang is the intermediate language for pivot translation.
const PivotLang = "en"

// Backend translates a single text between two concrete languages.
// Implementations must be safe for concurrent use and should classify
// provider failures via apperrors so the router can distinguish rate
// limiting from ordinary failure.
type Backend interface {
	Name() string
	Translate(ctx context.Context, text, sourceLang, targetLang string) (Result, error)
}

// Pair is a source/target language combination.
type Pair struct {
	Source string
	Target string
}

// Matrix maps language pairs to an ordered list of preferred backend names.
// Pairs not present fall back to DefaultOrder.
type Matrix map[Pair][]string

// DefaultOrder is the backend preference for pairs absent from the matrix.
var DefaultOrder = []string{BackendGemini, BackendOpenAI, BackendPivot}

// DefaultMatrix returns the built-in quality matrix. High-frequency pairs
// prefer the fastest high-quality backend; pairs without good direct support
// fall through to pivot translation.
func DefaultMatrix() Matrix {
	direct := []string{BackendGemini, BackendOpenAI}
	lowFreq := []string{BackendOpenAI, BackendGemini, BackendPivot}

	m := Matrix{}
	for _, l := range []string{"vi", "zh", "fr", "ja", "ko", "de", "es"} {
		m[Pair{Source: "en", Target: l}] = direct
		m[Pair{Source: l, Target: "en"}] = direct
	}
	nonEnglish := []string{"vi", "zh", "fr", "ja", "ko"}
	for _, src := range nonEnglish {
		for _, tgt := range nonEnglish {
			if src == tgt {
				continue
			}
			m[Pair{Source: src, Target: tgt}] = lowFreq
		}
	}
	return m
}

// Lookup returns the ordered backend names for a pair.
func (m Matrix) Lookup(sourceLang, targetLang string) []string {
	if order, ok := m[Pair{Source: sourceLang, Target: targetLang}]; ok {
		return order
	}
	return DefaultOrder
}
