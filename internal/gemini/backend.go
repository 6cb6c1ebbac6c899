package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/oukeidos/screenlate/internal/apperrors"
	"github.com/oukeidos/screenlate/internal/language"
	"github.com/oukeidos/screenlate/internal/translate"
)

// DefaultConfidence is assumed when the model does not report a score.
const DefaultConfidence = 0.95

// Backend adapts a Gemini client to the translation router.
type Backend struct {
	client Translator
}

// NewBackend wraps a Gemini client as a router backend.
func NewBackend(client Translator) *Backend {
	return &Backend{client: client}
}

var _ translate.Backend = (*Backend)(nil)

func (b *Backend) Name() string {
	return translate.BackendGemini
}

// Translate translates a single text through Gemini. Language codes are
// expanded to English names in the request; the model follows names more
// reliably than ISO codes.
func (b *Backend) Translate(ctx context.Context, text, sourceLang, targetLang string) (translate.Result, error) {
	resp, err := b.client.Translate(ctx, RequestData{
		Text:       text,
		SourceLang: langName(sourceLang),
		TargetLang: langName(targetLang),
	})
	if err != nil {
		return translate.Result{}, err
	}

	out := strings.TrimSpace(resp.Text)
	if out == "" {
		return translate.Result{}, apperrors.Validation(fmt.Errorf("empty translation from gemini"))
	}

	confidence := resp.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = DefaultConfidence
	}

	return translate.Result{
		Text:       out,
		Confidence: confidence,
		Model:      translate.BackendGemini,
		SourceLang: sourceLang,
		TargetLang: targetLang,
	}, nil
}

func langName(code string) string {
	if lang, ok := language.GetLanguage(code); ok {
		return lang.Name
	}
	return code
}
