package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oukeidos/screenlate/internal/apperrors"
	"github.com/oukeidos/screenlate/internal/language"
	"github.com/oukeidos/screenlate/internal/translate"
)

// DefaultConfidence is assumed when the model does not report a score.
const DefaultConfidence = 0.8

const systemPrompt = `You are a translation engine for short on-screen text.
Translate the text from the given source language to the target language.
Preserve numbers, punctuation and line breaks. Never explain or add commentary.
Respond with a single JSON object: {"text": "<translation>", "confidence": <0.0-1.0>}.`

var translationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"text":       map[string]any{"type": "string"},
		"confidence": map[string]any{"type": "number"},
	},
	"required":             []string{"text", "confidence"},
	"additionalProperties": false,
}

// Generator abstracts the Responses API client for testing.
type Generator interface {
	Generate(ctx context.Context, req RequestData) (*ResponseData, error)
	GetModelID() string
}

var _ Generator = (*Client)(nil)

// Backend adapts an OpenAI client to the translation router.
type Backend struct {
	client Generator
}

// NewBackend wraps an OpenAI client as a router backend.
func NewBackend(client Generator) *Backend {
	return &Backend{client: client}
}

var _ translate.Backend = (*Backend)(nil)

func (b *Backend) Name() string {
	return translate.BackendOpenAI
}

type translationPayload struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Translate translates a single text through the Responses API using a
// structured output schema.
func (b *Backend) Translate(ctx context.Context, text, sourceLang, targetLang string) (translate.Result, error) {
	userContent := fmt.Sprintf("Translate from %s to %s:\n%s", langName(sourceLang), langName(targetLang), text)

	resp, err := b.client.Generate(ctx, RequestData{
		Input: []InputItem{
			{Type: "message", Role: "system", Content: systemPrompt},
			{Type: "message", Role: "user", Content: userContent},
		},
		Text: &TextOptions{
			Format: &ResponseFormat{
				Type:   "json_schema",
				Name:   "translation",
				Strict: true,
				Schema: translationSchema,
			},
		},
	})
	if err != nil {
		return translate.Result{}, err
	}

	if resp.Status == "incomplete" && resp.IncompleteDetails != nil {
		return translate.Result{}, apperrors.Validation(
			fmt.Errorf("openai response incomplete: %s", resp.IncompleteDetails.Reason))
	}

	var payload translationPayload
	raw := strings.TrimSpace(resp.OutputText())
	if raw == "" {
		return translate.Result{}, apperrors.Validation(fmt.Errorf("empty output from openai"))
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// Structured outputs should prevent this, but fall back to treating
		// bare text as the translation.
		if strings.HasPrefix(raw, "{") {
			return translate.Result{}, apperrors.Validation(fmt.Errorf("failed to decode translation payload: %w", err))
		}
		payload.Text = raw
	}

	out := strings.TrimSpace(payload.Text)
	if out == "" {
		return translate.Result{}, apperrors.Validation(fmt.Errorf("empty translation from openai"))
	}

	confidence := payload.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = DefaultConfidence
	}

	return translate.Result{
		Text:       out,
		Confidence: confidence,
		Model:      translate.BackendOpenAI,
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
