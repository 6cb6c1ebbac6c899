package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/oukeidos/screenlate/internal/apperrors"
	"github.com/oukeidos/screenlate/internal/translate"
)

func TestBackend_Translate(t *testing.T) {
	mock := &MockClient{Response: &ResponseData{Text: "Bonjour", Confidence: 0.88}}
	backend := NewBackend(mock)

	result, err := backend.Translate(context.Background(), "Hello", "en", "fr")
	if err != nil {
		t.Fatal(err)
	}
	if result.Text != "Bonjour" {
		t.Fatalf("unexpected text: %q", result.Text)
	}
	if result.Confidence != 0.88 {
		t.Fatalf("unexpected confidence: %v", result.Confidence)
	}
	if result.Model != translate.BackendGemini {
		t.Fatalf("unexpected model: %q", result.Model)
	}
	if mock.LastRequest.SourceLang != "English" || mock.LastRequest.TargetLang != "French" {
		t.Fatalf("expected language names in request, got %+v", mock.LastRequest)
	}
}

func TestBackend_DefaultConfidence(t *testing.T) {
	mock := &MockClient{Response: &ResponseData{Text: "Hola"}}
	backend := NewBackend(mock)

	result, err := backend.Translate(context.Background(), "Hello", "en", "es")
	if err != nil {
		t.Fatal(err)
	}
	if result.Confidence != DefaultConfidence {
		t.Fatalf("expected default confidence, got %v", result.Confidence)
	}
}

func TestBackend_EmptyTranslation(t *testing.T) {
	mock := &MockClient{Response: &ResponseData{Text: "   "}}
	backend := NewBackend(mock)

	_, err := backend.Translate(context.Background(), "Hello", "en", "es")
	if err == nil {
		t.Fatal("expected error for blank translation")
	}
	if kind, ok := apperrors.KindOf(err); !ok || kind != apperrors.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBackend_PropagatesError(t *testing.T) {
	mock := &MockClient{Error: apperrors.RateLimit(errors.New("quota"))}
	backend := NewBackend(mock)

	_, err := backend.Translate(context.Background(), "Hello", "en", "es")
	if !apperrors.IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}
