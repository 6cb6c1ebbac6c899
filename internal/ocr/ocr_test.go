package ocr

import (
	"image"
	"testing"
)

func TestFilter(t *testing.T) {
	items := []TextItem{
		{Text: "  Hello world  ", Confidence: 0.9},
		{Text: "", Confidence: 0.9},
		{Text: "   ", Confidence: 0.9},
		{Text: "x", Confidence: 0.9},                // single grapheme
		{Text: "smudge", Confidence: 0.1},           // below MinConfidence
		{Text: "こんにちは", Confidence: 0.8},            // CJK counts per character
		{Text: "né", Confidence: 0.7},               // combining mark is one cluster
		{Text: "unknown confidence", Confidence: 0}, // zero means unreported, keep
	}

	got := Filter(items)
	want := []string{"Hello world", "こんにちは", "né", "unknown confidence"}
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d: %+v", len(want), len(got), got)
	}
	for i, item := range got {
		if item.Text != want[i] {
			t.Fatalf("item %d: expected %q, got %q", i, want[i], item.Text)
		}
	}
}

func TestFilterKeepsBounds(t *testing.T) {
	items := []TextItem{{Text: "Hello", Confidence: 0.9, Bounds: image.Rect(3, 4, 50, 20)}}
	got := Filter(items)
	if len(got) != 1 || got[0].Bounds != image.Rect(3, 4, 50, 20) {
		t.Fatalf("expected bounds to survive filtering, got %+v", got)
	}
}

func TestJoinText(t *testing.T) {
	items := []TextItem{{Text: "first line"}, {Text: "second line"}}
	if got := JoinText(items); got != "first line\nsecond line" {
		t.Fatalf("unexpected join: %q", got)
	}
	if got := JoinText(nil); got != "" {
		t.Fatalf("expected empty join, got %q", got)
	}
}
