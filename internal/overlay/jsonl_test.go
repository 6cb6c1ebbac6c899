package overlay

import (
	"bufio"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"testing"
)

func TestJSONLSink_PublishAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	sink, err := NewJSONLSink(path)
	if err != nil {
		t.Fatal(err)
	}

	items := []Item{
		{
			SourceText: "Hola",
			Text:       "Hello",
			SourceLang: "es",
			TargetLang: "en",
			Model:      "gemini",
			Confidence: 0.95,
			Bounds:     image.Rect(1, 2, 30, 12),
		},
	}
	if err := sink.Publish(7, items); err != nil {
		t.Fatal(err)
	}
	if err := sink.Clear(7); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	var records []jsonlRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec jsonlRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("invalid JSONL line: %v", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	pub, clr := records[0], records[1]
	if pub.Action != "publish" || pub.Region != 7 || len(pub.Items) != 1 {
		t.Fatalf("unexpected publish record: %+v", pub)
	}
	if pub.Items[0].Text != "Hello" || pub.Items[0].Bounds != [4]int{1, 2, 30, 12} {
		t.Fatalf("unexpected item record: %+v", pub.Items[0])
	}
	if pub.Session == "" || pub.Session != clr.Session {
		t.Fatalf("expected a stable session id, got %q and %q", pub.Session, clr.Session)
	}
	if clr.Action != "clear" || clr.Region != 7 || len(clr.Items) != 0 {
		t.Fatalf("unexpected clear record: %+v", clr)
	}
}

func TestJSONLSink_AvoidsClobberingExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.jsonl")
	if err := os.WriteFile(path, []byte("previous session\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sink, err := NewJSONLSink(path)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	if sink.Path() == path {
		t.Fatalf("expected a collision-avoiding path, got %q", sink.Path())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "previous session\n" {
		t.Fatal("existing file content was modified")
	}
}
