package overlay

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oukeidos/screenlate/internal/files"
	"github.com/oukeidos/screenlate/internal/logger"
)

// JSONLSink appends one JSON record per publish/clear to a file. Each run
// writes to its own file; name collisions are resolved rather than
// overwriting an earlier session.
type JSONLSink struct {
	mu      sync.Mutex
	file    *os.File
	session string
}

type jsonlRecord struct {
	Time    string       `json:"time"`
	Session string       `json:"session"`
	Region  int          `json:"region"`
	Action  string       `json:"action"`
	Items   []jsonlItem  `json:"items,omitempty"`
}

type jsonlItem struct {
	SourceText string  `json:"source_text"`
	Text       string  `json:"text"`
	SourceLang string  `json:"source_lang"`
	TargetLang string  `json:"target_lang"`
	Model      string  `json:"model"`
	Confidence float64 `json:"confidence"`
	Bounds     [4]int  `json:"bounds"`
}

// NewJSONLSink opens the output file. An empty path picks a session-named
// default in the working directory.
func NewJSONLSink(path string) (*JSONLSink, error) {
	session := uuid.NewString()
	if path == "" {
		path = fmt.Sprintf("screenlate-%s.jsonl", session)
	}

	resolved, renamed, err := files.SafePath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output path: %w", err)
	}
	if renamed {
		logger.Warn("output file exists, writing to alternative", "path", resolved)
	}
	if err := files.RejectSymlinkPath(resolved); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(resolved, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	return &JSONLSink{file: file, session: session}, nil
}

var _ Sink = (*JSONLSink)(nil)

// Path returns the resolved output file path.
func (s *JSONLSink) Path() string {
	return s.file.Name()
}

func (s *JSONLSink) Publish(regionID int, items []Item) error {
	records := make([]jsonlItem, 0, len(items))
	for _, item := range items {
		records = append(records, jsonlItem{
			SourceText: item.SourceText,
			Text:       item.Text,
			SourceLang: item.SourceLang,
			TargetLang: item.TargetLang,
			Model:      item.Model,
			Confidence: item.Confidence,
			Bounds: [4]int{
				item.Bounds.Min.X, item.Bounds.Min.Y,
				item.Bounds.Max.X, item.Bounds.Max.Y,
			},
		})
	}
	return s.write(jsonlRecord{
		Time:    time.Now().Format(time.RFC3339),
		Session: s.session,
		Region:  regionID,
		Action:  "publish",
		Items:   records,
	})
}

func (s *JSONLSink) Clear(regionID int) error {
	return s.write(jsonlRecord{
		Time:    time.Now().Format(time.RFC3339),
		Session: s.session,
		Region:  regionID,
		Action:  "clear",
	})
}

func (s *JSONLSink) write(record jsonlRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Close flushes and closes the output file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
