// Package overlay delivers translated region content to a presentation
// sink. The core never renders anything itself; sinks decide how results
// reach the user.
package overlay

import (
	"image"

	"github.com/oukeidos/screenlate/internal/logger"
)

// Item is one translated span of a region.
type Item struct {
	SourceText string
	Text       string
	SourceLang string
	TargetLang string
	Model      string
	Confidence float64
	Bounds     image.Rectangle
}

// Sink receives translated items per region. Implementations must be safe
// to call from any pipeline goroutine and idempotent under repeated publish
// for the same region.
type Sink interface {
	Publish(regionID int, items []Item) error
	Clear(regionID int) error
}

// LogSink reports publishes through the structured logger. Text content
// stays out of the log records; the logger redacts text-bearing keys anyway.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

var _ Sink = (*LogSink)(nil)

func (s *LogSink) Publish(regionID int, items []Item) error {
	models := make(map[string]int, 2)
	for _, item := range items {
		models[item.Model]++
	}
	logger.Info("region translated", "region", regionID, "items", len(items), "models", models)
	return nil
}

func (s *LogSink) Clear(regionID int) error {
	logger.Info("region cleared", "region", regionID)
	return nil
}
