package pipeline

import (
	"fmt"
	"image"
	"time"

	"github.com/oukeidos/screenlate/internal/language"
	"github.com/oukeidos/screenlate/internal/sampler"
	"github.com/oukeidos/screenlate/internal/translate"
)

// Config holds all configuration required for running a watch session.
type Config struct {
	// API Configuration
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	// Sampling
	FPS         int
	Scale       float64 // logical to physical pixel scale, 0 means 1
	Sensitivity float64
	Regions     []image.Rectangle

	// Translation
	SourceLang          string // ISO 639-1 code or "auto"
	TargetLang          string
	Realtime            bool
	ConfidenceThreshold float64 // 0 selects the mode default
	CacheCapacity       int
	Cooldown            time.Duration
	Timeout             time.Duration
	Workers             int

	// Output
	OutputPath string // JSONL sink; empty selects the log sink
	LogPath    string // optional JSONL log file for the structured logger
}

const (
	MinWorkers = 1
	MaxWorkers = 20
)

func ClampWorkers(value int) (int, bool) {
	if value < MinWorkers {
		return MinWorkers, true
	}
	if value > MaxWorkers {
		return MaxWorkers, true
	}
	return value, false
}

// Normalize applies safe bounds to config values and returns any adjustments.
func (c Config) Normalize() (Config, []string) {
	var notes []string
	if c.FPS < sampler.MinFPS {
		notes = append(notes, fmt.Sprintf("fps raised from %d to %d (min %d)", c.FPS, sampler.MinFPS, sampler.MinFPS))
		c.FPS = sampler.MinFPS
	}
	if c.FPS > sampler.MaxFPS {
		notes = append(notes, fmt.Sprintf("fps clamped from %d to %d (max %d)", c.FPS, sampler.MaxFPS, sampler.MaxFPS))
		c.FPS = sampler.MaxFPS
	}
	if c.Sensitivity < 0 {
		notes = append(notes, fmt.Sprintf("sensitivity raised from %v to 0", c.Sensitivity))
		c.Sensitivity = 0
	}
	if c.Sensitivity > 1 {
		notes = append(notes, fmt.Sprintf("sensitivity clamped from %v to 1", c.Sensitivity))
		c.Sensitivity = 1
	}
	if clamped, changed := ClampWorkers(c.Workers); changed {
		notes = append(notes, fmt.Sprintf("workers clamped from %d to %d", c.Workers, clamped))
		c.Workers = clamped
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		notes = append(notes, fmt.Sprintf("confidence threshold %v out of range, using mode default", c.ConfidenceThreshold))
		c.ConfidenceThreshold = 0
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = translate.DefaultCacheCapacity
	}
	return c, notes
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.GeminiAPIKey == "" && c.OpenAIAPIKey == "" {
		return fmt.Errorf("at least one API key is required")
	}
	if c.TargetLang == "" {
		return fmt.Errorf("target language is required")
	}
	if _, ok := language.GetLanguage(c.TargetLang); !ok {
		return fmt.Errorf("unsupported target language %q", c.TargetLang)
	}
	if c.SourceLang != language.Auto {
		if _, ok := language.GetLanguage(c.SourceLang); !ok {
			return fmt.Errorf("unsupported source language %q", c.SourceLang)
		}
	}
	if c.SourceLang == c.TargetLang {
		return fmt.Errorf("source and target languages are the same (%s)", c.SourceLang)
	}
	return nil
}
