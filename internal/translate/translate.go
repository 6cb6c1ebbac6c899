// Package translate routes translation requests across multiple backends,
// caching results and racing candidate backends for the lowest latency
// answer that clears a confidence threshold.
package translate

// Result is an immutable translation outcome.
type Result struct {
	Text       string
	Confidence float64
	Model      string
	SourceLang string
	TargetLang string
}

// Key identifies a cached translation. Equality is exact string match on all
// three fields; there is no fuzzy matching.
type Key struct {
	Text       string
	SourceLang string
	TargetLang string
}
