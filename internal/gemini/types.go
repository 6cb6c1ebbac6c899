package gemini

// RequestData is the input JSON payload for a single translation request.
type RequestData struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// ResponseData is the output JSON structure expected from Gemini.
type ResponseData struct {
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence,omitempty"`
	Usage      UsageMetadata `json:"-"` // Not part of Gemini's JSON response, filled manually
}

// UsageMetadata holds token usage information.
type UsageMetadata struct {
	PromptTokenCount     int
	CandidatesTokenCount int
	TotalTokenCount      int
}
