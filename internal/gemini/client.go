package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/oukeidos/screenlate/internal/apperrors"
	"github.com/oukeidos/screenlate/internal/httpclient"
	"google.golang.org/api/option"
)

// DefaultSystemInstruction steers the model toward terse one-shot output
// suitable for on-screen text.
const DefaultSystemInstruction = `You are a translation engine for short on-screen text.
Translate the "text" field of the request from source_lang to target_lang.
Preserve numbers, punctuation and line breaks. Never explain or add commentary.
Respond with a single JSON object: {"text": "<translation>", "confidence": <0.0-1.0>}.`

// Client handles communication with the Gemini API.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey string, modelName string) (*Client, error) {
	// Note: We avoid using option.WithHTTPClient because it interferes with the genai library's
	// internal header injection for API keys, causing 403 errors.
	// Instead, we enforce timeouts via context in the Translate method.
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"

	c := &Client{
		client: client,
		model:  model,
	}
	c.SetSystemInstruction(DefaultSystemInstruction)
	return c, nil
}

// Close closes the underlying genai client.
func (c *Client) Close() error {
	return c.client.Close()
}

// SetSystemInstruction sets the system prompt for the model.
func (c *Client) SetSystemInstruction(prompt string) {
	c.model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(prompt)},
	}
}

// Translator interface for mocking and dependency injection.
type Translator interface {
	Translate(ctx context.Context, request RequestData) (*ResponseData, error)
	SetSystemInstruction(prompt string)
}

// Ensure Client implements Translator
var _ Translator = (*Client)(nil)

// Translate sends a single text to Gemini and returns the translated data.
func (c *Client) Translate(ctx context.Context, request RequestData) (*ResponseData, error) {
	// Enforce default timeout to prevent indefinite hangs, since we are not using a custom HTTP client with timeout.
	ctx, cancel := context.WithTimeout(ctx, httpclient.DefaultTimeout)
	defer cancel()
	requestJSON, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.model.GenerateContent(ctx, genai.Text(string(requestJSON)))
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	text, err := extractResponseText(resp)
	if err != nil {
		return nil, apperrors.Validation(err)
	}

	var responseData ResponseData
	if err := json.Unmarshal([]byte(text), &responseData); err != nil {
		// Fallback: some responses come back as bare text despite the MIME
		// type hint. Treat the whole payload as the translation.
		trimmed := strings.TrimSpace(text)
		if trimmed == "" || strings.HasPrefix(trimmed, "{") {
			return nil, apperrors.Validation(fmt.Errorf("failed to unmarshal response: %w", err))
		}
		responseData.Text = trimmed
	}

	if resp.UsageMetadata != nil {
		responseData.Usage = UsageMetadata{
			PromptTokenCount:     int(resp.UsageMetadata.PromptTokenCount),
			CandidatesTokenCount: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokenCount:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return &responseData, nil
}

func extractResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("no response received from Gemini")
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}
	for i, candidate := range resp.Candidates {
		if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
			continue
		}
		var combined string
		for _, part := range candidate.Content.Parts {
			text, ok := part.(genai.Text)
			if !ok {
				continue
			}
			combined += string(text)
		}
		if combined != "" {
			return combined, nil
		}
		if i == len(resp.Candidates)-1 {
			break
		}
	}
	return "", fmt.Errorf("no text parts found in Gemini response")
}
