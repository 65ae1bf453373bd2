package adapter

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/ujjwalredd/Axiomeer/pkg/artifact"
)

// GoogleAdapter implements the Adapter interface for Gemini models.
type GoogleAdapter struct {
	client *genai.Client
}

// NewGoogleAdapter creates a new Google Gemini adapter.
func NewGoogleAdapter(apiKey string) (*GoogleAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &GoogleAdapter{
		client: client,
	}, nil
}

// Name returns the adapter identifier.
func (a *GoogleAdapter) Name() string {
	return "google"
}

// Models returns the list of supported Gemini models.
func (a *GoogleAdapter) Models() []string {
	return []string{
		"gemini-2.0-flash",
		"gemini-2.5-pro",
	}
}

// Generate sends a prompt to Gemini. WithJSON sets the response MIME type.
func (a *GoogleAdapter) Generate(ctx context.Context, model string, prompt string, opts ...Option) (*Response, error) {
	o := Apply(opts...)
	ctx, cancel := withTimeout(ctx, o)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(o.MaxTokens),
	}
	if o.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*o.Temperature))
	}
	if o.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := a.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, classify(a.Name(), err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &Error{Backend: a.Name(), Kind: KindProtocol, Err: fmt.Errorf("no candidates returned")}
	}

	var content string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
		}
	}

	var usage *Usage
	if resp.UsageMetadata != nil {
		usage = newUsage(int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount))
	}

	return &Response{
		Artifact: artifact.New(content, a.Name(), model, prompt),
		Usage:    usage,
	}, nil
}
