package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ujjwalredd/Axiomeer/pkg/artifact"
)

// AnthropicAdapter implements the Adapter interface for Claude models.
type AnthropicAdapter struct {
	client anthropic.Client
}

// NewAnthropicAdapter creates a new Anthropic adapter.
func NewAnthropicAdapter(apiKey string) (*AnthropicAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicAdapter{client: client}, nil
}

// Name returns the adapter identifier.
func (a *AnthropicAdapter) Name() string {
	return "anthropic"
}

// Models returns the list of supported Claude models.
func (a *AnthropicAdapter) Models() []string {
	return []string{
		"claude-sonnet-4-20250514",
		"claude-3-5-haiku-latest",
	}
}

// Generate sends a prompt to Claude. Claude has no native JSON mode, so
// WithJSON relies on the prompt itself.
func (a *AnthropicAdapter) Generate(ctx context.Context, model string, prompt string, opts ...Option) (*Response, error) {
	o := Apply(opts...)
	ctx, cancel := withTimeout(ctx, o)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(o.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if o.Temperature != nil {
		params.Temperature = anthropic.Float(*o.Temperature)
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, statusError(a.Name(), apiErr.StatusCode, err)
		}
		return nil, classify(a.Name(), err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &Response{
		Artifact: artifact.New(content, a.Name(), model, prompt),
		Usage:    newUsage(int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)),
	}, nil
}
