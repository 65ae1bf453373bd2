package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/ujjwalredd/Axiomeer/pkg/artifact"
)

// OpenAIAdapter implements the Adapter interface for OpenAI models.
type OpenAIAdapter struct {
	client openai.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(apiKey string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIAdapter{client: client}, nil
}

// Name returns the adapter identifier.
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// Models returns the list of supported OpenAI models.
func (a *OpenAIAdapter) Models() []string {
	return []string{
		"gpt-4o-mini",
		"gpt-4o",
	}
}

// Generate sends a chat completion request. WithJSON maps to the
// json_object response format.
func (a *OpenAIAdapter) Generate(ctx context.Context, model string, prompt string, opts ...Option) (*Response, error) {
	o := Apply(opts...)
	ctx, cancel := withTimeout(ctx, o)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(int64(o.MaxTokens)),
	}
	if o.Temperature != nil {
		params.Temperature = openai.Float(*o.Temperature)
	}
	if o.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, statusError(a.Name(), apiErr.StatusCode, err)
		}
		return nil, classify(a.Name(), err)
	}

	if len(resp.Choices) == 0 {
		return nil, &Error{Backend: a.Name(), Kind: KindProtocol, Err: fmt.Errorf("no choices returned")}
	}

	return &Response{
		Artifact: artifact.New(resp.Choices[0].Message.Content, a.Name(), model, prompt),
		Usage:    newUsage(int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens)),
	}, nil
}
