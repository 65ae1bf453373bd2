package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ujjwalredd/Axiomeer/pkg/artifact"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekAdapter implements the Adapter interface for DeepSeek models.
// DeepSeek uses an OpenAI-compatible API format.
type DeepSeekAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type deepseekRequest struct {
	Model          string            `json:"model"`
	Messages       []deepseekMessage `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Temperature    *float64          `json:"temperature,omitempty"`
	ResponseFormat *deepseekFormat   `json:"response_format,omitempty"`
}

type deepseekFormat struct {
	Type string `json:"type"`
}

type deepseekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepseekResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewDeepSeekAdapter creates a new DeepSeek adapter.
func NewDeepSeekAdapter(apiKey string) (*DeepSeekAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepseek API key is required")
	}

	return &DeepSeekAdapter{
		apiKey:     apiKey,
		baseURL:    deepseekBaseURL,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the adapter identifier.
func (a *DeepSeekAdapter) Name() string {
	return "deepseek"
}

// Models returns the list of supported DeepSeek models.
func (a *DeepSeekAdapter) Models() []string {
	return []string{
		"deepseek-chat",
		"deepseek-reasoner",
	}
}

// Generate sends a chat completion request to DeepSeek.
func (a *DeepSeekAdapter) Generate(ctx context.Context, model string, prompt string, opts ...Option) (*Response, error) {
	o := Apply(opts...)
	ctx, cancel := withTimeout(ctx, o)
	defer cancel()

	reqBody := deepseekRequest{
		Model:       model,
		Messages:    []deepseekMessage{{Role: "user", Content: prompt}},
		MaxTokens:   o.MaxTokens,
		Temperature: o.Temperature,
	}
	if o.JSON {
		reqBody.ResponseFormat = &deepseekFormat{Type: "json_object"}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, classify(a.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(a.Name(), err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(a.Name(), resp.StatusCode, fmt.Errorf("%s", string(body)))
	}

	var out deepseekResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &Error{Backend: a.Name(), Kind: KindProtocol, Err: err}
	}
	if out.Error != nil {
		return nil, &Error{Backend: a.Name(), Kind: KindProtocol, Err: fmt.Errorf("%s (type: %s)", out.Error.Message, out.Error.Type)}
	}
	if len(out.Choices) == 0 {
		return nil, &Error{Backend: a.Name(), Kind: KindProtocol, Err: fmt.Errorf("no choices returned")}
	}

	return &Response{
		Artifact: artifact.New(out.Choices[0].Message.Content, a.Name(), model, prompt),
		Usage:    newUsage(out.Usage.PromptTokens, out.Usage.CompletionTokens),
	}, nil
}
