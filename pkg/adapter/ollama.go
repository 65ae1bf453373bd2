package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ujjwalredd/Axiomeer/pkg/artifact"
)

// DefaultOllamaURL is the generate endpoint of a local Ollama daemon.
const DefaultOllamaURL = "http://localhost:11434/api/generate"

// OllamaAdapter talks to an Ollama server over its native generate API.
type OllamaAdapter struct {
	url        string
	models     []string
	httpClient *http.Client
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
	Format  string         `json:"format,omitempty"`
}

// NewOllamaAdapter creates an adapter for the generate endpoint at url.
func NewOllamaAdapter(url string, models ...string) *OllamaAdapter {
	if strings.TrimSpace(url) == "" {
		url = DefaultOllamaURL
	}
	if len(models) == 0 {
		models = []string{"llama2:7b"}
	}
	return &OllamaAdapter{
		url:        url,
		models:     models,
		httpClient: &http.Client{},
	}
}

// Name returns the adapter identifier.
func (a *OllamaAdapter) Name() string {
	return "ollama"
}

// Models returns the models this adapter was configured with.
func (a *OllamaAdapter) Models() []string {
	return a.models
}

// Generate posts a non-streaming generate request. Unreachable daemons yield
// KindConnectivity errors and slow ones KindTimeout.
func (a *OllamaAdapter) Generate(ctx context.Context, model string, prompt string, opts ...Option) (*Response, error) {
	o := Apply(opts...)
	ctx, cancel := withTimeout(ctx, o)
	defer cancel()

	reqBody := ollamaRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  false,
		Options: map[string]any{"num_predict": o.MaxTokens},
	}
	if o.Temperature != nil {
		reqBody.Options["temperature"] = *o.Temperature
	}
	if o.JSON {
		reqBody.Format = "json"
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

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
		msg := gjson.GetBytes(body, "error").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, statusError(a.Name(), resp.StatusCode, fmt.Errorf("%s", msg))
	}

	if !gjson.ValidBytes(body) {
		return nil, &Error{Backend: a.Name(), Kind: KindProtocol, Err: fmt.Errorf("response is not JSON")}
	}
	parsed := gjson.ParseBytes(body)
	if errMsg := parsed.Get("error"); errMsg.Exists() {
		return nil, &Error{Backend: a.Name(), Kind: KindProtocol, Err: fmt.Errorf("%s", errMsg.String())}
	}

	content := parsed.Get("response").String()
	usage := newUsage(int(parsed.Get("prompt_eval_count").Int()), int(parsed.Get("eval_count").Int()))
	return &Response{
		Artifact: artifact.New(content, a.Name(), model, prompt),
		Usage:    usage,
	}, nil
}
