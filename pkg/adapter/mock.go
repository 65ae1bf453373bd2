package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/ujjwalredd/Axiomeer/pkg/artifact"
)

// MockAdapter returns deterministic responses for local runs and tests.
// Scripted replies are consumed in order; after they run out, prompts are
// looked up in responses and finally answered with the default.
type MockAdapter struct {
	mu              sync.Mutex
	responses       map[string]string
	script          []string
	defaultResponse string
	err             error
	calls           []string
	Usage           *Usage
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// NewMockAdapterWithResponses creates a mock adapter with predefined responses.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = "mock response:"
	}
	return &MockAdapter{responses: responses, defaultResponse: defaultResponse}
}

// NewScriptedAdapter replies with each script entry in turn.
func NewScriptedAdapter(script ...string) *MockAdapter {
	m := NewMockAdapter()
	m.script = append(m.script, script...)
	return m
}

// NewFailingAdapter returns err from every call.
func NewFailingAdapter(err error) *MockAdapter {
	m := NewMockAdapter()
	m.err = err
	return m
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Calls returns the prompts received so far.
func (a *MockAdapter) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

// Generate returns a deterministic artifact for the prompt.
func (a *MockAdapter) Generate(_ context.Context, model string, prompt string, _ ...Option) (*Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, prompt)
	if a.err != nil {
		return nil, a.err
	}
	if model == "" {
		model = "mock-1"
	}

	var content string
	switch {
	case len(a.script) > 0:
		content = a.script[0]
		a.script = a.script[1:]
	case a.responses[prompt] != "":
		content = a.responses[prompt]
	default:
		content = fmt.Sprintf("%s\n%s", a.defaultResponse, prompt)
	}
	return &Response{Artifact: artifact.New(content, a.Name(), model, prompt), Usage: a.Usage}, nil
}
