package adapter

import (
	"context"
	"time"
)

// Adapter defines the interface for LLM backends.
type Adapter interface {
	// Generate sends a prompt to the model and returns its output.
	Generate(ctx context.Context, model string, prompt string, opts ...Option) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// Options tune a single Generate call.
type Options struct {
	Temperature *float64
	MaxTokens   int
	// JSON asks the backend for native JSON output when it supports it.
	JSON    bool
	Timeout time.Duration
}

// Option configures a Generate call.
type Option func(*Options)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Options) {
		o.Temperature = &t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// WithJSON requests JSON-formatted output.
func WithJSON() Option {
	return func(o *Options) {
		o.JSON = true
	}
}

// WithTimeout bounds the call independently of the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// Apply folds opts over the defaults.
func Apply(opts ...Option) Options {
	o := Options{MaxTokens: 4096}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 4096
	}
	return o
}

func withTimeout(ctx context.Context, o Options) (context.Context, context.CancelFunc) {
	if o.Timeout > 0 {
		return context.WithTimeout(ctx, o.Timeout)
	}
	return context.WithCancel(ctx)
}

// Text returns the generated content of a response, or "" for nil.
func Text(resp *Response) string {
	if resp == nil || resp.Artifact == nil {
		return ""
	}
	return resp.Artifact.Content
}
