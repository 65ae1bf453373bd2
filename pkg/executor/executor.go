// Package executor calls provider HTTP endpoints with bounded retry on
// transient network failures.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Request describes one provider call.
type Request struct {
	URL     string
	Method  string
	Params  map[string]any
	Timeout time.Duration
}

// Executor performs provider calls.
type Executor struct {
	client      *http.Client
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	logger      *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) {
		if c != nil {
			e.client = c
		}
	}
}

// WithMaxAttempts sets the total number of tries, including the first.
func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithBackoff sets the first retry delay and its ceiling.
func WithBackoff(base, ceiling time.Duration) Option {
	return func(e *Executor) {
		e.baseBackoff = base
		e.maxBackoff = ceiling
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an executor with three attempts and 1s..10s backoff.
func New(opts ...Option) *Executor {
	e := &Executor{
		client:      &http.Client{},
		maxAttempts: 3,
		baseBackoff: time.Second,
		maxBackoff:  10 * time.Second,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

const maxErrorBody = 512

// Run calls the provider and decodes its JSON response. Only timeouts and
// connection failures are retried.
func (e *Executor) Run(ctx context.Context, req Request) (any, error) {
	var lastErr error
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		out, err := e.once(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsTransient(err) || attempt == e.maxAttempts-1 {
			break
		}
		backoff := computeBackoff(e.baseBackoff, e.maxBackoff, attempt)
		e.logger.Debug("provider call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, classifyNetwork(req.URL, err)
		}
	}
	return nil, lastErr
}

func (e *Executor) once(ctx context.Context, req Request) (any, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, classifyNetwork(req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyNetwork(req.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{URL: redact(req.URL), StatusCode: resp.StatusCode, Body: snippet}
	}

	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &DecodeError{URL: redact(req.URL), Err: err}
	}
	return out, nil
}

// buildRequest sends params as a JSON body for POST and as a query string
// otherwise. Unsupported methods fall back to GET.
func buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method != http.MethodPost {
		method = http.MethodGet
	}

	if method == http.MethodPost {
		params := req.Params
		if params == nil {
			params = map[string]any{}
		}
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode params: %w", err)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")
		return httpReq, nil
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if len(req.Params) > 0 {
		q := u.Query()
		for k, v := range req.Params {
			q.Set(k, queryValue(v))
		}
		u.RawQuery = q.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}

func queryValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64, int, int64, bool:
		return fmt.Sprint(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

// computeBackoff doubles base for each prior attempt, capped at ceiling.
func computeBackoff(base, ceiling time.Duration, attempt int) time.Duration {
	backoff := base
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= ceiling {
			return ceiling
		}
	}
	if backoff > ceiling {
		return ceiling
	}
	return backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
