package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no entry exists for an id.
	ErrNotFound = errors.New("app not found")
	// ErrExists is returned by Create when the id is already taken.
	ErrExists = errors.New("app already exists")
)

// Freshness describes how current an app's data is.
type Freshness string

const (
	FreshnessStatic   Freshness = "static"
	FreshnessDaily    Freshness = "daily"
	FreshnessRealtime Freshness = "realtime"
)

// ParseFreshness validates a freshness value. Empty input is rejected.
func ParseFreshness(s string) (Freshness, error) {
	f := Freshness(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FreshnessStatic, FreshnessDaily, FreshnessRealtime:
		return f, nil
	}
	return "", fmt.Errorf("invalid freshness %q (want static, daily or realtime)", s)
}

// ExecutorHTTP is the only executor type the marketplace can run.
const ExecutorHTTP = "http_api"

// Executor describes how an app is invoked.
type Executor struct {
	Type        string         `json:"type" yaml:"type"`
	Method      string         `json:"method" yaml:"method"`
	URL         string         `json:"url" yaml:"url"`
	InputSchema map[string]any `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`
}

// Entry is a catalog app.
type Entry struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	Capabilities       []Capability `json:"capabilities"`
	Freshness          Freshness    `json:"freshness"`
	CitationsSupported bool         `json:"citations_supported"`
	LatencyEstMs       int          `json:"latency_est_ms"`
	CostEstUSD         float64      `json:"cost_est_usd"`
	Executor           Executor     `json:"executor"`
}

// Normalize applies defaults and canonical casing in place.
func (e *Entry) Normalize() {
	e.ID = strings.TrimSpace(e.ID)
	e.Name = strings.TrimSpace(e.Name)
	e.Description = strings.TrimSpace(e.Description)
	if e.Freshness == "" {
		e.Freshness = FreshnessStatic
	}
	e.Freshness = Freshness(strings.ToLower(string(e.Freshness)))
	if e.Executor.Type == "" {
		e.Executor.Type = ExecutorHTTP
	}
	e.Executor.Method = NormalizeMethod(e.Executor.Method)
	e.Capabilities = dedupe(e.Capabilities)
}

// Validate checks invariants that every stored entry must satisfy.
func (e *Entry) Validate() error {
	if e.ID == "" {
		return errors.New("id is required")
	}
	if e.Name == "" {
		return fmt.Errorf("app %s: name is required", e.ID)
	}
	if _, err := ParseFreshness(string(e.Freshness)); err != nil {
		return fmt.Errorf("app %s: %w", e.ID, err)
	}
	for _, c := range e.Capabilities {
		if !c.Valid() {
			return fmt.Errorf("app %s: unknown capability %q", e.ID, c)
		}
	}
	if e.LatencyEstMs <= 0 {
		return fmt.Errorf("app %s: latency_est_ms must be positive", e.ID)
	}
	if e.CostEstUSD < 0 {
		return fmt.Errorf("app %s: cost_est_usd must be non-negative", e.ID)
	}
	return nil
}

// HasCapability reports whether the entry offers c.
func (e *Entry) HasCapability(c Capability) bool {
	for _, have := range e.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// NormalizeMethod uppercases an HTTP method, defaulting to GET.
func NormalizeMethod(m string) string {
	m = strings.ToUpper(strings.TrimSpace(m))
	if m == "" {
		return "GET"
	}
	return m
}

func dedupe(caps []Capability) []Capability {
	out := make([]Capability, 0, len(caps))
	seen := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		c = Capability(strings.ToLower(strings.TrimSpace(string(c))))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Store is the catalog source consumed by the marketplace.
type Store interface {
	List(ctx context.Context) ([]Entry, error)
	Get(ctx context.Context, id string) (Entry, error)
	// Create inserts a new entry and fails with ErrExists on a duplicate id.
	Create(ctx context.Context, e Entry) error
	// Upsert inserts or replaces an entry by id.
	Upsert(ctx context.Context, e Entry) error
}
