// Package capability maps a free-text task onto the catalog's capability
// vocabulary, asking an LLM first and falling back to keyword matching.
package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ujjwalredd/Axiomeer/pkg/adapter"
	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
)

// Extractor derives required capabilities from a task.
type Extractor struct {
	adapter adapter.Adapter
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for fallback diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTimeout bounds each LLM call.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		e.timeout = d
	}
}

// NewExtractor creates an extractor. A nil adapter makes every call use
// the keyword heuristic.
func NewExtractor(a adapter.Adapter, model string, opts ...Option) *Extractor {
	e := &Extractor{
		adapter: a,
		model:   model,
		timeout: 30 * time.Second,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the capabilities implied by task. It never fails: any
// problem with the model answer falls back to Heuristic.
func (e *Extractor) Extract(ctx context.Context, task string, forceCitations bool) []catalog.Capability {
	if e == nil || e.adapter == nil {
		return Heuristic(task, forceCitations)
	}

	resp, err := e.adapter.Generate(ctx, e.model, buildPrompt(task),
		adapter.WithJSON(),
		adapter.WithTemperature(0),
		adapter.WithMaxTokens(200),
		adapter.WithTimeout(e.timeout),
	)
	if err != nil {
		if adapter.IsUnreachable(err) {
			e.logger.Debug("capability model unreachable, using heuristic", zap.Error(err))
		} else {
			e.logger.Warn("capability extraction failed, using heuristic", zap.Error(err))
		}
		return Heuristic(task, forceCitations)
	}

	caps, err := parseCapabilities(adapter.Text(resp))
	if err != nil {
		e.logger.Warn("capability response invalid, using heuristic", zap.Error(err))
		return Heuristic(task, forceCitations)
	}
	if forceCitations {
		caps = withCitations(caps)
	}
	return caps
}

var errNotList = errors.New("capabilities is not a list")

// parseCapabilities accepts {"capabilities":[...]} optionally wrapped in
// markdown fences or surrounding prose.
func parseCapabilities(content string) ([]catalog.Capability, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		content = content[start : end+1]
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		return nil, fmt.Errorf("decode capabilities: %w", err)
	}
	raw, ok := obj["capabilities"].([]any)
	if !ok {
		return nil, errNotList
	}
	tags := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			tags = append(tags, s)
		}
	}
	return catalog.FilterCapabilities(tags), nil
}

func buildPrompt(task string) string {
	var sb strings.Builder
	sb.WriteString("You extract capability tags for Axiomeer, the marketplace for AI agents.\n\n")
	sb.WriteString("Return ONLY valid JSON with this schema:\n")
	sb.WriteString("{\"capabilities\": [\"tag1\",\"tag2\"]}\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Use lowercase tags.\n")
	fmt.Fprintf(&sb, "- Only output tags from this allowed list: [%s]\n", quoted(catalog.Strings(catalog.Vocabulary)))
	sb.WriteString("- If the request implies latest/current/now/today, include \"realtime\".\n")
	sb.WriteString("- If it asks for sources/citations/links, include \"citations\".\n")
	sb.WriteString("- If unclear, return {\"capabilities\": []}.\n\n")
	sb.WriteString("Request:\n")
	sb.WriteString(task)
	sb.WriteString("\n")
	return sb.String()
}

func quoted(items []string) string {
	parts := make([]string, len(items))
	for i, s := range items {
		parts[i] = `"` + s + `"`
	}
	return strings.Join(parts, ",")
}
