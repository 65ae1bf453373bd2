// Package params fills provider inputs from a natural-language task using
// the app's declared input schema.
package params

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"

	"github.com/ujjwalredd/Axiomeer/pkg/adapter"
	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
)

// Field is one expected provider input.
type Field struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Extractor asks an LLM to turn a task into provider inputs.
type Extractor struct {
	adapter adapter.Adapter
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
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

// New creates an extractor.
func New(a adapter.Adapter, model string, opts ...Option) *Extractor {
	e := &Extractor{
		adapter: a,
		model:   model,
		timeout: 10 * time.Second,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns inputs for app derived from task, or nil when the app
// declares no inputs or the model answer is unusable. Failures are logged
// and never returned; the provider is then called without inputs.
func (e *Extractor) Extract(ctx context.Context, task string, app catalog.Entry) map[string]any {
	fields := Fields(app.Executor.InputSchema)
	if e == nil || e.adapter == nil || len(fields) == 0 || strings.TrimSpace(task) == "" {
		return nil
	}

	resp, err := e.adapter.Generate(ctx, e.model, buildPrompt(task, app.ID, fields),
		adapter.WithJSON(),
		adapter.WithTemperature(0.1),
		adapter.WithMaxTokens(200),
		adapter.WithTimeout(e.timeout),
	)
	if err != nil {
		e.logger.Warn("parameter extraction failed", zap.String("app_id", app.ID), zap.Error(err))
		return nil
	}

	out, err := parse(adapter.Text(resp), fields)
	if err != nil {
		e.logger.Warn("parameter extraction returned invalid JSON",
			zap.String("app_id", app.ID), zap.Error(err))
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	e.logger.Info("extracted parameters", zap.String("app_id", app.ID), zap.Any("params", out))
	return out
}

// Fields lists the inputs declared by a schema. Both JSON Schema objects
// ({"properties": {...}, "required": [...]}) and flat name→description maps
// are accepted. Fields are sorted by name.
func Fields(schema map[string]any) []Field {
	if len(schema) == 0 {
		return nil
	}
	required := map[string]bool{}
	if req, ok := schema["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	props, ok := schema["properties"].(map[string]any)
	if !ok {
		props = schema
	}

	fields := make([]Field, 0, len(props))
	for name, raw := range props {
		if name == "" || (!ok && (name == "type" || name == "required")) {
			continue
		}
		f := Field{Name: name, Required: required[name]}
		switch v := raw.(type) {
		case string:
			f.Description = v
		case map[string]any:
			f.Type, _ = v["type"].(string)
			f.Description, _ = v["description"].(string)
		}
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}

// parse decodes the model answer and keeps only declared inputs.
func parse(content string, fields []Field) (map[string]any, error) {
	content = stripFences(content)
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		content = content[start : end+1]
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(content)
		if rerr != nil {
			return nil, fmt.Errorf("decode params: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
			return nil, fmt.Errorf("decode repaired params: %w", err)
		}
	}

	allowed := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		allowed[f.Name] = struct{}{}
	}
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if _, ok := allowed[k]; ok && v != nil {
			out[k] = v
		}
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func buildPrompt(task, appID string, fields []Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Extract parameters for the %s API from this query. Return ONLY JSON.\n\n", appID)
	fmt.Fprintf(&sb, "Query: %q\n\n", task)
	sb.WriteString("Parameters:\n")
	for _, f := range fields {
		fmt.Fprintf(&sb, "- %s", f.Name)
		if f.Type != "" {
			fmt.Fprintf(&sb, " (%s)", f.Type)
		}
		if f.Required {
			sb.WriteString(" [required]")
		}
		if f.Description != "" {
			fmt.Fprintf(&sb, ": %s", f.Description)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\nIMPORTANT: Use ONLY these parameter names: %s\n", strings.Join(names, ", "))
	sb.WriteString("Omit parameters the query does not mention.\n\nJSON:")
	return sb.String()
}
