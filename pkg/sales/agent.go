// Package sales asks an LLM to choose among ranked candidates and turns
// whatever it answers into a validated, grounded selection or a typed
// protocol error.
package sales

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ujjwalredd/Axiomeer/pkg/adapter"
	"github.com/ujjwalredd/Axiomeer/pkg/repair"
)

// Pipeline stages, in the order they are tried.
const (
	StagePrimary     = "primary"
	StageStrict      = "strict"
	StageJSONRepair  = "json_repair"
	StageSalesRepair = "sales_repair"
)

// Agent selects apps with an LLM.
type Agent struct {
	adapter     adapter.Adapter
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	logger      *zap.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithTemperature sets the sampling temperature for selection prompts.
// Repair prompts always run at zero.
func WithTemperature(t float64) Option {
	return func(a *Agent) { a.temperature = t }
}

// WithMaxTokens caps each completion.
func WithMaxTokens(n int) Option {
	return func(a *Agent) { a.maxTokens = n }
}

// WithTimeout bounds each LLM call.
func WithTimeout(d time.Duration) Option {
	return func(a *Agent) { a.timeout = d }
}

// New creates an agent.
func New(a adapter.Adapter, model string, opts ...Option) *Agent {
	agent := &Agent{
		adapter:     a,
		model:       model,
		temperature: 0.2,
		maxTokens:   700,
		timeout:     30 * time.Second,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(agent)
	}
	return agent
}

// Recommend returns a validated selection. Every failure is a
// *ProtocolError.
func (a *Agent) Recommend(ctx context.Context, req Request) (*Result, error) {
	if len(req.Candidates) == 0 {
		return nil, protocolErr(CodeNoCandidates)
	}

	raw, err := a.generate(ctx, primaryPrompt(req), a.temperature, true)
	if err != nil {
		return nil, callErr(err)
	}
	stage := StagePrimary
	parsed := parseObject(raw)

	if !parsed.ok {
		a.logger.Debug("sales answer not JSON, retrying strictly", zap.Int("raw_len", len(raw)))
		stage = StageStrict
		if strictRaw, err := a.generate(ctx, strictPrompt(req), a.temperature, false); err == nil {
			raw = strictRaw
			parsed = parseObject(raw)
		} else {
			a.logger.Debug("strict retry failed", zap.Error(err))
		}
	}

	if !parsed.ok {
		stage = StageJSONRepair
		fixed, err := a.generate(ctx, repair.JSONRepairPrompt(raw, schema), 0, false)
		if err != nil {
			return nil, &ProtocolError{Code: CodeInvalidJSON, Err: err}
		}
		if parsed = parseObject(fixed); !parsed.ok {
			return nil, protocolErr(CodeInvalidJSON)
		}
	}

	result, verr := validate(parsed.payload, req.Candidates)
	if verr == nil {
		result.Stage = stage
		return result, nil
	}

	var first *ProtocolError
	if !errors.As(verr, &first) {
		first = &ProtocolError{Code: CodeInvalidRecommendations, Err: verr}
	}
	a.logger.Debug("sales answer invalid, repairing", zap.String("code", first.Code))

	fixed, err := a.generate(ctx, repair.SalesRepairPrompt(repair.SalesInput{
		Task:       req.Task,
		AllowedIDs: req.allowedIDs(),
		Candidates: req.Candidates,
		Schema:     schema,
		Raw:        raw,
		Problem:    first.Code,
	}), 0, false)
	if err != nil {
		return nil, &ProtocolError{Code: first.Code, Err: err}
	}
	repaired := parseObject(fixed)
	if !repaired.ok {
		return nil, first
	}
	result, err = validate(repaired.payload, req.Candidates)
	if err != nil {
		return nil, first
	}
	result.Stage = StageSalesRepair
	return result, nil
}

// NoMatchMessage asks the agent to explain an empty result to the client.
func (a *Agent) NoMatchMessage(ctx context.Context, req Request) (string, error) {
	raw, err := a.generate(ctx, noMatchPrompt(req), a.temperature, true)
	if err != nil {
		return "", callErr(err)
	}
	parsed := parseObject(raw)
	if !parsed.ok {
		fixed, err := a.generate(ctx, repair.JSONRepairPrompt(raw, noMatchSchema), 0, false)
		if err != nil {
			return "", &ProtocolError{Code: CodeInvalidJSON, Err: err}
		}
		if parsed = parseObject(fixed); !parsed.ok {
			return "", protocolErr(CodeInvalidJSON)
		}
	}
	msg, _ := parsed.payload["message"].(string)
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "", protocolErr(CodeInvalidNoMatchMessage)
	}
	return msg, nil
}

func (a *Agent) generate(ctx context.Context, prompt string, temperature float64, jsonMode bool) (string, error) {
	if a.adapter == nil {
		return "", &adapter.Error{Backend: "none", Kind: adapter.KindConnectivity, Err: errors.New("no LLM backend configured")}
	}
	opts := []adapter.Option{
		adapter.WithTemperature(temperature),
		adapter.WithMaxTokens(a.maxTokens),
		adapter.WithTimeout(a.timeout),
	}
	if jsonMode {
		opts = append(opts, adapter.WithJSON())
	}
	resp, err := a.adapter.Generate(ctx, a.model, prompt, opts...)
	if err != nil {
		return "", err
	}
	return adapter.Text(resp), nil
}

func callErr(err error) *ProtocolError {
	if adapter.IsUnreachable(err) || adapter.IsTimeout(err) {
		return &ProtocolError{Code: CodeUnreachable, Err: err}
	}
	return &ProtocolError{Code: CodeLLMError, Err: err}
}
