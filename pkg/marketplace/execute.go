package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ujjwalredd/Axiomeer/pkg/cache"
	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
	"github.com/ujjwalredd/Axiomeer/pkg/evidence"
	"github.com/ujjwalredd/Axiomeer/pkg/executor"
	"github.com/ujjwalredd/Axiomeer/pkg/history"
	"github.com/ujjwalredd/Axiomeer/pkg/ledger"
	"github.com/ujjwalredd/Axiomeer/pkg/metrics"
)

// Failure messages recorded in the ledger.
const (
	MsgUnknownApp          = "Unknown app_id"
	MsgUnsupportedExecutor = "Unsupported executor_type"
	MsgMissingURL          = "Missing executor_url"
)

// ExecuteRequest runs one app.
type ExecuteRequest struct {
	AppID  string         `json:"app_id"`
	Task   string         `json:"task"`
	Inputs map[string]any `json:"inputs,omitempty"`
	// RequireCitations defaults to true when omitted.
	RequireCitations *bool  `json:"require_citations,omitempty"`
	ClientID         string `json:"client_id,omitempty"`
}

func (r ExecuteRequest) requireCitations() bool {
	return r.RequireCitations == nil || *r.RequireCitations
}

// ExecuteResponse is the receipt returned to the caller.
type ExecuteResponse struct {
	AppID            string               `json:"app_id"`
	OK               bool                 `json:"ok"`
	Output           any                  `json:"output"`
	Provenance       *evidence.Provenance `json:"provenance"`
	ValidationErrors []string             `json:"validation_errors"`
	RunID            int64                `json:"run_id"`
	LatencyMs        *int                 `json:"latency_ms,omitempty"`
	Quality          evidence.Quality     `json:"quality,omitempty"`
	QualityReasons   []string             `json:"quality_reasons,omitempty"`
	Cached           bool                 `json:"cached,omitempty"`
}

// Execute calls the app's provider, validates the evidence and records a
// run. Every path that reaches the app lookup appends exactly one ledger
// record; provider failures come back as ok=false, not as errors.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error) {
	req.AppID = strings.TrimSpace(req.AppID)
	if req.AppID == "" {
		return nil, invalid("app_id is required")
	}

	run := &execution{
		resp: &ExecuteResponse{AppID: req.AppID, ValidationErrors: []string{}},
		rec: ledger.Record{
			AppID:            req.AppID,
			Task:             req.Task,
			ClientID:         req.ClientID,
			RequireCitations: req.requireCitations(),
			CreatedAt:        s.now().UTC(),
		},
	}

	app, err := s.catalog.Get(ctx, req.AppID)
	if err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("get app %s: %w", req.AppID, err)
		}
		return s.finish(ctx, run, MsgUnknownApp)
	}

	// Citations are only enforced when the app can supply them.
	run.rec.RequireCitations = req.requireCitations() && app.CitationsSupported

	if app.Executor.Type != catalog.ExecutorHTTP {
		return s.finish(ctx, run, MsgUnsupportedExecutor)
	}
	if strings.TrimSpace(app.Executor.URL) == "" {
		return s.finish(ctx, run, MsgMissingURL)
	}

	inputs := make(map[string]any, len(req.Inputs))
	for k, v := range req.Inputs {
		inputs[k] = v
	}
	if len(inputs) == 0 && strings.TrimSpace(req.Task) != "" && s.settings.ExtractParams {
		for k, v := range s.params.Extract(ctx, req.Task, app) {
			inputs[k] = v
		}
	}
	s.logger.Info("executing app",
		zap.String("app_id", app.ID),
		zap.String("method", app.Executor.Method),
		zap.Int("inputs", len(inputs)))

	payload, err := s.fetch(ctx, app, inputs, run)
	if err != nil {
		return s.finish(ctx, run, fmt.Sprintf("Execution failed: %v", err))
	}
	run.payload = payload
	run.resp.Output = payload
	run.resp.Quality, run.resp.QualityReasons = evidence.Assess(payload)

	if errs := evidence.Validate(payload, run.rec.RequireCitations); len(errs) > 0 {
		return s.finish(ctx, run, errs...)
	}

	if !run.resp.Cached {
		s.storePayload(ctx, app, inputs, payload)
	}
	prov := evidence.ProvenanceFrom(payload)
	run.resp.Provenance = &prov
	run.rec.OK = true
	resp, err := s.finish(ctx, run)
	if err != nil {
		return nil, err
	}
	if obj, ok := payload.(map[string]any); ok {
		if data, err := json.Marshal(obj); err == nil {
			s.logMessage(ctx, req.ClientID, history.RoleProvider, string(data))
		}
	}
	return resp, nil
}

type execution struct {
	rec     ledger.Record
	resp    *ExecuteResponse
	payload any
	elapsed time.Duration
}

// fetch serves the payload from the provider cache or calls the provider.
func (s *Service) fetch(ctx context.Context, app catalog.Entry, inputs map[string]any, run *execution) (any, error) {
	key := providerKey(app, inputs)
	var cached any
	hit, err := cache.GetJSON(ctx, s.cache, key, &cached)
	if err != nil {
		s.logger.Warn("provider cache read failed", zap.Error(err))
	}
	metrics.RecordCacheLookup("provider", hit)
	if hit {
		run.resp.Cached = true
		return cached, nil
	}

	start := s.now()
	payload, err := s.executor.Run(ctx, executor.Request{
		URL:     app.Executor.URL,
		Method:  app.Executor.Method,
		Params:  inputs,
		Timeout: s.settings.ExecutorTimeout,
	})
	run.elapsed = s.now().Sub(start)
	latency := int(run.elapsed / time.Millisecond)
	run.rec.LatencyMs = &latency
	run.resp.LatencyMs = &latency
	return payload, err
}

func (s *Service) storePayload(ctx context.Context, app catalog.Entry, inputs map[string]any, payload any) {
	ttl := providerTTL(s.settings.ProviderTTL, app.Freshness)
	if err := cache.SetJSON(ctx, s.cache, providerKey(app, inputs), payload, ttl); err != nil {
		s.logger.Warn("provider cache write failed", zap.Error(err))
	}
}

func providerKey(app catalog.Entry, inputs map[string]any) string {
	return cache.Fingerprint("provider", map[string]any{
		"app_id": app.ID,
		"method": app.Executor.Method,
		"url":    app.Executor.URL,
		"params": inputs,
	})
}

// providerTTL scales the base TTL by how quickly the app's data changes.
// Realtime data uses the base TTL as is.
func providerTTL(base time.Duration, f catalog.Freshness) time.Duration {
	if base <= 0 {
		return 0
	}
	switch f {
	case catalog.FreshnessStatic:
		return 60 * base
	case catalog.FreshnessDaily:
		return 10 * base
	default:
		return base
	}
}

// finish appends the run, writes the optional receipt and completes the
// response.
func (s *Service) finish(ctx context.Context, run *execution, errs ...string) (*ExecuteResponse, error) {
	if len(errs) > 0 {
		run.rec.OK = false
		run.resp.Provenance = nil
		run.rec.ValidationErrors = append([]string{}, errs...)
		run.resp.ValidationErrors = append([]string{}, errs...)
	}
	if run.payload != nil {
		if data, err := json.Marshal(run.payload); err == nil {
			run.rec.Output = data
		}
	}

	id, err := s.ledger.Append(ctx, run.rec)
	if err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}
	run.rec.ID = id
	run.resp.OK = run.rec.OK
	run.resp.RunID = id

	metrics.RecordExecution(run.rec.OK, string(run.resp.Quality), run.elapsed)
	s.writeReceipt(run)
	return run.resp, nil
}

func (s *Service) writeReceipt(run *execution) {
	if s.receipts == nil {
		return
	}
	path, err := s.receipts.WriteReceipt(evidence.Receipt{
		RunID:            run.rec.ID,
		AppID:            run.rec.AppID,
		Task:             run.rec.Task,
		ClientID:         run.rec.ClientID,
		OK:               run.rec.OK,
		RequireCitations: run.rec.RequireCitations,
		LatencyMs:        run.rec.LatencyMs,
		Quality:          run.resp.Quality,
		QualityReasons:   run.resp.QualityReasons,
		ValidationErrors: run.rec.ValidationErrors,
		Provenance:       run.resp.Provenance,
		CreatedAt:        run.rec.CreatedAt,
	}, run.payload)
	if err != nil {
		s.logger.Warn("failed to write receipt", zap.Int64("run_id", run.rec.ID), zap.Error(err))
		return
	}
	s.logger.Debug("receipt written", zap.String("path", path))
}
