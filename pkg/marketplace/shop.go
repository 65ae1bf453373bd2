package marketplace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ujjwalredd/Axiomeer/pkg/cache"
	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
	"github.com/ujjwalredd/Axiomeer/pkg/history"
	"github.com/ujjwalredd/Axiomeer/pkg/metrics"
	"github.com/ujjwalredd/Axiomeer/pkg/router"
	"github.com/ujjwalredd/Axiomeer/pkg/sales"
	"github.com/ujjwalredd/Axiomeer/pkg/trust"
)

// Shop outcomes.
const (
	StatusOK      = "OK"
	StatusNoMatch = sales.NoMatch
)

const defaultNoMatchMessage = "No suitable products matched strict routing thresholds."

// ShopRequest asks for app recommendations.
type ShopRequest struct {
	Task                 string             `json:"task"`
	RequiredCapabilities []string           `json:"required_capabilities"`
	Constraints          router.Constraints `json:"constraints"`
	ClientID             string             `json:"client_id,omitempty"`
}

// Recommendation is a ranked app as shown to the client.
type Recommendation struct {
	AppID              string        `json:"app_id"`
	Name               string        `json:"name"`
	Score              float64       `json:"score"`
	Scores             router.Scores `json:"scores"`
	Capabilities       []string      `json:"capabilities"`
	Freshness          string        `json:"freshness"`
	CitationsSupported bool          `json:"citations_supported"`
	LatencyEstMs       int           `json:"latency_est_ms"`
	CostEstUSD         float64       `json:"cost_est_usd"`
	TrustScore         float64       `json:"trust_score"`
	Why                []string      `json:"why"`
	Rationale          string        `json:"rationale,omitempty"`
	Tradeoff           string        `json:"tradeoff,omitempty"`
}

// SalesMessage is the agent's answer as returned to the client.
type SalesMessage struct {
	Summary         string                 `json:"summary"`
	FinalChoice     string                 `json:"final_choice"`
	Recommendations []sales.Recommendation `json:"recommendations"`
}

// ShopResponse is the outcome of a shop call.
type ShopResponse struct {
	Status               string           `json:"status"`
	Recommendations      []Recommendation `json:"recommendations"`
	Explanation          []string         `json:"explanation"`
	SalesAgent           SalesMessage     `json:"sales_agent"`
	RequiredCapabilities []string         `json:"required_capabilities"`
}

// Shop ranks the catalog for req and lets the sales agent pick. Ranking
// and selection failures become NO_MATCH; only invalid input and storage
// failures are returned as errors.
func (s *Service) Shop(ctx context.Context, req ShopRequest) (*ShopResponse, error) {
	req.Task = strings.TrimSpace(req.Task)
	if req.Task == "" {
		return nil, invalid("task is required")
	}
	caps, err := catalog.ParseCapabilities(req.RequiredCapabilities)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validateConstraints(&req.Constraints); err != nil {
		return nil, err
	}

	key := cache.Fingerprint("shop", map[string]any{
		"task":                  req.Task,
		"required_capabilities": sortedStrings(catalog.Strings(caps)),
		"constraints":           req.Constraints,
	})
	var cached ShopResponse
	hit, err := cache.GetJSON(ctx, s.cache, key, &cached)
	if err != nil {
		s.logger.Warn("shop cache read failed", zap.Error(err))
	}
	metrics.RecordCacheLookup("shop", hit)
	if hit {
		metrics.RecordShop(cached.Status)
		return &cached, nil
	}

	if len(caps) == 0 && s.settings.AutoExtract {
		caps = s.extractor.Extract(ctx, req.Task, req.Constraints.CitationsRequired)
		s.logger.Debug("extracted capabilities", zap.Strings("capabilities", catalog.Strings(caps)))
	}

	hist := s.recentHistory(ctx, req.ClientID)
	resp, err := s.shop(ctx, req, caps, hist)
	if err != nil {
		return nil, err
	}

	metrics.RecordShop(resp.Status)
	if err := cache.SetJSON(ctx, s.cache, key, resp, s.settings.ShopTTL); err != nil {
		s.logger.Warn("shop cache write failed", zap.Error(err))
	}
	return resp, nil
}

func (s *Service) shop(ctx context.Context, req ShopRequest, caps []catalog.Capability, hist []history.Message) (*ShopResponse, error) {
	snaps, err := s.trust.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute trust: %w", err)
	}
	entries, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	cands := make([]router.Candidate, len(entries))
	for i, e := range entries {
		cands[i] = router.Candidate{Entry: e, Trust: trust.Lookup(snaps, e.ID).TrustScore}
	}

	capStrings := catalog.Strings(caps)
	if capStrings == nil {
		capStrings = []string{}
	}
	ranked := s.router.Rank(router.Request{
		Task:                 req.Task,
		RequiredCapabilities: caps,
		Constraints:          req.Constraints,
	}, cands, 0)

	salesReq := sales.Request{
		Task:          req.Task,
		Constraints:   req.Constraints,
		RequestedCaps: capStrings,
		History:       hist,
	}

	if ranked.Empty() {
		message := defaultNoMatchMessage
		if len(ranked.Reasons) > 0 {
			message = ranked.Reasons[0]
		}
		explanation := ranked.Reasons
		if msg, err := s.agent.NoMatchMessage(ctx, salesReq); err == nil {
			message = msg
		} else {
			s.logger.Debug("no-match message unavailable", zap.Error(err))
		}
		if len(explanation) == 0 {
			explanation = []string{message}
		}
		s.logMessage(ctx, req.ClientID, history.RoleClient, req.Task)
		s.logMessage(ctx, req.ClientID, history.RoleSalesAgent, message)
		return noMatch(message, explanation, capStrings), nil
	}

	top := ranked.Ranked
	if len(top) > s.settings.SalesTopK {
		top = top[:s.settings.SalesTopK]
	}
	salesReq.Candidates = make([]sales.Candidate, len(top))
	for i, r := range top {
		salesReq.Candidates[i] = sales.CandidateFrom(r)
	}

	result, err := s.agent.Recommend(ctx, salesReq)
	if err != nil {
		code := "error"
		var pe *sales.ProtocolError
		if errors.As(err, &pe) {
			code = pe.Code
		}
		metrics.RecordSalesOutcome(code)
		s.logger.Warn("sales agent failed", zap.String("code", code), zap.Error(err))
		summary := fmt.Sprintf("Sales agent failed: %v. Returning NO_MATCH to avoid unsafe selection.", err)
		s.logMessage(ctx, req.ClientID, history.RoleClient, req.Task)
		s.logMessage(ctx, req.ClientID, history.RoleSalesAgent, summary)
		return noMatch(summary, []string{summary}, capStrings), nil
	}
	metrics.RecordSalesOutcome(result.Stage)

	if result.IsNoMatch() {
		s.logMessage(ctx, req.ClientID, history.RoleClient, req.Task)
		s.logMessage(ctx, req.ClientID, history.RoleSalesAgent, result.Summary)
		return noMatch(result.Summary, []string{result.Summary}, capStrings), nil
	}

	s.logMessage(ctx, req.ClientID, history.RoleClient, req.Task)
	s.logMessage(ctx, req.ClientID, history.RoleSalesAgent,
		fmt.Sprintf("Final choice: %s. %s", result.FinalChoice, result.Summary))

	return &ShopResponse{
		Status:          StatusOK,
		Recommendations: mergePicks(top, result.Recommendations),
		Explanation:     []string{result.Summary},
		SalesAgent: SalesMessage{
			Summary:         result.Summary,
			FinalChoice:     result.FinalChoice,
			Recommendations: result.Recommendations,
		},
		RequiredCapabilities: capStrings,
	}, nil
}

func noMatch(summary string, explanation, caps []string) *ShopResponse {
	return &ShopResponse{
		Status:          StatusNoMatch,
		Recommendations: []Recommendation{},
		Explanation:     explanation,
		SalesAgent: SalesMessage{
			Summary:         summary,
			FinalChoice:     sales.NoMatch,
			Recommendations: []sales.Recommendation{},
		},
		RequiredCapabilities: caps,
	}
}

// mergePicks annotates ranked apps with the agent's rationale and orders
// the agent's picks first, in the agent's order. The rest keep rank order.
func mergePicks(ranked []router.Ranked, picks []sales.Recommendation) []Recommendation {
	order := make(map[string]int, len(picks))
	details := make(map[string]sales.Recommendation, len(picks))
	for i, p := range picks {
		order[p.AppID] = i
		details[p.AppID] = p
	}

	out := make([]Recommendation, len(ranked))
	for i, r := range ranked {
		rec := recommendationFrom(r)
		if d, ok := details[r.Entry.ID]; ok {
			rec.Rationale = d.Rationale
			rec.Tradeoff = d.Tradeoff
		}
		if rec.Rationale == "" || rec.Tradeoff == "" {
			rationale, tradeoff := whyBackfill(r.Why)
			if rec.Rationale == "" {
				rec.Rationale = rationale
			}
			if rec.Tradeoff == "" {
				rec.Tradeoff = tradeoff
			}
		}
		out[i] = rec
	}

	sort.SliceStable(out, func(i, j int) bool {
		oi, iPicked := order[out[i].AppID]
		oj, jPicked := order[out[j].AppID]
		switch {
		case iPicked && jPicked:
			return oi < oj
		case iPicked != jPicked:
			return iPicked
		}
		return false
	})
	return out
}

func recommendationFrom(r router.Ranked) Recommendation {
	caps := catalog.Strings(r.Entry.Capabilities)
	if caps == nil {
		caps = []string{}
	}
	return Recommendation{
		AppID:              r.Entry.ID,
		Name:               r.Entry.Name,
		Score:              r.Scores.Total,
		Scores:             r.Scores,
		Capabilities:       caps,
		Freshness:          string(r.Entry.Freshness),
		CitationsSupported: r.Entry.CitationsSupported,
		LatencyEstMs:       r.Entry.LatencyEstMs,
		CostEstUSD:         r.Entry.CostEstUSD,
		TrustScore:         r.Scores.Trust,
		Why:                r.Why,
	}
}

// whyBackfill splits explanation lines into what an app offers and what it
// costs.
func whyBackfill(why []string) (rationale, tradeoff string) {
	var offers, costs []string
	for _, line := range why {
		switch {
		case strings.HasPrefix(line, "Capability match"),
			strings.HasPrefix(line, "Freshness matches"),
			strings.HasPrefix(line, "supports citations"):
			offers = append(offers, line)
		case strings.HasPrefix(line, "Estimated latency"),
			strings.HasPrefix(line, "Estimated cost"):
			costs = append(costs, line)
		}
	}
	return strings.Join(offers, "; "), strings.Join(costs, "; ")
}

func validateConstraints(c *router.Constraints) error {
	if c.Freshness != "" {
		f, err := catalog.ParseFreshness(string(c.Freshness))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		c.Freshness = f
	}
	if c.MaxLatencyMs != nil && *c.MaxLatencyMs <= 0 {
		return invalid("max_latency_ms must be positive")
	}
	if c.MaxCostUSD != nil && *c.MaxCostUSD < 0 {
		return invalid("max_cost_usd must be non-negative")
	}
	return nil
}

func sortedStrings(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}
