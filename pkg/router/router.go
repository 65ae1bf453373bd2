// Package router ranks catalog apps for a task. Ranking is a pure function
// of the request, the candidates and the configured weights.
package router

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
	"github.com/ujjwalredd/Axiomeer/pkg/config"
	"github.com/ujjwalredd/Axiomeer/pkg/relevance"
	"github.com/ujjwalredd/Axiomeer/pkg/score"
)

// Weights are the relative importance of each score component.
type Weights struct {
	Capability float64
	Relevance  float64
	Latency    float64
	Cost       float64
	Trust      float64
}

func (w Weights) total() float64 {
	return w.Capability + w.Relevance + w.Latency + w.Cost + w.Trust
}

// Thresholds decide when ranking prefers an empty answer.
type Thresholds struct {
	// MinCapabilityCoverage applies only when capabilities are required.
	MinCapabilityCoverage float64
	MinRelevance          float64
	// MinTotalScore is the bar the best candidate must clear.
	MinTotalScore float64
}

// Config parameterizes a Router.
type Config struct {
	Weights    Weights
	Thresholds Thresholds
	TopK       int
}

// ConfigFrom converts the application router section.
func ConfigFrom(rc config.RouterConfig) Config {
	w := rc.Weights
	return Config{
		Weights: Weights{
			Capability: w.Capability,
			Relevance:  w.Relevance,
			Latency:    w.Latency,
			Cost:       w.Cost,
			Trust:      w.Trust,
		},
		Thresholds: Thresholds{
			MinCapabilityCoverage: rc.MinCapabilityCoverage,
			MinRelevance:          rc.MinRelevance,
			MinTotalScore:         rc.MinTotalScore,
		},
		TopK: rc.TopK,
	}
}

// Router ranks candidates.
type Router struct {
	cfg    Config
	logger *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// DefaultTopK is used when a Config leaves TopK unset.
const DefaultTopK = 5

// New creates a router. A non-positive TopK becomes DefaultTopK.
func New(cfg Config, opts ...Option) *Router {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	r := &Router{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the router's configuration.
func (r *Router) Config() Config {
	return r.cfg
}

const (
	reasonEmptyCatalog = "The catalog has no apps to rank."
	reasonHardFilter   = "No apps satisfied the hard constraints (freshness/citations/budget/latency)."
	reasonRelax        = "Try relaxing constraints or adding more apps to the catalog."
	reasonRanked       = "Ranked apps by weighted capability coverage, relevance, trust, latency and cost."
)

type scored struct {
	entry  catalog.Entry
	scores Scores
	why    []string
}

// Rank filters, scores and orders candidates, returning at most k. A k of
// zero or less uses the configured TopK.
func (r *Router) Rank(req Request, candidates []Candidate, k int) Result {
	if k <= 0 {
		k = r.cfg.TopK
	}
	if k <= 0 {
		k = DefaultTopK
	}
	var res Result

	if len(candidates) == 0 {
		res.Reasons = []string{reasonEmptyCatalog}
		return res
	}

	filtered := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if reason := hardFilter(req.Constraints, c.Entry); reason != "" {
			res.Rejected = append(res.Rejected, Rejection{AppID: c.Entry.ID, Stage: StageHardFilter, Reason: reason})
			continue
		}
		filtered = append(filtered, c)
	}
	if len(filtered) == 0 {
		res.Reasons = []string{reasonHardFilter, reasonRelax}
		r.logger.Debug("no candidates passed hard filters", zap.Int("candidates", len(candidates)))
		return res
	}

	docs := make([]string, len(filtered))
	for i, c := range filtered {
		docs[i] = relevance.Document(c.Entry.Name, c.Entry.Description, catalog.Strings(c.Entry.Capabilities))
	}
	rel := relevance.Score(req.Task, docs)

	th := r.cfg.Thresholds
	requireCaps := len(req.RequiredCapabilities) > 0
	var lowCoverage, lowRelevance int
	survivors := make([]scored, 0, len(filtered))
	for i, c := range filtered {
		s := r.score(req, c, rel[i])
		if requireCaps && s.Capability < th.MinCapabilityCoverage {
			lowCoverage++
			res.Rejected = append(res.Rejected, Rejection{
				AppID:  c.Entry.ID,
				Stage:  StageThreshold,
				Reason: fmt.Sprintf("capability coverage %.2f below minimum %.2f", s.Capability, th.MinCapabilityCoverage),
			})
			continue
		}
		if s.Relevance < th.MinRelevance {
			lowRelevance++
			res.Rejected = append(res.Rejected, Rejection{
				AppID:  c.Entry.ID,
				Stage:  StageThreshold,
				Reason: fmt.Sprintf("relevance %.3f below minimum %.3f", s.Relevance, th.MinRelevance),
			})
			continue
		}
		survivors = append(survivors, scored{entry: c.Entry, scores: s, why: explain(req, c, s)})
	}

	if len(survivors) == 0 {
		if lowCoverage > 0 {
			res.Reasons = append(res.Reasons, fmt.Sprintf(
				"No candidate met the minimum capability coverage of %.2f for %v.",
				th.MinCapabilityCoverage, catalog.Strings(req.RequiredCapabilities)))
		}
		if lowRelevance > 0 {
			res.Reasons = append(res.Reasons, fmt.Sprintf(
				"No candidate met the minimum relevance of %.3f for the task.", th.MinRelevance))
		}
		return res
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].scores.Total == survivors[j].scores.Total {
			return survivors[i].entry.ID < survivors[j].entry.ID
		}
		return survivors[i].scores.Total > survivors[j].scores.Total
	})

	if top := survivors[0].scores.Total; top < th.MinTotalScore {
		res.Reasons = []string{fmt.Sprintf("No candidate cleared bar: top score %.3f is below the minimum %.3f.", top, th.MinTotalScore)}
		for _, s := range survivors {
			res.Rejected = append(res.Rejected, Rejection{AppID: s.entry.ID, Stage: StageBar, Reason: "below minimum total score"})
		}
		return res
	}

	if k > len(survivors) {
		k = len(survivors)
	}
	res.Ranked = make([]Ranked, 0, k)
	for _, s := range survivors[:k] {
		res.Ranked = append(res.Ranked, Ranked{Entry: s.entry, Scores: s.scores, Why: s.why})
	}
	res.Reasons = []string{reasonRanked}
	if ce := r.logger.Check(zap.DebugLevel, "ranked candidates"); ce != nil {
		ce.Write(
			zap.Int("candidates", len(candidates)),
			zap.Int("survivors", len(survivors)),
			zap.String("top", res.Ranked[0].Entry.ID),
			zap.Float64("top_score", res.Ranked[0].Scores.Total))
	}
	return res
}

func (r *Router) score(req Request, c Candidate, rel float64) Scores {
	cons := req.Constraints
	s := Scores{
		Capability: score.Coverage(req.RequiredCapabilities, c.Entry.Capabilities),
		Relevance:  score.Clamp01(rel),
		Latency:    score.LatencyScore(c.Entry.LatencyEstMs, cons.MaxLatencyMs),
		Cost:       score.CostScore(c.Entry.CostEstUSD, cons.MaxCostUSD),
		Trust:      score.Clamp01(c.Trust),
	}
	w := r.cfg.Weights
	if total := w.total(); total > 0 {
		sum := w.Capability*s.Capability +
			w.Relevance*s.Relevance +
			w.Latency*s.Latency +
			w.Cost*s.Cost +
			w.Trust*s.Trust
		s.Total = score.Clamp01(sum / total)
	}
	return s
}

// hardFilter returns a non-empty reason when e violates a constraint.
func hardFilter(c Constraints, e catalog.Entry) string {
	if c.Freshness != "" && e.Freshness != c.Freshness {
		return fmt.Sprintf("freshness %s does not match required %s", e.Freshness, c.Freshness)
	}
	if c.CitationsRequired && !e.CitationsSupported {
		return "citations required but not supported"
	}
	if c.MaxLatencyMs != nil && e.LatencyEstMs > *c.MaxLatencyMs {
		return fmt.Sprintf("latency %dms exceeds max %dms", e.LatencyEstMs, *c.MaxLatencyMs)
	}
	if c.MaxCostUSD != nil && e.CostEstUSD > *c.MaxCostUSD {
		return fmt.Sprintf("cost $%.4f exceeds max $%.4f", e.CostEstUSD, *c.MaxCostUSD)
	}
	return ""
}
