package router

import (
	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
)

// Constraints are the hard filters a shop request may carry.
type Constraints struct {
	CitationsRequired bool              `json:"citations_required"`
	Freshness         catalog.Freshness `json:"freshness,omitempty"`
	MaxLatencyMs      *int              `json:"max_latency_ms,omitempty"`
	MaxCostUSD        *float64          `json:"max_cost_usd,omitempty"`
}

// IsZero reports whether no constraint is set.
func (c Constraints) IsZero() bool {
	return !c.CitationsRequired && c.Freshness == "" && c.MaxLatencyMs == nil && c.MaxCostUSD == nil
}

// Request is one ranking query.
type Request struct {
	Task                 string               `json:"task"`
	RequiredCapabilities []catalog.Capability `json:"required_capabilities"`
	Constraints          Constraints          `json:"constraints"`
}

// Candidate is a catalog entry paired with its current trust score.
type Candidate struct {
	Entry catalog.Entry
	Trust float64
}

// Scores holds the normalized components and the weighted composite.
type Scores struct {
	Capability float64 `json:"capability"`
	Relevance  float64 `json:"relevance"`
	Latency    float64 `json:"latency"`
	Cost       float64 `json:"cost"`
	Trust      float64 `json:"trust"`
	Total      float64 `json:"total"`
}

// Ranked is a candidate that survived filtering and thresholds.
type Ranked struct {
	Entry  catalog.Entry `json:"app"`
	Scores Scores        `json:"scores"`
	Why    []string      `json:"why"`
}

// Rejection records why a candidate was dropped.
type Rejection struct {
	AppID  string `json:"app_id"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Rejection stages.
const (
	StageHardFilter = "hard_filter"
	StageThreshold  = "threshold"
	StageBar        = "bar"
)

// Result is the outcome of a ranking call. Ranked is empty whenever no
// candidate should be recommended, and Reasons then says why.
type Result struct {
	Ranked   []Ranked    `json:"ranked"`
	Reasons  []string    `json:"reasons"`
	Rejected []Rejection `json:"rejected,omitempty"`
}

// Empty reports whether nothing was ranked.
func (r Result) Empty() bool {
	return len(r.Ranked) == 0
}
