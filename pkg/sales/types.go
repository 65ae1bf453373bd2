package sales

import (
	"fmt"
	"strings"

	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
	"github.com/ujjwalredd/Axiomeer/pkg/history"
	"github.com/ujjwalredd/Axiomeer/pkg/router"
)

// NoMatch is the final choice that declines to recommend anything.
const NoMatch = "NO_MATCH"

// Candidate is the view of a ranked app the agent is allowed to see.
type Candidate struct {
	AppID              string   `json:"app_id"`
	Name               string   `json:"name"`
	Description        string   `json:"description,omitempty"`
	Capabilities       []string `json:"capabilities"`
	Freshness          string   `json:"freshness,omitempty"`
	CitationsSupported bool     `json:"citations_supported"`
	LatencyEstMs       int      `json:"latency_est_ms"`
	CostEstUSD         float64  `json:"cost_est_usd"`
	TrustScore         float64  `json:"trust_score"`
	RelevanceScore     float64  `json:"relevance_score"`
	Score              float64  `json:"score"`
	Why                []string `json:"why,omitempty"`
}

// CandidateFrom converts a router result.
func CandidateFrom(r router.Ranked) Candidate {
	return Candidate{
		AppID:              r.Entry.ID,
		Name:               r.Entry.Name,
		Description:        r.Entry.Description,
		Capabilities:       catalog.Strings(r.Entry.Capabilities),
		Freshness:          string(r.Entry.Freshness),
		CitationsSupported: r.Entry.CitationsSupported,
		LatencyEstMs:       r.Entry.LatencyEstMs,
		CostEstUSD:         r.Entry.CostEstUSD,
		TrustScore:         r.Scores.Trust,
		RelevanceScore:     r.Scores.Relevance,
		Score:              r.Scores.Total,
		Why:                r.Why,
	}
}

// compactCandidate drops scores and prose for the strict retry.
type compactCandidate struct {
	AppID              string   `json:"app_id"`
	Name               string   `json:"name"`
	Capabilities       []string `json:"capabilities"`
	Freshness          string   `json:"freshness,omitempty"`
	CitationsSupported bool     `json:"citations_supported"`
	LatencyEstMs       int      `json:"latency_est_ms"`
	CostEstUSD         float64  `json:"cost_est_usd"`
}

func compactCandidates(cands []Candidate) []compactCandidate {
	out := make([]compactCandidate, len(cands))
	for i, c := range cands {
		out[i] = compactCandidate{
			AppID:              c.AppID,
			Name:               c.Name,
			Capabilities:       c.Capabilities,
			Freshness:          c.Freshness,
			CitationsSupported: c.CitationsSupported,
			LatencyEstMs:       c.LatencyEstMs,
			CostEstUSD:         c.CostEstUSD,
		}
	}
	return out
}

// rationale summarizes what a candidate offers.
func (c Candidate) rationale() string {
	var bits []string
	if len(c.Capabilities) > 0 {
		bits = append(bits, "Capabilities: "+strings.Join(c.Capabilities, ", "))
	}
	if c.Freshness != "" {
		bits = append(bits, "Freshness: "+c.Freshness)
	}
	if c.CitationsSupported {
		bits = append(bits, "Supports citations")
	}
	return strings.Join(bits, "; ")
}

// tradeoff summarizes what a candidate costs.
func (c Candidate) tradeoff() string {
	return fmt.Sprintf("Estimated latency: %dms; Estimated cost: $%.4f", c.LatencyEstMs, c.CostEstUSD)
}

// Request is one selection query.
type Request struct {
	Task          string
	Constraints   router.Constraints
	Candidates    []Candidate
	RequestedCaps []string
	History       []history.Message
}

func (r Request) allowedIDs() []string {
	ids := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		if c.AppID != "" {
			ids = append(ids, c.AppID)
		}
	}
	return ids
}

// Recommendation is one pick with grounded justification.
type Recommendation struct {
	AppID     string `json:"app_id"`
	Rationale string `json:"rationale"`
	Tradeoff  string `json:"tradeoff"`
}

// Result is a validated agent answer. FinalChoice is either NoMatch with
// no recommendations, or the id of one of the recommendations.
type Result struct {
	Summary         string           `json:"summary"`
	FinalChoice     string           `json:"final_choice"`
	Recommendations []Recommendation `json:"recommendations"`
	// Stage names the pipeline step that produced the answer.
	Stage string `json:"-"`
}

// IsNoMatch reports whether the agent declined.
func (r *Result) IsNoMatch() bool {
	return r != nil && r.FinalChoice == NoMatch
}

// schema is the shape every answer must take.
var schema = map[string]any{
	"summary":      "string",
	"final_choice": "string",
	"recommendations": []map[string]string{
		{"app_id": "string", "rationale": "string", "tradeoff": "string"},
	},
}

var noMatchSchema = map[string]string{"message": "string"}
