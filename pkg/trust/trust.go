// Package trust derives per-app reliability scores from the run ledger.
// Snapshots are recomputed from the full record log on every call; nothing
// is cached or incrementally updated.
package trust

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/ujjwalredd/Axiomeer/pkg/ledger"
	"github.com/ujjwalredd/Axiomeer/pkg/score"
)

// Neutral is the trust assigned to apps without run history.
const Neutral = 0.5

const (
	weightSuccess  = 0.5
	weightCitation = 0.3
	weightLatency  = 0.2
)

// Snapshot summarizes an app's execution history.
type Snapshot struct {
	AppID            string     `json:"app_id"`
	TotalRuns        int        `json:"total_runs"`
	SuccessRate      float64    `json:"success_rate"`
	CitationPassRate float64    `json:"citation_pass_rate"`
	AvgLatencyMs     *int       `json:"avg_latency_ms"`
	P95LatencyMs     *int       `json:"p95_latency_ms"`
	LastRunAt        *time.Time `json:"last_run_at"`
	TrustScore       float64    `json:"trust_score"`
	InsufficientData bool       `json:"insufficient_data"`
}

// Compute builds a snapshot for appID from its runs. Records for other apps
// are ignored.
func Compute(appID string, runs []ledger.Record) Snapshot {
	snap := Snapshot{AppID: appID}

	var (
		total, ok        int
		citeTotal, citeOK int
		latencies        []int
		last             time.Time
	)
	for _, r := range runs {
		if r.AppID != appID {
			continue
		}
		total++
		if r.OK {
			ok++
		}
		if r.RequireCitations {
			citeTotal++
			if r.OK {
				citeOK++
			}
		}
		if r.LatencyMs != nil {
			latencies = append(latencies, *r.LatencyMs)
		}
		if r.CreatedAt.After(last) {
			last = r.CreatedAt
		}
	}

	snap.TotalRuns = total
	if total == 0 {
		snap.TrustScore = Neutral
		snap.InsufficientData = true
		return snap
	}

	snap.SuccessRate = score.Round4(float64(ok) / float64(total))
	snap.CitationPassRate = snap.SuccessRate
	if citeTotal > 0 {
		snap.CitationPassRate = score.Round4(float64(citeOK) / float64(citeTotal))
	}
	if !last.IsZero() {
		ts := last
		snap.LastRunAt = &ts
	}

	latencyScore := Neutral
	if len(latencies) > 0 {
		avg := mean(latencies)
		p95, _ := Percentile95(latencies)
		snap.AvgLatencyMs = &avg
		snap.P95LatencyMs = &p95
		latencyScore = score.LatencyScore(avg, nil)
	}

	trust := weightSuccess*snap.SuccessRate +
		weightCitation*snap.CitationPassRate +
		weightLatency*latencyScore
	snap.TrustScore = score.Round4(score.Clamp01(trust))
	return snap
}

// Percentile95 returns the value at index round(0.95*(n-1)) of the sorted
// latencies. The input slice is not modified.
func Percentile95(values []int) (int, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	idx := int(math.Round(0.95 * float64(len(sorted)-1)))
	return sorted[idx], true
}

func mean(values []int) int {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return sum / len(values)
}

// ByApp groups records and computes a snapshot per app seen in runs.
func ByApp(runs []ledger.Record) map[string]Snapshot {
	grouped := make(map[string][]ledger.Record)
	for _, r := range runs {
		grouped[r.AppID] = append(grouped[r.AppID], r)
	}
	out := make(map[string]Snapshot, len(grouped))
	for appID, rs := range grouped {
		out[appID] = Compute(appID, rs)
	}
	return out
}

// Aggregator reads the ledger and computes snapshots on demand.
type Aggregator struct {
	runs ledger.Reader
}

// NewAggregator creates an aggregator over the given ledger.
func NewAggregator(runs ledger.Reader) *Aggregator {
	return &Aggregator{runs: runs}
}

// Snapshot computes the current snapshot for one app.
func (a *Aggregator) Snapshot(ctx context.Context, appID string) (Snapshot, error) {
	runs, err := a.runs.ListForApp(ctx, appID)
	if err != nil {
		return Snapshot{}, err
	}
	return Compute(appID, runs), nil
}

// All computes snapshots for every app with at least one run. Apps missing
// from the result should be treated as Compute(id, nil).
func (a *Aggregator) All(ctx context.Context) (map[string]Snapshot, error) {
	runs, err := a.runs.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return ByApp(runs), nil
}

// Lookup returns the snapshot for appID from a precomputed map, falling back
// to the neutral snapshot.
func Lookup(snaps map[string]Snapshot, appID string) Snapshot {
	if s, ok := snaps[appID]; ok {
		return s
	}
	return Compute(appID, nil)
}
