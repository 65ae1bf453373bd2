package trust

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujjwalredd/Axiomeer/pkg/ledger"
)

func ms(v int) *int { return &v }

func TestZeroRunsIsNeutral(t *testing.T) {
	snap := Compute("fresh", nil)
	assert.Equal(t, 0.5, snap.TrustScore)
	assert.True(t, snap.InsufficientData)
	assert.Zero(t, snap.TotalRuns)
	assert.Nil(t, snap.AvgLatencyMs)
	assert.Nil(t, snap.LastRunAt)
}

func TestPercentile95(t *testing.T) {
	p95, ok := Percentile95([]int{500, 100, 400, 200, 300})
	require.True(t, ok)
	assert.Equal(t, 500, p95)

	_, ok = Percentile95(nil)
	assert.False(t, ok)
}

func TestComputeBlendsComponents(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	runs := []ledger.Record{
		{AppID: "a", OK: true, RequireCitations: true, LatencyMs: ms(500), CreatedAt: now.Add(-time.Hour)},
		{AppID: "a", OK: false, RequireCitations: true, LatencyMs: ms(500), CreatedAt: now},
		{AppID: "a", OK: true, RequireCitations: false, CreatedAt: now.Add(-2 * time.Hour)},
		{AppID: "other", OK: false},
	}
	snap := Compute("a", runs)

	assert.Equal(t, 3, snap.TotalRuns)
	assert.InDelta(t, 0.6667, snap.SuccessRate, 1e-4)
	assert.InDelta(t, 0.5, snap.CitationPassRate, 1e-9)
	require.NotNil(t, snap.AvgLatencyMs)
	assert.Equal(t, 500, *snap.AvgLatencyMs)
	assert.Equal(t, 500, *snap.P95LatencyMs)
	require.NotNil(t, snap.LastRunAt)
	assert.Equal(t, now, *snap.LastRunAt)
	assert.False(t, snap.InsufficientData)

	// 0.5*0.6667 + 0.3*0.5 + 0.2*(1/(1+500/500))
	assert.InDelta(t, 0.5*0.6667+0.15+0.1, snap.TrustScore, 1e-4)
}

func TestCitationRateFallsBackToSuccessRate(t *testing.T) {
	snap := Compute("a", []ledger.Record{{AppID: "a", OK: true}, {AppID: "a", OK: false}})
	assert.Equal(t, snap.SuccessRate, snap.CitationPassRate)
	// no latency data: latency component is neutral
	assert.InDelta(t, 0.5*0.5+0.3*0.5+0.2*0.5, snap.TrustScore, 1e-9)
}

func TestTrustStaysInUnitInterval(t *testing.T) {
	var runs []ledger.Record
	for i := 0; i < 50; i++ {
		runs = append(runs, ledger.Record{AppID: "a", OK: i%3 != 0, RequireCitations: i%2 == 0, LatencyMs: ms(i * 37)})
		snap := Compute("a", runs)
		assert.GreaterOrEqual(t, snap.TrustScore, 0.0)
		assert.LessOrEqual(t, snap.TrustScore, 1.0)
	}
}

func TestAggregatorReadsLedger(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory()
	_, err := l.Append(ctx, ledger.Record{AppID: "a", OK: true, LatencyMs: ms(100)})
	require.NoError(t, err)

	agg := NewAggregator(l)
	snap, err := agg.Snapshot(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TotalRuns)

	all, err := agg.All(ctx)
	require.NoError(t, err)
	assert.Contains(t, all, "a")
	assert.True(t, Lookup(all, "unseen").InsufficientData)
}
