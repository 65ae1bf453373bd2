package sales

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujjwalredd/Axiomeer/pkg/adapter"
	"github.com/ujjwalredd/Axiomeer/pkg/history"
)

const garbage = "Sorry, I cannot help with that."

func testCandidates() []Candidate {
	return []Candidate{
		{
			AppID:              "weather_rt",
			Name:               "Realtime Weather",
			Capabilities:       []string{"weather", "realtime", "citations"},
			Freshness:          "realtime",
			CitationsSupported: true,
			LatencyEstMs:       800,
		},
		{
			AppID:        "weather_static",
			Name:         "Static Weather",
			Capabilities: []string{"weather"},
			Freshness:    "static",
			LatencyEstMs: 100,
			CostEstUSD:   0.002,
		},
		{
			AppID:        "finance_quotes",
			Name:         "Finance Quotes",
			Capabilities: []string{"finance"},
			Freshness:    "daily",
			LatencyEstMs: 300,
		},
	}
}

func testRequest() Request {
	return Request{
		Task:          "weather in Paris right now",
		Candidates:    testCandidates(),
		RequestedCaps: []string{"weather", "realtime"},
		History:       []history.Message{{Role: history.RoleClient, Content: "hi"}},
	}
}

const validAnswer = `{"summary":"Realtime weather fits.","final_choice":"weather_rt","recommendations":[` +
	`{"app_id":"weather_rt","rationale":"realtime data","tradeoff":"slower"},` +
	`{"app_id":"weather_static","rationale":"cheap","tradeoff":"stale"}]}`

func recommend(t *testing.T, script ...string) (*Result, *adapter.MockAdapter, error) {
	t.Helper()
	a := adapter.NewScriptedAdapter(script...)
	res, err := New(a, "mock-1").Recommend(context.Background(), testRequest())
	return res, a, err
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProtocol), "not a protocol error: %v", err)
	var pe *ProtocolError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, code, pe.Code)
}

func TestRecommendPrimary(t *testing.T) {
	res, a, err := recommend(t, validAnswer)
	require.NoError(t, err)
	assert.Equal(t, StagePrimary, res.Stage)
	assert.Equal(t, "weather_rt", res.FinalChoice)
	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, "weather_static", res.Recommendations[1].AppID)

	calls := a.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], `ALLOWED_APP_IDS:`+"\n"+`["weather_rt","weather_static","finance_quotes"]`)
	assert.Contains(t, calls[0], `REQUESTED_CAPABILITIES:`+"\n"+`["weather","realtime"]`)
	assert.Contains(t, calls[0], `"content":"hi"`)
}

func TestRecommendTolerantParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "prose around json", raw: "Here you go:\n```json\n" + validAnswer + "\n```\nThanks!"},
		{name: "trailing commas", raw: `{"summary":"ok","final_choice":"weather_rt","recommendations":[{"app_id":"weather_rt","rationale":"r","tradeoff":"t",},],}`},
		{name: "single quotes", raw: `{'summary': 'ok', 'final_choice': 'weather_rt', 'recommendations': [{'app_id': 'weather_rt', 'rationale': 'r', 'tradeoff': 't'}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, a, err := recommend(t, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, StagePrimary, res.Stage)
			assert.Equal(t, "weather_rt", res.FinalChoice)
			assert.Len(t, a.Calls(), 1)
		})
	}
}

func TestRecommendStrictRetry(t *testing.T) {
	res, a, err := recommend(t, garbage, validAnswer)
	require.NoError(t, err)
	assert.Equal(t, StageStrict, res.Stage)

	calls := a.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1], "No extra text, no markdown")
	assert.NotContains(t, calls[1], `"trust_score"`)
}

func TestRecommendJSONRepair(t *testing.T) {
	res, a, err := recommend(t, garbage, garbage, validAnswer)
	require.NoError(t, err)
	assert.Equal(t, StageJSONRepair, res.Stage)
	calls := a.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[2], "You are a JSON repair tool")
	assert.Contains(t, calls[2], "INPUT:\n"+garbage)
}

func TestRecommendInvalidJSONAfterAllStages(t *testing.T) {
	_, a, err := recommend(t, garbage, garbage, garbage)
	requireCode(t, err, CodeInvalidJSON)
	assert.Len(t, a.Calls(), 3)
}

func TestRecommendResolvesParaphrasedIDs(t *testing.T) {
	tests := []struct {
		name  string
		appID string
	}{
		{name: "case", appID: "WEATHER_RT"},
		{name: "contained id", appID: "the weather_rt app"},
		{name: "display name", appID: "Realtime Weather"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"summary":"s","final_choice":"` + tt.appID + `","recommendations":[{"app_id":"` + tt.appID + `","rationale":"r","tradeoff":"t"}]}`
			res, _, err := recommend(t, raw)
			require.NoError(t, err)
			assert.Equal(t, "weather_rt", res.FinalChoice)
			assert.Equal(t, "weather_rt", res.Recommendations[0].AppID)
		})
	}
}

func TestRecommendSalesRepair(t *testing.T) {
	bad := `{"summary":"s","final_choice":"acme_weather","recommendations":[{"app_id":"acme_weather","rationale":"r","tradeoff":"t"}]}`
	res, a, err := recommend(t, bad, validAnswer)
	require.NoError(t, err)
	assert.Equal(t, StageSalesRepair, res.Stage)
	calls := a.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1], "Issue found: "+CodeInvalidAppID)
	assert.Contains(t, calls[1], "INPUT:\n"+bad)
}

func TestRecommendSalesRepairFails(t *testing.T) {
	bad := `{"summary":"s","final_choice":"acme","recommendations":[{"app_id":"acme","rationale":"r","tradeoff":"t"}]}`
	_, _, err := recommend(t, bad, bad)
	requireCode(t, err, CodeInvalidAppID)
}

func TestRecommendInvariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		code string
	}{
		{name: "missing summary", raw: `{"final_choice":"weather_rt","recommendations":[{"app_id":"weather_rt"}]}`, code: CodeInvalidSummary},
		{name: "no match with picks", raw: `{"summary":"s","final_choice":"NO_MATCH","recommendations":[{"app_id":"weather_rt"}]}`, code: CodeNoMatchWithRecommendations},
		{name: "empty picks", raw: `{"summary":"s","final_choice":"weather_rt","recommendations":[]}`, code: CodeMissingRecommendations},
		{
			name: "too many",
			raw:  `{"summary":"s","final_choice":"weather_rt","recommendations":[{"app_id":"weather_rt"},{"app_id":"weather_static"},{"app_id":"finance_quotes"},{"app_id":"weather_rt"}]}`,
			code: CodeTooManyRecommendations,
		},
		{name: "duplicate", raw: `{"summary":"s","final_choice":"weather_rt","recommendations":[{"app_id":"weather_rt"},{"app_id":"WEATHER_RT"}]}`, code: CodeDuplicateAppID},
		{name: "entry not object", raw: `{"summary":"s","final_choice":"weather_rt","recommendations":["weather_rt"]}`, code: CodeInvalidRecommendationEntry},
		{name: "recommendations not list", raw: `{"summary":"s","final_choice":"weather_rt","recommendations":"weather_rt"}`, code: CodeInvalidRecommendations},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, a, err := recommend(t, tt.raw, garbage)
			requireCode(t, err, tt.code)
			assert.Len(t, a.Calls(), 2)
		})
	}
}

func TestRecommendNoMatch(t *testing.T) {
	res, _, err := recommend(t, `{"summary":"Nothing covers stock prices.","final_choice":"NO_MATCH","recommendations":[]}`)
	require.NoError(t, err)
	assert.True(t, res.IsNoMatch())
	assert.Empty(t, res.Recommendations)
	assert.NotNil(t, res.Recommendations)
}

func TestRecommendFinalChoiceCorrection(t *testing.T) {
	tests := []struct {
		name   string
		choice string
		want   string
	}{
		{name: "not recommended", choice: `"finance_quotes"`, want: "weather_static"},
		{name: "unknown", choice: `"acme"`, want: "weather_static"},
		{name: "object", choice: `{"app_id":"weather_rt"}`, want: "weather_rt"},
		{name: "single value object", choice: `{"pick":"weather_rt"}`, want: "weather_rt"},
		{name: "singleton list", choice: `["weather_rt"]`, want: "weather_rt"},
		{name: "missing", choice: `null`, want: "weather_static"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"summary":"s","final_choice":` + tt.choice + `,"recommendations":[` +
				`{"app_id":"weather_static","rationale":"r","tradeoff":"t"},` +
				`{"app_id":"weather_rt","rationale":"r","tradeoff":"t"}]}`
			res, _, err := recommend(t, raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.FinalChoice)
		})
	}
}

func TestRecommendBackfillsRationaleAndTradeoff(t *testing.T) {
	res, _, err := recommend(t, `{"summary":"s","final_choice":"weather_rt","recommendations":[{"app_id":"weather_rt","rationale":" "}]}`)
	require.NoError(t, err)
	rec := res.Recommendations[0]
	assert.Equal(t, "Capabilities: weather, realtime, citations; Freshness: realtime; Supports citations", rec.Rationale)
	assert.Equal(t, "Estimated latency: 800ms; Estimated cost: $0.0000", rec.Tradeoff)
}

func TestRecommendLLMUnreachable(t *testing.T) {
	cause := &adapter.Error{Backend: "ollama", Kind: adapter.KindConnectivity, Err: errors.New("connection refused")}
	a := adapter.NewFailingAdapter(cause)
	_, err := New(a, "mock-1").Recommend(context.Background(), testRequest())
	requireCode(t, err, CodeUnreachable)

	var ae *adapter.Error
	assert.True(t, errors.As(err, &ae))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRecommendNoCandidates(t *testing.T) {
	a := adapter.NewScriptedAdapter(validAnswer)
	_, err := New(a, "mock-1").Recommend(context.Background(), Request{Task: "x"})
	requireCode(t, err, CodeNoCandidates)
	assert.Empty(t, a.Calls())
}

func TestNoMatchMessage(t *testing.T) {
	a := adapter.NewScriptedAdapter(`{"message": " Add a finance app. "}`)
	msg, err := New(a, "mock-1").NoMatchMessage(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Add a finance app.", msg)

	a = adapter.NewScriptedAdapter(garbage, `{"note":"x"}`)
	_, err = New(a, "mock-1").NoMatchMessage(context.Background(), testRequest())
	requireCode(t, err, CodeInvalidNoMatchMessage)
}

func TestResolverAmbiguity(t *testing.T) {
	r := newResolver([]Candidate{
		{AppID: "weather", Name: "Weather Basic"},
		{AppID: "weather_rt", Name: "Weather RT"},
		{AppID: "news_a", Name: "Daily News"},
		{AppID: "news_b", Name: "daily-news"},
		{AppID: "fx_1", Name: "Currency Exchange"},
	})

	id, ok := r.resolve("weather_rt")
	assert.True(t, ok)
	assert.Equal(t, "weather_rt", id)

	_, ok = r.resolve("my weather_rt pick")
	assert.False(t, ok, "both ids are contained, so the substring rule must not guess")

	id, ok = r.resolve("weather rt")
	assert.True(t, ok)
	assert.Equal(t, "weather", id, "a contained id wins before name matching")

	id, ok = r.resolve("currency-exchange")
	assert.True(t, ok)
	assert.Equal(t, "fx_1", id)

	_, ok = r.resolve("Daily News")
	assert.False(t, ok, "colliding names are dropped")

	_, ok = r.resolve(42.0)
	assert.False(t, ok)
}
