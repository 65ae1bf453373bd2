package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParseCapabilities(t *testing.T) {
	caps, err := ParseCapabilities([]string{" Weather", "realtime", "weather", ""})
	require.NoError(t, err)
	assert.Equal(t, []Capability{CapWeather, CapRealtime}, caps)

	caps, err = ParseCapabilities([]string{"weather", "astrology"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "astrology")
	assert.Equal(t, []Capability{CapWeather}, caps)
}

func TestFilterCapabilities(t *testing.T) {
	got := FilterCapabilities([]string{"MATH", "poetry", "math", "coding"})
	assert.Equal(t, []Capability{CapMath, CapCoding}, got)
}

func TestEntryValidate(t *testing.T) {
	valid := Entry{ID: "a", Name: "A", Freshness: FreshnessStatic, LatencyEstMs: 10}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Entry)
	}{
		{"missing id", func(e *Entry) { e.ID = "" }},
		{"bad freshness", func(e *Entry) { e.Freshness = "weekly" }},
		{"unknown capability", func(e *Entry) { e.Capabilities = []Capability{"astrology"} }},
		{"zero latency", func(e *Entry) { e.LatencyEstMs = 0 }},
		{"negative cost", func(e *Entry) { e.CostEstUSD = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			assert.Error(t, e.Validate())
		})
	}
}

func TestManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "calc.json"), `{"id":"calc","capabilities":["math"],"executor_url":"http://x/calc","http_method":"post"}`)

	e, err := LoadManifest(filepath.Join(dir, "calc.json"))
	require.NoError(t, err)
	assert.Equal(t, "calc", e.Name)
	assert.Equal(t, FreshnessStatic, e.Freshness)
	assert.True(t, e.CitationsSupported)
	assert.Equal(t, 500, e.LatencyEstMs)
	assert.Equal(t, 0.0, e.CostEstUSD)
	assert.Equal(t, ExecutorHTTP, e.Executor.Type)
	assert.Equal(t, "POST", e.Executor.Method)
}

func TestLoadManifestsReportsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.json"), `{"id":"a","name":"A","capabilities":["weather"]}`)
	writeFile(t, filepath.Join(dir, "b.json"), `{"name":"no id"}`)
	writeFile(t, filepath.Join(dir, "notes.txt"), `ignored`)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "categories", "finance"), 0o755))
	writeFile(t, filepath.Join(dir, "categories", "finance", "fx.yaml"), "id: fx\nname: FX\ncapabilities: [finance, realtime]\nfreshness: realtime\n")

	entries, failures, err := LoadManifests(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "fx", entries[1].ID)
	require.Len(t, failures, 1)
	var me *ManifestError
	require.ErrorAs(t, failures[0], &me)
	assert.Equal(t, "b.json", filepath.Base(me.Path))
}

func TestBootstrapIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wx.json")
	writeFile(t, path, `{"id":"wx","name":"Weather","capabilities":["weather"],"latency_est_ms":900}`)

	store := NewMemoryStore()
	ctx := context.Background()
	n, err := Bootstrap(ctx, store, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	writeFile(t, path, `{"id":"wx","name":"Weather v2","capabilities":["weather","realtime"],"latency_est_ms":300}`)
	_, err = Bootstrap(ctx, store, dir, nil)
	require.NoError(t, err)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Weather v2", all[0].Name)
	assert.Equal(t, 300, all[0].LatencyEstMs)
	assert.Equal(t, []Capability{CapWeather, CapRealtime}, all[0].Capabilities)
}

func TestBootstrapMissingDir(t *testing.T) {
	n, err := Bootstrap(context.Background(), NewMemoryStore(), filepath.Join(t.TempDir(), "nope"), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStoreCreateConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(Entry{ID: "a"})
	assert.ErrorIs(t, s.Create(ctx, Entry{ID: "a"}), ErrExists)
	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRepositoryManifestsLoad(t *testing.T) {
	entries, failures, err := LoadManifests(context.Background(), filepath.Join("..", "..", "manifests"))
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, entries, 4)

	byID := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	assert.Equal(t, "POST", byID["calculator"].Executor.Method)
	assert.Equal(t, FreshnessDaily, byID["exchangerate"].Freshness)
	assert.Equal(t, 400, byID["exchangerate"].LatencyEstMs)
	assert.True(t, byID["wikipedia"].CitationsSupported)
	assert.Equal(t, ExecutorHTTP, byID["wikipedia"].Executor.Type)
	assert.Equal(t, "GET", byID["wikipedia"].Executor.Method)
}
