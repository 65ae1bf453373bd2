package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Manifest is the declarative file form of a catalog entry. JSON manifests
// decode through the YAML decoder since YAML is a superset of JSON.
type Manifest struct {
	ID                 string         `yaml:"id"`
	Name               string         `yaml:"name"`
	Description        string         `yaml:"description"`
	Capabilities       []string       `yaml:"capabilities"`
	Freshness          string         `yaml:"freshness"`
	CitationsSupported *bool          `yaml:"citations_supported"`
	LatencyEstMs       *int           `yaml:"latency_est_ms"`
	CostEstUSD         *float64       `yaml:"cost_est_usd"`
	ExecutorType       string         `yaml:"executor_type"`
	ExecutorURL        string         `yaml:"executor_url"`
	HTTPMethod         string         `yaml:"http_method"`
	InputSchema        map[string]any `yaml:"input_schema"`
}

// Entry converts the manifest to a validated catalog entry, applying the
// manifest defaults for omitted fields.
func (m Manifest) Entry() (Entry, error) {
	caps, err := ParseCapabilities(m.Capabilities)
	if err != nil {
		return Entry{}, fmt.Errorf("app %s: %w", m.ID, err)
	}
	e := Entry{
		ID:                 m.ID,
		Name:               m.Name,
		Description:        m.Description,
		Capabilities:       caps,
		Freshness:          Freshness(m.Freshness),
		CitationsSupported: true,
		LatencyEstMs:       500,
		CostEstUSD:         0,
		Executor: Executor{
			Type:        m.ExecutorType,
			Method:      m.HTTPMethod,
			URL:         strings.TrimSpace(m.ExecutorURL),
			InputSchema: m.InputSchema,
		},
	}
	if m.CitationsSupported != nil {
		e.CitationsSupported = *m.CitationsSupported
	}
	if m.LatencyEstMs != nil {
		e.LatencyEstMs = *m.LatencyEstMs
	}
	if m.CostEstUSD != nil {
		e.CostEstUSD = *m.CostEstUSD
	}
	if strings.TrimSpace(e.Name) == "" {
		e.Name = e.ID
	}
	e.Normalize()
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// ManifestError records a manifest file that could not be loaded.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// ManifestPaths returns manifest files in dir and dir/categories/*/, sorted.
func ManifestPaths(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*", filepath.Join("categories", "*", "*")} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		for _, p := range matches {
			switch strings.ToLower(filepath.Ext(p)) {
			case ".json", ".yaml", ".yml":
				paths = append(paths, p)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadManifest reads a single manifest file.
func LoadManifest(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Entry{}, err
	}
	if strings.TrimSpace(m.ID) == "" {
		return Entry{}, fmt.Errorf("missing id")
	}
	return m.Entry()
}

// LoadManifests decodes every manifest under dir. Files that fail are
// reported as ManifestErrors and do not stop the others from loading.
// Entries are returned in path order.
func LoadManifests(ctx context.Context, dir string) ([]Entry, []error, error) {
	paths, err := ManifestPaths(dir)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]*Entry, len(paths))
	failures := make([]error, len(paths))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, path := range paths {
		g.Go(func() error {
			e, err := LoadManifest(path)
			if err != nil {
				failures[i] = &ManifestError{Path: path, Err: err}
				return nil
			}
			entries[i] = &e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var out []Entry
	var errs []error
	for i := range paths {
		if failures[i] != nil {
			errs = append(errs, failures[i])
			continue
		}
		out = append(out, *entries[i])
	}
	return out, errs, nil
}

// Bootstrap upserts every manifest under dir into store. Re-running it with
// the same files leaves one row per id holding the latest manifest values.
func Bootstrap(ctx context.Context, store Store, dir string, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			logger.Debug("manifest directory missing", zap.String("dir", dir))
			return 0, nil
		}
		return 0, err
	}

	entries, failures, err := LoadManifests(ctx, dir)
	if err != nil {
		return 0, err
	}
	for _, f := range failures {
		logger.Warn("skipping manifest", zap.Error(f))
	}

	loaded := 0
	for _, e := range entries {
		if err := store.Upsert(ctx, e); err != nil {
			return loaded, fmt.Errorf("upsert %s: %w", e.ID, err)
		}
		loaded++
	}
	logger.Info("catalog bootstrapped", zap.String("dir", dir), zap.Int("apps", loaded), zap.Int("skipped", len(failures)))
	return loaded, nil
}
