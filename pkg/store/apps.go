package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
)

type appRow struct {
	ID                 string         `db:"id"`
	Name               string         `db:"name"`
	Description        string         `db:"description"`
	Capabilities       string         `db:"capabilities"`
	Freshness          string         `db:"freshness"`
	CitationsSupported bool           `db:"citations_supported"`
	LatencyEstMs       int            `db:"latency_est_ms"`
	CostEstUSD         float64        `db:"cost_est_usd"`
	ExecutorType       string         `db:"executor_type"`
	ExecutorMethod     string         `db:"executor_method"`
	ExecutorURL        string         `db:"executor_url"`
	InputSchema        sql.NullString `db:"input_schema"`
}

const appColumns = `id, name, description, capabilities, freshness, citations_supported,
	latency_est_ms, cost_est_usd, executor_type, executor_method, executor_url, input_schema`

func toAppRow(e catalog.Entry) (appRow, error) {
	caps := catalog.Strings(e.Capabilities)
	if caps == nil {
		caps = []string{}
	}
	capsJSON, err := json.Marshal(caps)
	if err != nil {
		return appRow{}, fmt.Errorf("encode capabilities: %w", err)
	}
	row := appRow{
		ID:                 e.ID,
		Name:               e.Name,
		Description:        e.Description,
		Capabilities:       string(capsJSON),
		Freshness:          string(e.Freshness),
		CitationsSupported: e.CitationsSupported,
		LatencyEstMs:       e.LatencyEstMs,
		CostEstUSD:         e.CostEstUSD,
		ExecutorType:       e.Executor.Type,
		ExecutorMethod:     e.Executor.Method,
		ExecutorURL:        e.Executor.URL,
	}
	if e.Executor.InputSchema != nil {
		schema, err := json.Marshal(e.Executor.InputSchema)
		if err != nil {
			return appRow{}, fmt.Errorf("encode input schema: %w", err)
		}
		row.InputSchema = sql.NullString{String: string(schema), Valid: true}
	}
	return row, nil
}

func (r appRow) entry() (catalog.Entry, error) {
	var caps []string
	if err := json.Unmarshal([]byte(r.Capabilities), &caps); err != nil {
		return catalog.Entry{}, fmt.Errorf("app %s: decode capabilities: %w", r.ID, err)
	}
	e := catalog.Entry{
		ID:                 r.ID,
		Name:               r.Name,
		Description:        r.Description,
		Capabilities:       toCapabilities(caps),
		Freshness:          catalog.Freshness(r.Freshness),
		CitationsSupported: r.CitationsSupported,
		LatencyEstMs:       r.LatencyEstMs,
		CostEstUSD:         r.CostEstUSD,
		Executor: catalog.Executor{
			Type:   r.ExecutorType,
			Method: r.ExecutorMethod,
			URL:    r.ExecutorURL,
		},
	}
	if r.InputSchema.Valid && r.InputSchema.String != "" {
		if err := json.Unmarshal([]byte(r.InputSchema.String), &e.Executor.InputSchema); err != nil {
			return catalog.Entry{}, fmt.Errorf("app %s: decode input schema: %w", r.ID, err)
		}
	}
	return e, nil
}

// List returns all apps ordered by id.
func (s *Store) List(ctx context.Context) ([]catalog.Entry, error) {
	var rows []appRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+appColumns+` FROM apps ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	out := make([]catalog.Entry, 0, len(rows))
	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Get returns the app with id, or catalog.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (catalog.Entry, error) {
	var r appRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT `+appColumns+` FROM apps WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Entry{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Entry{}, fmt.Errorf("get app %s: %w", id, err)
	}
	return r.entry()
}

const insertApp = `INSERT INTO apps (` + appColumns + `)
	VALUES (:id, :name, :description, :capabilities, :freshness, :citations_supported,
		:latency_est_ms, :cost_est_usd, :executor_type, :executor_method, :executor_url, :input_schema)`

// Create inserts e and returns catalog.ErrExists when the id is taken.
func (s *Store) Create(ctx context.Context, e catalog.Entry) error {
	row, err := toAppRow(e)
	if err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, insertApp+` ON CONFLICT (id) DO NOTHING`, row)
	if err != nil {
		return fmt.Errorf("create app %s: %w", e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create app %s: %w", e.ID, err)
	}
	if n == 0 {
		return catalog.ErrExists
	}
	return nil
}

// Upsert inserts e or replaces the stored app with the same id.
func (s *Store) Upsert(ctx context.Context, e catalog.Entry) error {
	row, err := toAppRow(e)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, insertApp+` ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		description = excluded.description,
		capabilities = excluded.capabilities,
		freshness = excluded.freshness,
		citations_supported = excluded.citations_supported,
		latency_est_ms = excluded.latency_est_ms,
		cost_est_usd = excluded.cost_est_usd,
		executor_type = excluded.executor_type,
		executor_method = excluded.executor_method,
		executor_url = excluded.executor_url,
		input_schema = excluded.input_schema`, row)
	if err != nil {
		return fmt.Errorf("upsert app %s: %w", e.ID, err)
	}
	return nil
}

func toCapabilities(tags []string) []catalog.Capability {
	out := make([]catalog.Capability, len(tags))
	for i, t := range tags {
		out[i] = catalog.Capability(t)
	}
	return out
}
