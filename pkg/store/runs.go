package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ujjwalredd/Axiomeer/pkg/ledger"
)

type runRow struct {
	ID               int64          `db:"id"`
	AppID            string         `db:"app_id"`
	Task             string         `db:"task"`
	ClientID         string         `db:"client_id"`
	OK               bool           `db:"ok"`
	RequireCitations bool           `db:"require_citations"`
	LatencyMs        sql.NullInt64  `db:"latency_ms"`
	Output           sql.NullString `db:"output"`
	ValidationErrors string         `db:"validation_errors"`
	CreatedAt        string         `db:"created_at"`
}

const runColumns = `id, app_id, task, client_id, ok, require_citations, latency_ms, output,
	validation_errors, created_at`

func (r runRow) record() (ledger.Record, error) {
	rec := ledger.Record{
		ID:               r.ID,
		AppID:            r.AppID,
		Task:             r.Task,
		ClientID:         r.ClientID,
		OK:               r.OK,
		RequireCitations: r.RequireCitations,
		CreatedAt:        parseTime(r.CreatedAt),
		ValidationErrors: []string{},
	}
	if r.LatencyMs.Valid {
		v := int(r.LatencyMs.Int64)
		rec.LatencyMs = &v
	}
	if r.Output.Valid && r.Output.String != "" {
		rec.Output = json.RawMessage(r.Output.String)
	}
	if r.ValidationErrors != "" {
		if err := json.Unmarshal([]byte(r.ValidationErrors), &rec.ValidationErrors); err != nil {
			return ledger.Record{}, fmt.Errorf("run %d: decode validation errors: %w", r.ID, err)
		}
	}
	return rec, nil
}

// Runs is the ledger view of a Store.
type Runs struct {
	s *Store
}

// Runs returns the run ledger backed by the same database.
func (s *Store) Runs() *Runs {
	return &Runs{s: s}
}

// Append stores rec and returns its id.
func (r *Runs) Append(ctx context.Context, rec ledger.Record) (int64, error) {
	errs := rec.ValidationErrors
	if errs == nil {
		errs = []string{}
	}
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return 0, fmt.Errorf("encode validation errors: %w", err)
	}
	var latency sql.NullInt64
	if rec.LatencyMs != nil {
		latency = sql.NullInt64{Int64: int64(*rec.LatencyMs), Valid: true}
	}
	var output sql.NullString
	if len(rec.Output) > 0 {
		output = sql.NullString{String: string(rec.Output), Valid: true}
	}

	var id int64
	err = r.s.db.QueryRowxContext(ctx, r.s.db.Rebind(`INSERT INTO runs
		(app_id, task, client_id, ok, require_citations, latency_ms, output, validation_errors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		rec.AppID, rec.Task, rec.ClientID, rec.OK, rec.RequireCitations,
		latency, output, string(errsJSON), formatTime(rec.CreatedAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append run: %w", err)
	}
	return id, nil
}

// Get returns the run with id, or ledger.ErrNotFound.
func (r *Runs) Get(ctx context.Context, id int64) (ledger.Record, error) {
	var row runRow
	err := r.s.db.GetContext(ctx, &row, r.s.db.Rebind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Record{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Record{}, fmt.Errorf("get run %d: %w", id, err)
	}
	return row.record()
}

// ListForApp returns the app's runs, oldest first.
func (r *Runs) ListForApp(ctx context.Context, appID string) ([]ledger.Record, error) {
	return r.selectRuns(ctx, `SELECT `+runColumns+` FROM runs WHERE app_id = ? ORDER BY id`, appID)
}

// ListAll returns every run, oldest first.
func (r *Runs) ListAll(ctx context.Context) ([]ledger.Record, error) {
	return r.selectRuns(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id`)
}

// Recent returns up to limit runs, newest first. A limit <= 0 returns all.
func (r *Runs) Recent(ctx context.Context, limit int) ([]ledger.Record, error) {
	if limit <= 0 {
		return r.selectRuns(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id DESC`)
	}
	return r.selectRuns(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
}

func (r *Runs) selectRuns(ctx context.Context, query string, args ...any) ([]ledger.Record, error) {
	var rows []runRow
	if err := r.s.db.SelectContext(ctx, &rows, r.s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]ledger.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
