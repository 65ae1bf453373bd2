// Package ledger records one immutable receipt per execution attempt.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("run not found")

// Record is the receipt of one execution attempt, successful or not.
type Record struct {
	ID               int64           `json:"id"`
	AppID            string          `json:"app_id"`
	Task             string          `json:"task"`
	ClientID         string          `json:"client_id,omitempty"`
	OK               bool            `json:"ok"`
	RequireCitations bool            `json:"require_citations"`
	LatencyMs        *int            `json:"latency_ms,omitempty"`
	Output           json.RawMessage `json:"output,omitempty"`
	ValidationErrors []string        `json:"validation_errors"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Reader exposes the read side used by trust aggregation.
type Reader interface {
	ListForApp(ctx context.Context, appID string) ([]Record, error)
	ListAll(ctx context.Context) ([]Record, error)
}

// Ledger is append-only run persistence.
type Ledger interface {
	Reader
	// Append stores r and returns its assigned id.
	Append(ctx context.Context, r Record) (int64, error)
	Get(ctx context.Context, id int64) (Record, error)
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// Memory is an in-process Ledger. Records are copied on the way in and out
// so callers can never mutate stored receipts.
type Memory struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, r Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.records) + 1)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.records = append(m.records, copyRecord(r))
	return r.ID, nil
}

func (m *Memory) Get(_ context.Context, id int64) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id < 1 || id > int64(len(m.records)) {
		return Record{}, ErrNotFound
	}
	return copyRecord(m.records[id-1]), nil
}

func (m *Memory) ListForApp(_ context.Context, appID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.records {
		if r.AppID == appID {
			out = append(out, copyRecord(r))
		}
	}
	return out, nil
}

func (m *Memory) ListAll(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(m.records))
	for i, r := range m.records {
		out[i] = copyRecord(r)
	}
	return out, nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, copyRecord(r))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyRecord(r Record) Record {
	if r.LatencyMs != nil {
		v := *r.LatencyMs
		r.LatencyMs = &v
	}
	r.Output = append(json.RawMessage(nil), r.Output...)
	if len(r.Output) == 0 {
		r.Output = nil
	}
	r.ValidationErrors = append([]string{}, r.ValidationErrors...)
	return r
}
