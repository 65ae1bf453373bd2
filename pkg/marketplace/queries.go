package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
	"github.com/ujjwalredd/Axiomeer/pkg/history"
	"github.com/ujjwalredd/Axiomeer/pkg/ledger"
	"github.com/ujjwalredd/Axiomeer/pkg/trust"
)

// DefaultRunsLimit caps Runs when the caller does not.
const DefaultRunsLimit = 50

// ErrHistoryDisabled is returned by history calls when no store is set.
var ErrHistoryDisabled = errors.New("conversation history is not configured")

func isNotFound(err error) bool {
	return errors.Is(err, catalog.ErrNotFound)
}

// Apps lists the catalog.
func (s *Service) Apps(ctx context.Context) ([]catalog.Entry, error) {
	return s.catalog.List(ctx)
}

// App returns one catalog entry.
func (s *Service) App(ctx context.Context, id string) (catalog.Entry, error) {
	return s.catalog.Get(ctx, id)
}

// CreateApp adds a new entry. It fails with catalog.ErrExists when the id
// is taken.
func (s *Service) CreateApp(ctx context.Context, e catalog.Entry) (catalog.Entry, error) {
	if err := prepare(&e); err != nil {
		return catalog.Entry{}, err
	}
	if err := s.catalog.Create(ctx, e); err != nil {
		return catalog.Entry{}, err
	}
	return e, nil
}

// UpsertApp stores e under id, replacing any existing entry.
func (s *Service) UpsertApp(ctx context.Context, id string, e catalog.Entry) (catalog.Entry, error) {
	id = strings.TrimSpace(id)
	if e.ID != "" && strings.TrimSpace(e.ID) != id {
		return catalog.Entry{}, invalid("body id %q does not match path id %q", e.ID, id)
	}
	e.ID = id
	if err := prepare(&e); err != nil {
		return catalog.Entry{}, err
	}
	if err := s.catalog.Upsert(ctx, e); err != nil {
		return catalog.Entry{}, err
	}
	return e, nil
}

func prepare(e *catalog.Entry) error {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Trust returns a snapshot for every catalog app, neutral for apps that
// never ran.
func (s *Service) Trust(ctx context.Context) ([]trust.Snapshot, error) {
	entries, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	snaps, err := s.trust.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute trust: %w", err)
	}
	out := make([]trust.Snapshot, len(entries))
	for i, e := range entries {
		out[i] = trust.Lookup(snaps, e.ID)
	}
	return out, nil
}

// AppTrust returns the snapshot for one app. Apps with runs are reported
// even if they have left the catalog.
func (s *Service) AppTrust(ctx context.Context, id string) (trust.Snapshot, error) {
	snap, err := s.trust.Snapshot(ctx, id)
	if err != nil {
		return trust.Snapshot{}, fmt.Errorf("compute trust: %w", err)
	}
	if snap.TotalRuns > 0 {
		return snap, nil
	}
	if _, err := s.catalog.Get(ctx, id); err != nil {
		return trust.Snapshot{}, err
	}
	return snap, nil
}

// Runs returns the newest runs first.
func (s *Service) Runs(ctx context.Context, limit int) ([]ledger.Record, error) {
	if limit <= 0 {
		limit = DefaultRunsLimit
	}
	return s.ledger.Recent(ctx, limit)
}

// Run returns one run.
func (s *Service) Run(ctx context.Context, id int64) (ledger.Record, error) {
	return s.ledger.Get(ctx, id)
}

// History returns the client's latest messages, oldest first.
func (s *Service) History(ctx context.Context, clientID string, limit int) ([]history.Message, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, invalid("client_id is required")
	}
	if limit <= 0 {
		limit = s.settings.MemoryMaxMessages
	}
	msgs, err := s.history.RecentMessages(ctx, clientID, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []history.Message{}
	}
	return msgs, nil
}

// PostMessage appends a message to a client's conversation.
func (s *Service) PostMessage(ctx context.Context, m history.Message) (history.Message, error) {
	if s.history == nil {
		return history.Message{}, ErrHistoryDisabled
	}
	if strings.TrimSpace(m.ClientID) == "" {
		return history.Message{}, invalid("client_id is required")
	}
	if !m.Role.Valid() {
		return history.Message{}, invalid("role must be client, sales_agent or provider")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	id, err := s.history.AppendMessage(ctx, m)
	if err != nil {
		return history.Message{}, err
	}
	m.ID = id
	return m, nil
}
