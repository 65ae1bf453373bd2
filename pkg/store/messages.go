package store

import (
	"context"
	"fmt"

	"github.com/ujjwalredd/Axiomeer/pkg/history"
)

type messageRow struct {
	ID        int64  `db:"id"`
	ClientID  string `db:"client_id"`
	Role      string `db:"role"`
	Content   string `db:"content"`
	CreatedAt string `db:"created_at"`
}

// AppendMessage stores m and returns its id.
func (s *Store) AppendMessage(ctx context.Context, m history.Message) (int64, error) {
	if !m.Role.Valid() {
		return 0, history.ErrInvalidRole
	}
	var id int64
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO messages (client_id, role, content, created_at)
		VALUES (?, ?, ?, ?) RETURNING id`),
		m.ClientID, string(m.Role), m.Content, formatTime(m.CreatedAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append message: %w", err)
	}
	return id, nil
}

// RecentMessages returns up to limit of the client's latest messages,
// oldest first.
func (s *Store) RecentMessages(ctx context.Context, clientID string, limit int) ([]history.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT id, client_id, role, content, created_at
		FROM messages WHERE client_id = ? ORDER BY id DESC LIMIT ?`), clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	out := make([]history.Message, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = history.Message{
			ID:        r.ID,
			ClientID:  r.ClientID,
			Role:      history.Role(r.Role),
			Content:   r.Content,
			CreatedAt: parseTime(r.CreatedAt),
		}
	}
	return out, nil
}
