// Package history keeps the per-client conversation the sales agent sees.
package history

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleClient     Role = "client"
	RoleSalesAgent Role = "sales_agent"
	RoleProvider   Role = "provider"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleSalesAgent, RoleProvider:
		return true
	}
	return false
}

// Message is one line of conversation.
type Message struct {
	ID        int64     `json:"id" db:"id"`
	ClientID  string    `json:"client_id" db:"client_id"`
	Role      Role      `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ErrInvalidRole is returned when appending a message with an unknown role.
var ErrInvalidRole = errors.New("invalid message role")

// Store persists conversation messages.
type Store interface {
	// AppendMessage stores m and returns its id.
	AppendMessage(ctx context.Context, m Message) (int64, error)
	// RecentMessages returns up to limit of the client's latest messages,
	// oldest first.
	RecentMessages(ctx context.Context, clientID string, limit int) ([]Message, error)
}

// Memory is an in-process Store.
type Memory struct {
	mu       sync.RWMutex
	messages []Message
	nextID   int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) AppendMessage(_ context.Context, msg Message) (int64, error) {
	if !msg.Role.Valid() {
		return 0, ErrInvalidRole
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg.ID = m.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	m.messages = append(m.messages, msg)
	return msg.ID, nil
}

func (m *Memory) RecentMessages(_ context.Context, clientID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Message
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if m.messages[i].ClientID == clientID {
			out = append(out, m.messages[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Turn is the compact form of a message handed to a model.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Turns strips storage fields from messages.
func Turns(msgs []Message) []Turn {
	out := make([]Turn, len(msgs))
	for i, m := range msgs {
		out[i] = Turn{Role: m.Role, Content: m.Content}
	}
	return out
}
