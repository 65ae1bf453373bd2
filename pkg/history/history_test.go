package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRecentMessagesOldestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < 5; i++ {
		_, err := m.AppendMessage(ctx, Message{ClientID: "alice", Role: RoleClient, Content: fmt.Sprintf("msg %d", i)})
		require.NoError(t, err)
	}
	_, err := m.AppendMessage(ctx, Message{ClientID: "bob", Role: RoleClient, Content: "other"})
	require.NoError(t, err)

	got, err := m.RecentMessages(ctx, "alice", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "msg 2", got[0].Content)
	assert.Equal(t, "msg 4", got[2].Content)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestMemoryRejectsUnknownRole(t *testing.T) {
	_, err := NewMemory().AppendMessage(context.Background(), Message{ClientID: "a", Role: "robot"})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestMemoryZeroLimit(t *testing.T) {
	got, err := NewMemory().RecentMessages(context.Background(), "a", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTurns(t *testing.T) {
	turns := Turns([]Message{{ID: 7, ClientID: "a", Role: RoleSalesAgent, Content: "hi"}})
	assert.Equal(t, []Turn{{Role: RoleSalesAgent, Content: "hi"}}, turns)
}
