package ledger

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAppendAssignsIDs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id1, err := m.Append(ctx, Record{AppID: "a", OK: true})
	require.NoError(t, err)
	id2, err := m.Append(ctx, Record{AppID: "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)

	got, err := m.Get(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, "b", got.AppID)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = m.Get(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRecordsAreImmutable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	lat := 120
	errs := []string{"boom"}
	_, err := m.Append(ctx, Record{AppID: "a", LatencyMs: &lat, ValidationErrors: errs, Output: json.RawMessage(`{"x":1}`)})
	require.NoError(t, err)

	lat = 5
	errs[0] = "changed"

	runs, err := m.ListForApp(ctx, "a")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 120, *runs[0].LatencyMs)
	assert.Equal(t, []string{"boom"}, runs[0].ValidationErrors)

	runs[0].ValidationErrors[0] = "mutated"
	again, _ := m.ListForApp(ctx, "a")
	assert.Equal(t, "boom", again[0].ValidationErrors[0])
}

func TestMemoryRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, app := range []string{"a", "b", "c"} {
		_, err := m.Append(ctx, Record{AppID: app})
		require.NoError(t, err)
	}
	recent, err := m.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].AppID)
	assert.Equal(t, "b", recent[1].AppID)
}
