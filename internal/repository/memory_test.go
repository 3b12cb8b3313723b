package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rmarin/leaglink-whatsapp-agent/internal/domain"
)

func TestMemoryStore_HistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, store.AppendEntries(ctx, "u1", []domain.HistoryEntry{
		{Role: domain.RoleUser, Content: "hola", Timestamp: now},
		{Role: domain.RoleAssistant, Content: "respuesta", Timestamp: now},
	}))

	entries, err := store.GetHistory(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "hola", entries[0].Content)

	other, err := store.GetHistory(ctx, "u2", 10)
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestMemoryStore_HistoryLimitIsTrailing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i := 0; i < 6; i++ {
		require.NoError(t, store.AppendEntries(ctx, "u1", []domain.HistoryEntry{
			{Role: domain.RoleUser, Content: string(rune('a' + i)), Timestamp: time.Now()},
		}))
	}

	entries, err := store.GetHistory(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "e", entries[0].Content)
	require.Equal(t, "f", entries[1].Content)
}

func TestMemoryStore_GetHistoryReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.AppendEntries(ctx, "u1", []domain.HistoryEntry{
		{Role: domain.RoleUser, Content: "original", Timestamp: time.Now()},
	}))

	entries, err := store.GetHistory(ctx, "u1", 10)
	require.NoError(t, err)
	entries[0].Content = "mutated"

	again, err := store.GetHistory(ctx, "u1", 10)
	require.NoError(t, err)
	require.Equal(t, "original", again[0].Content)
}

func TestMemoryStore_MessageLog(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Append(ctx, domain.LogMessage{ID: "m1", Content: "hola", Sender: "u1"}))
	require.NoError(t, store.Append(ctx, domain.LogMessage{ID: "m2", Content: "chao", Sender: "u1"}))

	msgs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	msg, found, err := store.GetByID(ctx, "m2")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "chao", msg.Content)

	_, found, err = store.GetByID(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)
}
