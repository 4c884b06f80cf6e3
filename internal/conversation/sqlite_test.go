// ABOUTME: Tests for the SQLite conversation store
// ABOUTME: Covers persistence across reopen, upsert behavior, and listing

package conversation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.db")
	ctx := context.Background()
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := openTestStore(t, path)
	require.NoError(t, s.Apply(ctx, "+15550001111", func(st *State) error {
		st.History = append(st.History,
			Turn{Role: RoleUser, Text: "hello", Timestamp: when},
			Turn{Role: RoleAssistant, Text: "hi there", Timestamp: when.Add(time.Second)},
		)
		st.Stats.RecordInbound(when)
		st.Stats.RecordChat()
		st.Stats.RecordReply()
		return nil
	}))
	require.NoError(t, s.Close())

	reopened := openTestStore(t, path)
	got, err := reopened.Get(ctx, "+15550001111")
	require.NoError(t, err)

	require.Len(t, got.History, 2)
	assert.Equal(t, RoleUser, got.History[0].Role)
	assert.Equal(t, "hello", got.History[0].Text)
	assert.Equal(t, "hi there", got.History[1].Text)
	assert.Equal(t, 1, got.Stats.MessageCount)
	assert.Equal(t, 1, got.Stats.AssistantReplies)
	assert.Equal(t, 1, got.Stats.TotalReceived)
}

func TestSQLiteStore_GetUnknown(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "c.db"))
	_, err := s.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_UpsertKeepsOneRow(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "c.db"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Apply(ctx, "a", func(st *State) error {
			st.Stats.MessageCount++
			return nil
		}))
	}

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 3, all[0].Stats.MessageCount)
}

func TestSQLiteStore_MutationErrorSkipsWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.db")
	s := openTestStore(t, path)
	ctx := context.Background()

	require.NoError(t, s.Apply(ctx, "a", func(st *State) error {
		st.Stats.MessageCount = 7
		return nil
	}))
	err := s.Apply(ctx, "a", func(st *State) error {
		st.Stats.MessageCount = 99
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	require.NoError(t, s.Close())

	// The failed mutation must not have been written through.
	reopened := openTestStore(t, path)
	got, err := reopened.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stats.MessageCount)
}

func TestSQLiteStore_ListOrdersByActivity(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "c.db"))
	ctx := context.Background()

	require.NoError(t, s.Apply(ctx, "older", func(st *State) error {
		st.Stats.LastActiveAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		return nil
	}))
	require.NoError(t, s.Apply(ctx, "newer", func(st *State) error {
		st.Stats.LastActiveAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		return nil
	}))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, ID("newer"), all[0].ID)
	assert.Equal(t, ID("older"), all[1].ID)
}
