package friend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_LoadEmpty(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "friends.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	state, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Empty(t, state.Friendships)
	assert.Empty(t, state.Requests)
}

func TestSQLiteStore_SaveThenLoad_RoundTrip(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "friends.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	saved := &State{
		Friendships: []Friendship{{ID: "f1", UserA: "alice", UserB: "bob", CreatedAt: now}},
		Requests:    []Request{{ID: "r1", SenderID: "carol", ReceiverID: "alice", Status: StatusPending, CreatedAt: now}},
	}
	require.NoError(t, store.Save(ctx, saved))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Friendships, 1)
	require.Len(t, loaded.Requests, 1)
	assert.Equal(t, "f1", loaded.Friendships[0].ID)
	assert.Equal(t, StatusPending, loaded.Requests[0].Status)
}

func TestSQLiteStore_SaveReplacesWholeState(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "friends.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &State{
		Requests: []Request{{ID: "r1", SenderID: "a", ReceiverID: "b", Status: StatusPending}},
	}))
	require.NoError(t, store.Save(ctx, &State{}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.Requests)
}
