package presence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryBindUnbind(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	reg := NewRegistry(store, nil)

	reg.Bind(ctx, "alice", "c1")

	id, ok := reg.IdentityFor("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", id)

	conn, err := reg.ActiveConn(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "c1", conn)

	reg.Unbind(ctx, "alice", "c1")

	_, ok = reg.IdentityFor("c1")
	assert.False(t, ok)
	conn, err = reg.ActiveConn(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, conn)
}

// Reconnect storm ordering: a late disconnect of the superseded
// connection must not erase the newer binding.
func TestRegistryLateDisconnectKeepsNewBinding(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	reg := NewRegistry(store, nil)

	reg.Bind(ctx, "alice", "c1")
	reg.Bind(ctx, "alice", "c2") // reconnect supersedes
	reg.Unbind(ctx, "alice", "c1")

	conn, err := reg.ActiveConn(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "c2", conn)

	local, ok := reg.LocalConn("alice")
	require.True(t, ok)
	assert.Equal(t, "c2", local)

	// Superseded conn id no longer resolves.
	_, ok = reg.IdentityFor("c1")
	assert.False(t, ok)
}

func TestRegistryLocalOnlyMode(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil, nil) // no distributed store configured

	reg.Bind(ctx, "bob", "c9")

	conn, err := reg.ActiveConn(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "c9", conn)

	// Unknown identity: offline, not an error.
	conn, err = reg.ActiveConn(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, conn)

	reg.Unbind(ctx, "bob", "c9")
	conn, err = reg.ActiveConn(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, conn)
}

func TestRegistryLocalBindings(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMemoryStore(), nil)

	reg.Bind(ctx, "alice", "c1")
	reg.Bind(ctx, "bob", "c2")

	bindings := reg.LocalBindings()
	assert.Len(t, bindings, 2)

	seen := map[string]string{}
	for _, b := range bindings {
		seen[b.Identity] = b.ConnID
	}
	assert.Equal(t, map[string]string{"alice": "c1", "bob": "c2"}, seen)
}

func TestMemoryStoreDeleteIfEquals(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "alice", "c1"))
	require.NoError(t, store.DeleteIfEquals(ctx, "alice", "other"))

	v, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "c1", v, "mismatched delete must leave the binding")

	require.NoError(t, store.DeleteIfEquals(ctx, "alice", "c1"))
	v, err = store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, v)
}
