package presence

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreSet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, 90*time.Second)

	mock.ExpectSet("presence:alice", "c1", 90*time.Second).SetVal("OK")

	require.NoError(t, store.Set(context.Background(), "alice", "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, 90*time.Second)

	mock.ExpectGet("presence:alice").SetVal("c1")
	v, err := store.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "c1", v)

	// Missing key reads as offline, not as an error.
	mock.ExpectGet("presence:bob").RedisNil()
	v, err = store.Get(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, v)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreUnavailable(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, 90*time.Second)

	mock.ExpectSet("presence:alice", "c1", 90*time.Second).SetErr(redis.ErrClosed)

	err := store.Set(context.Background(), "alice", "c1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
