package counter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	store := &RedisStore{client: client}
	t.Cleanup(func() { store.Close() })
	return store, server
}

func TestRedisStore_InitStartsAtZero(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Init(ctx, "session-1"))

	count, err := store.Count(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "a fresh session has zero chunks, not a missing counter")
}

func TestRedisStore_CountWithoutInit(t *testing.T) {
	store, _ := setupRedisStore(t)

	_, err := store.Count(context.Background(), "never-initialized")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_AddChunkIdempotentPerIndex(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Init(ctx, "session-1"))

	count, err := store.AddChunk(ctx, "session-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.AddChunk(ctx, "session-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Retried delivery of an index that already landed
	count, err = store.AddChunk(ctx, "session-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "duplicate index must not inflate the count")

	count, err = store.Count(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRedisStore_CountIsSetCardinality(t *testing.T) {
	// The count is derived from the index set itself, so no sequence of
	// partial failures can leave a count that disagrees with the recorded
	// indices.
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Init(ctx, "session-1"))
	_, err := store.AddChunk(ctx, "session-1", 0)
	require.NoError(t, err)
	_, err = store.AddChunk(ctx, "session-1", 1)
	require.NoError(t, err)

	// Simulate a write that recorded an index through some other path
	require.NoError(t, store.client.SAdd(ctx, indexKey("session-1"), "2").Err())

	count, err := store.Count(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRedisStore_ExpiredStateReadsAsMissing(t *testing.T) {
	store, server := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Init(ctx, "session-1"))
	_, err := store.AddChunk(ctx, "session-1", 0)
	require.NoError(t, err)

	server.FastForward(sessionTTL + time.Minute)

	_, err = store.Count(ctx, "session-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_LostMarkerReadsAsMissing(t *testing.T) {
	// If the session marker is gone while the index set survives, the state
	// is not trustworthy and must read as missing rather than as a count.
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Init(ctx, "session-1"))
	_, err := store.AddChunk(ctx, "session-1", 0)
	require.NoError(t, err)

	require.NoError(t, store.client.Del(ctx, markerKey("session-1")).Err())

	_, err = store.Count(ctx, "session-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Init(ctx, "session-1"))
	_, err := store.AddChunk(ctx, "session-1", 0)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "session-1"))

	_, err = store.Count(ctx, "session-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_SessionIsolation(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Init(ctx, "session-a"))
	require.NoError(t, store.Init(ctx, "session-b"))

	_, err := store.AddChunk(ctx, "session-a", 0)
	require.NoError(t, err)

	count, err := store.Count(ctx, "session-b")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
