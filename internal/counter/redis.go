package counter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/yzRobo/mintcanvas-server/pkg/config"
)

// sessionTTL bounds how long abandoned session state lingers in Redis. A
// counter that outlives it reads as expired, prompting the client to restart
// the upload from init.
const sessionTTL = 24 * time.Hour

// RedisStore implements Store on Redis. Received indices live in a set and
// the count is always the set's cardinality, so duplicate deliveries cannot
// inflate it and there is no separate counter key to drift out of sync. A
// marker key written at Init distinguishes "zero chunks received" from
// "session state expired".
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(cfg *config.CounterConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Str("addr", cfg.RedisAddr()).Msg("redis counter store initialized")
	return &RedisStore{client: client}, nil
}

func indexKey(sessionID string) string {
	return "chunks:" + sessionID + ":indices"
}

func markerKey(sessionID string) string {
	return "chunks:" + sessionID + ":active"
}

// Init resets the session's tracking state to zero received chunks
func (r *RedisStore) Init(ctx context.Context, sessionID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, indexKey(sessionID))
	pipe.Set(ctx, markerKey(sessionID), "1", sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to initialize counter for session %s: %w", sessionID, err)
	}
	return nil
}

// AddChunk records a chunk index and returns the distinct received count
func (r *RedisStore) AddChunk(ctx context.Context, sessionID string, index int) (int, error) {
	pipe := r.client.TxPipeline()
	added := pipe.SAdd(ctx, indexKey(sessionID), strconv.Itoa(index))
	pipe.Expire(ctx, indexKey(sessionID), sessionTTL)
	count := pipe.SCard(ctx, indexKey(sessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to record chunk %d for session %s: %w", index, sessionID, err)
	}

	if added.Val() == 0 {
		log.Warn().Str("session_id", sessionID).Int("chunk_index", index).
			Msg("duplicate chunk index received, count unchanged")
	}
	return int(count.Val()), nil
}

// Count returns the number of distinct indices received
func (r *RedisStore) Count(ctx context.Context, sessionID string) (int, error) {
	pipe := r.client.TxPipeline()
	active := pipe.Exists(ctx, markerKey(sessionID))
	count := pipe.SCard(ctx, indexKey(sessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to read counter for session %s: %w", sessionID, err)
	}
	if active.Val() == 0 {
		return 0, ErrNotFound
	}
	return int(count.Val()), nil
}

// Delete removes all tracking state for the session
func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, indexKey(sessionID), markerKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete counter for session %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
