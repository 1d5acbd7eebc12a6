package counter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/boltdb/bolt"
	"github.com/rs/zerolog/log"
)

const rootBucket = "chunk_counters"

// BoltStore implements Store on an embedded BoltDB file. Each session owns a
// nested bucket whose keys are the received chunk indices; Bolt serializes
// write transactions, which makes AddChunk atomic across concurrent
// handlers in the same process.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the counter database at path
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create counter directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open counter database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(rootBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create counter bucket: %w", err)
	}

	log.Info().Str("path", path).Msg("bolt counter store initialized")
	return &BoltStore{db: db}, nil
}

// Init resets the session's tracking state to zero received chunks
func (b *BoltStore) Init(ctx context.Context, sessionID string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(rootBucket))
		if err := root.DeleteBucket([]byte(sessionID)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := root.CreateBucket([]byte(sessionID))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to initialize counter for session %s: %w", sessionID, err)
	}
	return nil
}

// AddChunk records a chunk index and returns the distinct received count
func (b *BoltStore) AddChunk(ctx context.Context, sessionID string, index int) (int, error) {
	var count int
	err := b.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(rootBucket))
		session, err := root.CreateBucketIfNotExists([]byte(sessionID))
		if err != nil {
			return err
		}

		key := []byte(strconv.Itoa(index))
		if session.Get(key) != nil {
			log.Warn().Str("session_id", sessionID).Int("chunk_index", index).
				Msg("duplicate chunk index received, count unchanged")
		} else if err := session.Put(key, []byte{1}); err != nil {
			return err
		}

		return session.ForEach(func(_, _ []byte) error {
			count++
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record chunk %d for session %s: %w", index, sessionID, err)
	}
	return count, nil
}

// Count returns the number of distinct indices received
func (b *BoltStore) Count(ctx context.Context, sessionID string) (int, error) {
	var count int
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		session := tx.Bucket([]byte(rootBucket)).Bucket([]byte(sessionID))
		if session == nil {
			return nil
		}
		found = true
		return session.ForEach(func(_, _ []byte) error {
			count++
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read counter for session %s: %w", sessionID, err)
	}
	if !found {
		return 0, ErrNotFound
	}
	return count, nil
}

// Delete removes all tracking state for the session
func (b *BoltStore) Delete(ctx context.Context, sessionID string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket([]byte(rootBucket)).DeleteBucket([]byte(sessionID))
		if err == bolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete counter for session %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the underlying database file
func (b *BoltStore) Close() error {
	return b.db.Close()
}
