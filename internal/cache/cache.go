// Package cache stores platform API responses on disk so repeated
// extraction runs against the same project do not refetch unchanged
// pages. Entries carry a write timestamp and expire after the
// configured TTL.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/logging"
)

var bucketResponses = []byte("responses")

type envelope struct {
	StoredAt time.Time       `json:"stored_at"`
	Payload  json.RawMessage `json:"payload"`
}

// Cache is a TTL key/value store backed by a bbolt file.
type Cache struct {
	db  *bolt.DB
	ttl time.Duration
}

// Open opens or creates the cache file at path.
func Open(path string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, gperrors.Storage(err, "failed to create cache directory")
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, gperrors.Storage(err, "failed to open cache database")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketResponses)
		return err
	})
	if err != nil {
		db.Close()
		return nil, gperrors.Storage(err, "failed to initialize cache bucket")
	}

	return &Cache{db: db, ttl: ttl}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get unmarshals the cached value for key into out. The second return
// is false when the key is absent or the entry has expired.
func (c *Cache) Get(key string, out any) (bool, error) {
	var env envelope
	found := false

	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketResponses).Get([]byte(key))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, gperrors.Storage(err, "failed to read cache entry")
	}
	if !found {
		return false, nil
	}

	if c.ttl > 0 && time.Since(env.StoredAt) > c.ttl {
		logging.Debug("cache entry expired", "key", key)
		return false, nil
	}

	if err := json.Unmarshal(env.Payload, out); err != nil {
		// A payload written by an older schema is treated as a miss.
		logging.Warn("discarding unreadable cache entry", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

// Put stores value under key with the current timestamp.
func (c *Cache) Put(key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return gperrors.Storage(err, "failed to encode cache entry")
	}
	raw, err := json.Marshal(envelope{StoredAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		return gperrors.Storage(err, "failed to encode cache envelope")
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResponses).Put([]byte(key), raw)
	})
	if err != nil {
		return gperrors.Storage(err, "failed to write cache entry")
	}
	return nil
}

// Purge removes every cached entry.
func (c *Cache) Purge() error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketResponses); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketResponses)
		return err
	})
	if err != nil {
		return gperrors.Storage(err, "failed to purge cache")
	}
	return nil
}
