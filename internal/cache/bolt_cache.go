package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var entriesBucket = []byte("entries")

// BoltCache keeps all entries in a single bbolt database file.
type BoltCache struct {
	db *bolt.DB
}

// NewBoltCache opens (creating if needed) the database at path.
func NewBoltCache(path string) (*BoltCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt cache %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &BoltCache{db: db}, nil
}

func (c *BoltCache) Get(key string, value interface{}) error {
	var raw []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		// Bytes returned by bbolt are only valid inside the transaction.
		if data := tx.Bucket(entriesBucket).Get([]byte(key)); data != nil {
			raw = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read cache entry: %w", err)
	}
	if raw == nil {
		return ErrCacheMiss
	}

	expired, err := decodeEntry(raw, value)
	if err != nil {
		return err
	}
	if expired {
		_ = c.Delete(key)
		return ErrCacheMiss
	}
	return nil
}

func (c *BoltCache) Set(key string, value interface{}, ttl time.Duration) error {
	entryData, err := newEntry(value, ttl)
	if err != nil {
		return err
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).Put([]byte(key), entryData)
	})
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (c *BoltCache) Delete(key string) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}
