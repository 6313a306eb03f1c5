package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// DiskCache is a BoltDB-backed response cache, one bucket per namespace.
// It keeps partition and narrative API responses across runs so re-ingesting
// an unchanged PDF costs nothing.
type DiskCache struct {
	db *bbolt.DB
}

// NewDiskCache opens (or creates) the cache database.
func NewDiskCache(path string) (*DiskCache, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}
	return &DiskCache{db: db}, nil
}

// Key derives a stable cache key from its parts.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:24]
}

// Get unmarshals a cached value into out. Returns false on a miss.
func (c *DiskCache) Get(namespace, key string, out interface{}) (bool, error) {
	var data []byte
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, nil // Treat corrupted entries as misses
	}
	return true, nil
}

// Set stores a value under namespace/key.
func (c *DiskCache) Set(namespace, key string, val interface{}) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// Close closes the underlying database.
func (c *DiskCache) Close() error {
	return c.db.Close()
}
