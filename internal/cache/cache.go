// Package cache persists raw oracle answers so repeated scans of unchanged
// files do not spend quota.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BucketResponses holds raw first-pass answers keyed by Key.
var BucketResponses = []byte("responses")

// Store is a bbolt-backed response cache.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %q: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(BucketResponses)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise cache %q: %w", path, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key derives a cache key from the values that determine an oracle answer.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached answer for key.
func (s *Store) Get(key string) (string, bool) {
	var value string
	var found bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(BucketResponses).Get([]byte(key))
		if data != nil {
			value = string(data)
			found = true
		}
		return nil
	})
	return value, found
}

// Put stores the answer for key.
func (s *Store) Put(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketResponses).Put([]byte(key), []byte(value))
	})
}

// Len is the number of cached answers.
func (s *Store) Len() int {
	n := 0
	_ = s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(BucketResponses).Stats().KeyN
		return nil
	})
	return n
}
