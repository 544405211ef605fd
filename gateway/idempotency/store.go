// Package idempotency persists responses served for POST submissions so a
// retried request carrying the same Idempotency-Key replays the original
// outcome instead of reaching the node twice.
package idempotency

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketSubmissions = []byte("submissions")

// Record is the cached response envelope for one idempotency key.
type Record struct {
	StatusCode  int       `json:"statusCode"`
	ContentType string    `json:"contentType,omitempty"`
	Body        []byte    `json:"body"`
	StoredAt    time.Time `json:"storedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Store is a BoltDB-backed replay cache with per-record expiry.
type Store struct {
	db  *bolt.DB
	ttl time.Duration
}

// Open initialises the store at path. Records older than ttl are dropped on
// open and lazily on lookup.
func Open(path string, ttl time.Duration) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("idempotency store path required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("idempotency TTL must be positive")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open idempotency store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSubmissions)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare idempotency store: %w", err)
	}
	store := &Store{db: db, ttl: ttl}
	if err := store.Sweep(time.Now()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying Bolt database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the cached response for key when it has not expired. Expired
// entries are deleted in place.
func (s *Store) Get(key string, now time.Time) (Record, bool, error) {
	if s == nil || s.db == nil {
		return Record{}, false, fmt.Errorf("idempotency store not configured")
	}
	var record Record
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSubmissions)
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &record); err != nil {
			record = Record{}
			return bucket.Delete([]byte(key))
		}
		if now.After(record.ExpiresAt) {
			record = Record{}
			return bucket.Delete([]byte(key))
		}
		return nil
	})
	if err != nil {
		return Record{}, false, err
	}
	if record.StatusCode == 0 && len(record.Body) == 0 {
		return Record{}, false, nil
	}
	return record, true, nil
}

// Put stores the response envelope for key, stamping StoredAt/ExpiresAt from
// now and the store TTL.
func (s *Store) Put(key string, record Record, now time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("idempotency store not configured")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("idempotency key required")
	}
	record.StoredAt = now.UTC()
	record.ExpiresAt = now.Add(s.ttl).UTC()
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSubmissions).Put([]byte(key), payload)
	})
}

// Sweep removes every record that expired before now.
func (s *Store) Sweep(now time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("idempotency store not configured")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSubmissions)
		var stale [][]byte
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil || now.After(record.ExpiresAt) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, key := range stale {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
