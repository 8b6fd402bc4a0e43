package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// blobBucket holds one JSON-encoded Blob per snapshot id.
var blobBucket = []byte("snapshots")

// openDB opens the bbolt database at path, creates the blob bucket, and
// loads all persisted blobs into memory.
func (s *Store) openDB(path string) error {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("snapshot: opening database %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blobBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("snapshot: creating bucket: %w", err)
	}

	s.db = db

	if err := s.loadLocked(); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}

	return nil
}

// loadLocked reads all persisted blobs into the in-memory map. Records that
// fail to decode are skipped with a warning rather than failing the open.
func (s *Store) loadLocked() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(blobBucket).ForEach(func(k, v []byte) error {
			var blob Blob
			if err := json.Unmarshal(v, &blob); err != nil {
				s.logger.Warn("skipping undecodable snapshot record",
					"id", string(k),
					"error", err,
				)
				return nil
			}
			s.blobs[blob.ID] = &blob
			return nil
		})
	})
}

// persistLocked writes a blob record. Caller must hold s.mu.
func (s *Store) persistLocked(blob *Blob) error {
	data, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("encoding snapshot record: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(blobBucket).Put([]byte(blob.ID), data)
	})
}

// deletePersistedLocked removes a blob record. Caller must hold s.mu.
func (s *Store) deletePersistedLocked(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(blobBucket).Delete([]byte(id))
	})
}
