package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/afraznein/ktpfleet/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketDeploys = []byte("deploys")
	bucketBackups = []byte("backups")
	bucketRuns    = []byte("runs")
)

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed history store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ktpfleet.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{bucketDeploys, bucketBackups, bucketRuns}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// recordKey builds a chronologically sortable key: RFC3339Nano sorts
// lexicographically, the ID suffix keeps same-instant records distinct.
func recordKey(at time.Time, id string) []byte {
	return []byte(at.UTC().Format(time.RFC3339Nano) + "/" + id)
}

// PutDeploy stores a deploy record (upsert)
func (s *BoltStore) PutDeploy(record *types.DeployRecord) error {
	return s.put(bucketDeploys, recordKey(record.StartedAt, record.ID), record)
}

// ListDeploys returns deploy records, newest first
func (s *BoltStore) ListDeploys(limit int) ([]*types.DeployRecord, error) {
	var records []*types.DeployRecord
	err := s.list(bucketDeploys, limit, func(v []byte) error {
		var record types.DeployRecord
		if err := json.Unmarshal(v, &record); err != nil {
			return err
		}
		records = append(records, &record)
		return nil
	})
	return records, err
}

// PutBackup stores a backup record (upsert)
func (s *BoltStore) PutBackup(record *types.BackupRecord) error {
	return s.put(bucketBackups, recordKey(record.CreatedAt, record.ID), record)
}

// ListBackups returns backup records, newest first
func (s *BoltStore) ListBackups(limit int) ([]*types.BackupRecord, error) {
	var records []*types.BackupRecord
	err := s.list(bucketBackups, limit, func(v []byte) error {
		var record types.BackupRecord
		if err := json.Unmarshal(v, &record); err != nil {
			return err
		}
		records = append(records, &record)
		return nil
	})
	return records, err
}

// PutRun stores a maintenance run record (upsert)
func (s *BoltStore) PutRun(record *types.MaintenanceRecord) error {
	return s.put(bucketRuns, recordKey(record.StartedAt, record.ID), record)
}

// ListRuns returns maintenance run records, newest first
func (s *BoltStore) ListRuns(limit int) ([]*types.MaintenanceRecord, error) {
	var records []*types.MaintenanceRecord
	err := s.list(bucketRuns, limit, func(v []byte) error {
		var record types.MaintenanceRecord
		if err := json.Unmarshal(v, &record); err != nil {
			return err
		}
		records = append(records, &record)
		return nil
	})
	return records, err
}

func (s *BoltStore) put(bucket, key []byte, value interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// list iterates the bucket backward (newest first thanks to the
// time-ordered keys), stopping after limit entries. limit <= 0 means all.
func (s *BoltStore) list(bucket []byte, limit int, fn func(v []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		count := 0
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && count >= limit {
				break
			}
			if err := fn(v); err != nil {
				return err
			}
			count++
		}
		return nil
	})
}
