// Package disk implements the ability to read and write blockchain data to
// a bolt database file on disk.
package disk

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	bolt "go.etcd.io/bbolt"
)

// openTimeout is how long to wait for the file lock held by another process.
const openTimeout = time.Second

// Disk represents the serialization implementation for reading and storing
// blockchain data in a bolt database file. This implements the
// database.Storage interface.
type Disk struct {
	db *bolt.DB
}

// New opens or creates the bolt database at the specified path. Every
// update is synced to disk before the call returns.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}

	return &Disk{db: db}, nil
}

// Close closes the database file.
func (d *Disk) Close() error {
	return d.db.Close()
}

// Get returns a copy of the value stored under the key.
func (d *Disk) Get(bucket []byte, key []byte) ([]byte, error) {
	var value []byte

	f := func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return database.ErrNotFound
		}

		v := b.Get(key)
		if v == nil {
			return database.ErrNotFound
		}

		value = bytes.Clone(v)
		return nil
	}

	if err := d.db.View(f); err != nil {
		return nil, err
	}

	return value, nil
}

// Put stores the value under the key, creating the bucket when needed.
func (d *Disk) Put(bucket []byte, key []byte, value []byte) error {
	f := func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}

		return b.Put(key, value)
	}

	return d.db.Update(f)
}

// ForEach calls the function for every key in the bucket in key order. A
// missing bucket is treated as empty.
func (d *Disk) ForEach(bucket []byte, fn func(key []byte, value []byte) error) error {
	f := func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			return fn(bytes.Clone(k), bytes.Clone(v))
		})
	}

	return d.db.View(f)
}

// Replace drops the bucket and refills it with the entries in a single
// transaction.
func (d *Disk) Replace(bucket []byte, entries map[string][]byte) error {
	f := func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}

		b, err := tx.CreateBucket(bucket)
		if err != nil {
			return err
		}

		for key, value := range entries {
			if err := b.Put([]byte(key), value); err != nil {
				return err
			}
		}

		return nil
	}

	return d.db.Update(f)
}
