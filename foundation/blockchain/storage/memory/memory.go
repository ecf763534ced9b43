// Package memory implements the ability to read and write blockchain data to
// memory using maps.
package memory

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
)

// Memory represents the serialization implementation for reading and storing
// blockchain data in memory. This implements the database.Storage interface.
type Memory struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

// New constructs an Memory value for use.
func New() (*Memory, error) {
	m := Memory{
		buckets: make(map[string]map[string][]byte),
	}

	return &m, nil
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Get returns a copy of the value stored under the key.
func (m *Memory) Get(bucket []byte, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.buckets[string(bucket)][string(key)]
	if !exists {
		return nil, database.ErrNotFound
	}

	return bytes.Clone(value), nil
}

// Put stores a copy of the value under the key.
func (m *Memory) Put(bucket []byte, key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, exists := m.buckets[string(bucket)]
	if !exists {
		b = make(map[string][]byte)
		m.buckets[string(bucket)] = b
	}

	b[string(key)] = bytes.Clone(value)

	return nil
}

// ForEach calls the function for every key in the bucket in key order. The
// function runs against a snapshot so it may call back into the storage.
func (m *Memory) ForEach(bucket []byte, fn func(key []byte, value []byte) error) error {
	m.mu.RLock()
	b := m.buckets[string(bucket)]
	keys := make([]string, 0, len(b))
	for key := range b {
		keys = append(keys, key)
	}
	snapshot := make(map[string][]byte, len(b))
	for key, value := range b {
		snapshot[key] = bytes.Clone(value)
	}
	m.mu.RUnlock()

	sort.Strings(keys)

	for _, key := range keys {
		if err := fn([]byte(key), snapshot[key]); err != nil {
			return err
		}
	}

	return nil
}

// Replace swaps the bucket's content with the entries.
func (m *Memory) Replace(bucket []byte, entries map[string][]byte) error {
	b := make(map[string][]byte, len(entries))
	for key, value := range entries {
		b[key] = bytes.Clone(value)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.buckets[string(bucket)] = b

	return nil
}
