// Package docstore provides persistent storage of source documents using
// BadgerDB.
//
// Each document is stored under a caller-chosen ID together with a
// monotonically increasing validity stamp. The stamp changes on every
// write, so expression caches keyed on it recompile exactly when the
// document they were compiled from changes.
package docstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for BadgerDB storage organization.
// Using single-byte prefixes for efficiency.
const (
	prefixDoc = byte(0x01) // doc:id -> stamp + body
)

// ErrNotFound is returned when a document ID has no stored document.
var ErrNotFound = errors.New("document not found")

// Store is a Badger-backed document store.
//
// Features:
//   - ACID writes for document and stamp updates
//   - Monotonic per-document validity stamps
//   - Thread-safe concurrent access
//   - Optional in-memory mode for tests
type Store struct {
	db *badger.DB
}

// Options configures the document store.
type Options struct {
	// DataDir is the directory for storing data files.
	// Required unless InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode.
	// Useful for testing. Data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write.
	// Slower but more durable.
	SyncWrites bool
}

// Open creates a document store with default settings.
func Open(dataDir string) (*Store, error) {
	return OpenWithOptions(Options{DataDir: dataDir})
}

// OpenWithOptions creates a document store.
func OpenWithOptions(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	// Document payloads are small; keep Badger's buffers small too.
	badgerOpts = badgerOpts.
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(32 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory creates an in-memory document store for testing.
func OpenInMemory() (*Store, error) {
	return OpenWithOptions(Options{InMemory: true})
}

func docKey(id string) []byte {
	return append([]byte{prefixDoc}, []byte(id)...)
}

// encodeDoc lays out the value as an 8-byte big-endian stamp followed by
// the document body.
func encodeDoc(stamp int64, body []byte) []byte {
	buf := make([]byte, 8+len(body))
	binary.BigEndian.PutUint64(buf, uint64(stamp))
	copy(buf[8:], body)
	return buf
}

func decodeDoc(val []byte) (int64, []byte, error) {
	if len(val) < 8 {
		return 0, nil, fmt.Errorf("corrupt document record: %d bytes", len(val))
	}
	stamp := int64(binary.BigEndian.Uint64(val))
	body := make([]byte, len(val)-8)
	copy(body, val[8:])
	return stamp, body, nil
}

// Put stores a document body under id, returning its new validity stamp.
// The stamp increments on every write to the same ID.
func (s *Store) Put(id string, body []byte) (int64, error) {
	var stamp int64
	err := s.db.Update(func(txn *badger.Txn) error {
		stamp = 1
		item, err := txn.Get(docKey(id))
		if err == nil {
			err = item.Value(func(val []byte) error {
				prev, _, derr := decodeDoc(val)
				if derr != nil {
					return derr
				}
				stamp = prev + 1
				return nil
			})
			if err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(docKey(id), encodeDoc(stamp, body))
	})
	if err != nil {
		return 0, fmt.Errorf("put document %s: %w", id, err)
	}
	return stamp, nil
}

// Get returns the document body and validity stamp for id.
func (s *Store) Get(id string) ([]byte, int64, error) {
	var body []byte
	var stamp int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			stamp, body, err = decodeDoc(val)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("get document %s: %w", id, err)
	}
	return body, stamp, nil
}

// Stamp returns the validity stamp for id without reading the body.
func (s *Store) Stamp(id string) (int64, error) {
	_, stamp, err := s.Get(id)
	return stamp, err
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *Store) Delete(id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(docKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// List returns all stored document IDs.
func (s *Store) List() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte{prefixDoc}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			ids = append(ids, string(key[1:]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return ids, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
