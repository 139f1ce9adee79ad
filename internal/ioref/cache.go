package ioref

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dgraph-io/badger/v4"
)

// Cache memoizes http(s) fetches, including those made for library roots
// that are base URLs. It is content-addressed by a SHA-256 of the reference
// string, backed by an embedded github.com/dgraph-io/badger/v4 store,
// grounded on the teacher's examples/memory/badger/badger.go Store. Its
// lifetime is that of the directory it is opened in: cmd/flowc opens one
// under the system temp dir, so entries persist across compiler
// invocations. Only the compiler uses it; the runtime keeps no state
// between submissions.
type Cache struct {
	db *badger.DB
}

// NewCache opens a badger store at dir. An empty dir uses badger's
// in-memory mode, which leaves no files behind.
func NewCache(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying badger store.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the cached bytes for ref, or ok == false on a cache miss.
func (c *Cache) Get(ref string) (data []byte, ok bool) {
	if c == nil {
		return nil, false
	}
	key := cacheKey(ref)
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	return data, err == nil
}

// Put stores data under ref's cache key.
func (c *Cache) Put(ref string, data []byte) error {
	if c == nil {
		return nil
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cacheKey(ref), data)
	})
}

func cacheKey(ref string) []byte {
	sum := sha256.Sum256([]byte(ref))
	return []byte(hex.EncodeToString(sum[:]))
}
