package kvstore

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var dataBucket = []byte("data")
var seqBucket = []byte("seq")

// BoltStore implements Store over a single bbolt database file with a flat
// "data" bucket and a "seq" bucket for NextSeq counters. Component-specific
// key prefixes (config primary rows, config history rows) share this one
// bucket rather than each owning its own bucket, so that a single prefix
// Scan can serve any component's range queries. Naming instances are not
// stored here.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a bbolt database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	path := filepath.Join(dataDir, "nexuscore.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(dataBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(seqBucket); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(dataBucket).Get(key)
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

func (s *BoltStore) Put(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(dataBucket).Put(key, value)
	})
}

func (s *BoltStore) Delete(key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(dataBucket).Delete(key)
	})
}

func (s *BoltStore) Scan(prefix []byte, fn func(key, value []byte) bool) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(dataBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			if !fn(append([]byte(nil), k...), append([]byte(nil), v...)) {
				break
			}
		}
		return nil
	})
}

func (s *BoltStore) NextSeq(seqKey []byte) (uint64, error) {
	var next uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(seqBucket)
		cur := b.Get(seqKey)
		var n uint64
		if cur != nil {
			n = binary.BigEndian.Uint64(cur)
		}
		n++
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, n)
		if err := b.Put(seqKey, buf); err != nil {
			return err
		}
		next = n
		return nil
	})
	return next, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
