package kvstore

// Store is a minimal ordered, byte-keyed store with atomic single-key
// writes and prefix range scans. Config primary records and config history
// are stored through prefixed keys over a single Store, rather than one
// bucket per domain type. Naming instances are not persisted here; the
// naming router keeps them in memory only.
type Store interface {
	// Get returns the value for key, or ok=false if it does not exist.
	Get(key []byte) (value []byte, ok bool, err error)

	// Put writes key=value atomically.
	Put(key, value []byte) error

	// Delete removes key. It is not an error for key to be absent.
	Delete(key []byte) error

	// Scan calls fn for every key with the given prefix, in ascending
	// byte order, until fn returns false or the prefix is exhausted.
	Scan(prefix []byte, fn func(key, value []byte) bool) error

	// NextSeq atomically increments and returns the persisted counter
	// named by seqKey, starting from 1.
	NextSeq(seqKey []byte) (uint64, error)

	// Close releases the underlying database handle.
	Close() error
}
