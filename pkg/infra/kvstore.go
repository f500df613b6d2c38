package infra

// UpdateFunc maps the current value of a key to its next value. current is
// nil when the key is absent; returning nil removes the key.
type UpdateFunc func(current []byte) ([]byte, error)

// KVStore is the byte-level key space behind watcher progress. Badger and
// Consul back it.
type KVStore interface {
	Backend() string
	// Get returns kvstore.ErrKeyNotFound for a missing key.
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	// Update runs fn as a single atomic read-modify-write.
	Update(key string, fn UpdateFunc) error
	Delete(key string) error
	Close() error
}
