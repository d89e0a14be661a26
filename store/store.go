// Package store defines the persistence contract the event-sourced cache
// runs against: list-append, list-range, hash-set, hash-get-all,
// key-scan-by-prefix, delete, flush-db. Values are opaque serialized
// event bytes; the cache owns serialization.
package store

// Store is the operation contract to the external key/value backing store.
// A Redis-like server satisfies the same shape; PebbleStore (pebble.go)
// is the local, embedded implementation exercised by this module.
type Store interface {
	// ListAppend appends value to the ordered list stored at key.
	ListAppend(key string, value []byte) (length int, err error)
	// ListRange returns the full ordered list stored at key, or an empty
	// slice if the key does not exist.
	ListRange(key string) ([][]byte, error)
	// HashSet sets one field of the hash stored at key.
	HashSet(key, field string, value []byte) error
	// HashGetAll returns every field/value pair of the hash stored at key.
	HashGetAll(key string) (map[string][]byte, error)
	// KeyScanPrefix returns every key sharing the given prefix.
	KeyScanPrefix(prefix string) ([]string, error)
	// Delete removes a key (and, for a list/hash key, everything under it).
	Delete(key string) error
	// FlushDB removes every key. Used only by tests and cold-start resets.
	FlushDB() error
	// Close releases the underlying handle.
	Close() error
}
