package store

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"

	"github.com/troubladore/venuecore/internal/xerrors"
)

// Physical key namespaces: each logical Store key maps to one or more
// physical Pebble keys depending on which operation (list vs hash)
// addressed it.
const (
	listItemPrefix  = "l:"
	listCountPrefix = "lc:"
	hashFieldPrefix = "h:"
	sep             = "\x00"
)

// PebbleStore is the embedded LSM-backed Store implementation.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebbleStore opens (creating if absent) a Pebble database at path.
func OpenPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, xerrors.Wrap(err, "open pebble store")
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func listCountKey(key string) []byte {
	return []byte(listCountPrefix + key)
}

func listItemKey(key string, index uint64) []byte {
	return []byte(fmt.Sprintf("%s%s%s%020d", listItemPrefix, key, sep, index))
}

func listItemPrefixFor(key string) []byte {
	return []byte(listItemPrefix + key + sep)
}

func hashFieldKey(key, field string) []byte {
	return []byte(hashFieldPrefix + key + sep + field)
}

func hashKeyPrefixFor(key string) []byte {
	return []byte(hashFieldPrefix + key + sep)
}

// keyUpperBound derives the exclusive upper bound of a prefix scan by
// incrementing the last byte.
func keyUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}

func (s *PebbleStore) listLength(key string) (uint64, error) {
	val, closer, err := s.db.Get(listCountKey(key))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, xerrors.Wrap(err, "read list length")
	}
	defer closer.Close()
	return binary.BigEndian.Uint64(val), nil
}

// ListAppend appends value at the next index in the list at key.
func (s *PebbleStore) ListAppend(key string, value []byte) (int, error) {
	length, err := s.listLength(key)
	if err != nil {
		return 0, err
	}
	if err := s.db.Set(listItemKey(key, length), value, pebble.Sync); err != nil {
		return 0, xerrors.Wrap(err, "append list item")
	}
	length++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, length)
	if err := s.db.Set(listCountKey(key), buf, pebble.Sync); err != nil {
		return 0, xerrors.Wrap(err, "persist list length")
	}
	return int(length), nil
}

// ListRange returns every element of the list at key, in append order.
func (s *PebbleStore) ListRange(key string) ([][]byte, error) {
	prefix := listItemPrefixFor(key)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return nil, xerrors.Wrap(err, "open list range iterator")
	}
	defer iter.Close()

	var out [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		out = append(out, append([]byte(nil), iter.Value()...))
	}
	return out, nil
}

// HashSet sets one field of the hash at key.
func (s *PebbleStore) HashSet(key, field string, value []byte) error {
	if err := s.db.Set(hashFieldKey(key, field), value, pebble.Sync); err != nil {
		return xerrors.Wrap(err, "hash set")
	}
	return nil
}

// HashGetAll returns every field of the hash at key.
func (s *PebbleStore) HashGetAll(key string) (map[string][]byte, error) {
	prefix := hashKeyPrefixFor(key)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return nil, xerrors.Wrap(err, "open hash iterator")
	}
	defer iter.Close()

	out := make(map[string][]byte)
	for iter.First(); iter.Valid(); iter.Next() {
		field := strings.TrimPrefix(string(iter.Key()), string(prefix))
		out[field] = append([]byte(nil), iter.Value()...)
	}
	return out, nil
}

// KeyScanPrefix returns every logical key (list or hash) whose name
// starts with prefix.
func (s *PebbleStore) KeyScanPrefix(prefix string) ([]string, error) {
	seen := make(map[string]struct{})
	if err := s.scanLogicalKeys(listCountPrefix, prefix, seen); err != nil {
		return nil, err
	}
	if err := s.scanLogicalKeys(hashFieldPrefix, prefix, seen); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	return out, nil
}

func (s *PebbleStore) scanLogicalKeys(typeTag, prefix string, seen map[string]struct{}) error {
	lower := []byte(typeTag + prefix)
	upper := keyUpperBound([]byte(typeTag))
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return xerrors.Wrap(err, "open prefix scan iterator")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		raw := strings.TrimPrefix(string(iter.Key()), typeTag)
		if typeTag == hashFieldPrefix {
			if idx := strings.Index(raw, sep); idx >= 0 {
				raw = raw[:idx]
			}
		}
		if strings.HasPrefix(raw, prefix) {
			seen[raw] = struct{}{}
		}
	}
	return nil
}

// Delete removes a key, whether it names a list or a hash.
func (s *PebbleStore) Delete(key string) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	listPrefix := listItemPrefixFor(key)
	if err := batch.DeleteRange(listPrefix, keyUpperBound(listPrefix), nil); err != nil {
		return xerrors.Wrap(err, "delete list range")
	}
	if err := batch.Delete(listCountKey(key), nil); err != nil {
		return xerrors.Wrap(err, "delete list count")
	}
	hashPrefix := hashKeyPrefixFor(key)
	if err := batch.DeleteRange(hashPrefix, keyUpperBound(hashPrefix), nil); err != nil {
		return xerrors.Wrap(err, "delete hash range")
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return xerrors.Wrap(err, "commit delete batch")
	}
	return nil
}

// FlushDB removes every key. Only used by tests and cold-start resets.
func (s *PebbleStore) FlushDB() error {
	if err := s.db.DeleteRange([]byte{0x00}, []byte{0xff}, pebble.Sync); err != nil {
		return xerrors.Wrap(err, "flush db")
	}
	return nil
}

var _ Store = (*PebbleStore)(nil)
