// Package cache keeps fetched leaves in a local pebble database keyed by
// log index, so repeated runs against the same log skip the network for
// indexes they have already seen.
package cache

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// leafKeyPrefix namespaces leaf entries inside the database. The 8-byte
// big-endian index after the prefix makes iteration order equal index
// order.
const leafKeyPrefix = "leaf/"

// ErrNotCached indicates no entry exists for the requested index.
var ErrNotCached = errors.New("cache: leaf not cached")

// CachedLeaf is one cached log position: the leaf record bytes, the raw
// attestation body they refer to, and when they were fetched.
type CachedLeaf struct {
	Index     uint64    `json:"index"`
	FetchedAt time.Time `json:"fetched_at"`
	Leaf      []byte    `json:"leaf"`
	Raw       []byte    `json:"raw"`
}

// LeafCache is a pebble-backed cache of fetched leaves. It is safe for
// concurrent use.
type LeafCache struct {
	db *pebble.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*LeafCache, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &LeafCache{db: db}, nil
}

// Put stores a leaf, overwriting any previous entry for the same index.
// A zero FetchedAt is stamped with the current time.
func (c *LeafCache) Put(entry *CachedLeaf) error {
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = time.Now().UTC()
	}

	value, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrapf(err, "encoding leaf %d", entry.Index)
	}

	return c.db.Set(leafKey(entry.Index), value, pebble.NoSync)
}

// Get returns the cached leaf for an index, or ErrNotCached.
func (c *LeafCache) Get(index uint64) (*CachedLeaf, error) {
	data, closer, err := c.db.Get(leafKey(index))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, errors.Wrapf(ErrNotCached, "leaf %d", index)
		}
		return nil, err
	}
	defer closer.Close()

	var entry CachedLeaf
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, errors.Wrapf(err, "decoding cached leaf %d", index)
	}

	return &entry, nil
}

// Delete removes the entry for an index. Deleting an absent index is not
// an error.
func (c *LeafCache) Delete(index uint64) error {
	return c.db.Delete(leafKey(index), pebble.NoSync)
}

// Range calls fn for every cached leaf with from <= index <= to, in
// ascending index order. Returning an error from fn stops the scan and
// surfaces that error.
func (c *LeafCache) Range(from, to uint64, fn func(*CachedLeaf) error) error {
	iter, err := c.db.NewIter(&pebble.IterOptions{
		LowerBound: leafKey(from),
		UpperBound: leafKeyUpperBound(to),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var entry CachedLeaf
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			return errors.Wrapf(err, "decoding cached leaf at key %x", iter.Key())
		}
		if err := fn(&entry); err != nil {
			return err
		}
	}

	return iter.Error()
}

// Indexes returns the cached indexes with from <= index <= to, ascending.
func (c *LeafCache) Indexes(from, to uint64) ([]uint64, error) {
	iter, err := c.db.NewIter(&pebble.IterOptions{
		LowerBound: leafKey(from),
		UpperBound: leafKeyUpperBound(to),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var indexes []uint64
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		indexes = append(indexes, binary.BigEndian.Uint64(key[len(leafKeyPrefix):]))
	}

	return indexes, iter.Error()
}

// Count returns the number of cached leaves.
func (c *LeafCache) Count() (int, error) {
	indexes, err := c.Indexes(0, math.MaxUint64)
	if err != nil {
		return 0, err
	}
	return len(indexes), nil
}

// Close closes the underlying database.
func (c *LeafCache) Close() error {
	return c.db.Close()
}

func leafKey(index uint64) []byte {
	key := make([]byte, len(leafKeyPrefix)+8)
	copy(key, leafKeyPrefix)
	binary.BigEndian.PutUint64(key[len(leafKeyPrefix):], index)
	return key
}

// leafKeyUpperBound returns the exclusive upper bound covering indexes
// up to and including to.
func leafKeyUpperBound(to uint64) []byte {
	if to == math.MaxUint64 {
		bound := []byte(leafKeyPrefix)
		bound[len(bound)-1]++
		return bound
	}
	return leafKey(to + 1)
}
