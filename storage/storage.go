// Package storage defines the MVCC key/value contract that the plan
// executor runs against (spec.md §4.3): a Storage engine that mints
// transactions, and a Tx that supports point ops, ordered half-open range
// scans (with tuple decoding), and commit-time conflict detection.
//
// The contract is a capability set (spec.md §9: "Trait-object dispatch or
// tagged-union dispatch are both acceptable; the plan never names a
// concrete backend"); see storage/memkv and storage/boltkv for the two
// reference implementations this expansion wires.
package storage

import (
	"errors"

	"github.com/cozo-community/cozo/value"
)

// Error kinds named in spec.md §7, realized as sentinels so callers can
// match with errors.Is even though implementations wrap them with
// github.com/pkg/errors for stack-trace context at the storage boundary.
var (
	ErrStorageIo = errors.New("storage: io error")
	ErrConflict  = errors.New("storage: write-write or for-update conflict")
	ErrCorrupt   = errors.New("storage: corrupt data")
)

// KV is one decoded (key, value) pair as returned by RangeScan.
type KV struct {
	Key []byte
	Val []byte
}

// Storage is a swappable storage engine. Implementations are chosen at
// database-construction time (spec.md §9: "engine: mem | sqlite |
// embedded-kv | ...").
type Storage interface {
	// Transact creates a fresh MVCC transaction. Write ops must only be
	// called when write == true; implementations may assume and enforce
	// this (spec.md §4.3).
	Transact(write bool) (Tx, error)

	// DelRange asynchronously deletes every key in [lower, upper). It is
	// guaranteed that no future transaction ever observes a key that was
	// in a deleted range, whether by tombstone or physical removal.
	DelRange(lower, upper []byte) error

	// RangeCompact is an advisory hint; implementations may treat it as a
	// no-op.
	RangeCompact(lower, upper []byte) error

	// Close releases any resources held by the engine.
	Close() error
}

// Tx is one MVCC transaction. A read-only Tx (obtained via
// Storage.Transact(false)) must reject Put/Del/BatchPut.
type Tx interface {
	// Get performs a point read. If forUpdate is true, Commit must fail
	// with ErrConflict if key is modified outside this transaction before
	// this transaction commits (SSI or S2PL, backend's choice).
	Get(key []byte, forUpdate bool) ([]byte, bool, error)

	// Exists is a cheaper existence check with the same forUpdate
	// semantics as Get.
	Exists(key []byte, forUpdate bool) (bool, error)

	// Put writes key -> val. Valid only on a write transaction.
	Put(key, val []byte) error

	// Del removes key. Valid only on a write transaction.
	Del(key []byte) error

	// BatchPut writes every pair in kvs. The default semantics (and every
	// implementation in this module) is equivalent to calling Put
	// repeatedly, in order.
	BatchPut(kvs []KV) error

	// Commit atomically applies every buffered write. It returns
	// ErrConflict (and discards all of this transaction's writes) if any
	// forUpdate key was externally modified, or on any write-write
	// conflict; a successful commit is atomically visible to every
	// transaction that starts afterward.
	Commit() error

	// Rollback discards the transaction and any buffered writes without
	// attempting to commit.
	Rollback() error

	// RangeScan returns the raw (key, value) pairs in [lower, upper),
	// ordered ascending by encoded key. Reads observe this transaction's
	// snapshot plus its own pending writes.
	RangeScan(lower, upper []byte) (Iterator, error)

	// RangeScanTuple is like RangeScan but decodes every pair via
	// value.DecodeTupleFromKV.
	RangeScanTuple(lower, upper []byte) (TupleIterator, error)
}

// Iterator is a lazy, forward-only sequence of raw (key, value) pairs.
type Iterator interface {
	// Next advances to the next pair, returning false once exhausted or on
	// error (check Err after a false return).
	Next() bool
	KV() KV
	Err() error
	Close()
}

// TupleIterator is like Iterator but yields decoded value.Tuple rows.
type TupleIterator interface {
	Next() bool
	Tuple() value.Tuple
	Err() error
	Close()
}

// CollectTuples drains it into a slice, for callers (mostly tests) that do
// not need streaming.
func CollectTuples(it TupleIterator) ([]value.Tuple, error) {
	defer it.Close()
	var out []value.Tuple
	for it.Next() {
		out = append(out, it.Tuple())
	}
	return out, it.Err()
}
