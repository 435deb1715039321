// Package memkv is the default, dependency-free storage backend: an
// in-process MVCC key/value store over an in-memory map (sorted at scan
// time), guarded by a mutex, with a monotonic per-key commit stamp used for for_update
// conflict detection. It is grounded on the teacher's own
// DBPred.database []*Clause idiom (a predicate's facts are just a Go slice
// owned by the predicate), generalized from a clause list to a byte-keyed
// map, since that is the simplest possible engine that satisfies the
// storage.Storage/Tx contract (spec.md §4.3) and needs no third-party
// dependency — exactly the "mem" engine tag spec.md §9 expects to exist.
package memkv

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/cozo-community/cozo/storage"
	"github.com/cozo-community/cozo/value"
)

// Engine is an in-memory storage.Storage.
type Engine struct {
	mu        sync.Mutex
	data      map[string][]byte
	versionOf map[string]uint64
	stamp     uint64
}

// New returns an empty in-memory engine.
func New() *Engine {
	return &Engine{
		data:      make(map[string][]byte),
		versionOf: make(map[string]uint64),
	}
}

var _ storage.Storage = (*Engine)(nil)

func (e *Engine) Transact(write bool) (storage.Tx, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := make(map[string][]byte, len(e.data))
	for k, v := range e.data {
		snap[k] = v
	}
	return &tx{
		eng:           e,
		write:         write,
		snapshotStamp: e.stamp,
		snapshot:      snap,
		pendingPut:    make(map[string][]byte),
		pendingDel:    make(map[string]bool),
		forUpdateKeys: make(map[string]bool),
	}, nil
}

func (e *Engine) DelRange(lower, upper []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k := range e.data {
		kb := []byte(k)
		if bytesGTE(kb, lower) && bytesLT(kb, upper) {
			delete(e.data, k)
			e.stamp++
			e.versionOf[k] = e.stamp
		}
	}
	return nil
}

// RangeCompact is an advisory no-op for this engine.
func (e *Engine) RangeCompact(lower, upper []byte) error { return nil }

func (e *Engine) Close() error { return nil }

type tx struct {
	eng           *Engine
	write         bool
	snapshotStamp uint64
	snapshot      map[string][]byte
	pendingPut    map[string][]byte
	pendingDel    map[string]bool
	forUpdateKeys map[string]bool
	done          bool
}

var _ storage.Tx = (*tx)(nil)

func (t *tx) Get(key []byte, forUpdate bool) ([]byte, bool, error) {
	if t.done {
		return nil, false, errors.Wrap(storage.ErrStorageIo, "memkv: get on a finished transaction")
	}
	k := string(key)
	if forUpdate {
		t.forUpdateKeys[k] = true
	}
	if t.pendingDel[k] {
		return nil, false, nil
	}
	if v, ok := t.pendingPut[k]; ok {
		return v, true, nil
	}
	v, ok := t.snapshot[k]
	return v, ok, nil
}

func (t *tx) Exists(key []byte, forUpdate bool) (bool, error) {
	_, ok, err := t.Get(key, forUpdate)
	return ok, err
}

func (t *tx) requireWrite() error {
	if t.done {
		return errors.Wrap(storage.ErrStorageIo, "memkv: write on a finished transaction")
	}
	if !t.write {
		return errors.Wrap(storage.ErrStorageIo, "memkv: write op on a read-only transaction")
	}
	return nil
}

func (t *tx) Put(key, val []byte) error {
	if err := t.requireWrite(); err != nil {
		return err
	}
	k := string(key)
	delete(t.pendingDel, k)
	cp := append([]byte(nil), val...)
	t.pendingPut[k] = cp
	return nil
}

func (t *tx) Del(key []byte) error {
	if err := t.requireWrite(); err != nil {
		return err
	}
	k := string(key)
	delete(t.pendingPut, k)
	t.pendingDel[k] = true
	return nil
}

func (t *tx) BatchPut(kvs []storage.KV) error {
	for _, kv := range kvs {
		if err := t.Put(kv.Key, kv.Val); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return errors.Wrap(storage.ErrStorageIo, "memkv: commit on a finished transaction")
	}
	defer func() { t.done = true }()
	if !t.write {
		return nil
	}
	eng := t.eng
	eng.mu.Lock()
	defer eng.mu.Unlock()

	touched := make(map[string]bool, len(t.pendingPut)+len(t.pendingDel))
	for k := range t.pendingPut {
		touched[k] = true
	}
	for k := range t.pendingDel {
		touched[k] = true
	}
	for k := range touched {
		if eng.versionOf[k] > t.snapshotStamp {
			return storage.ErrConflict
		}
	}
	for k := range t.forUpdateKeys {
		if eng.versionOf[k] > t.snapshotStamp {
			return storage.ErrConflict
		}
	}

	eng.stamp++
	for k, v := range t.pendingPut {
		eng.data[k] = v
		eng.versionOf[k] = eng.stamp
	}
	for k := range t.pendingDel {
		delete(eng.data, k)
		eng.versionOf[k] = eng.stamp
	}
	return nil
}

func (t *tx) Rollback() error {
	t.done = true
	return nil
}

func (t *tx) view() map[string][]byte {
	// merge snapshot with this transaction's own pending writes, per
	// spec.md §4.3: "reads observe this transaction's snapshot plus its
	// own pending writes."
	merged := make(map[string][]byte, len(t.snapshot)+len(t.pendingPut))
	for k, v := range t.snapshot {
		if !t.pendingDel[k] {
			merged[k] = v
		}
	}
	for k, v := range t.pendingPut {
		merged[k] = v
	}
	return merged
}

func (t *tx) RangeScan(lower, upper []byte) (storage.Iterator, error) {
	view := t.view()
	keys := make([]string, 0, len(view))
	for k := range view {
		kb := []byte(k)
		if bytesGTE(kb, lower) && bytesLT(kb, upper) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return &iterator{view: view, keys: keys}, nil
}

func (t *tx) RangeScanTuple(lower, upper []byte) (storage.TupleIterator, error) {
	it, err := t.RangeScan(lower, upper)
	if err != nil {
		return nil, err
	}
	return &tupleIterator{inner: it.(*iterator)}, nil
}

type iterator struct {
	view map[string][]byte
	keys []string
	i    int
	cur  storage.KV
	err  error
}

func (it *iterator) Next() bool {
	if it.i >= len(it.keys) {
		return false
	}
	k := it.keys[it.i]
	it.cur = storage.KV{Key: []byte(k), Val: it.view[k]}
	it.i++
	return true
}

func (it *iterator) KV() storage.KV { return it.cur }
func (it *iterator) Err() error     { return it.err }
func (it *iterator) Close()         {}

type tupleIterator struct {
	inner *iterator
	cur   value.Tuple
	err   error
}

func (it *tupleIterator) Next() bool {
	if !it.inner.Next() {
		return false
	}
	kv := it.inner.KV()
	t, err := value.DecodeTupleFromKV(kv.Key, kv.Val)
	if err != nil {
		it.err = errors.Wrap(storage.ErrCorrupt, err.Error())
		return false
	}
	it.cur = t
	return true
}

func (it *tupleIterator) Tuple() value.Tuple { return it.cur }
func (it *tupleIterator) Err() error         { return it.err }
func (it *tupleIterator) Close()             {}

func bytesLT(a, b []byte) bool {
	if b == nil {
		return true
	}
	return compareBytes(a, b) < 0
}

func bytesGTE(a, b []byte) bool {
	if b == nil {
		return true
	}
	return compareBytes(a, b) >= 0
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
