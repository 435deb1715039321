// Package boltkv is the durable, embedded-kv storage backend: it wraps
// go.etcd.io/bbolt (the dependency hashicorp-nomad carries for its local
// state store) and layers a per-key version-stamp bucket on top, so that
// for_update conflict detection works the same way storage/memkv's does,
// just against a file on disk instead of process memory. It satisfies the
// exact same storage.Storage/storage.Tx contract, which is the whole point
// of the engine: plan (spec.md §4.4) must not care which one is in effect.
package boltkv

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/cozo-community/cozo/storage"
	"github.com/cozo-community/cozo/value"
)

var (
	dataBucket = []byte("data")
	verBucket  = []byte("ver")
	metaBucket = []byte("meta")
	stampKey   = []byte("stamp")
)

// Engine is a durable storage.Storage backed by a single bbolt file.
type Engine struct {
	db *bolt.DB
}

// Open opens (creating if necessary) a bbolt-backed engine at path.
func Open(path string) (*Engine, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrap(storage.ErrStorageIo, err.Error())
	}
	err = db.Update(func(btx *bolt.Tx) error {
		for _, b := range [][]byte{dataBucket, verBucket, metaBucket} {
			if _, err := btx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(storage.ErrStorageIo, err.Error())
	}
	return &Engine{db: db}, nil
}

var _ storage.Storage = (*Engine)(nil)

func readStamp(btx *bolt.Tx) uint64 {
	raw := btx.Bucket(metaBucket).Get(stampKey)
	if raw == nil {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

func writeStamp(btx *bolt.Tx, stamp uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], stamp)
	return btx.Bucket(metaBucket).Put(stampKey, buf[:])
}

func keyVersion(btx *bolt.Tx, key []byte) uint64 {
	raw := btx.Bucket(verBucket).Get(key)
	if raw == nil {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

func (e *Engine) Transact(write bool) (storage.Tx, error) {
	roTx, err := e.db.Begin(false)
	if err != nil {
		return nil, errors.Wrap(storage.ErrStorageIo, err.Error())
	}
	return &tx{
		eng:           e,
		write:         write,
		roTx:          roTx,
		snapshotStamp: readStamp(roTx),
		pendingPut:    make(map[string][]byte),
		pendingDel:    make(map[string]bool),
		forUpdateKeys: make(map[string]bool),
	}, nil
}

func (e *Engine) DelRange(lower, upper []byte) error {
	err := e.db.Update(func(btx *bolt.Tx) error {
		data := btx.Bucket(dataBucket)
		ver := btx.Bucket(verBucket)
		stamp := readStamp(btx) + 1
		c := data.Cursor()
		var toDelete [][]byte
		for k, _ := c.Seek(lower); k != nil && (upper == nil || string(k) < string(upper)); k, _ = c.Next() {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		for _, k := range toDelete {
			if err := data.Delete(k); err != nil {
				return err
			}
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], stamp)
			if err := ver.Put(k, buf[:]); err != nil {
				return err
			}
		}
		if len(toDelete) > 0 {
			return writeStamp(btx, stamp)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(storage.ErrStorageIo, err.Error())
	}
	return nil
}

// RangeCompact is an advisory hint; bbolt reclaims free pages on its own, so
// this is a no-op, matching the memkv backend's behavior.
func (e *Engine) RangeCompact(lower, upper []byte) error { return nil }

func (e *Engine) Close() error {
	if err := e.db.Close(); err != nil {
		return errors.Wrap(storage.ErrStorageIo, err.Error())
	}
	return nil
}

type tx struct {
	eng           *Engine
	write         bool
	roTx          *bolt.Tx
	snapshotStamp uint64
	pendingPut    map[string][]byte
	pendingDel    map[string]bool
	forUpdateKeys map[string]bool
	done          bool
}

var _ storage.Tx = (*tx)(nil)

func (t *tx) Get(key []byte, forUpdate bool) ([]byte, bool, error) {
	if t.done {
		return nil, false, errors.Wrap(storage.ErrStorageIo, "boltkv: get on a finished transaction")
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
	raw := t.roTx.Bucket(dataBucket).Get(key)
	if raw == nil {
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

func (t *tx) Exists(key []byte, forUpdate bool) (bool, error) {
	_, ok, err := t.Get(key, forUpdate)
	return ok, err
}

func (t *tx) requireWrite() error {
	if t.done {
		return errors.Wrap(storage.ErrStorageIo, "boltkv: write on a finished transaction")
	}
	if !t.write {
		return errors.Wrap(storage.ErrStorageIo, "boltkv: write op on a read-only transaction")
	}
	return nil
}

func (t *tx) Put(key, val []byte) error {
	if err := t.requireWrite(); err != nil {
		return err
	}
	k := string(key)
	delete(t.pendingDel, k)
	t.pendingPut[k] = append([]byte(nil), val...)
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
		return errors.Wrap(storage.ErrStorageIo, "boltkv: commit on a finished transaction")
	}
	defer func() {
		_ = t.roTx.Rollback()
		t.done = true
	}()
	if !t.write {
		return nil
	}

	conflict := false
	err := t.eng.db.Update(func(btx *bolt.Tx) error {
		touched := make(map[string]bool, len(t.pendingPut)+len(t.pendingDel))
		for k := range t.pendingPut {
			touched[k] = true
		}
		for k := range t.pendingDel {
			touched[k] = true
		}
		for k := range touched {
			if keyVersion(btx, []byte(k)) > t.snapshotStamp {
				conflict = true
				return nil
			}
		}
		for k := range t.forUpdateKeys {
			if keyVersion(btx, []byte(k)) > t.snapshotStamp {
				conflict = true
				return nil
			}
		}

		stamp := readStamp(btx) + 1
		data := btx.Bucket(dataBucket)
		ver := btx.Bucket(verBucket)
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], stamp)
		for k, v := range t.pendingPut {
			if err := data.Put([]byte(k), v); err != nil {
				return err
			}
			if err := ver.Put([]byte(k), buf[:]); err != nil {
				return err
			}
		}
		for k := range t.pendingDel {
			if err := data.Delete([]byte(k)); err != nil {
				return err
			}
			if err := ver.Put([]byte(k), buf[:]); err != nil {
				return err
			}
		}
		return writeStamp(btx, stamp)
	})
	if err != nil {
		return errors.Wrap(storage.ErrStorageIo, err.Error())
	}
	if conflict {
		return storage.ErrConflict
	}
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.roTx.Rollback()
}

func (t *tx) view(lower, upper []byte) map[string][]byte {
	merged := make(map[string][]byte)
	c := t.roTx.Bucket(dataBucket).Cursor()
	for k, v := c.Seek(lower); k != nil && (upper == nil || string(k) < string(upper)); k, v = c.Next() {
		merged[string(k)] = append([]byte(nil), v...)
	}
	for k, v := range t.pendingPut {
		kb := []byte(k)
		if bytesGTE(kb, lower) && (upper == nil || bytesLTAbs(kb, upper)) {
			merged[k] = v
		}
	}
	for k := range t.pendingDel {
		delete(merged, k)
	}
	return merged
}

func (t *tx) RangeScan(lower, upper []byte) (storage.Iterator, error) {
	view := t.view(lower, upper)
	keys := make([]string, 0, len(view))
	for k := range view {
		keys = append(keys, k)
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
func (it *iterator) Err() error     { return nil }
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
	tup, err := value.DecodeTupleFromKV(kv.Key, kv.Val)
	if err != nil {
		it.err = errors.Wrap(storage.ErrCorrupt, err.Error())
		return false
	}
	it.cur = tup
	return true
}

func (it *tupleIterator) Tuple() value.Tuple { return it.cur }
func (it *tupleIterator) Err() error         { return it.err }
func (it *tupleIterator) Close()             {}

func bytesGTE(a, b []byte) bool {
	if b == nil {
		return true
	}
	return string(a) >= string(b)
}

func bytesLTAbs(a, b []byte) bool {
	return string(a) < string(b)
}
