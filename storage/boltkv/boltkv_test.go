package boltkv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cozo-community/cozo/storage"
)

func openTemp(t *testing.T) *Engine {
	t.Helper()
	eng, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestBoltPutGetRoundTrip(t *testing.T) {
	eng := openTemp(t)
	tx, err := eng.Transact(true)
	require.NoError(t, err)
	require.NoError(t, tx.Put([]byte("a"), []byte("1")))
	require.NoError(t, tx.Commit())

	tx2, err := eng.Transact(false)
	require.NoError(t, err)
	v, ok, err := tx2.Get([]byte("a"), false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)
}

func TestBoltReadOnlyTxRejectsWrites(t *testing.T) {
	eng := openTemp(t)
	tx, err := eng.Transact(false)
	require.NoError(t, err)
	require.Error(t, tx.Put([]byte("a"), []byte("1")))
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	eng, err := Open(path)
	require.NoError(t, err)
	tx, err := eng.Transact(true)
	require.NoError(t, err)
	require.NoError(t, tx.Put([]byte("k"), []byte("v")))
	require.NoError(t, tx.Commit())
	require.NoError(t, eng.Close())

	eng2, err := Open(path)
	require.NoError(t, err)
	defer eng2.Close()
	tx2, err := eng2.Transact(false)
	require.NoError(t, err)
	v, ok, err := tx2.Get([]byte("k"), false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)
}

func TestBoltForUpdateConflict(t *testing.T) {
	eng := openTemp(t)
	seed, err := eng.Transact(true)
	require.NoError(t, err)
	require.NoError(t, seed.Put([]byte("x"), []byte("0")))
	require.NoError(t, seed.Commit())

	txA, err := eng.Transact(true)
	require.NoError(t, err)
	txB, err := eng.Transact(true)
	require.NoError(t, err)

	_, _, err = txA.Get([]byte("x"), true)
	require.NoError(t, err)
	_, _, err = txB.Get([]byte("x"), true)
	require.NoError(t, err)

	require.NoError(t, txA.Put([]byte("x"), []byte("1")))
	require.NoError(t, txA.Commit())

	require.NoError(t, txB.Put([]byte("y"), []byte("2")))
	err = txB.Commit()
	require.ErrorIs(t, err, storage.ErrConflict)
}

func TestBoltRangeScanOrdering(t *testing.T) {
	eng := openTemp(t)
	tx, err := eng.Transact(true)
	require.NoError(t, err)
	for _, k := range []string{"b", "a", "c"} {
		require.NoError(t, tx.Put([]byte(k), []byte(k)))
	}
	require.NoError(t, tx.Commit())

	tx2, err := eng.Transact(false)
	require.NoError(t, err)
	it, err := tx2.RangeScan(nil, nil)
	require.NoError(t, err)
	var got []string
	for it.Next() {
		got = append(got, string(it.KV().Key))
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestBoltDelRange(t *testing.T) {
	eng := openTemp(t)
	tx, err := eng.Transact(true)
	require.NoError(t, err)
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, tx.Put([]byte(k), []byte(k)))
	}
	require.NoError(t, tx.Commit())

	require.NoError(t, eng.DelRange([]byte("a"), []byte("c")))

	tx2, err := eng.Transact(false)
	require.NoError(t, err)
	_, ok, err := tx2.Get([]byte("a"), false)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = tx2.Get([]byte("c"), false)
	require.NoError(t, err)
	require.True(t, ok)
}
