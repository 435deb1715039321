package memkv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cozo-community/cozo/storage"
)

func TestPutGetRoundTrip(t *testing.T) {
	eng := New()
	tx, err := eng.Transact(true)
	require.NoError(t, err)
	require.NoError(t, tx.Put([]byte("a"), []byte("1")))
	v, ok, err := tx.Get([]byte("a"), false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)
	require.NoError(t, tx.Commit())

	tx2, err := eng.Transact(false)
	require.NoError(t, err)
	v2, ok2, err := tx2.Get([]byte("a"), false)
	require.NoError(t, err)
	require.True(t, ok2)
	require.Equal(t, []byte("1"), v2)
}

func TestReadOnlyTxRejectsWrites(t *testing.T) {
	eng := New()
	tx, err := eng.Transact(false)
	require.NoError(t, err)
	require.Error(t, tx.Put([]byte("a"), []byte("1")))
}

func TestRangeScanOrdering(t *testing.T) {
	eng := New()
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
	require.NoError(t, it.Err())
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestDelRange(t *testing.T) {
	eng := New()
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

// TestForUpdateConflict exercises spec.md §8 scenario 6: two transactions
// both read the same key with forUpdate, one commits first, the second's
// commit must fail with ErrConflict even though it never wrote that key.
func TestForUpdateConflict(t *testing.T) {
	eng := New()
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

func TestWriteWriteConflictWithoutForUpdate(t *testing.T) {
	eng := New()
	txA, err := eng.Transact(true)
	require.NoError(t, err)
	txB, err := eng.Transact(true)
	require.NoError(t, err)

	require.NoError(t, txA.Put([]byte("k"), []byte("a")))
	require.NoError(t, txA.Commit())

	require.NoError(t, txB.Put([]byte("k"), []byte("b")))
	err = txB.Commit()
	require.ErrorIs(t, err, storage.ErrConflict)
}

func TestNonConflictingWritesBothCommit(t *testing.T) {
	eng := New()
	txA, err := eng.Transact(true)
	require.NoError(t, err)
	txB, err := eng.Transact(true)
	require.NoError(t, err)

	require.NoError(t, txA.Put([]byte("k1"), []byte("a")))
	require.NoError(t, txA.Commit())

	require.NoError(t, txB.Put([]byte("k2"), []byte("b")))
	require.NoError(t, txB.Commit())
}

func TestRangeScanTuple(t *testing.T) {
	eng := New()
	tx, err := eng.Transact(true)
	require.NoError(t, err)
	require.NoError(t, tx.Put([]byte{0x01}, []byte{0xAA}))
	require.NoError(t, tx.Commit())

	tx2, err := eng.Transact(false)
	require.NoError(t, err)
	it, err := tx2.RangeScanTuple(nil, nil)
	require.NoError(t, err)
	_, err = storage.CollectTuples(it)
	require.Error(t, err) // not a valid encoded tuple, so decoding must fail cleanly
}
