package value

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTupleRoundTrip(t *testing.T) {
	cases := []Tuple{
		{},
		{Null},
		{Int(42), String("hello"), Bool(true)},
		{Int(-7), Float(-3.25), Bytes([]byte{0, 1, 0, 2})},
		{List([]Value{Int(1), Int(2), String("x\x00y")})},
		{EnId(EntityId(9001)), Vld(Validity{At: 100, Assert: true})},
		{Guid([]byte{0xde, 0xad, 0x00, 0xbe, 0xef})},
	}
	for _, tup := range cases {
		enc := EncodeTuple(tup)
		dec, err := DecodeTuple(enc)
		require.NoError(t, err)
		require.True(t, tup.Equal(dec), "round-trip mismatch for %v: got %v", tup, dec)
	}
}

func TestDecodeTupleFromKV(t *testing.T) {
	key := EncodeTuple(Tuple{Int(1), Int(2)})
	val := EncodeTuple(Tuple{String("three")})
	got, err := DecodeTupleFromKV(key, val)
	require.NoError(t, err)
	require.True(t, got.Equal(Tuple{Int(1), Int(2), String("three")}))
}

func TestOrderingMatchesEncoding(t *testing.T) {
	values := []Value{
		Bottom,
		Null,
		Bool(false),
		Bool(true),
		Int(-100),
		Int(-1),
		Int(0),
		Int(1),
		Int(100),
		Float(-1.5),
		Float(0.5),
		Float(10.5),
		String("alpha"),
		String("beta"),
		String("zeta"),
		Bytes([]byte{1, 2}),
		Bytes([]byte{1, 2, 3}),
		List([]Value{Int(1)}),
		List([]Value{Int(1), Int(2)}),
		EnId(1),
		EnId(2),
		Top,
	}
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			require.Truef(t, Compare(values[i], values[j]) < 0,
				"expected %v < %v", values[i], values[j])
			require.Truef(t, string(EncodeTuple(Tuple{values[i]})) < string(EncodeTuple(Tuple{values[j]})),
				"expected encode(%v) < encode(%v)", values[i], values[j])
		}
	}

	shuffled := append([]Value(nil), values...)
	sort.Slice(shuffled, func(i, j int) bool { return string(EncodeTuple(Tuple{shuffled[j]})) < string(EncodeTuple(Tuple{shuffled[i]})) })
	sort.Slice(shuffled, func(i, j int) bool { return Compare(shuffled[i], shuffled[j]) < 0 })
	for i := range values {
		require.True(t, Equal(values[i], shuffled[i]))
	}
}

func TestIntOrderingAcrossSignBoundary(t *testing.T) {
	require.True(t, Compare(Int(-1), Int(0)) < 0)
	require.True(t, string(EncodeTuple(Tuple{Int(-1)})) < string(EncodeTuple(Tuple{Int(0)})))
}
