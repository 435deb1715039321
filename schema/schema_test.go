package schema

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryPutGet(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("parent")
	require.False(t, ok)

	r.Put(Attribute{Name: "parent", Id: 1, Cardinality: CardinalityMany})
	attr, ok := r.Get("parent")
	require.True(t, ok)
	require.Equal(t, EntityId(1), attr.Id)
	require.Equal(t, CardinalityMany, attr.Cardinality)
}

func TestRegistryPutReplaces(t *testing.T) {
	r := NewRegistry()
	r.Put(Attribute{Name: "x", Id: 1, Type: TypeAny})
	r.Put(Attribute{Name: "x", Id: 1, Type: TypeRef})
	attr, ok := r.Get("x")
	require.True(t, ok)
	require.Equal(t, TypeRef, attr.Type)
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	r.Put(Attribute{Name: "b"})
	r.Put(Attribute{Name: "a"})
	names := r.Names()
	sort.Strings(names)
	require.Equal(t, []string{"a", "b"}, names)
}
