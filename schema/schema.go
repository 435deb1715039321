// Package schema defines the triple-store schema surface referenced by
// spec.md §3: Attribute, EntityId, and Validity. EntityId and Validity are
// re-exported from package value, since they are themselves Value variants
// (spec.md §3: "an EntityId is an opaque integer handle"); Attribute is new
// here because it is schema metadata, not a runtime value.
package schema

import "github.com/cozo-community/cozo/value"

// EntityId is an opaque 64-bit handle identifying one entity.
type EntityId = value.EntityId

// Validity selects the temporally-correct view of an attribute.
type Validity = value.Validity

// Cardinality describes how many values one entity may hold for an
// attribute at a given Validity.
type Cardinality uint8

const (
	// CardinalityOne means an entity has at most one value for the
	// attribute at any given Validity (a later assertion supersedes an
	// earlier one).
	CardinalityOne Cardinality = iota
	// CardinalityMany means an entity may hold an unbounded set of values
	// for the attribute simultaneously.
	CardinalityMany
)

// ValueType constrains which value.Tag an attribute's values may carry.
// TypeAny disables the check (any tag is accepted).
type ValueType uint8

const (
	TypeAny ValueType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeBytes
	TypeList
	TypeRef // an EntityId value, i.e. this attribute points at another entity
)

// Attribute is a named, typed schema entry identifying one column of the
// triple store (spec.md §3). It carries cardinality and indexing flags.
// Indexed is recorded but not consulted by any package: no value-to-entity
// (AVET-style) index is maintained, and (Var e, Const val) AttrTriple atoms
// are planned as a scan of the attribute's primary index.
type Attribute struct {
	Name        string
	Id          EntityId // the attribute's own entity id, for self-description
	Type        ValueType
	Cardinality Cardinality
	Indexed     bool
	// WithHistory mirrors attribute-level history toggles found in
	// time-aware stores (grounded in the EAVT/History vocabulary used by
	// the wbrown-janus-datalog planner files consulted for this design).
	// No package reads it: every past (Validity) version of a fact is
	// retained whatever its value.
	WithHistory bool
}

// Registry is the set of attributes known to a database instance, keyed by
// name. It is consulted by the lexer/parser (package lang) to distinguish
// attribute-fact lines from rule invocations, and by the plan builder
// indirectly via the caller-supplied predicate-name -> (store, arity) map.
type Registry struct {
	byName map[string]Attribute
}

// NewRegistry returns an empty attribute registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Attribute)}
}

// Put registers or replaces the attribute named attr.Name.
func (r *Registry) Put(attr Attribute) {
	r.byName[attr.Name] = attr
}

// Get looks up an attribute by name.
func (r *Registry) Get(name string) (Attribute, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// Names returns every registered attribute name, in no particular order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	return names
}
