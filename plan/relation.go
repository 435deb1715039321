// Package plan compiles a rule body (spec.md §4.2) into a tree of relational
// operators (spec.md §4.4) and executes that tree against a storage.Tx,
// producing the rows that satisfy the rule. The compiler is a close
// transliteration of original_source/src/query/compile.rs's
// compile_rule_body, adapted to Go's type system and to the corrected
// unsafe-binding check documented in DESIGN.md.
package plan

import (
	"github.com/cozo-community/cozo/keyword"
	"github.com/cozo-community/cozo/rule"
	"github.com/cozo-community/cozo/schema"
	"github.com/cozo-community/cozo/value"
)

// Kind identifies which variant a Relation node holds.
type Kind int

const (
	KindUnit Kind = iota
	KindSinglet
	KindTriple
	KindDerived
	KindJoin
	KindCartesianJoin
	KindFilter
	KindReorder
)

// Relation is one node of a compiled query plan (spec.md §4.4): Unit (the
// empty-tuple identity), Singlet (one constant row), Triple (a scan over an
// attribute's facts), Derived (a reference to another rule's materialized
// result, the join partner for recursion and rule composition), Join (an
// equi-join on named columns), CartesianJoin (an unconditional product),
// Filter (a Predicate atom), and Reorder (a final column projection/reorder,
// used to present a relation's rows in ret_vars order).
type Relation struct {
	Kind Kind

	// KindSinglet
	SingletKeys []keyword.Keyword
	SingletVals []value.Value

	// KindTriple
	Attr       schema.Attribute
	Vld        schema.Validity
	EntityVar  keyword.Keyword
	ValueVar   keyword.Keyword

	// KindDerived
	Store *StoreRef
	DerivedVars []keyword.Keyword

	// KindJoin / KindCartesianJoin
	Left, Right         *Relation
	LeftKeys, RightKeys []keyword.Keyword

	// KindFilter
	Inner     *Relation
	Predicate rule.Expr

	// KindReorder
	ReorderInner *Relation
	ReorderVars  []keyword.Keyword
}

// StoreRef is a handle onto another predicate's materialized rows, the Go
// analogue of the teacher's TempStore: the plan tree holds a pointer so that
// an evaluator can refill Rows across fixpoint iterations without rebuilding
// the compiled plan (spec.md §4.5's semi-naive evaluation needs this).
type StoreRef struct {
	Name  string
	Arity int
	Rows  []Row
}

// Unit is the empty-row identity relation: joining anything with Unit (via
// CartesianJoin) yields that thing unchanged.
func Unit() *Relation { return &Relation{Kind: KindUnit} }

// IsUnit reports whether rel is the Unit relation.
func (rel *Relation) IsUnit() bool { return rel != nil && rel.Kind == KindUnit }

// Singlet returns a one-row relation binding keys to vals, used to seed a
// join with a constant from the rule body.
func Singlet(keys []keyword.Keyword, vals []value.Value) *Relation {
	return &Relation{Kind: KindSinglet, SingletKeys: keys, SingletVals: vals}
}

// Triple returns a relation scanning attr's facts at vld, binding entityVar
// and valueVar to each fact's entity and value.
func Triple(attr schema.Attribute, vld schema.Validity, entityVar, valueVar keyword.Keyword) *Relation {
	return &Relation{Kind: KindTriple, Attr: attr, Vld: vld, EntityVar: entityVar, ValueVar: valueVar}
}

// Derived returns a relation over store's materialized rows, renamed to
// vars (one name per column, in store's column order).
func Derived(vars []keyword.Keyword, store *StoreRef) *Relation {
	return &Relation{Kind: KindDerived, DerivedVars: vars, Store: store}
}

// Join equi-joins left and right on the named column pairs: leftKeys[i]
// (a column of left) must equal rightKeys[i] (a column of right).
func (rel *Relation) Join(right *Relation, leftKeys, rightKeys []keyword.Keyword) *Relation {
	return &Relation{Kind: KindJoin, Left: rel, Right: right, LeftKeys: leftKeys, RightKeys: rightKeys}
}

// CartesianJoin pairs every row of rel with every row of right.
func (rel *Relation) CartesianJoin(right *Relation) *Relation {
	return &Relation{Kind: KindCartesianJoin, Left: rel, Right: right}
}

// Filter keeps only rows for which pred evaluates to true.
func (rel *Relation) Filter(pred rule.Expr) *Relation {
	return &Relation{Kind: KindFilter, Inner: rel, Predicate: pred}
}

// Reorder projects rel's rows down to exactly vars, in the given order.
func (rel *Relation) Reorder(vars []keyword.Keyword) *Relation {
	return &Relation{Kind: KindReorder, ReorderInner: rel, ReorderVars: vars}
}

// Bindings returns the ordered column names a row produced by rel carries.
func (rel *Relation) Bindings() []keyword.Keyword {
	switch rel.Kind {
	case KindUnit:
		return nil
	case KindSinglet:
		return rel.SingletKeys
	case KindTriple:
		return []keyword.Keyword{rel.EntityVar, rel.ValueVar}
	case KindDerived:
		return rel.DerivedVars
	case KindJoin:
		out := append([]keyword.Keyword(nil), rel.Left.Bindings()...)
		excl := keyword.NewSet()
		for _, k := range rel.RightKeys {
			excl.Insert(k)
		}
		for _, k := range rel.Right.Bindings() {
			if !excl.Contains(k) {
				out = append(out, k)
			}
		}
		return out
	case KindCartesianJoin:
		out := append([]keyword.Keyword(nil), rel.Left.Bindings()...)
		return append(out, rel.Right.Bindings()...)
	case KindFilter:
		return rel.Inner.Bindings()
	case KindReorder:
		return rel.ReorderVars
	default:
		return nil
	}
}

// bindingSet is a convenience used by the compiler and by tests.
func bindingSet(rel *Relation) *keyword.Set {
	s := keyword.NewSet()
	for _, k := range rel.Bindings() {
		s.Insert(k)
	}
	return s
}
