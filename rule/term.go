// Package rule implements the Datalog Rule IR (spec.md §3, §4.2): terms,
// atoms, rules, rulesets, and the DatalogProgram they live in.
package rule

import (
	"fmt"

	"github.com/cozo-community/cozo/keyword"
	"github.com/cozo-community/cozo/value"
)

// Term is either a variable (Keyword) or a constant of T, typically
// value.Value or schema.EntityId.
type Term[T any] struct {
	isVar bool
	v     keyword.Keyword
	c     T
}

// Var returns a variable Term.
func Var[T any](k keyword.Keyword) Term[T] { return Term[T]{isVar: true, v: k} }

// Const returns a constant Term.
func Const[T any](c T) Term[T] { return Term[T]{c: c} }

// IsVar reports whether the term is a variable.
func (t Term[T]) IsVar() bool { return t.isVar }

// Variable returns the term's variable and true, or the zero Keyword and false.
func (t Term[T]) Variable() (keyword.Keyword, bool) {
	if t.isVar {
		return t.v, true
	}
	return keyword.Keyword{}, false
}

// Value returns the term's constant and true, or the zero value and false.
func (t Term[T]) Value() (T, bool) {
	if !t.isVar {
		return t.c, true
	}
	var zero T
	return zero, false
}

// CollectBindings inserts the term's variable into coll, or does nothing for
// a constant (spec.md §4.2).
func (t Term[T]) CollectBindings(coll *keyword.Set) {
	if t.isVar {
		coll.Insert(t.v)
	}
}

func (t Term[T]) String() string {
	if t.isVar {
		return t.v.String()
	}
	return fmt.Sprintf("%v", t.c)
}

// ValueTerm is a term over a runtime value.Value (the value-term position
// of an AttrTriple, or an argument of a RuleApply).
type ValueTerm = Term[value.Value]

// EntityTerm is a term over a schema.EntityId (the entity position of an
// AttrTriple).
type EntityTerm = Term[value.EntityId]
