package plan

import (
	"github.com/cozo-community/cozo/keyword"
	"github.com/cozo-community/cozo/rule"
	"github.com/cozo-community/cozo/value"
)

// Row is one tuple of bound variables produced while executing a Relation.
type Row struct {
	Vars []keyword.Keyword
	Vals []value.Value
}

// Get returns the value bound to k in this row, if any.
func (r Row) Get(k keyword.Keyword) (value.Value, bool) {
	for i, v := range r.Vars {
		if v == k {
			return r.Vals[i], true
		}
	}
	return value.Value{}, false
}

// Binding adapts r to the rule.Binding map Expr.Eval expects.
func (r Row) Binding() rule.Binding {
	b := make(rule.Binding, len(r.Vars))
	for i, v := range r.Vars {
		b[v] = r.Vals[i]
	}
	return b
}

// project returns a new Row holding exactly vars, in that order. Every
// entry of vars must already be bound in r (the compiler guarantees this by
// construction; RowIter implementations may assume it).
func (r Row) project(vars []keyword.Keyword) Row {
	vals := make([]value.Value, len(vars))
	for i, v := range vars {
		val, _ := r.Get(v)
		vals[i] = val
	}
	return Row{Vars: vars, Vals: vals}
}

// merge concatenates r with o's columns that are not in excl.
func (r Row) merge(o Row, excl *keyword.Set) Row {
	vars := append([]keyword.Keyword(nil), r.Vars...)
	vals := append([]value.Value(nil), r.Vals...)
	for i, v := range o.Vars {
		if excl != nil && excl.Contains(v) {
			continue
		}
		vars = append(vars, v)
		vals = append(vals, o.Vals[i])
	}
	return Row{Vars: vars, Vals: vals}
}

// keyTuple builds the join-key tuple for row over the named columns, used
// both to populate and to probe a hash-join's bucket map.
func (r Row) keyTuple(keys []keyword.Keyword) (value.Tuple, bool) {
	t := make(value.Tuple, len(keys))
	for i, k := range keys {
		v, ok := r.Get(k)
		if !ok {
			return nil, false
		}
		t[i] = v
	}
	return t, true
}
