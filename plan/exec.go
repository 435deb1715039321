package plan

import (
	"fmt"
	"sort"

	"github.com/cozo-community/cozo/keyword"
	"github.com/cozo-community/cozo/poison"
	"github.com/cozo-community/cozo/rule"
	"github.com/cozo-community/cozo/schema"
	"github.com/cozo-community/cozo/storage"
	"github.com/cozo-community/cozo/value"
)

// pollInterval is how often a long-running iterator checks its poison.Token
// (spec.md §5: "every top-level iteration, every N tuples"). DESIGN.md
// records the chosen value.
const pollInterval = 4096

// RowIter is a lazy, forward-only sequence of Row, mirroring the
// storage.Iterator shape so the two compose without an adapter layer.
type RowIter interface {
	Next() bool
	Row() Row
	Err() error
	Close()
}

// Execute runs rel against tx, honoring pt for cancellation (spec.md §5).
func (rel *Relation) Execute(tx storage.Tx, pt poison.Token) (RowIter, error) {
	switch rel.Kind {
	case KindUnit:
		return &sliceIter{rows: []Row{{}}}, nil
	case KindSinglet:
		return &sliceIter{rows: []Row{{Vars: rel.SingletKeys, Vals: rel.SingletVals}}}, nil
	case KindTriple:
		return newTripleIter(rel, tx, pt)
	case KindDerived:
		// A store's rows carry whatever variable names were in scope when
		// they were computed (typically the producing rule's own head
		// terms); Derived re-binds them positionally to this call site's
		// local names, the same rename-on-reference semantics the RuleApply
		// compiler step assumes.
		rows := make([]Row, len(rel.Store.Rows))
		for i, r := range rel.Store.Rows {
			rows[i] = Row{Vars: rel.DerivedVars, Vals: r.Vals}
		}
		return &sliceIter{rows: rows}, nil
	case KindJoin:
		return newJoinIter(rel, tx, pt)
	case KindCartesianJoin:
		return newCartesianIter(rel, tx, pt)
	case KindFilter:
		inner, err := rel.Inner.Execute(tx, pt)
		if err != nil {
			return nil, err
		}
		return &filterIter{inner: inner, pred: rel.Predicate, pt: pt}, nil
	case KindReorder:
		inner, err := rel.ReorderInner.Execute(tx, pt)
		if err != nil {
			return nil, err
		}
		return &reorderIter{inner: inner, vars: rel.ReorderVars}, nil
	default:
		return nil, fmt.Errorf("plan: unhandled relation kind %d", rel.Kind)
	}
}

// CollectRows drains it into a slice, mainly for tests and for materializing
// a StoreRef between fixpoint iterations.
func CollectRows(it RowIter) ([]Row, error) {
	defer it.Close()
	var out []Row
	for it.Next() {
		out = append(out, it.Row())
	}
	return out, it.Err()
}

type sliceIter struct {
	rows []Row
	i    int
}

func (it *sliceIter) Next() bool {
	if it.i >= len(it.rows) {
		return false
	}
	it.i++
	return true
}
func (it *sliceIter) Row() Row   { return it.rows[it.i-1] }
func (it *sliceIter) Err() error { return nil }
func (it *sliceIter) Close()     {}

// tripleIter replays a pre-resolved, fully materialized set of visible
// (entity, value) rows for one attribute. The resolution pass (which does
// the actual range scan) happens eagerly in newTripleIter: the temporal
// read logic below needs the whole attribute's event history in hand before
// it can say which rows are currently visible, so there is no useful way to
// stream this particular node lazily.
type tripleIter struct {
	rows []Row
	i    int
}

func newTripleIter(rel *Relation, tx storage.Tx, pt poison.Token) (RowIter, error) {
	lower, upper := triplePrefixBounds(rel.Attr.Id, nil)
	kvIt, err := tx.RangeScan(lower, upper)
	if err != nil {
		return nil, err
	}
	defer kvIt.Close()

	var events []tripleEvent
	n := 0
	for kvIt.Next() {
		n++
		if n%pollInterval == 0 {
			if err := pt.Check(); err != nil {
				return nil, err
			}
		}
		ev, err := decodeTripleKey(kvIt.KV().Key)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := kvIt.Err(); err != nil {
		return nil, err
	}

	visible := resolveTripleEvents(events, rel.Attr.Cardinality, rel.Vld.At)
	rows := make([]Row, len(visible))
	for i, ev := range visible {
		rows[i] = Row{
			Vars: []keyword.Keyword{rel.EntityVar, rel.ValueVar},
			Vals: []value.Value{value.EnId(ev.Entity), ev.Val},
		}
	}
	return &tripleIter{rows: rows}, nil
}

func (it *tripleIter) Next() bool {
	if it.i >= len(it.rows) {
		return false
	}
	it.i++
	return true
}
func (it *tripleIter) Row() Row   { return it.rows[it.i-1] }
func (it *tripleIter) Err() error { return nil }
func (it *tripleIter) Close()     {}

func resolveTripleEvents(events []tripleEvent, card schema.Cardinality, queryAt int64) []tripleEvent {
	type key struct {
		entity value.EntityId
		valKey string
	}
	best := make(map[key]tripleEvent)
	for _, e := range events {
		if e.Vld.At > queryAt {
			continue
		}
		var k key
		if card == schema.CardinalityMany {
			k = key{entity: e.Entity, valKey: string(value.EncodeTuple(value.Tuple{e.Val}))}
		} else {
			k = key{entity: e.Entity}
		}
		cur, ok := best[k]
		if !ok || e.Vld.At > cur.Vld.At || (e.Vld.At == cur.Vld.At && !e.Vld.Assert && cur.Vld.Assert) {
			best[k] = e
		}
	}
	out := make([]tripleEvent, 0, len(best))
	for _, e := range best {
		if e.Vld.Assert {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		return value.Compare(out[i].Val, out[j].Val) < 0
	})
	return out
}

// joinIter performs a hash join: the left side is fully materialized into a
// bucket map keyed by its projected join-key tuple, then the right side is
// streamed, probing the map for matches.
type joinIter struct {
	rightIt   RowIter
	buckets   map[string][]Row
	rightKeys []keyword.Keyword
	excl      *keyword.Set
	pt        poison.Token

	pending []Row
	cur     Row
	n       int
	err     error
}

func newJoinIter(rel *Relation, tx storage.Tx, pt poison.Token) (RowIter, error) {
	leftIt, err := rel.Left.Execute(tx, pt)
	if err != nil {
		return nil, err
	}
	leftRows, err := CollectRows(leftIt)
	if err != nil {
		return nil, err
	}
	buckets := make(map[string][]Row)
	for _, row := range leftRows {
		kt, ok := row.keyTuple(rel.LeftKeys)
		if !ok {
			continue
		}
		k := string(value.EncodeTuple(kt))
		buckets[k] = append(buckets[k], row)
	}

	rightIt, err := rel.Right.Execute(tx, pt)
	if err != nil {
		return nil, err
	}

	excl := keyword.NewSet()
	for _, k := range rel.RightKeys {
		excl.Insert(k)
	}

	return &joinIter{rightIt: rightIt, buckets: buckets, rightKeys: rel.RightKeys, excl: excl, pt: pt}, nil
}

func (it *joinIter) Next() bool {
	for {
		if len(it.pending) > 0 {
			it.cur, it.pending = it.pending[0], it.pending[1:]
			return true
		}
		it.n++
		if it.n%pollInterval == 0 {
			if err := it.pt.Check(); err != nil {
				it.err = err
				return false
			}
		}
		if !it.rightIt.Next() {
			return false
		}
		rightRow := it.rightIt.Row()
		kt, ok := rightRow.keyTuple(it.rightKeys)
		if !ok {
			continue
		}
		matches := it.buckets[string(value.EncodeTuple(kt))]
		for _, leftRow := range matches {
			it.pending = append(it.pending, leftRow.merge(rightRow, it.excl))
		}
	}
}

func (it *joinIter) Row() Row   { return it.cur }
func (it *joinIter) Err() error { return it.err }
func (it *joinIter) Close()     { it.rightIt.Close() }

// cartesianIter materializes the left side once, then for every right row
// pairs it with every left row in turn.
type cartesianIter struct {
	leftRows []Row
	rightIt  RowIter
	cur      Row
	li       int
	rightRow Row
	pt       poison.Token
	n        int
	err      error
}

func newCartesianIter(rel *Relation, tx storage.Tx, pt poison.Token) (RowIter, error) {
	leftIt, err := rel.Left.Execute(tx, pt)
	if err != nil {
		return nil, err
	}
	leftRows, err := CollectRows(leftIt)
	if err != nil {
		return nil, err
	}
	rightIt, err := rel.Right.Execute(tx, pt)
	if err != nil {
		return nil, err
	}
	return &cartesianIter{leftRows: leftRows, rightIt: rightIt, pt: pt, li: len(leftRows)}, nil
}

func (it *cartesianIter) Next() bool {
	if len(it.leftRows) == 0 {
		return false
	}
	for it.li >= len(it.leftRows) {
		it.n++
		if it.n%pollInterval == 0 {
			if err := it.pt.Check(); err != nil {
				it.err = err
				return false
			}
		}
		if !it.rightIt.Next() {
			return false
		}
		it.rightRow = it.rightIt.Row()
		it.li = 0
	}
	it.cur = it.leftRows[it.li].merge(it.rightRow, nil)
	it.li++
	return true
}
func (it *cartesianIter) Row() Row   { return it.cur }
func (it *cartesianIter) Err() error { return it.err }
func (it *cartesianIter) Close()     { it.rightIt.Close() }

// filterIter keeps only rows for which pred evaluates to Bool(true).
type filterIter struct {
	inner RowIter
	pred  rule.Expr
	pt    poison.Token
	cur   Row
	n     int
	err   error
}

func (it *filterIter) Next() bool {
	for it.inner.Next() {
		it.n++
		if it.n%pollInterval == 0 {
			if err := it.pt.Check(); err != nil {
				it.err = err
				return false
			}
		}
		row := it.inner.Row()
		v, err := it.pred.Eval(row.Binding())
		if err != nil {
			it.err = err
			return false
		}
		if b, ok := v.AsBool(); ok && b {
			it.cur = row
			return true
		}
	}
	it.err = it.inner.Err()
	return false
}
func (it *filterIter) Row() Row   { return it.cur }
func (it *filterIter) Err() error { return it.err }
func (it *filterIter) Close()     { it.inner.Close() }

// reorderIter projects every inner row down to exactly vars, in order.
type reorderIter struct {
	inner RowIter
	vars  []keyword.Keyword
	cur   Row
}

func (it *reorderIter) Next() bool {
	if !it.inner.Next() {
		return false
	}
	it.cur = it.inner.Row().project(it.vars)
	return true
}
func (it *reorderIter) Row() Row   { return it.cur }
func (it *reorderIter) Err() error { return it.inner.Err() }
func (it *reorderIter) Close()     { it.inner.Close() }
