// Package algo is the small operator framework behind spec.md §4.5's
// "family of graph algorithms, with Tarjan's strongly connected components
// as the canonical instance": a registry of named Operator implementations,
// each consuming one or more materialized relations (Input) and writing
// result tuples to a Collector, cooperatively checking a poison.Token the
// same way package plan's iterators do.
//
// This is grounded on original_source/cozo-core/src/algo/
// strongly_connected_components.rs's AlgoImpl trait (run/arity) and the
// payload/temp-store shape it is called with; Go's interfaces stand in for
// Rust's trait objects.
package algo

import (
	"errors"
	"fmt"

	"github.com/cozo-community/cozo/poison"
	"github.com/cozo-community/cozo/value"
)

// ErrInvalidPayload is returned when an operator's input tuples do not
// match the shape it requires (wrong arity, wrong column types).
var ErrInvalidPayload = errors.New("algo: invalid payload")

// ErrNoSuchInput is returned by Payload.Input when the requested input
// index was not supplied; operators use this to distinguish a genuinely
// missing optional input from a malformed one.
var ErrNoSuchInput = errors.New("algo: no such input")

// ErrUnknownOperator is returned by Lookup's callers when a name is not
// registered.
var ErrUnknownOperator = errors.New("algo: unknown operator")

// Input is one materialized relation supplied to an operator: a flat list
// of equal-arity tuples, with no further structure (an operator is free to
// interpret column order and type however it documents).
type Input struct {
	Tuples []value.Tuple
}

// Payload bundles every input relation an invocation receives, plus the
// parsed `options` passed at the call site (spec.md's operators accept named
// options the same way `::scc` or similar meta-syntax would).
type Payload struct {
	Inputs  []Input
	Options map[string]value.Value
}

// Input returns the i-th input relation, or ErrNoSuchInput if fewer than
// i+1 were supplied.
func (p Payload) Input(i int) (Input, error) {
	if i < 0 || i >= len(p.Inputs) {
		return Input{}, fmt.Errorf("%w: index %d", ErrNoSuchInput, i)
	}
	return p.Inputs[i], nil
}

// Option returns a named option value, if the caller supplied one.
func (p Payload) Option(name string) (value.Value, bool) {
	v, ok := p.Options[name]
	return v, ok
}

// Collector accumulates an operator's output tuples.
type Collector interface {
	Put(t value.Tuple)
}

// SliceCollector is the simplest Collector: it appends every tuple to Rows.
type SliceCollector struct {
	Rows []value.Tuple
}

func (c *SliceCollector) Put(t value.Tuple) { c.Rows = append(c.Rows, t) }

// Operator is one named graph/relational algorithm, invoked with a fully
// materialized Payload (every input already evaluated to completion --
// spec.md §4.5 notes these run after their input relations are known, not
// incrementally alongside them).
type Operator interface {
	// Run executes the algorithm, writing result tuples to out. pt must be
	// checked at bounded intervals during any unbounded internal loop.
	Run(payload Payload, out Collector, pt poison.Token) error

	// Arity reports the operator's output arity given its payload, used by
	// the caller to validate a rule head before Run ever executes.
	Arity(payload Payload) (int, error)
}

var registry = make(map[string]Operator)

// Register adds op under name, overwriting any previous registration. Real
// operators call this from an init() function (see algo/scc, algo/degree).
func Register(name string, op Operator) {
	registry[name] = op
}

// Lookup returns the Operator registered under name.
func Lookup(name string) (Operator, bool) {
	op, ok := registry[name]
	return op, ok
}
