package rule

import (
	"fmt"
	"strings"

	"github.com/cozo-community/cozo/keyword"
	"github.com/cozo-community/cozo/schema"
)

// Aggregation is applied to a head term across all answers for a given
// binding of the non-aggregated head terms. None (the only variant the core
// spec requires) means the term is carried through unmodified.
type Aggregation int

const (
	AggregationNone Aggregation = iota
)

// HeadTerm is one (variable, aggregation) pair in a rule's head.
type HeadTerm struct {
	Name keyword.Keyword
	Aggr Aggregation
}

// HeadString pretty-prints a head term list as "[a, b, c]", matching the
// teacher-adjacent BindingHeadFormatter convention from
// original_source/compile.rs.
func HeadString(head []HeadTerm) string {
	names := make([]string, len(head))
	for i, h := range head {
		names[i] = h.Name.String()
	}
	return "[" + strings.Join(names, ", ") + "]"
}

// Rule is head = ordered (variable, aggregation) terms; body = ordered list
// of atoms; Validity = timestamp context for triple lookups (spec.md §3).
type Rule struct {
	Head []HeadTerm
	Body []Atom
	Vld  schema.Validity
}

func (r Rule) String() string {
	body := make([]string, len(r.Body))
	for i, a := range r.Body {
		body[i] = a.String()
	}
	return fmt.Sprintf("%s :- %s", HeadString(r.Head), strings.Join(body, ", "))
}

// ContainedRules returns the set of predicate names directly invoked by
// this rule's body (spec.md §4.2), used by the stratifier to schedule
// evaluation order and detect recursion. Reserved Logical atoms are walked
// shallowly for any nested RuleApply (the teacher's own contained_rules
// leaves this as "todo: negation, disjunction, etc"; this expansion
// resolves that by descending into Logical's Operands. Unlike
// CollectBindings, which panics on a reserved atom, ContainedRules accepts
// one, since it only inspects the atom's shape).
func (r Rule) ContainedRules() *keyword.Set {
	out := keyword.NewSet()
	var walk func(a Atom)
	walk = func(a Atom) {
		switch a.Kind {
		case AtomRuleApply:
			out.Insert(a.RuleApply.Name)
		case AtomLogical:
			for _, op := range a.Logical.Operands {
				walk(op)
			}
		}
	}
	for _, a := range r.Body {
		walk(a)
	}
	return out
}

// Arity returns the rule's head arity.
func (r Rule) Arity() int { return len(r.Head) }

// RuleSet is all rules sharing a predicate name, all of identical arity
// (spec.md §3).
type RuleSet struct {
	Name  keyword.Keyword
	Rules []Rule
	Arity int
}

// Add appends rule to the set, enforcing the "all rules have the same head
// arity" invariant (spec.md §3).
func (rs *RuleSet) Add(r Rule) error {
	if len(rs.Rules) == 0 {
		rs.Arity = r.Arity()
	} else if r.Arity() != rs.Arity {
		return fmt.Errorf("%w for rule %s: all definitions must have the same arity", ErrArityMismatch, rs.Name)
	}
	rs.Rules = append(rs.Rules, r)
	return nil
}

// DatalogProgram maps each predicate name to its RuleSet; must contain the
// distinguished entry predicate "?" (spec.md §3).
type DatalogProgram struct {
	byName map[string]*RuleSet
	order  []string
}

// EntryName is the distinguished entry predicate every DatalogProgram must
// define.
const EntryName = "?"

// NewProgram returns an empty DatalogProgram.
func NewProgram() *DatalogProgram {
	return &DatalogProgram{byName: make(map[string]*RuleSet)}
}

// AddRule appends r to the RuleSet for its head predicate name, creating
// the RuleSet if this is the first rule for that name.
func (p *DatalogProgram) AddRule(name keyword.Keyword, r Rule) error {
	rs, ok := p.byName[name.Name()]
	if !ok {
		rs = &RuleSet{Name: name}
		p.byName[name.Name()] = rs
		p.order = append(p.order, name.Name())
	}
	return rs.Add(r)
}

// Lookup returns the RuleSet registered under name, if any.
func (p *DatalogProgram) Lookup(name string) (*RuleSet, bool) {
	rs, ok := p.byName[name]
	return rs, ok
}

// Names returns every registered predicate name in first-registration
// order.
func (p *DatalogProgram) Names() []string {
	return append([]string(nil), p.order...)
}

// Validate checks the two entry-point invariants from spec.md §3/§4: the
// program defines EntryName, and (if more than one rule backs it) every
// rule backing EntryName has an identical head.
func (p *DatalogProgram) Validate() error {
	entry, ok := p.Lookup(EntryName)
	if !ok {
		return ErrNoEntryToProgram
	}
	if len(entry.Rules) == 0 {
		return ErrEntryNotFound
	}
	want := HeadString(entry.Rules[0].Head)
	for _, r := range entry.Rules[1:] {
		if HeadString(r.Head) != want {
			return ErrEntryHeadsNotIdentical
		}
	}
	return nil
}
