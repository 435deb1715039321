package rule

import (
	"fmt"

	"github.com/cozo-community/cozo/keyword"
	"github.com/cozo-community/cozo/schema"
	"github.com/cozo-community/cozo/value"
)

// AttrTriple matches or constrains one attribute fact: (attribute,
// entity-term, value-term) (spec.md §3).
type AttrTriple struct {
	Attr   schema.Attribute
	Entity EntityTerm
	Val    ValueTerm
}

func (a AttrTriple) String() string {
	return fmt.Sprintf("%s(%s, %s)", a.Attr.Name, a.Entity, a.Val)
}

// RuleApply invokes another rule (or itself, for recursion): (predicate
// name, argument terms) (spec.md §3).
type RuleApply struct {
	Name keyword.Keyword
	Args []ValueTerm
}

func (a RuleApply) String() string {
	s := a.Name.String() + "("
	for i, arg := range a.Args {
		if i > 0 {
			s += ", "
		}
		s += arg.String()
	}
	return s + ")"
}

// LogicalKind distinguishes the reserved Logical atom shapes (spec.md §3:
// "reserved in IR; the core spec requires only AttrTriple/RuleApply/
// Predicate to be executable"). No executor branch exists for these; the
// plan builder rejects them with plan.ErrNotYetSupported per spec.md §9's
// documented resolution.
type LogicalKind int

const (
	LogicalNegation LogicalKind = iota
	LogicalConjunction
	LogicalDisjunction
)

// Logical is a reserved, unexecuted atom shape.
type Logical struct {
	Kind     LogicalKind
	Operands []Atom
}

func (l Logical) String() string { return "<logical:unimplemented>" }

// BindUnify introduces a new binding: left-term = expression (spec.md §3).
// Reserved; see Logical's doc comment for why it has no executor.
type BindUnify struct {
	Left  ValueTerm
	Right Expr
}

func (b BindUnify) String() string { return fmt.Sprintf("%s = %s", b.Left, b.Right) }

// AtomKind identifies which variant an Atom holds.
type AtomKind int

const (
	AtomAttrTriple AtomKind = iota
	AtomRuleApply
	AtomPredicate
	AtomLogical
	AtomBindUnify
)

// Atom is one clause in a rule body (spec.md §3): an AttrTriple, a
// RuleApply, a Predicate filter, or one of the reserved Logical/BindUnify
// shapes.
type Atom struct {
	Kind       AtomKind
	AttrTriple AttrTriple
	RuleApply  RuleApply
	Predicate  Expr
	Logical    Logical
	BindUnify  BindUnify
}

// NewAttrTripleAtom constructs an AttrTriple atom.
func NewAttrTripleAtom(t AttrTriple) Atom { return Atom{Kind: AtomAttrTriple, AttrTriple: t} }

// NewRuleApplyAtom constructs a RuleApply atom.
func NewRuleApplyAtom(r RuleApply) Atom { return Atom{Kind: AtomRuleApply, RuleApply: r} }

// NewPredicateAtom constructs a Predicate (filter) atom.
func NewPredicateAtom(e Expr) Atom { return Atom{Kind: AtomPredicate, Predicate: e} }

// IsPredicate reports whether the atom is a Predicate filter (spec.md
// §4.2).
func (a Atom) IsPredicate() bool { return a.Kind == AtomPredicate }

// IntoPredicate downcasts the atom to its Expr if it is a Predicate, else
// returns (nil, false) (spec.md §4.2).
func (a Atom) IntoPredicate() (Expr, bool) {
	if a.Kind != AtomPredicate {
		return nil, false
	}
	return a.Predicate, true
}

// CollectBindings unions the atom's bound variables into coll (spec.md
// §4.2): an AttrTriple's entity and value terms; a RuleApply's arguments;
// or a Predicate's referenced variables. Logical/BindUnify are reserved and
// panic if reached here, since the plan builder must reject them before
// ever calling CollectBindings on one.
func (a Atom) CollectBindings(coll *keyword.Set) {
	switch a.Kind {
	case AtomAttrTriple:
		a.AttrTriple.Entity.CollectBindings(coll)
		a.AttrTriple.Val.CollectBindings(coll)
	case AtomRuleApply:
		for _, arg := range a.RuleApply.Args {
			arg.CollectBindings(coll)
		}
	case AtomPredicate:
		a.Predicate.CollectBindings(coll)
	case AtomLogical, AtomBindUnify:
		panic("rule: CollectBindings called on a reserved, unimplemented atom kind")
	default:
		panic(fmt.Sprintf("rule: unhandled atom kind %d", a.Kind))
	}
}

func (a Atom) String() string {
	switch a.Kind {
	case AtomAttrTriple:
		return a.AttrTriple.String()
	case AtomRuleApply:
		return a.RuleApply.String()
	case AtomPredicate:
		return a.Predicate.String()
	case AtomLogical:
		return a.Logical.String()
	case AtomBindUnify:
		return a.BindUnify.String()
	default:
		return "<?atom?>"
	}
}

// EntityConst is a small convenience used by callers constructing
// AttrTriple atoms from a schema.EntityId constant.
func EntityConst(id value.EntityId) EntityTerm { return Const[value.EntityId](id) }
