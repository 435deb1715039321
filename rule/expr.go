package rule

import (
	"fmt"

	"github.com/cozo-community/cozo/keyword"
	"github.com/cozo-community/cozo/value"
)

// Binding maps a Keyword to its current runtime value, used to evaluate an
// Expr during plan execution (package plan's Filter node).
type Binding map[keyword.Keyword]value.Value

// Expr is a boolean or scalar expression over bound variables, used as the
// payload of a Predicate atom (spec.md §3's "Predicate: a boolean
// expression over bound variables") and as the right-hand side of a
// BindUnify atom (reserved, unimplemented — see plan.ErrNotYetSupported).
type Expr interface {
	// CollectBindings unions every variable referenced by the expression
	// into coll.
	CollectBindings(coll *keyword.Set)
	// Eval evaluates the expression against a binding environment.
	Eval(b Binding) (value.Value, error)
	fmt.Stringer
}

// VarExpr is a bare variable reference.
type VarExpr struct{ Var keyword.Keyword }

func (e VarExpr) CollectBindings(coll *keyword.Set) { coll.Insert(e.Var) }
func (e VarExpr) Eval(b Binding) (value.Value, error) {
	v, ok := b[e.Var]
	if !ok {
		return value.Value{}, fmt.Errorf("%w: %s", ErrBindingNotFound, e.Var)
	}
	return v, nil
}
func (e VarExpr) String() string { return e.Var.String() }

// ConstExpr is a literal value.
type ConstExpr struct{ Val value.Value }

func (e ConstExpr) CollectBindings(*keyword.Set)          {}
func (e ConstExpr) Eval(Binding) (value.Value, error)     { return e.Val, nil }
func (e ConstExpr) String() string                        { return e.Val.String() }

// CompareOp is a comparison operator usable in a Predicate atom.
type CompareOp string

const (
	OpEq  CompareOp = "="
	OpNeq CompareOp = "!="
	OpLt  CompareOp = "<"
	OpLte CompareOp = "<="
	OpGt  CompareOp = ">"
	OpGte CompareOp = ">="
)

// IsComparisonOperator reports whether name is one of the recognized
// comparison operator spellings, used by package lang to decide whether a
// parsed body atom is a Predicate rather than a RuleApply (spec.md §4.6).
func IsComparisonOperator(name string) bool {
	switch CompareOp(name) {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// CompareExpr compares the runtime values of Left and Right using Op.
type CompareExpr struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

func (e CompareExpr) CollectBindings(coll *keyword.Set) {
	e.Left.CollectBindings(coll)
	e.Right.CollectBindings(coll)
}

func (e CompareExpr) Eval(b Binding) (value.Value, error) {
	l, err := e.Left.Eval(b)
	if err != nil {
		return value.Value{}, err
	}
	r, err := e.Right.Eval(b)
	if err != nil {
		return value.Value{}, err
	}
	c := value.Compare(l, r)
	var result bool
	switch e.Op {
	case OpEq:
		result = c == 0
	case OpNeq:
		result = c != 0
	case OpLt:
		result = c < 0
	case OpLte:
		result = c <= 0
	case OpGt:
		result = c > 0
	case OpGte:
		result = c >= 0
	default:
		return value.Value{}, fmt.Errorf("%w: %q", ErrUnknownOperator, e.Op)
	}
	return value.Bool(result), nil
}

func (e CompareExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

// NewComparison constructs a CompareExpr, validating op and arity (exactly
// 2 operands), reporting spec.md §7's UnknownOperator/PredicateArityMismatch
// error kinds.
func NewComparison(op string, args []Expr) (Expr, error) {
	if !IsComparisonOperator(op) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
	if len(args) != 2 {
		return nil, fmt.Errorf("%w: op %q expected 2 arguments, found %d", ErrPredicateArityMismatch, op, len(args))
	}
	return CompareExpr{Op: CompareOp(op), Left: args[0], Right: args[1]}, nil
}
