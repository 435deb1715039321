package plan

import "errors"

// ErrNotYetSupported is returned when the compiler encounters a reserved,
// unexecuted atom shape (rule.AtomLogical or rule.AtomBindUnify). spec.md §9
// leaves these unresolved in the original source (both call sites are
// `todo!()`); DESIGN.md records the decision to reject them explicitly at
// compile time rather than leave them to panic during evaluation.
var ErrNotYetSupported = errors.New("plan: atom kind not yet supported")

// ErrSelfJoinUnsupported is returned for an AttrTriple atom whose entity and
// value terms are the same variable (e.g. "attr(?x, ?x)"). The original
// source leaves this case as an outright panic (`unimplemented!()`); this
// package surfaces it as an ordinary compile error instead.
var ErrSelfJoinUnsupported = errors.New("plan: attribute triple with entity and value bound to the same variable is not supported")
