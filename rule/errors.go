package rule

import "errors"

// Compile-time error kinds named in spec.md §7. Each is a sentinel so
// callers can use errors.Is against it even though most call sites wrap it
// with fmt.Errorf("...: %w", ...) for source-span context.
var (
	ErrParse                    = errors.New("datalog: parse error")
	ErrUndefinedRule            = errors.New("datalog: undefined rule")
	ErrArityMismatch            = errors.New("datalog: arity mismatch")
	ErrUnsafeUnboundVars        = errors.New("datalog: unsafe unbound variables")
	ErrDuplicateVariables       = errors.New("datalog: duplicate variables")
	ErrEntryNotFound            = errors.New("datalog: entry not found")
	ErrNoEntryToProgram         = errors.New("datalog: no entry to program")
	ErrEntryHeadsNotIdentical   = errors.New("datalog: entry heads not identical")
	ErrBindingNotFound          = errors.New("datalog: required binding not found")
	ErrUnknownOperator          = errors.New("datalog: unknown operator")
	ErrPredicateArityMismatch   = errors.New("datalog: predicate arity mismatch")
	ErrNotAPredicate            = errors.New("datalog: not a predicate")
	ErrUnsafeBindingInPredicate = errors.New("datalog: unsafe binding in predicate")
	ErrLogicError               = errors.New("datalog: program logic error")
	ErrUnexpectedForm           = errors.New("datalog: unexpected form")
)
