package engine

import "errors"

var (
	// ErrReadOnly is returned by RunScript when a script asserts facts but
	// was run under ReadOnly mutability.
	ErrReadOnly = errors.New("engine: script asserts facts under read-only mutability")
	// ErrNoSuchQuery is returned by "::kill $id" when id names no
	// currently-running query.
	ErrNoSuchQuery = errors.New("engine: no such running query")
	// ErrNoRules is returned by buildProgram when the parsed program has no
	// rule to use as its entry point. RunScript itself never reaches it for
	// a script without rules: such a script returns an empty result.
	ErrNoRules = errors.New("engine: script defines no rules")
	// ErrStratifierUnavailable is returned if the "scc" algo.Operator was
	// never registered (it is registered by algo/scc's init, imported for
	// side effect by this package; this error only fires if that import is
	// ever removed).
	ErrStratifierUnavailable = errors.New("engine: stratifier operator \"scc\" is not registered")
)
