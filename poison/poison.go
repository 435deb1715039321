// Package poison implements the shared cancellation flag described in
// spec.md §5: a Token is created per query, passed into long-running
// operators (the plan executor, algorithmic operators like SCC), and
// consulted at bounded intervals so a query can be cancelled promptly from
// another goroutine (e.g. a "::kill $id" meta-command handler).
package poison

import (
	"errors"
	"sync/atomic"
)

// ErrCancelled is returned by Check once a Token has been killed (spec.md
// §7's Cancelled error kind).
var ErrCancelled = errors.New("datalog: query cancelled")

// Token is a cheap-to-copy handle onto one shared cancellation flag. The
// zero Token is usable and never cancelled (useful in tests that don't care
// about cancellation).
type Token struct {
	flag *atomic.Bool
}

// New returns a fresh, live Token.
func New() Token {
	return Token{flag: new(atomic.Bool)}
}

// Kill marks the token as cancelled. Safe to call from any goroutine,
// concurrently with Check, any number of times.
func (t Token) Kill() {
	if t.flag != nil {
		t.flag.Store(true)
	}
}

// Killed reports whether Kill has been called.
func (t Token) Killed() bool {
	return t.flag != nil && t.flag.Load()
}

// Check returns ErrCancelled if the token has been killed, else nil.
// Operators must call this at bounded intervals (spec.md §5: "every
// top-level iteration, every N tuples") and return promptly on a non-nil
// result.
func (t Token) Check() error {
	if t.Killed() {
		return ErrCancelled
	}
	return nil
}
