// Package keyword implements interned rule-variable symbols ("Keyword" in
// spec terms): the logical variable names that unify across atoms in a
// Datalog rule body. Two variables are the same iff they carry the same
// name, so unlike the teacher's pointer-identity Var/Const design, a
// Keyword is a plain interned string — this is required because the
// compiler must recognize and generate names like "*0", "*1" that are
// textually, not just referentially, distinguishable as generator-produced
// temporaries.
package keyword

import (
	"strings"
	"sync"
	"sync/atomic"
)

// TempPrefix marks a Keyword as compiler-generated rather than user-written.
const TempPrefix = "*"

// Keyword is an interned logical variable name. The zero Keyword is invalid;
// use Intern or a Generator to obtain one.
type Keyword struct {
	name string
}

var internPool sync.Map // string -> Keyword

// Intern returns the canonical Keyword for name, creating it if necessary.
// Two calls with the same name always return equal Keywords.
func Intern(name string) Keyword {
	if kw, ok := internPool.Load(name); ok {
		return kw.(Keyword)
	}
	kw := Keyword{name: name}
	actual, _ := internPool.LoadOrStore(name, kw)
	return actual.(Keyword)
}

// Name returns the variable's textual name, e.g. "?x" or "*3".
func (k Keyword) Name() string { return k.name }

// String implements fmt.Stringer, stripping the leading "?" that user
// variables conventionally carry so that printed rules read naturally
// (mirrors the teacher's Keyword.String_no_prefix idiom referenced from
// original_source/compile.rs's BindingHeadFormatter).
func (k Keyword) String() string { return strings.TrimPrefix(k.name, "?") }

// IsTemp reports whether k was produced by a Generator rather than written
// by the rule's author.
func (k Keyword) IsTemp() bool { return strings.HasPrefix(k.name, TempPrefix) }

// IsZero reports whether k is the zero value (no Keyword was ever assigned).
func (k Keyword) IsZero() bool { return k.name == "" }

// Less defines an arbitrary but total and stable order over Keywords, used
// wherever a deterministic iteration order over a variable set is needed
// (e.g. BTree-like ordered sets of bindings).
func Less(a, b Keyword) bool { return a.name < b.name }

// Generator produces fresh, globally-unique temporary Keywords for one
// compile, named "*0", "*1", .... Fresh names are serial per Generator
// instance, not per atom, matching spec.md §4.4's "Fresh temp names are
// globally fresh per compile (serial counter), not per atom."
type Generator struct {
	counter uint64
}

// Fresh returns a new temporary Keyword, guaranteed distinct from every
// other Keyword ever returned by this Generator.
func (g *Generator) Fresh() Keyword {
	n := atomic.AddUint64(&g.counter, 1) - 1
	return Intern(TempPrefix + itoa(n))
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Set is an ordered set of Keywords, used by rule.Atom.CollectBindings and
// by the plan builder's safety analysis (spec.md §4.2, §4.4).
type Set struct {
	members map[Keyword]struct{}
	order   []Keyword
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{members: make(map[Keyword]struct{})}
}

// Insert adds k to the set if absent, preserving first-insertion order.
func (s *Set) Insert(k Keyword) {
	if _, ok := s.members[k]; ok {
		return
	}
	s.members[k] = struct{}{}
	s.order = append(s.order, k)
}

// Contains reports whether k is a member.
func (s *Set) Contains(k Keyword) bool {
	_, ok := s.members[k]
	return ok
}

// Len reports the set's cardinality.
func (s *Set) Len() int { return len(s.order) }

// Slice returns the set's members in insertion order. The returned slice
// must not be mutated by callers.
func (s *Set) Slice() []Keyword { return s.order }

// Equal reports whether two sets contain exactly the same Keywords,
// irrespective of insertion order.
func (s *Set) Equal(o *Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	for _, k := range s.order {
		if !o.Contains(k) {
			return false
		}
	}
	return true
}
