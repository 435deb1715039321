// Package value implements the atomic domain of a Cozo-style deductive
// database: a tagged union of scalar and compound values, a total order over
// that union, and a byte encoding whose order matches the value order so that
// storage range scans agree with value range queries.
package value

import (
	"fmt"
	"math"
)

// Tag identifies which variant a Value holds. Tag order is also the
// inter-variant order: a Value of one tag always compares less than a Value
// of any larger tag.
type Tag byte

const (
	TagBottom Tag = iota // sentinel, less than every real value; used for open-ended range scans
	TagNull
	TagBool
	TagInt
	TagFloat
	TagString
	TagBytes
	TagList
	TagEntityId
	TagValidity
	TagGuid   // domain-specific tag: opaque content-addressed id, compared as raw bytes
	TagRegex  // domain-specific tag: a compiled-at-parse-time regex source string
	TagTop    // sentinel, greater than every real value; used for open-ended range scans
)

// Value is an atomic datum: null, bool, int, float, string, byte-string,
// list-of-value, entity id, validity timestamp, or one of a small set of
// domain tags. The zero Value is Bottom.
type Value struct {
	tag   Tag
	b     bool
	i     int64
	f     float64
	s     string
	bytes []byte
	list  []Value
	eid   EntityId
	vld   Validity
}

// EntityId is an opaque 64-bit handle identifying one entity.
type EntityId uint64

// Validity is a monotonic timestamp used to select the temporally-correct
// view of an attribute. Assert distinguishes an assertion (fact holds as of
// At) from a retraction (fact stops holding as of At); retractions sort
// after assertions at the same timestamp so that "most recent wins" reads
// naturally by descending (At, Assert) order.
type Validity struct {
	At     int64
	Assert bool
}

var (
	Bottom = Value{tag: TagBottom}
	Null   = Value{tag: TagNull}
	Top    = Value{tag: TagTop}
)

func Bool(b bool) Value           { return Value{tag: TagBool, b: b} }
func Int(i int64) Value           { return Value{tag: TagInt, i: i} }
func Float(f float64) Value       { return Value{tag: TagFloat, f: f} }
func String(s string) Value       { return Value{tag: TagString, s: s} }
func Bytes(b []byte) Value        { return Value{tag: TagBytes, bytes: append([]byte(nil), b...)} }
func List(vs []Value) Value       { return Value{tag: TagList, list: append([]Value(nil), vs...)} }
func EnId(id EntityId) Value      { return Value{tag: TagEntityId, eid: id} }
func Vld(v Validity) Value        { return Value{tag: TagValidity, vld: v} }
func Guid(b []byte) Value         { return Value{tag: TagGuid, bytes: append([]byte(nil), b...)} }
func Regex(pattern string) Value  { return Value{tag: TagRegex, s: pattern} }

func (v Value) Tag() Tag { return v.tag }
func (v Value) IsNull() bool { return v.tag == TagNull }

func (v Value) AsBool() (bool, bool)         { return v.b, v.tag == TagBool }
func (v Value) AsInt() (int64, bool)         { return v.i, v.tag == TagInt }
func (v Value) AsFloat() (float64, bool)     { return v.f, v.tag == TagFloat }
func (v Value) AsString() (string, bool)     { return v.s, v.tag == TagString }
func (v Value) AsBytes() ([]byte, bool)      { return v.bytes, v.tag == TagBytes }
func (v Value) AsList() ([]Value, bool)      { return v.list, v.tag == TagList }
func (v Value) AsEntityId() (EntityId, bool) { return v.eid, v.tag == TagEntityId }
func (v Value) AsValidity() (Validity, bool) { return v.vld, v.tag == TagValidity }

// Equal reports whether a and b are the same value.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

// Compare defines the total order over Value. It agrees byte-for-byte with
// the lexicographic order of Encode, which is what makes attribute-index
// range scans correct.
func Compare(a, b Value) int {
	if a.tag != b.tag {
		if a.tag < b.tag {
			return -1
		}
		return 1
	}
	switch a.tag {
	case TagBottom, TagNull, TagTop:
		return 0
	case TagBool:
		return cmpBool(a.b, b.b)
	case TagInt:
		return cmpInt64(a.i, b.i)
	case TagFloat:
		return cmpFloat64(a.f, b.f)
	case TagString, TagRegex:
		return cmpString(a.s, b.s)
	case TagBytes, TagGuid:
		return cmpBytes(a.bytes, b.bytes)
	case TagList:
		return cmpList(a.list, b.list)
	case TagEntityId:
		return cmpUint64(uint64(a.eid), uint64(b.eid))
	case TagValidity:
		return cmpValidity(a.vld, b.vld)
	default:
		panic(fmt.Sprintf("value: unhandled tag %d in Compare", a.tag))
	}
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return cmpInt64(int64(len(a)), int64(len(b)))
}

// cmpList orders lists by length first, then element by element, matching
// the length-prefixed list encoding.
func cmpList(a, b []Value) int {
	if c := cmpInt64(int64(len(a)), int64(len(b))); c != 0 {
		return c
	}
	for i := range a {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func cmpValidity(a, b Validity) int {
	if c := cmpInt64(a.At, b.At); c != 0 {
		return c
	}
	// at the same timestamp, an assertion is considered "earlier" than a
	// retraction, so that scanning descending finds the retraction (the
	// most current state) first.
	return cmpBool(b.Assert, a.Assert)
}

// orderPreservingFloatBits maps a float64's bit pattern so that the
// resulting uint64 compares, unsigned, in the same order as the floats
// themselves (including across the sign boundary).
func orderPreservingFloatBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

// String renders a Value using traditional Datalog constant syntax, matching
// the pretty-printer conventions of the teacher's Literal/Clause String().
func (v Value) String() string {
	switch v.tag {
	case TagBottom:
		return "-inf"
	case TagTop:
		return "+inf"
	case TagNull:
		return "null"
	case TagBool:
		if v.b {
			return "true"
		}
		return "false"
	case TagInt:
		return fmt.Sprintf("%d", v.i)
	case TagFloat:
		return fmt.Sprintf("%v", v.f)
	case TagString:
		return fmt.Sprintf("%q", v.s)
	case TagBytes:
		return fmt.Sprintf("b%q", v.bytes)
	case TagList:
		return fmt.Sprintf("%v", v.list)
	case TagEntityId:
		return fmt.Sprintf("#%d", v.eid)
	case TagValidity:
		return fmt.Sprintf("@%d:%v", v.vld.At, v.vld.Assert)
	case TagGuid:
		return fmt.Sprintf("guid(%x)", v.bytes)
	case TagRegex:
		return fmt.Sprintf("/%s/", v.s)
	default:
		return "<?value?>"
	}
}
