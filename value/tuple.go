package value

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tuple is an ordered sequence of Value. Tuples are immutable once
// constructed: every function below returns a new Tuple rather than
// mutating its receiver.
type Tuple []Value

// Equal reports whether two tuples hold the same values in the same order.
func (t Tuple) Equal(o Tuple) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if !Equal(t[i], o[i]) {
			return false
		}
	}
	return true
}

// escape-encoding for variable-length byte sequences (string, bytes, list
// elements that bottom out in bytes): 0x00 is escaped to 0x00 0xff and the
// sequence is terminated by a bare 0x00 0x00. This is the standard trick for
// building order-preserving, self-delimiting byte keys (as used by e.g.
// FoundationDB's tuple layer), and is what makes Encode's output agree with
// Compare byte-for-byte even when tuples of different value shapes are
// concatenated.
func appendEscaped(buf []byte, raw []byte) []byte {
	for _, b := range raw {
		if b == 0x00 {
			buf = append(buf, 0x00, 0xff)
		} else {
			buf = append(buf, b)
		}
	}
	return append(buf, 0x00, 0x00)
}

func readEscaped(buf []byte) (raw []byte, rest []byte, err error) {
	for i := 0; i < len(buf); i++ {
		if buf[i] != 0x00 {
			continue
		}
		if i+1 >= len(buf) {
			return nil, nil, fmt.Errorf("value: corrupt escaped sequence: truncated")
		}
		switch buf[i+1] {
		case 0xff:
			raw = append(raw, 0x00)
			i++
		case 0x00:
			return raw, buf[i+2:], nil
		default:
			return nil, nil, fmt.Errorf("value: corrupt escaped sequence: bad escape byte 0x%x", buf[i+1])
		}
	}
	return nil, nil, fmt.Errorf("value: corrupt escaped sequence: missing terminator")
}

// appendValue appends the order-preserving encoding of v to buf.
func appendValue(buf []byte, v Value) []byte {
	buf = append(buf, byte(v.tag))
	switch v.tag {
	case TagBottom, TagNull, TagTop:
		// tag byte alone is enough; these never carry a payload.
	case TagBool:
		if v.b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case TagInt:
		var tmp [8]byte
		// flip the sign bit so that two's-complement negative numbers sort
		// before non-negative ones under unsigned big-endian comparison.
		binary.BigEndian.PutUint64(tmp[:], uint64(v.i)^(1<<63))
		buf = append(buf, tmp[:]...)
	case TagFloat:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], orderPreservingFloatBits(v.f))
		buf = append(buf, tmp[:]...)
	case TagString, TagRegex:
		buf = appendEscaped(buf, []byte(v.s))
	case TagBytes, TagGuid:
		buf = appendEscaped(buf, v.bytes)
	case TagList:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(len(v.list)))
		buf = append(buf, tmp[:]...)
		for _, e := range v.list {
			buf = appendValue(buf, e)
		}
	case TagEntityId:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(v.eid))
		buf = append(buf, tmp[:]...)
	case TagValidity:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(v.vld.At)^(1<<63))
		buf = append(buf, tmp[:]...)
		// an assertion encodes as 0 so it sorts before a retraction at the
		// same At, as cmpValidity orders them.
		if v.vld.Assert {
			buf = append(buf, 0)
		} else {
			buf = append(buf, 1)
		}
	default:
		panic(fmt.Sprintf("value: unhandled tag %d in appendValue", v.tag))
	}
	return buf
}

// readValue decodes one Value from the front of buf, returning the decoded
// value and the unconsumed remainder.
func readValue(buf []byte) (Value, []byte, error) {
	if len(buf) == 0 {
		return Value{}, nil, fmt.Errorf("value: corrupt tuple: expected a tag byte, found none")
	}
	tag := Tag(buf[0])
	rest := buf[1:]
	switch tag {
	case TagBottom:
		return Bottom, rest, nil
	case TagNull:
		return Null, rest, nil
	case TagTop:
		return Top, rest, nil
	case TagBool:
		if len(rest) < 1 {
			return Value{}, nil, fmt.Errorf("value: corrupt bool: truncated")
		}
		return Bool(rest[0] != 0), rest[1:], nil
	case TagInt:
		if len(rest) < 8 {
			return Value{}, nil, fmt.Errorf("value: corrupt int: truncated")
		}
		u := binary.BigEndian.Uint64(rest[:8]) ^ (1 << 63)
		return Int(int64(u)), rest[8:], nil
	case TagFloat:
		if len(rest) < 8 {
			return Value{}, nil, fmt.Errorf("value: corrupt float: truncated")
		}
		u := binary.BigEndian.Uint64(rest[:8])
		var bits uint64
		if u&(1<<63) != 0 {
			bits = u &^ (1 << 63)
		} else {
			bits = ^u
		}
		return Float(math.Float64frombits(bits)), rest[8:], nil
	case TagString, TagRegex:
		raw, r, err := readEscaped(rest)
		if err != nil {
			return Value{}, nil, err
		}
		if tag == TagRegex {
			return Regex(string(raw)), r, nil
		}
		return String(string(raw)), r, nil
	case TagBytes, TagGuid:
		raw, r, err := readEscaped(rest)
		if err != nil {
			return Value{}, nil, err
		}
		if tag == TagGuid {
			return Guid(raw), r, nil
		}
		return Bytes(raw), r, nil
	case TagList:
		if len(rest) < 8 {
			return Value{}, nil, fmt.Errorf("value: corrupt list: truncated length")
		}
		n := binary.BigEndian.Uint64(rest[:8])
		r := rest[8:]
		elems := make([]Value, 0, n)
		for i := uint64(0); i < n; i++ {
			var e Value
			var err error
			e, r, err = readValue(r)
			if err != nil {
				return Value{}, nil, err
			}
			elems = append(elems, e)
		}
		return List(elems), r, nil
	case TagEntityId:
		if len(rest) < 8 {
			return Value{}, nil, fmt.Errorf("value: corrupt entity id: truncated")
		}
		return EnId(EntityId(binary.BigEndian.Uint64(rest[:8]))), rest[8:], nil
	case TagValidity:
		if len(rest) < 9 {
			return Value{}, nil, fmt.Errorf("value: corrupt validity: truncated")
		}
		at := int64(binary.BigEndian.Uint64(rest[:8]) ^ (1 << 63))
		assert := rest[8] == 0
		return Vld(Validity{At: at, Assert: assert}), rest[9:], nil
	default:
		return Value{}, nil, fmt.Errorf("value: corrupt tuple: unknown tag byte 0x%x", tag)
	}
}

// EncodeTuple produces the canonical, order-preserving byte encoding of a
// tuple: a.Compare(b) < 0 iff Encode(a) < Encode(b) lexicographically, for
// any two tuples of the same shape (and, because every variant is
// self-delimiting, for tuples of differing shape too).
func EncodeTuple(t Tuple) []byte {
	var buf []byte
	for _, v := range t {
		buf = appendValue(buf, v)
	}
	return buf
}

// DecodeTuple is the inverse of EncodeTuple: decoding is exact, i.e.
// DecodeTuple(EncodeTuple(t)) equals t for every representable tuple.
func DecodeTuple(buf []byte) (Tuple, error) {
	var out Tuple
	for len(buf) > 0 {
		v, rest, err := readValue(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		buf = rest
	}
	return out, nil
}

// DecodeTupleFromKV decodes a tuple split across a storage key and its
// associated value: the key's columns are decoded first (these are the
// indexed columns of the row), followed by the value's columns (the
// remaining, non-indexed columns). Every storage.Tx.RangeScanTuple
// implementation must call this to turn raw (key, value) pairs into
// decoded rows.
func DecodeTupleFromKV(key, val []byte) (Tuple, error) {
	kt, err := DecodeTuple(key)
	if err != nil {
		return nil, fmt.Errorf("value: corrupt key: %w", err)
	}
	if len(val) == 0 {
		return kt, nil
	}
	vt, err := DecodeTuple(val)
	if err != nil {
		return nil, fmt.Errorf("value: corrupt value: %w", err)
	}
	return append(kt, vt...), nil
}
