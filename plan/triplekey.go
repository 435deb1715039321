package plan

import (
	"fmt"

	"github.com/cozo-community/cozo/schema"
	"github.com/cozo-community/cozo/value"
)

// Triple facts are stored as an append-only event log under the primary
// EAV-order index: key = Encode(attrId, entity, val, validity), with an
// empty storage value (everything needed is already in the key). Every
// assertion or retraction is its own key, ordered so that, within one
// (attrId, entity, val) group, ascending iteration visits assertions before
// retractions at the same timestamp (value.Validity's Compare order) and
// earlier timestamps before later ones. Resolving "what does ?v read as of
// Validity vld" is then: take the last event at or before vld.At; the fact
// holds at vld iff that event is an assertion.
//
// Only this primary index exists. schema.Attribute.Indexed is not consulted:
// no value -> entity index is maintained, and a constant value term is
// matched by joining a Singlet against a scan of the attribute's primary
// index. schema.Attribute.WithHistory is not consulted either: no event is
// ever removed, and reads always resolve to the latest visible event.

func triplePrefixBounds(attrID value.EntityId, entity *value.EntityId) (lower, upper []byte) {
	if entity == nil {
		return value.EncodeTuple(value.Tuple{value.EnId(attrID)}),
			value.EncodeTuple(value.Tuple{value.EnId(attrID + 1)})
	}
	return value.EncodeTuple(value.Tuple{value.EnId(attrID), value.EnId(*entity)}),
		value.EncodeTuple(value.Tuple{value.EnId(attrID), value.EnId(*entity + 1)})
}

// EncodeTripleKey is exported so package engine (fact assertions and
// backup/restore) can write the same on-disk layout plan.Triple scans
// against.
func EncodeTripleKey(attr schema.Attribute, entity value.EntityId, val value.Value, vld schema.Validity) []byte {
	return value.EncodeTuple(value.Tuple{value.EnId(attr.Id), value.EnId(entity), val, value.Vld(vld)})
}

type tripleEvent struct {
	Entity value.EntityId
	Val    value.Value
	Vld    schema.Validity
}

func decodeTripleKey(buf []byte) (tripleEvent, error) {
	t, err := value.DecodeTuple(buf)
	if err != nil {
		return tripleEvent{}, fmt.Errorf("plan: corrupt triple key: %w", err)
	}
	if len(t) != 4 {
		return tripleEvent{}, fmt.Errorf("plan: corrupt triple key: expected 4 columns, found %d", len(t))
	}
	entity, ok := t[1].AsEntityId()
	if !ok {
		return tripleEvent{}, fmt.Errorf("plan: corrupt triple key: second column is not an entity id")
	}
	vld, ok := t[3].AsValidity()
	if !ok {
		return tripleEvent{}, fmt.Errorf("plan: corrupt triple key: fourth column is not a validity")
	}
	return tripleEvent{Entity: entity, Val: t[2], Vld: vld}, nil
}
