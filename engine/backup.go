package engine

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cozo-community/cozo/plan"
	"github.com/cozo-community/cozo/schema"
	"github.com/cozo-community/cozo/storage"
	"github.com/cozo-community/cozo/value"
)

// backupRecord is the on-disk shape of one triple event. The format itself
// is explicitly out of scope (SPEC_FULL.md §1); this is the one concrete
// choice this expansion commits to so the round-trip property in spec.md
// §8 is testable.
type backupRecord struct {
	Attr   string          `json:"attr"`
	Entity uint64          `json:"entity"`
	Tag    string          `json:"tag"`
	Val    json.RawMessage `json:"val"`
	At     int64           `json:"at"`
	Assert bool            `json:"assert"`
}

// BackupDB dumps every triple event currently stored to path as JSON.
func (db *DB) BackupDB(path string) error {
	tx, err := db.store.Transact(false)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	it, err := tx.RangeScanTuple(nil, nil)
	if err != nil {
		return err
	}
	tuples, err := storage.CollectTuples(it)
	if err != nil {
		return err
	}

	attrByID := db.attrByID()
	records := make([]backupRecord, 0, len(tuples))
	for _, t := range tuples {
		if len(t) != 4 {
			continue // not a triple-shaped key; skip rather than fail a whole backup
		}
		attrID, ok := t[0].AsEntityId()
		if !ok {
			continue
		}
		attr, ok := attrByID[attrID]
		if !ok {
			continue
		}
		entity, _ := t[1].AsEntityId()
		vld, _ := t[3].AsValidity()
		tag, raw, err := encodeValueJSON(t[2])
		if err != nil {
			return err
		}
		records = append(records, backupRecord{
			Attr: attr.Name, Entity: uint64(entity),
			Tag: tag, Val: raw,
			At: vld.At, Assert: vld.Assert,
		})
	}

	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}

// RestoreBackup writes the triple events recorded at path (as written by
// BackupDB) into storage. It does not clear the database first: keys
// already stored are kept alongside the restored ones.
func (db *DB) RestoreBackup(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return db.ImportRelationsStrWithErr(string(raw))
}

// ImportRelationsStrWithErr parses jsonText as a backupRecord list (the same
// shape BackupDB writes) and asserts every record into storage.
func (db *DB) ImportRelationsStrWithErr(jsonText string) error {
	var records []backupRecord
	if err := json.Unmarshal([]byte(jsonText), &records); err != nil {
		return fmt.Errorf("engine: malformed import payload: %w", err)
	}

	tx, err := db.store.Transact(true)
	if err != nil {
		return err
	}
	for _, rec := range records {
		attr, ok := db.attrs.Get(rec.Attr)
		if !ok {
			tx.Rollback()
			return fmt.Errorf("engine: import references unknown attribute %q", rec.Attr)
		}
		val, err := decodeValueJSON(rec.Tag, rec.Val)
		if err != nil {
			tx.Rollback()
			return err
		}
		key := plan.EncodeTripleKey(attr, value.EntityId(rec.Entity), val, schema.Validity{At: rec.At, Assert: rec.Assert})
		if err := tx.Put(key, nil); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (db *DB) attrByID() map[value.EntityId]schema.Attribute {
	out := make(map[value.EntityId]schema.Attribute)
	for _, name := range db.attrs.Names() {
		attr, _ := db.attrs.Get(name)
		out[attr.Id] = attr
	}
	return out
}

func encodeValueJSON(v value.Value) (string, json.RawMessage, error) {
	var tag string
	var payload any
	switch v.Tag() {
	case value.TagBool:
		tag = "bool"
		payload, _ = v.AsBool()
	case value.TagInt:
		tag = "int"
		payload, _ = v.AsInt()
	case value.TagFloat:
		tag = "float"
		payload, _ = v.AsFloat()
	case value.TagString:
		tag = "string"
		payload, _ = v.AsString()
	case value.TagBytes:
		tag = "bytes"
		payload, _ = v.AsBytes()
	case value.TagEntityId:
		tag = "entity_id"
		id, _ := v.AsEntityId()
		payload = uint64(id)
	default:
		return "", nil, fmt.Errorf("engine: backup does not support value tag %d", v.Tag())
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", nil, err
	}
	return tag, raw, nil
}

func decodeValueJSON(tag string, raw json.RawMessage) (value.Value, error) {
	switch tag {
	case "bool":
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return value.Value{}, err
		}
		return value.Bool(b), nil
	case "int":
		var i int64
		if err := json.Unmarshal(raw, &i); err != nil {
			return value.Value{}, err
		}
		return value.Int(i), nil
	case "float":
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return value.Value{}, err
		}
		return value.Float(f), nil
	case "string":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return value.Value{}, err
		}
		return value.String(s), nil
	case "bytes":
		var b []byte
		if err := json.Unmarshal(raw, &b); err != nil {
			return value.Value{}, err
		}
		return value.Bytes(b), nil
	case "entity_id":
		var id uint64
		if err := json.Unmarshal(raw, &id); err != nil {
			return value.Value{}, err
		}
		return value.EnId(value.EntityId(id)), nil
	default:
		return value.Value{}, fmt.Errorf("engine: unknown backup value tag %q", tag)
	}
}
