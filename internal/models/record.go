package models

import "fmt"

// Record is one source row: an ordered set of named fields.
type Record struct {
	fields []Entry
}

// NewRecord builds a record from entries in order.
func NewRecord(fields ...Entry) Record {
	return Record{fields: fields}
}

// RecordFromValue converts a decoded JSON object into a record.
func RecordFromValue(v Value) (Record, error) {
	if v.Kind() != KindMap {
		return Record{}, fmt.Errorf("record must be an object, got %s", v.Kind())
	}
	return Record{fields: v.Entries()}, nil
}

// ParseRecord decodes one JSON object into a record.
func ParseRecord(data []byte) (Record, error) {
	v, err := ParseJSON(data)
	if err != nil {
		return Record{}, err
	}
	return RecordFromValue(v)
}

// Get returns the named field. A missing field reports false.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.fields {
		if f.Key == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Key returns the record's identity (its "id" field), or null if it has none.
func (r Record) Key() Value {
	v, _ := r.Get("id")
	return v
}

func (r Record) Fields() []Entry { return r.fields }
func (r Record) Len() int        { return len(r.fields) }

// AsValue returns the record as a map value.
func (r Record) AsValue() Value { return Map(r.fields...) }
