package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"unicode/utf8"
)

// Kind identifies which variant a [Value] holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a JSON-shaped field value: null, bool, number, string, list or ordered map.
//
// Numbers keep their literal text and maps keep insertion order so a value re-encodes
// exactly as it was read.
type Value struct {
	kind    Kind
	b       bool
	num     json.Number
	str     string
	items   []Value
	entries []Entry
}

// Entry is one key/value pair of a map [Value] or a [Record].
type Entry struct {
	Key   string
	Value Value
}

func Null() Value                { return Value{} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func String(s string) Value      { return Value{kind: KindString, str: s} }
func Int(n int64) Value          { return Value{kind: KindNumber, num: json.Number(strconv.FormatInt(n, 10))} }
func List(items ...Value) Value  { return Value{kind: KindList, items: items} }
func Map(entries ...Entry) Value { return Value{kind: KindMap, entries: entries} }

// Number wraps a numeric literal. The literal is validated at encode time, not here.
func Number(literal string) Value { return Value{kind: KindNumber, num: json.Number(literal)} }

// Float wraps a float64. NaN and infinities are representable but fail [Value.MarshalCompact].
func Float(f float64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatFloat(f, 'g', -1, 64))}
}

// E builds an [Entry].
func E(key string, v Value) Entry { return Entry{Key: key, Value: v} }

func (v Value) Kind() Kind       { return v.kind }
func (v Value) IsNull() bool     { return v.kind == KindNull }
func (v Value) Bool() bool       { return v.b }
func (v Value) Str() string      { return v.str }
func (v Value) Num() json.Number { return v.num }
func (v Value) Items() []Value   { return v.items }
func (v Value) Entries() []Entry { return v.entries }

// Len is the element count of a list or map, the character count of a string, and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.items)
	case KindMap:
		return len(v.entries)
	case KindString:
		return utf8.RuneCountInString(v.str)
	default:
		return 0
	}
}

// IsEmpty reports whether v is null, an empty string, or an empty list or map.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString, KindList, KindMap:
		return v.Len() == 0
	default:
		return false
	}
}

// Lookup returns the value stored under key in a map.
func (v Value) Lookup(key string) (Value, bool) {
	for _, e := range v.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Text renders a scalar as cell text. Lists and maps render as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return v.num.String()
	case KindString:
		return v.str
	default:
		data, err := v.MarshalCompact()
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// MarshalCompact encodes v as compact JSON without HTML escaping.
// It fails when a number is not a valid JSON literal (NaN, Inf, garbage).
func (v Value) MarshalCompact() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return v.MarshalCompact()
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		if !json.Valid([]byte(v.num)) {
			return fmt.Errorf("unsupported number %q", string(v.num))
		}
		buf.WriteString(string(v.num))
	case KindString:
		writeJSONString(buf, v.str)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, e := range v.entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, e.Key)
			buf.WriteByte(':')
			if err := e.Value.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	buf.Truncate(buf.Len() - 1) // Encode appends a newline
}

// ParseJSON decodes a JSON document into a [Value], preserving map key order and number literals.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t.String()), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return List(items...), nil
		case '{':
			entries := []Entry{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("unexpected object key %v", keyTok)
				}
				val, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				entries = append(entries, E(key, val))
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Map(entries...), nil
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

// FromAny converts plain Go data (as produced by encoding/json or written in tests) into a [Value].
// Map keys are sorted since Go maps carry no order.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		return Float(t)
	case json.Number:
		return Number(t.String())
	case string:
		return String(t)
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = String(s)
		}
		return List(items...)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return List(items...)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]Entry, len(keys))
		for i, k := range keys {
			entries[i] = E(k, FromAny(t[k]))
		}
		return Map(entries...)
	default:
		return String(fmt.Sprint(t))
	}
}
