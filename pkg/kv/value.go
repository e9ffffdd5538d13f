package kv

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Value is one decoded KeyValues value. The concrete types are String,
// Int32, Float32, Int64, Uint64 and *Map; no other type implements it.
type Value interface {
	isValue()
}

// String is a NUL-terminated UTF-8 string value (tag 0x01)
type String string

// Int32 is a little-endian signed 32-bit value (tag 0x02)
type Int32 int32

// Float32 is a little-endian IEEE-754 single precision value (tag 0x03)
type Float32 float32

// Int64 is a little-endian signed 64-bit value (tag 0x07)
type Int64 int64

// Uint64 is a little-endian unsigned 64-bit value (tag 0x0A)
type Uint64 uint64

func (String) isValue()  {}
func (Int32) isValue()   {}
func (Float32) isValue() {}
func (Int64) isValue()   {}
func (Uint64) isValue()  {}
func (*Map) isValue()    {}

// Entry is a single key/value pair of a Map
type Entry struct {
	Key   string
	Value Value
}

// Map is an ordered mapping of string keys to values.
// Keys are unique; setting an existing key replaces its value in place.
type Map struct {
	entries []Entry
	index   map[string]int
}

// NewMap creates an empty map
func NewMap() *Map {
	return &Map{index: make(map[string]int)}
}

// MapOf builds a map from entries, in order
func MapOf(entries ...Entry) *Map {
	m := NewMap()
	for _, e := range entries {
		m.Set(e.Key, e.Value)
	}
	return m
}

// Set stores value under key
func (m *Map) Set(key string, value Value) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[key]; ok {
		m.entries[i].Value = value
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, Entry{Key: key, Value: value})
}

// Get returns the value stored under key
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return nil, false
	}
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.entries[i].Value, true
}

// Has reports whether key is present
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// GetMap returns the nested map stored under key, if the value is a map
func (m *Map) GetMap(key string) (*Map, bool) {
	v, ok := m.Get(key)
	if !ok {
		return nil, false
	}
	sub, ok := v.(*Map)
	return sub, ok
}

// Len returns the number of entries
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns the entries in insertion order. The slice must not be modified.
func (m *Map) Entries() []Entry {
	if m == nil {
		return nil
	}
	return m.entries
}

// Keys returns the keys in insertion order
func (m *Map) Keys() []string {
	keys := make([]string, 0, m.Len())
	for _, e := range m.Entries() {
		keys = append(keys, e.Key)
	}
	return keys
}

// Equal reports whether two values are structurally identical, including
// map entry order. Floats compare by bit pattern so NaN equals itself.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int32:
		bv, ok := b.(Int32)
		return ok && av == bv
	case Float32:
		bv, ok := b.(Float32)
		return ok && math.Float32bits(float32(av)) == math.Float32bits(float32(bv))
	case Int64:
		bv, ok := b.(Int64)
		return ok && av == bv
	case Uint64:
		bv, ok := b.(Uint64)
		return ok && av == bv
	case *Map:
		bv, ok := b.(*Map)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for i, e := range av.Entries() {
			other := bv.entries[i]
			if e.Key != other.Key || !Equal(e.Value, other.Value) {
				return false
			}
		}
		return true
	default:
		return a == nil && b == nil
	}
}

// MarshalJSON renders the map as a JSON object in insertion order.
// Non-finite floats are rendered as strings.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var raw []byte
		switch v := e.Value.(type) {
		case String:
			raw, err = json.Marshal(string(v))
		case Int32:
			raw = strconv.AppendInt(nil, int64(v), 10)
		case Int64:
			raw = strconv.AppendInt(nil, int64(v), 10)
		case Uint64:
			raw = strconv.AppendUint(nil, uint64(v), 10)
		case Float32:
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				raw, err = json.Marshal(Text(v))
			} else {
				raw = strconv.AppendFloat(nil, f, 'g', -1, 32)
			}
		case *Map:
			raw, err = v.MarshalJSON()
		default:
			raw = []byte("null")
		}
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
