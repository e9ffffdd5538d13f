// Package kv decodes the binary KeyValues format used by game stats schema
// blobs into an ordered tree of typed values.
package kv

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Wire type tags of the binary KeyValues format
const (
	TypeSubsection byte = 0x00
	TypeString     byte = 0x01
	TypeInt32      byte = 0x02
	TypeFloat32    byte = 0x03
	TypeInt64      byte = 0x07
	TypeEnd        byte = 0x08
	TypeUint64     byte = 0x0A
)

// MaxDepth is the deepest map level kept in the decoded tree; the root is
// level 0. Subsections nested deeper are read past and dropped.
const MaxDepth = 64

// Diagnostics counts the places where decoding of a map level stopped
// before its END tag. The decoded tree is returned either way.
type Diagnostics struct {
	// Truncations counts levels where input ended inside a key, a value
	// or before a nested map's END tag
	Truncations int  `json:"truncations"`
	UnknownTags int  `json:"unknown_tags"`
	LastTag     byte `json:"last_unknown_tag,omitempty"`
	// DepthExceeded counts subsections dropped for nesting below MaxDepth
	DepthExceeded int `json:"depth_exceeded"`
	// LastOffset is the byte offset of the last premature stop
	LastOffset int `json:"last_offset,omitempty"`
}

// PrematureTerminations returns the total number of early stops
func (d Diagnostics) PrematureTerminations() int {
	return d.Truncations + d.UnknownTags + d.DepthExceeded
}

// Decoder reads a binary KeyValues buffer in a single pass
type Decoder struct {
	buf  []byte
	pos  int
	diag Diagnostics
}

// NewDecoder creates a decoder over data. The buffer is not copied.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{buf: data}
}

// Decode decodes data and returns the root map. It never fails: a
// truncated stream or an unknown tag ends the current level and keeps
// whatever was read so far.
func Decode(data []byte) *Map {
	return NewDecoder(data).Decode()
}

// Diagnostics returns the early-stop counters collected so far
func (d *Decoder) Diagnostics() Diagnostics {
	return d.diag
}

// Offset returns the number of bytes consumed
func (d *Decoder) Offset() int {
	return d.pos
}

// level is an open map and the key it will be stored under in its parent
type level struct {
	m   *Map
	key string
}

// Decode decodes the whole buffer into the root map. Open levels are kept
// on an explicit stack, so input nesting never grows the goroutine stack.
func (d *Decoder) Decode() *Map {
	root := NewMap()
	stack := []level{{m: root}}
	// open levels below MaxDepth; their content is consumed but not kept
	dropped := 0

	closeLevel := func() {
		if dropped > 0 {
			dropped--
			return
		}
		done := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(stack) > 0 {
			stack[len(stack)-1].m.Set(done.key, done.m)
		}
	}

	for len(stack) > 0 {
		depth := len(stack) - 1 + dropped

		tag, ok := d.readByte()
		if !ok {
			// End of input is the normal end of the root level
			if depth > 0 {
				d.truncated()
			}
			closeLevel()
			continue
		}

		if tag == TypeEnd {
			closeLevel()
			continue
		}

		switch tag {
		case TypeSubsection, TypeString, TypeInt32, TypeFloat32, TypeInt64, TypeUint64:
		default:
			d.diag.UnknownTags++
			d.diag.LastTag = tag
			d.diag.LastOffset = d.pos - 1
			closeLevel()
			continue
		}

		key, ok := d.readCString()
		if !ok {
			d.truncated()
			closeLevel()
			continue
		}

		if tag == TypeSubsection {
			if depth+1 > MaxDepth {
				if dropped == 0 {
					d.diag.DepthExceeded++
					d.diag.LastOffset = d.pos
				}
				dropped++
			} else {
				stack = append(stack, level{m: NewMap(), key: key})
			}
			continue
		}

		value, ok := d.readScalar(tag)
		if !ok {
			d.truncated()
			closeLevel()
			continue
		}
		if dropped == 0 {
			stack[len(stack)-1].m.Set(key, value)
		}
	}

	return root
}

func (d *Decoder) readScalar(tag byte) (Value, bool) {
	switch tag {
	case TypeString:
		s, ok := d.readCString()
		return String(s), ok
	case TypeInt32:
		b, ok := d.readFixed(4)
		if !ok {
			return nil, false
		}
		return Int32(int32(binary.LittleEndian.Uint32(b))), true
	case TypeFloat32:
		b, ok := d.readFixed(4)
		if !ok {
			return nil, false
		}
		return Float32(math.Float32frombits(binary.LittleEndian.Uint32(b))), true
	case TypeInt64:
		b, ok := d.readFixed(8)
		if !ok {
			return nil, false
		}
		return Int64(int64(binary.LittleEndian.Uint64(b))), true
	case TypeUint64:
		b, ok := d.readFixed(8)
		if !ok {
			return nil, false
		}
		return Uint64(binary.LittleEndian.Uint64(b)), true
	}
	return nil, false
}

func (d *Decoder) truncated() {
	d.diag.Truncations++
	d.diag.LastOffset = d.pos
}

func (d *Decoder) readByte() (byte, bool) {
	if d.pos >= len(d.buf) {
		return 0, false
	}
	b := d.buf[d.pos]
	d.pos++
	return b, true
}

// readCString reads up to the next NUL and consumes the terminator
func (d *Decoder) readCString() (string, bool) {
	n := bytes.IndexByte(d.buf[d.pos:], 0)
	if n < 0 {
		d.pos = len(d.buf)
		return "", false
	}
	s := string(d.buf[d.pos : d.pos+n])
	d.pos += n + 1
	return s, true
}

func (d *Decoder) readFixed(n int) ([]byte, bool) {
	if len(d.buf)-d.pos < n {
		d.pos = len(d.buf)
		return nil, false
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, true
}
