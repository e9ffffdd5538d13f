package kv

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Encode serializes m in the binary KeyValues format, ending the root
// level with an END tag. Decode(Encode(m)) reproduces m exactly.
func Encode(m *Map) ([]byte, error) {
	return AppendMap(nil, m)
}

// AppendMap appends the encoding of m to dst
func AppendMap(dst []byte, m *Map) ([]byte, error) {
	var err error
	for _, e := range m.Entries() {
		if strings.IndexByte(e.Key, 0) >= 0 {
			return nil, fmt.Errorf("key %q contains NUL", e.Key)
		}

		switch v := e.Value.(type) {
		case *Map:
			dst = appendHeader(dst, TypeSubsection, e.Key)
			dst, err = AppendMap(dst, v)
			if err != nil {
				return nil, fmt.Errorf("encoding %q: %w", e.Key, err)
			}
			continue
		case String:
			if strings.IndexByte(string(v), 0) >= 0 {
				return nil, fmt.Errorf("value of %q contains NUL", e.Key)
			}
			dst = appendHeader(dst, TypeString, e.Key)
			dst = append(dst, string(v)...)
			dst = append(dst, 0)
		case Int32:
			dst = appendHeader(dst, TypeInt32, e.Key)
			dst = binary.LittleEndian.AppendUint32(dst, uint32(v))
		case Float32:
			dst = appendHeader(dst, TypeFloat32, e.Key)
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v)))
		case Int64:
			dst = appendHeader(dst, TypeInt64, e.Key)
			dst = binary.LittleEndian.AppendUint64(dst, uint64(v))
		case Uint64:
			dst = appendHeader(dst, TypeUint64, e.Key)
			dst = binary.LittleEndian.AppendUint64(dst, uint64(v))
		default:
			return nil, fmt.Errorf("unsupported value %T for key %q", e.Value, e.Key)
		}
	}
	return append(dst, TypeEnd), nil
}

func appendHeader(dst []byte, tag byte, key string) []byte {
	dst = append(dst, tag)
	dst = append(dst, key...)
	return append(dst, 0)
}
