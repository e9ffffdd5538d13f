package kv

import (
	"math"
	"strconv"
	"strings"
)

// Text renders a value as the plain text the schema tooling compares and
// coerces. Integers are signed decimal (UINT64 included), floats follow
// FormatFloat32 and maps render as {key=value, ...}.
func Text(v Value) string {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int32:
		return strconv.FormatInt(int64(val), 10)
	case Int64:
		return strconv.FormatInt(int64(val), 10)
	case Uint64:
		// same bits as a signed 64-bit integer, so 0xFFFFFFFFFFFFFFFF is "-1"
		return strconv.FormatInt(int64(val), 10)
	case Float32:
		return FormatFloat32(float32(val))
	case *Map:
		var sb strings.Builder
		sb.WriteByte('{')
		for i, e := range val.Entries() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e.Key)
			sb.WriteByte('=')
			sb.WriteString(Text(e.Value))
		}
		sb.WriteByte('}')
		return sb.String()
	default:
		return ""
	}
}

// FormatFloat32 renders f with the shortest digits that round-trip: plain
// decimal with at least one fractional digit for magnitudes in
// [1e-3, 1e7), otherwise d.dddE<exp> ("3.0", "1.0E10", "1.5E-5").
func FormatFloat32(f float32) string {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		if math.Signbit(v) {
			return "-0.0"
		}
		return "0.0"
	}

	abs := math.Abs(v)
	if abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(v, 'f', -1, 32)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	s := strconv.FormatFloat(v, 'e', -1, 32)
	mantissa, exp, _ := strings.Cut(s, "e")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	n, err := strconv.Atoi(exp)
	if err != nil {
		return s
	}
	return mantissa + "E" + strconv.Itoa(n)
}
