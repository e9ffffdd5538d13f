package kv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSchema() *Map {
	return MapOf(
		Entry{"480", MapOf(
			Entry{"gamename", String("Spacewar")},
			Entry{"version", Int32(12)},
			Entry{"stats", MapOf(
				Entry{"1", MapOf(
					Entry{"type", Int32(1)},
					Entry{"name", String("NumGames")},
					Entry{"default", String("0")},
				)},
				Entry{"2", MapOf(
					Entry{"type", String("2")},
					Entry{"name", String("FeetTraveled")},
					Entry{"Default", Float32(1.5)},
				)},
			)},
		)},
		Entry{"big", Uint64(math.MaxUint64 - 7)},
		Entry{"neg", Int64(-42)},
		Entry{"utf8", String("Größe ✓")},
	)
}

func TestDecode_RoundTrip(t *testing.T) {
	original := sampleSchema()

	data, err := Encode(original)
	require.NoError(t, err)

	dec := NewDecoder(data)
	decoded := dec.Decode()

	assert.True(t, Equal(original, decoded), "decoded tree differs:\nwant %s\ngot  %s", Text(original), Text(decoded))
	assert.Equal(t, len(data), dec.Offset())
	assert.Zero(t, dec.Diagnostics().PrematureTerminations())
}

func TestDecode_PreservesOrder(t *testing.T) {
	m := MapOf(
		Entry{"zeta", Int32(1)},
		Entry{"alpha", Int32(2)},
		Entry{"mid", Int32(3)},
	)
	data, err := Encode(m)
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, Decode(data).Keys())
}

func TestDecode_Uint64AboveSignedRange(t *testing.T) {
	const want = uint64(0xFFFF_FFFF_FFFF_FFFE)
	data, err := Encode(MapOf(Entry{"id", Uint64(want)}))
	require.NoError(t, err)

	v, ok := Decode(data).Get("id")
	require.True(t, ok)
	require.IsType(t, Uint64(0), v)
	assert.Equal(t, want, uint64(v.(Uint64)))
	assert.Equal(t, "18446744073709551614", Text(v))
}

func TestDecode_WireLayout(t *testing.T) {
	data := []byte{
		TypeSubsection, 'a', 0,
		TypeInt32, 'n', 0, 0x01, 0x00, 0x00, 0x80,
		TypeFloat32, 'f', 0, 0x00, 0x00, 0xc0, 0x3f,
		TypeEnd,
		TypeString, 's', 0, 'h', 'i', 0,
		TypeEnd,
	}

	root := Decode(data)
	a, ok := root.GetMap("a")
	require.True(t, ok)

	n, _ := a.Get("n")
	assert.Equal(t, Int32(math.MinInt32+1), n)

	f, _ := a.Get("f")
	assert.Equal(t, Float32(1.5), f)

	s, _ := root.Get("s")
	assert.Equal(t, String("hi"), s)
}

func TestDecode_DuplicateKeyOverwritesInPlace(t *testing.T) {
	data := []byte{
		TypeString, 'k', 0, 'o', 'n', 'e', 0,
		TypeString, 'x', 0, 'y', 0,
		TypeString, 'k', 0, 't', 'w', 'o', 0,
		TypeEnd,
	}

	root := Decode(data)
	assert.Equal(t, []string{"k", "x"}, root.Keys())
	v, _ := root.Get("k")
	assert.Equal(t, String("two"), v)
}

func TestDecode_Truncation(t *testing.T) {
	full, err := Encode(MapOf(
		Entry{"first", String("kept")},
		Entry{"nested", MapOf(
			Entry{"inner", Int32(7)},
			Entry{"lost", Int64(99)},
		)},
	))
	require.NoError(t, err)

	tests := []struct {
		name        string
		cut         int
		wantKeys    []string
		wantInner   bool
		truncations int
	}{
		{"empty input", 0, []string{}, false, 0},
		{"inside first key", 3, []string{}, false, 1},
		{"inside first value", 9, []string{}, false, 1},
		{"after first entry", 12, []string{"first"}, false, 0},
		{"inside second key", 13, []string{"first"}, false, 1},
		{"inside nested int64", len(full) - 5, []string{"first", "nested"}, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(full[:tt.cut])
			root := dec.Decode()

			assert.Equal(t, tt.wantKeys, root.Keys())
			if tt.wantInner {
				nested, ok := root.GetMap("nested")
				require.True(t, ok)
				assert.Equal(t, []string{"inner"}, nested.Keys())
			}
			assert.Equal(t, tt.truncations, dec.Diagnostics().Truncations)
		})
	}
}

func TestDecode_UnknownTagStopsLevel(t *testing.T) {
	data := []byte{
		TypeString, 'b', 0, 'c', 0,
		0x05, 'p', 0, 1, 2, 3, 4,
		TypeString, 'd', 0, 'e', 0,
		TypeEnd,
	}

	dec := NewDecoder(data)
	root := dec.Decode()

	assert.Equal(t, []string{"b"}, root.Keys())

	diag := dec.Diagnostics()
	assert.Equal(t, 1, diag.UnknownTags)
	assert.Equal(t, byte(0x05), diag.LastTag)
	assert.Equal(t, 5, diag.LastOffset)
	assert.Equal(t, 1, diag.PrematureTerminations())
}

func TestDecode_UnknownTagInNestedLevel(t *testing.T) {
	data := []byte{
		TypeSubsection, 'a', 0,
		TypeInt32, 'x', 0, 1, 0, 0, 0,
		0x05, 'p', 0,
		TypeEnd,
	}

	dec := NewDecoder(data)
	root := dec.Decode()

	a, ok := root.GetMap("a")
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, a.Keys())
	assert.Equal(t, []string{"a"}, root.Keys())

	// the parent resumes at the byte after the bad tag and stops there too
	assert.Equal(t, 2, dec.Diagnostics().UnknownTags)
}

func TestEncode_RejectsNUL(t *testing.T) {
	_, err := Encode(MapOf(Entry{"bad\x00key", Int32(1)}))
	assert.Error(t, err)

	_, err = Encode(MapOf(Entry{"k", MapOf(Entry{"v", String("a\x00b")})}))
	assert.Error(t, err)
}

func nestedDepth(m *Map) int {
	depth := 0
	for {
		entries := m.Entries()
		if len(entries) == 0 {
			return depth
		}
		sub, ok := entries[0].Value.(*Map)
		if !ok {
			return depth
		}
		m = sub
		depth++
	}
}

func TestDecode_DeepNestingIsBounded(t *testing.T) {
	const levels = 2 << 20

	data := make([]byte, 0, levels*3+16)
	for i := 0; i < levels; i++ {
		data = append(data, TypeSubsection, 0)
	}
	for i := 0; i < levels; i++ {
		data = append(data, TypeEnd)
	}
	data = append(data, TypeString, 'k', 0, 'v', 0, TypeEnd)

	dec := NewDecoder(data)
	root := dec.Decode()

	assert.Equal(t, MaxDepth, nestedDepth(root))
	// the dropped subtree is skipped whole; the sibling after it is intact
	assert.Equal(t, []string{"", "k"}, root.Keys())

	diag := dec.Diagnostics()
	assert.Equal(t, 1, diag.DepthExceeded)
	assert.Zero(t, diag.Truncations)
	assert.Equal(t, 1, diag.PrematureTerminations())
	assert.Equal(t, len(data), dec.Offset())
}

func TestDecode_DeepUnterminatedNesting(t *testing.T) {
	const levels = 4 << 20

	data := make([]byte, 0, levels*2)
	for i := 0; i < levels; i++ {
		data = append(data, TypeSubsection, 0)
	}

	dec := NewDecoder(data)
	root := dec.Decode()

	assert.Equal(t, MaxDepth, nestedDepth(root))
	diag := dec.Diagnostics()
	assert.Equal(t, 1, diag.DepthExceeded)
	assert.Equal(t, levels, diag.Truncations)
}

func TestDecode_MaxDepthIsKept(t *testing.T) {
	m := MapOf(Entry{"leaf", Int32(1)})
	for i := 0; i < MaxDepth; i++ {
		m = MapOf(Entry{"n", m})
	}
	data, err := Encode(m)
	require.NoError(t, err)

	dec := NewDecoder(data)
	root := dec.Decode()

	assert.True(t, Equal(m, root))
	assert.Zero(t, dec.Diagnostics().PrematureTerminations())
}
