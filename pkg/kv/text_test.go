package kv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFloat32(t *testing.T) {
	tests := []struct {
		in   float32
		want string
	}{
		{3, "3.0"},
		{-3, "-3.0"},
		{1.5, "1.5"},
		{0.1, "0.1"},
		{0, "0.0"},
		{float32(math.Copysign(0, -1)), "-0.0"},
		{0.001, "0.001"},
		{0.0001, "1.0E-4"},
		{1.5e-5, "1.5E-5"},
		{9999999, "9999999.0"},
		{1e7, "1.0E7"},
		{1e10, "1.0E10"},
		{1.25e20, "1.25E20"},
		{float32(math.NaN()), "NaN"},
		{float32(math.Inf(1)), "Infinity"},
		{float32(math.Inf(-1)), "-Infinity"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFloat32(tt.in))
		})
	}
}

func TestText(t *testing.T) {
	assert.Equal(t, "hello", Text(String("hello")))
	assert.Equal(t, "-12", Text(Int32(-12)))
	assert.Equal(t, "9000000000", Text(Int64(9000000000)))
	assert.Equal(t, "-1", Text(Uint64(math.MaxUint64)))
	assert.Equal(t, "42", Text(Uint64(42)))
	assert.Equal(t, "2.5", Text(Float32(2.5)))
	assert.Equal(t, "{a=1, b={c=x}}", Text(MapOf(
		Entry{"a", Int32(1)},
		Entry{"b", MapOf(Entry{"c", String("x")})},
	)))
	assert.Equal(t, "", Text(nil))
}

func TestMap_MarshalJSON(t *testing.T) {
	m := MapOf(
		Entry{"z", String("last\"quoted")},
		Entry{"a", Int32(3)},
		Entry{"u", Uint64(math.MaxUint64)},
		Entry{"f", Float32(0.5)},
		Entry{"nan", Float32(float32(math.NaN()))},
		Entry{"sub", MapOf(Entry{"k", Int64(-1)})},
	)

	data, err := m.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"z":"last\"quoted","a":3,"u":18446744073709551615,"f":0.5,"nan":"NaN","sub":{"k":-1}}`,
		string(data))
}

func TestMap_SetAndGet(t *testing.T) {
	var m Map
	m.Set("a", Int32(1))
	m.Set("b", Int32(2))
	m.Set("a", String("again"))

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"a", "b"}, m.Keys())

	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, String("again"), v)

	_, ok = m.GetMap("a")
	assert.False(t, ok)
	assert.False(t, m.Has("missing"))

	var nilMap *Map
	assert.Zero(t, nilMap.Len())
	_, ok = nilMap.Get("a")
	assert.False(t, ok)
}
