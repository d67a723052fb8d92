package stack_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"wasmstack/pkg/stack"
)

func TestValueRoundTrip(t *testing.T) {
	s := stack.New()

	for _, v := range []int32{0, 1, -1, math.MaxInt32, math.MinInt32} {
		require.NoError(t, s.Push(stack.MakeValue(v)))
		got, err := s.PopI32()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	for _, v := range []int64{0, 42, -42, math.MaxInt64, math.MinInt64} {
		require.NoError(t, s.Push(stack.MakeValue(v)))
		got, err := stack.PopAs[int64](s)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	for _, v := range []float32{0, 1.5, -2.25, math.MaxFloat32, math.SmallestNonzeroFloat32, float32(math.Inf(-1))} {
		require.NoError(t, s.Push(stack.F32(v)))
		got, err := s.PopF32()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	for _, v := range []float64{0, math.Pi, -1e300, math.Inf(1), math.SmallestNonzeroFloat64} {
		require.NoError(t, s.Push(stack.F64(v)))
		got, err := s.PopF64()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	assert.Equal(t, 0, s.Height(), "every pushed value was popped")
}

func TestValueKeepsBits(t *testing.T) {
	tests := []struct {
		description string
		value       stack.Value
		bits        uint64
	}{
		{"f32 nan payload", stack.F32(math.Float32frombits(0x7fc00123)), 0x7fc00123},
		{"f32 negative zero", stack.F32(float32(math.Copysign(0, -1))), 0x80000000},
		{"f64 nan payload", stack.F64(math.Float64frombits(0x7ff8000000000abc)), 0x7ff8000000000abc},
		{"f64 negative zero", stack.F64(math.Copysign(0, -1)), 0x8000000000000000},
		{"i32 minus one", stack.I32(-1), 0xffffffff},
	}

	for _, test := range tests {
		s := stack.New()
		require.NoError(t, s.Push(test.value), test.description)
		v, err := s.PopValue()
		require.NoError(t, err, test.description)
		assert.Equal(t, test.bits, v.Raw(), test.description)
	}
}

func TestReadTypeMismatch(t *testing.T) {
	tests := []struct {
		description string
		value       stack.Value
		read        func(stack.Value) error
	}{
		{"i32 read as f32", stack.I32(1), func(v stack.Value) error { _, err := v.F32(); return err }},
		{"f32 read as i32", stack.F32(1), func(v stack.Value) error { _, err := v.I32(); return err }},
		{"i64 read as i32", stack.I64(1), func(v stack.Value) error { _, err := v.I32(); return err }},
		{"f64 read as i64", stack.F64(1), func(v stack.Value) error { _, err := stack.Read[int64](v); return err }},
		{"zero value read as i32", stack.Value{}, func(v stack.Value) error { _, err := v.I32(); return err }},
	}

	for _, test := range tests {
		err := test.read(test.value)
		require.ErrorIs(t, err, stack.ErrTypeMismatch, test.description)
	}
}

func TestValueOf(t *testing.T) {
	v, err := stack.ValueOf(stack.ValueTypeI32, api.EncodeI32(-7))
	require.NoError(t, err)
	got, err := v.I32()
	require.NoError(t, err)
	assert.Equal(t, int32(-7), got)

	v, err = stack.ValueOf(stack.ValueTypeF64, api.EncodeF64(2.5))
	require.NoError(t, err)
	f, err := v.F64()
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	v, err = stack.ValueOf(stack.ValueTypeI32, 0xdeadbeef_00000005)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), v.Raw(), "upper bits of a 32-bit payload are dropped")

	_, err = stack.ValueOf(stack.ValueType(0x70), 0)
	require.ErrorIs(t, err, stack.ErrTypeMismatch)
}

func TestValueTypeNames(t *testing.T) {
	for _, name := range []string{"i32", "i64", "f32", "f64"} {
		typ, err := stack.ParseValueType(name)
		require.NoError(t, err)
		assert.True(t, typ.Valid())
		assert.Equal(t, name, typ.String())
		assert.Equal(t, typ, stack.Zero(typ).Type())
	}

	_, err := stack.ParseValueType("v128")
	require.Error(t, err)
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "i32:-3", stack.I32(-3).String())
	assert.Equal(t, "i64:9000000000", stack.I64(9000000000).String())
	assert.Equal(t, "f32:1.5", stack.F32(1.5).String())
	assert.Equal(t, "f64:0.1", stack.F64(0.1).String())
	assert.Equal(t, "<invalid>", stack.Value{}.String())
}
