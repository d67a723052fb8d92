package stack

import (
	"fmt"
	"strconv"

	"github.com/tetratelabs/wazero/api"
)

// ValueType is the numeric type held by a value frame. Its encoding matches
// wazero's api.ValueType, so raw payloads can be exchanged with wazero as is.
type ValueType byte

const (
	ValueTypeI32 = ValueType(api.ValueTypeI32)
	ValueTypeI64 = ValueType(api.ValueTypeI64)
	ValueTypeF32 = ValueType(api.ValueTypeF32)
	ValueTypeF64 = ValueType(api.ValueTypeF64)
)

// String returns the text-format name of the type ("i32", "f64", ...).
func (t ValueType) String() string {
	return api.ValueTypeName(api.ValueType(t))
}

// Valid reports whether t is one of the four numeric types.
func (t ValueType) Valid() bool {
	switch t {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		return true
	}
	return false
}

// ParseValueType maps a text-format type name to a ValueType.
func ParseValueType(name string) (ValueType, error) {
	switch name {
	case "i32":
		return ValueTypeI32, nil
	case "i64":
		return ValueTypeI64, nil
	case "f32":
		return ValueTypeF32, nil
	case "f64":
		return ValueTypeF64, nil
	}
	return 0, fmt.Errorf("unknown value type %q", name)
}

// Number is the set of Go types a value frame can carry.
type Number interface {
	int32 | int64 | float32 | float64
}

// Value is a value frame: exactly one numeric payload and the type it was
// stored with. Values are immutable.
type Value struct {
	typ  ValueType
	bits uint64
}

func (Value) Kind() FrameKind { return KindValue }
func (Value) frame()          {}

// I32 creates an i32 value frame.
func I32(v int32) Value { return Value{typ: ValueTypeI32, bits: api.EncodeI32(v)} }

// I64 creates an i64 value frame.
func I64(v int64) Value { return Value{typ: ValueTypeI64, bits: api.EncodeI64(v)} }

// F32 creates an f32 value frame. NaN payloads are kept bit for bit.
func F32(v float32) Value { return Value{typ: ValueTypeF32, bits: api.EncodeF32(v)} }

// F64 creates an f64 value frame. NaN payloads are kept bit for bit.
func F64(v float64) Value { return Value{typ: ValueTypeF64, bits: api.EncodeF64(v)} }

// MakeValue creates a value frame whose type follows the Go type of v.
func MakeValue[T Number](v T) Value {
	switch x := any(v).(type) {
	case int32:
		return I32(x)
	case int64:
		return I64(x)
	case float32:
		return F32(x)
	default:
		return F64(any(v).(float64))
	}
}

// ValueOf creates a value frame from a wazero-encoded raw payload.
func ValueOf(t ValueType, raw uint64) (Value, error) {
	switch t {
	case ValueTypeI32, ValueTypeF32:
		return Value{typ: t, bits: uint64(uint32(raw))}, nil
	case ValueTypeI64, ValueTypeF64:
		return Value{typ: t, bits: raw}, nil
	}
	return Value{}, opErr("value_of", ErrTypeMismatch, "not a numeric type: %#x", byte(t))
}

// Zero returns the zero value of type t, used to initialize declared locals.
func Zero(t ValueType) Value {
	return Value{typ: t}
}

// Type returns the numeric type the value was created with.
func (v Value) Type() ValueType { return v.typ }

// Raw returns the wazero encoding of the payload.
func (v Value) Raw() uint64 { return v.bits }

// Read returns the payload of v as T. It fails with ErrTypeMismatch unless
// v was stored as exactly that type; no numeric conversion is ever applied.
func Read[T Number](v Value) (T, error) {
	var out T
	want := typeOf[T]()
	if v.typ != want {
		return out, opErr("read", ErrTypeMismatch, "want %s, have %s", want, v.typ)
	}

	var x any
	switch want {
	case ValueTypeI32:
		x = api.DecodeI32(v.bits)
	case ValueTypeI64:
		x = int64(v.bits)
	case ValueTypeF32:
		x = api.DecodeF32(v.bits)
	case ValueTypeF64:
		x = api.DecodeF64(v.bits)
	}
	return x.(T), nil
}

func (v Value) I32() (int32, error)   { return Read[int32](v) }
func (v Value) I64() (int64, error)   { return Read[int64](v) }
func (v Value) F32() (float32, error) { return Read[float32](v) }
func (v Value) F64() (float64, error) { return Read[float64](v) }

// String renders the value as "type:payload".
func (v Value) String() string {
	switch v.typ {
	case ValueTypeI32:
		return "i32:" + strconv.FormatInt(int64(api.DecodeI32(v.bits)), 10)
	case ValueTypeI64:
		return "i64:" + strconv.FormatInt(int64(v.bits), 10)
	case ValueTypeF32:
		return "f32:" + strconv.FormatFloat(float64(api.DecodeF32(v.bits)), 'g', -1, 32)
	case ValueTypeF64:
		return "f64:" + strconv.FormatFloat(api.DecodeF64(v.bits), 'g', -1, 64)
	default:
		return "<invalid>"
	}
}

// typeOf maps a Go payload type to its ValueType.
func typeOf[T Number]() ValueType {
	var zero T
	switch any(zero).(type) {
	case int32:
		return ValueTypeI32
	case int64:
		return ValueTypeI64
	case float32:
		return ValueTypeF32
	default:
		return ValueTypeF64
	}
}
