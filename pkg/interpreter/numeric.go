package interpreter

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"

	"wasmstack/pkg/parser"
	"wasmstack/pkg/stack"
)

// execNumeric runs an arithmetic, comparison or conversion instruction
func execNumeric(s *stack.Stack, op parser.Opcode) error {
	if conv, ok := conversions[op]; ok {
		return conv(s)
	}

	t, name, ok := op.Numeric()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstruction, op)
	}

	var err error
	switch t {
	case stack.ValueTypeI32:
		err = intOp[int32, uint32](s, name, 32)
	case stack.ValueTypeI64:
		err = intOp[int64, uint64](s, name, 64)
	case stack.ValueTypeF32:
		err = floatOp[float32](s, name)
	case stack.ValueTypeF64:
		err = floatOp[float64](s, name)
	}
	if err == errUnknownOp {
		return fmt.Errorf("%w: %s", ErrUnknownInstruction, op)
	}
	return err
}

var errUnknownOp = errors.New("unknown operation")

func intOp[S int32 | int64, U uint32 | uint64](s *stack.Stack, name string, width U) error {
	if name == "eqz" {
		a, err := stack.PopAs[S](s)
		if err != nil {
			return err
		}
		return s.PushValue(boolValue(a == 0))
	}

	b, err := stack.PopAs[S](s)
	if err != nil {
		return err
	}
	a, err := stack.PopAs[S](s)
	if err != nil {
		return err
	}

	k := U(b) % width // shift count
	var r S
	switch name {
	case "add":
		r = a + b
	case "sub":
		r = a - b
	case "mul":
		r = a * b
	case "div_s":
		r, err = divS(a, b)
	case "div_u":
		var u U
		u, err = divU(U(a), U(b))
		r = S(u)
	case "rem_s":
		r, err = remS(a, b)
	case "rem_u":
		var u U
		u, err = remU(U(a), U(b))
		r = S(u)
	case "and":
		r = a & b
	case "or":
		r = a | b
	case "xor":
		r = a ^ b
	case "shl":
		r = a << k
	case "shr_s":
		r = a >> k
	case "shr_u":
		r = S(U(a) >> k)

	case "eq":
		return s.PushValue(boolValue(a == b))
	case "ne":
		return s.PushValue(boolValue(a != b))
	case "lt_s":
		return s.PushValue(boolValue(a < b))
	case "lt_u":
		return s.PushValue(boolValue(U(a) < U(b)))
	case "gt_s":
		return s.PushValue(boolValue(a > b))
	case "gt_u":
		return s.PushValue(boolValue(U(a) > U(b)))
	case "le_s":
		return s.PushValue(boolValue(a <= b))
	case "le_u":
		return s.PushValue(boolValue(U(a) <= U(b)))
	case "ge_s":
		return s.PushValue(boolValue(a >= b))
	case "ge_u":
		return s.PushValue(boolValue(U(a) >= U(b)))
	default:
		return errUnknownOp
	}
	if err != nil {
		return err
	}
	return s.PushValue(stack.MakeValue(r))
}

func floatOp[F float32 | float64](s *stack.Stack, name string) error {
	switch name {
	case "neg", "abs", "sqrt":
		a, err := stack.PopAs[F](s)
		if err != nil {
			return err
		}
		var r F
		switch name {
		case "neg":
			r = -a
		case "abs":
			r = F(math.Abs(float64(a)))
		case "sqrt":
			r = F(math.Sqrt(float64(a)))
		}
		return s.PushValue(stack.MakeValue(r))
	}

	b, err := stack.PopAs[F](s)
	if err != nil {
		return err
	}
	a, err := stack.PopAs[F](s)
	if err != nil {
		return err
	}

	var r F
	switch name {
	case "add":
		r = a + b
	case "sub":
		r = a - b
	case "mul":
		r = a * b
	case "div":
		r = a / b
	case "min":
		r = fmin(a, b)
	case "max":
		r = fmax(a, b)

	case "eq":
		return s.PushValue(boolValue(a == b))
	case "ne":
		return s.PushValue(boolValue(a != b))
	case "lt":
		return s.PushValue(boolValue(a < b))
	case "gt":
		return s.PushValue(boolValue(a > b))
	case "le":
		return s.PushValue(boolValue(a <= b))
	case "ge":
		return s.PushValue(boolValue(a >= b))
	default:
		return errUnknownOp
	}
	return s.PushValue(stack.MakeValue(r))
}

func boolValue(b bool) stack.Value {
	if b {
		return stack.I32(1)
	}
	return stack.I32(0)
}

func divS[T constraints.Signed](a, b T) (T, error) {
	if b == 0 {
		return 0, ErrIntegerDivideByZero
	}
	// only the minimum value equals its own negation
	if b == -1 && a < 0 && -a == a {
		return 0, ErrIntegerOverflow
	}
	return a / b, nil
}

func remS[T constraints.Signed](a, b T) (T, error) {
	if b == 0 {
		return 0, ErrIntegerDivideByZero
	}
	if b == -1 {
		return 0, nil
	}
	return a % b, nil
}

func divU[T constraints.Unsigned](a, b T) (T, error) {
	if b == 0 {
		return 0, ErrIntegerDivideByZero
	}
	return a / b, nil
}

func remU[T constraints.Unsigned](a, b T) (T, error) {
	if b == 0 {
		return 0, ErrIntegerDivideByZero
	}
	return a % b, nil
}

// fmin and fmax propagate a NaN operand and order -0 below +0
func fmin[T constraints.Float](a, b T) T {
	switch {
	case a != a || b != b:
		return a + b
	case a == 0 && b == 0:
		if math.Signbit(float64(a)) {
			return a
		}
		return b
	case a < b:
		return a
	}
	return b
}

func fmax[T constraints.Float](a, b T) T {
	switch {
	case a != a || b != b:
		return a + b
	case a == 0 && b == 0:
		if math.Signbit(float64(a)) {
			return b
		}
		return a
	case a > b:
		return a
	}
	return b
}

var conversions = map[parser.Opcode]func(*stack.Stack) error{
	"i32.wrap_i64":     convert(func(a int64) (int32, error) { return int32(a), nil }),
	"i64.extend_i32_s": convert(func(a int32) (int64, error) { return int64(a), nil }),
	"i64.extend_i32_u": convert(func(a int32) (int64, error) { return int64(uint32(a)), nil }),

	"f32.convert_i32_s": convert(func(a int32) (float32, error) { return float32(a), nil }),
	"f32.convert_i64_s": convert(func(a int64) (float32, error) { return float32(a), nil }),
	"f64.convert_i32_s": convert(func(a int32) (float64, error) { return float64(a), nil }),
	"f64.convert_i64_s": convert(func(a int64) (float64, error) { return float64(a), nil }),

	"f32.demote_f64":  convert(func(a float64) (float32, error) { return float32(a), nil }),
	"f64.promote_f32": convert(func(a float32) (float64, error) { return float64(a), nil }),

	"i32.trunc_f32_s": convert(func(a float32) (int32, error) { return truncS[int32](float64(a), -1<<31, 1<<31) }),
	"i32.trunc_f64_s": convert(func(a float64) (int32, error) { return truncS[int32](a, -1<<31, 1<<31) }),
	"i64.trunc_f32_s": convert(func(a float32) (int64, error) { return truncS[int64](float64(a), -1<<63, 1<<63) }),
	"i64.trunc_f64_s": convert(func(a float64) (int64, error) { return truncS[int64](a, -1<<63, 1<<63) }),
}

// convert pops an A, applies fn and pushes the B it returns
func convert[A, B stack.Number](fn func(A) (B, error)) func(*stack.Stack) error {
	return func(s *stack.Stack) error {
		a, err := stack.PopAs[A](s)
		if err != nil {
			return err
		}
		b, err := fn(a)
		if err != nil {
			return err
		}
		return s.PushValue(stack.MakeValue(b))
	}
}

// truncS truncates x toward zero; the result must lie in [lo, hi)
func truncS[T int32 | int64](x, lo, hi float64) (T, error) {
	if math.IsNaN(x) {
		return 0, ErrInvalidConversion
	}
	t := math.Trunc(x)
	if t < lo || t >= hi {
		return 0, ErrIntegerOverflow
	}
	return T(t), nil
}
