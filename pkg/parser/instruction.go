package parser

import (
	"fmt"
	"strings"

	"wasmstack/pkg/lexer"
	"wasmstack/pkg/stack"
)

type Opcode string

// Control, variable and constant instructions. Numeric instructions keep
// their text name ("i32.add", "f64.convert_i64_s", ...) as opcode.
const (
	OpNop         Opcode = "nop"
	OpUnreachable Opcode = "unreachable"
	OpDrop        Opcode = "drop"
	OpSelect      Opcode = "select"
	OpBlock       Opcode = "block"
	OpLoop        Opcode = "loop"
	OpIf          Opcode = "if"
	OpElse        Opcode = "else"
	OpEnd         Opcode = "end"
	OpBr          Opcode = "br"
	OpBrIf        Opcode = "br_if"
	OpBrTable     Opcode = "br_table"
	OpReturn      Opcode = "return"
	OpCall        Opcode = "call"
	OpLocalGet    Opcode = "local.get"
	OpLocalSet    Opcode = "local.set"
	OpLocalTee    Opcode = "local.tee"
	OpGlobalGet   Opcode = "global.get"
	OpGlobalSet   Opcode = "global.set"
	OpI32Const    Opcode = "i32.const"
	OpI64Const    Opcode = "i64.const"
	OpF32Const    Opcode = "f32.const"
	OpF64Const    Opcode = "f64.const"
)

// immediate describes what follows an opcode in the text format
type immediate int

const (
	immNone immediate = iota
	immBlock
	immLabel
	immLabels
	immLocal
	immGlobal
	immFunc
	immConst
)

var opcodes = map[Opcode]immediate{
	OpNop:         immNone,
	OpUnreachable: immNone,
	OpDrop:        immNone,
	OpSelect:      immNone,
	OpBlock:       immBlock,
	OpLoop:        immBlock,
	OpIf:          immBlock,
	OpElse:        immNone,
	OpEnd:         immNone,
	OpBr:          immLabel,
	OpBrIf:        immLabel,
	OpBrTable:     immLabels,
	OpReturn:      immNone,
	OpCall:        immFunc,
	OpLocalGet:    immLocal,
	OpLocalSet:    immLocal,
	OpLocalTee:    immLocal,
	OpGlobalGet:   immGlobal,
	OpGlobalSet:   immGlobal,
	OpI32Const:    immConst,
	OpI64Const:    immConst,
	OpF32Const:    immConst,
	OpF64Const:    immConst,
}

var (
	intOps = []string{
		"add", "sub", "mul", "div_s", "div_u", "rem_s", "rem_u",
		"and", "or", "xor", "shl", "shr_s", "shr_u",
		"eqz", "eq", "ne", "lt_s", "lt_u", "gt_s", "gt_u", "le_s", "le_u", "ge_s", "ge_u",
	}
	floatOps = []string{
		"add", "sub", "mul", "div", "min", "max", "neg", "abs", "sqrt",
		"eq", "ne", "lt", "gt", "le", "ge",
	}
	conversionOps = []Opcode{
		"i32.wrap_i64", "i64.extend_i32_s", "i64.extend_i32_u",
		"f32.convert_i32_s", "f32.convert_i64_s", "f64.convert_i32_s", "f64.convert_i64_s",
		"f32.demote_f64", "f64.promote_f32",
		"i32.trunc_f32_s", "i32.trunc_f64_s", "i64.trunc_f32_s", "i64.trunc_f64_s",
	}
)

func init() {
	for _, t := range []string{"i32", "i64"} {
		for _, op := range intOps {
			opcodes[Opcode(t+"."+op)] = immNone
		}
	}
	for _, t := range []string{"f32", "f64"} {
		for _, op := range floatOps {
			opcodes[Opcode(t+"."+op)] = immNone
		}
	}
	for _, op := range conversionOps {
		opcodes[op] = immNone
	}
}

// Opcodes lists every instruction name the parser accepts
func Opcodes() []Opcode {
	out := make([]Opcode, 0, len(opcodes))
	for op := range opcodes {
		out = append(out, op)
	}
	return out
}

// Numeric splits a numeric opcode into its operand type and operation,
// e.g. "i64.rem_u" -> (i64, "rem_u").
func (op Opcode) Numeric() (stack.ValueType, string, bool) {
	prefix, name, ok := strings.Cut(string(op), ".")
	if !ok {
		return 0, "", false
	}
	t, err := stack.ParseValueType(prefix)
	if err != nil {
		return 0, "", false
	}
	return t, name, true
}

type Instruction struct {
	Op Opcode

	Index   uint32      // local, global or function index; branch depth
	Value   stack.Value // constant operand
	Targets []uint32    // br_table depths, the default last
	Arity   int         // block, loop and if result count
	Else    int         // index of the matching else, -1 if none
	End     int         // index of the matching end

	Pos lexer.Position

	ref string // unresolved $name of a call or global immediate
}

// String returns a string representation of the instruction
func (i Instruction) String() string {
	switch opcodes[i.Op] {
	case immBlock:
		return fmt.Sprintf("%s (arity %d, else %d, end %d)", i.Op, i.Arity, i.Else, i.End)
	case immLabel, immLocal, immGlobal, immFunc:
		return fmt.Sprintf("%s %d", i.Op, i.Index)
	case immLabels:
		return fmt.Sprintf("%s %v", i.Op, i.Targets)
	case immConst:
		return fmt.Sprintf("%s %s", i.Op, i.Value)
	default:
		return string(i.Op)
	}
}
