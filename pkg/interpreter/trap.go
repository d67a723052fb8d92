package interpreter

import (
	"errors"
	"fmt"

	"wasmstack/pkg/parser"
)

var (
	ErrUnreachable         = errors.New("unreachable executed")
	ErrIntegerDivideByZero = errors.New("integer divide by zero")
	ErrIntegerOverflow     = errors.New("integer overflow")
	ErrInvalidConversion   = errors.New("invalid conversion to integer")
	ErrMaxStepsExceeded    = errors.New("maximum steps exceeded")
	ErrUnknownInstruction  = errors.New("unknown instruction")

	ErrExportNotFound   = errors.New("export not found")
	ErrArgumentMismatch = errors.New("argument mismatch")
	ErrGlobalIndex      = errors.New("global index out of range")
	ErrImmutableGlobal  = errors.New("global is immutable")
)

// Trap is a fault raised while executing a function. The stack it happened
// on is left as is for inspection and is discarded by the next Invoke.
type Trap struct {
	Func string        // name of the faulting function
	PC   int           // index of the faulting instruction in its body
	Op   parser.Opcode // empty when the fault is not tied to an instruction
	Err  error
}

func (t *Trap) Error() string {
	if t.Op == "" {
		return fmt.Sprintf("trap in %s: %v", t.Func, t.Err)
	}
	return fmt.Sprintf("trap in %s at %d (%s): %v", t.Func, t.PC, t.Op, t.Err)
}

func (t *Trap) Unwrap() error { return t.Err }
