package stack

import (
	"errors"
	"fmt"
)

var (
	ErrStackUnderflow     = errors.New("stack underflow")
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrInvalidTopFrame    = errors.New("invalid top frame")
	ErrInvalidBranchDepth = errors.New("invalid branch depth")
	ErrInvalidStackState  = errors.New("invalid stack state")
	ErrCallStackOverflow  = errors.New("call stack overflow")
	ErrStackOverflow      = errors.New("stack overflow")
)

// OpError reports which stack operation failed and why.
// Err is always one of the sentinel errors above.
type OpError struct {
	Op     string
	Err    error
	Detail string
}

func (e *OpError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("stack: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("stack: %s: %v: %s", e.Op, e.Err, e.Detail)
}

func (e *OpError) Unwrap() error { return e.Err }

func opErr(op string, err error, format string, args ...any) error {
	return &OpError{Op: op, Err: err, Detail: fmt.Sprintf(format, args...)}
}
