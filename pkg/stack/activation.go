package stack

import (
	"fmt"
	"strings"
)

// ModuleInstance is the view an activation keeps of the module instance its
// function belongs to. The instance is owned elsewhere; the stack only holds
// the reference for the duration of the call.
type ModuleInstance interface {
	Global(idx uint32) (Value, error)
	SetGlobal(idx uint32, v Value) error
}

// Continuation is where execution resumes once a call returns.
type Continuation struct {
	Func int // function index; negative means control goes back to the host
	PC   int
}

// HostContinuation marks an activation entered directly by the embedder.
var HostContinuation = Continuation{Func: -1}

// IsHost reports whether returning to c hands control back to the embedder.
func (c Continuation) IsHost() bool { return c.Func < 0 }

// Activation is the call record pushed on function invocation.
type Activation struct {
	Func        int            // callee function index
	Arity       int            // return arity
	SavedHeight int            // caller height, set when the frame is pushed
	Resume      Continuation   // caller resume point
	Module      ModuleInstance // not owned

	locals []Value
}

// NewActivation creates a call record whose locals are the given arguments
// followed by zero values for each declared local type.
func NewActivation(fn int, args []Value, declared []ValueType, arity int, resume Continuation, mod ModuleInstance) *Activation {
	locals := make([]Value, 0, len(args)+len(declared))
	locals = append(locals, args...)
	for _, t := range declared {
		locals = append(locals, Zero(t))
	}
	return &Activation{
		Func:   fn,
		Arity:  arity,
		Resume: resume,
		Module: mod,
		locals: locals,
	}
}

func (*Activation) Kind() FrameKind { return KindActivation }
func (*Activation) frame()          {}

// NumLocals returns the number of parameter and declared local slots.
func (a *Activation) NumLocals() int { return len(a.locals) }

func (a *Activation) local(idx int) (Value, error) {
	if idx < 0 || idx >= len(a.locals) {
		return Value{}, opErr("local", ErrInvalidStackState, "local %d out of range (%d locals)", idx, len(a.locals))
	}
	return a.locals[idx], nil
}

func (a *Activation) setLocal(idx int, v Value) error {
	if idx < 0 || idx >= len(a.locals) {
		return opErr("set_local", ErrInvalidStackState, "local %d out of range (%d locals)", idx, len(a.locals))
	}
	if have := a.locals[idx].typ; have != v.typ {
		return opErr("set_local", ErrTypeMismatch, "local %d is %s, got %s", idx, have, v.typ)
	}
	a.locals[idx] = v
	return nil
}

func (a *Activation) String() string {
	if a == nil {
		return "<nil activation>"
	}
	locals := make([]string, len(a.locals))
	for i, v := range a.locals {
		locals[i] = v.String()
	}
	return fmt.Sprintf("func=%d arity=%d saved=%d resume=%d:%d locals=[%s]",
		a.Func, a.Arity, a.SavedHeight, a.Resume.Func, a.Resume.PC, strings.Join(locals, " "))
}
