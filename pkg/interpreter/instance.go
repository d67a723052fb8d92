package interpreter

import (
	"fmt"

	"wasmstack/pkg/parser"
	"wasmstack/pkg/stack"
)

// Instance holds the mutable state of one instantiated module. Activations
// refer to it; it outlives every stack that runs its functions.
type Instance struct {
	mod     *parser.Module
	globals []stack.Value
}

// NewInstance instantiates mod, setting every global to its initializer
func NewInstance(mod *parser.Module) *Instance {
	in := &Instance{mod: mod, globals: make([]stack.Value, len(mod.Globals))}
	for i, g := range mod.Globals {
		in.globals[i] = g.Init
	}
	return in
}

func (in *Instance) Global(idx uint32) (stack.Value, error) {
	if int(idx) >= len(in.globals) {
		return stack.Value{}, fmt.Errorf("%w: %d", ErrGlobalIndex, idx)
	}
	return in.globals[idx], nil
}

func (in *Instance) SetGlobal(idx uint32, v stack.Value) error {
	if int(idx) >= len(in.globals) {
		return fmt.Errorf("%w: %d", ErrGlobalIndex, idx)
	}
	g := in.mod.Globals[idx]
	if !g.Mutable {
		return fmt.Errorf("%w: %d", ErrImmutableGlobal, idx)
	}
	if v.Type() != g.Type {
		return fmt.Errorf("global %d: %w: want %s, have %s", idx, stack.ErrTypeMismatch, g.Type, v.Type())
	}
	in.globals[idx] = v
	return nil
}
