package parser

import (
	"slices"

	"golang.org/x/exp/maps"

	"wasmstack/pkg/stack"
)

// Func is one function definition with its flattened body.
type Func struct {
	Name    string
	Params  []stack.ValueType
	Results []stack.ValueType
	Locals  []stack.ValueType // declared locals, parameters excluded
	Body    []Instruction
}

// Global is a module global and its constant initializer.
type Global struct {
	Name    string
	Type    stack.ValueType
	Mutable bool
	Init    stack.Value
}

// Module is a parsed text-format module.
type Module struct {
	Funcs   []*Func
	Globals []Global
	Exports map[string]int // export name -> function index
}

// Export looks up an exported function by name.
func (m *Module) Export(name string) (int, *Func, bool) {
	idx, ok := m.Exports[name]
	if !ok {
		return 0, nil, false
	}
	return idx, m.Funcs[idx], true
}

// ExportNames returns the export names in sorted order.
func (m *Module) ExportNames() []string {
	keys := maps.Keys(m.Exports)
	slices.Sort(keys)
	return keys
}
