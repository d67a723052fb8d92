package interpreter

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"wasmstack/pkg/parser"
	"wasmstack/pkg/stack"
)

// Interpreter executes the functions of a parsed module on a stack.Stack
type Interpreter struct {
	mod  *parser.Module
	inst *Instance

	stack *stack.Stack // stack of the current invocation
	fn    int          // index of the executing function
	pc    int          // next instruction in its body

	trace io.Writer   // instruction trace, nil when off
	log   *log.Logger // debug log of calls, returns and traps

	// Exec hook, coreStep unless replaced by a test
	execStep func(*Interpreter) (halted bool, err error)

	maxSteps  int // maximum steps per invocation (0 = unlimited)
	steps     int // steps executed by the current invocation
	stackOpts []stack.Option
}

type Option func(*Interpreter)

// WithWriter traces every executed instruction to w
func WithWriter(w io.Writer) Option {
	return func(i *Interpreter) { i.trace = w }
}

// WithMaxSteps sets a maximum number of interpreter steps before returning ErrMaxStepsExceeded
func WithMaxSteps(n int) Option {
	return func(i *Interpreter) { i.maxSteps = n }
}

// WithMaxCallDepth bounds the number of nested activations (0 = unlimited)
func WithMaxCallDepth(n int) Option {
	return func(i *Interpreter) { i.stackOpts = append(i.stackOpts, stack.WithMaxCallDepth(n)) }
}

// WithMaxStackHeight bounds the number of frames on the stack (0 = unlimited)
func WithMaxStackHeight(n int) Option {
	return func(i *Interpreter) { i.stackOpts = append(i.stackOpts, stack.WithMaxHeight(n)) }
}

// WithLogger sets the logger for debug output
func WithLogger(l *log.Logger) Option {
	return func(i *Interpreter) { i.log = l }
}

// NewInterpreter creates a new Interpreter instance for mod
func NewInterpreter(mod *parser.Module, opts ...Option) *Interpreter {
	it := &Interpreter{
		mod:      mod,
		inst:     NewInstance(mod),
		maxSteps: 0, // 0 => unlimited
	}

	for _, o := range opts {
		o(it)
	}

	if it.log == nil {
		it.log = log.Default()
	}

	if it.execStep == nil {
		it.execStep = coreStep
	}

	it.stack = stack.New(it.stackOpts...)

	return it
}

// Load replaces the module with a new one, resetting state
func (i *Interpreter) Load(mod *parser.Module) {
	i.mod = mod
	i.Reset()
}

// Reset re-instantiates the module (globals back to their initializers) and
// clears the stack
func (i *Interpreter) Reset() {
	i.inst = NewInstance(i.mod)
	i.stack.Reset()
	i.fn, i.pc = 0, 0
	i.steps = 0
}

// Module returns the loaded module
func (i *Interpreter) Module() *parser.Module {
	return i.mod
}

// Instance returns the module instance holding the globals
func (i *Interpreter) Instance() *Instance {
	return i.inst
}

// Steps returns the number of steps executed by the last invocation
func (i *Interpreter) Steps() int {
	return i.steps
}

// Snapshot describes the stack of the last invocation, bottom to top. After
// a trap it shows the frames as they were at the faulting instruction.
func (i *Interpreter) Snapshot() []stack.FrameInfo {
	return i.stack.Snapshot()
}

// Invoke calls the exported function name with args and returns its results.
//
// Every invocation starts from an empty stack with a host activation at the
// bottom; any trap aborts the whole invocation.
func (i *Interpreter) Invoke(name string, args ...stack.Value) ([]stack.Value, error) {
	idx, f, ok := i.mod.Export(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrExportNotFound, name)
	}
	if err := checkArgs(f, args); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	i.stack.Reset()
	i.steps = 0

	i.log.Debug("Invoking", "func", name, "args", args)
	if err := i.call(idx, args, stack.HostContinuation); err != nil {
		return nil, i.trap(idx, 0, "", err)
	}
	if err := i.Run(); err != nil {
		return nil, err
	}

	results, err := i.stack.PopValuesOf(f.Results)
	if err == nil && i.stack.Height() != 0 {
		err = fmt.Errorf("%w: %d frames left after return", stack.ErrInvalidStackState, i.stack.Height())
	}
	if err != nil {
		return nil, &Trap{Func: funcName(f, idx), Err: err}
	}
	return results, nil
}

func checkArgs(f *parser.Func, args []stack.Value) error {
	if len(args) != len(f.Params) {
		return fmt.Errorf("%w: want %d arguments, have %d", ErrArgumentMismatch, len(f.Params), len(args))
	}
	for n, t := range f.Params {
		if have := args[n].Type(); have != t {
			return fmt.Errorf("%w: argument %d: want %s, have %s", ErrArgumentMismatch, n, t, have)
		}
	}
	return nil
}

// Step executes a single instruction, returning (halted, error)
func (i *Interpreter) Step() (bool, error) {
	if i.stack.CallDepth() == 0 || i.funcAt(i.fn) == nil {
		return false, fmt.Errorf("%w: no function executing", stack.ErrInvalidStackState)
	}
	if i.maxSteps > 0 && i.steps >= i.maxSteps {
		return false, ErrMaxStepsExceeded
	}

	halted, err := i.execStep(i)
	i.steps++

	return halted, err
}

// Run executes until control returns to the host or a trap
func (i *Interpreter) Run() error {
	for {
		fn, pc := i.fn, i.pc
		var op parser.Opcode
		if f := i.funcAt(fn); f != nil && pc < len(f.Body) {
			op = f.Body[pc].Op
		}

		halted, err := i.Step()
		if err != nil {
			return i.trap(fn, pc, op, err)
		}

		if halted {
			return nil
		}
	}
}

// call pushes an activation for function fn followed by the label of its
// body, and moves execution to the first instruction
func (i *Interpreter) call(fn int, args []stack.Value, resume stack.Continuation) error {
	f := i.mod.Funcs[fn]
	a := stack.NewActivation(fn, args, f.Locals, len(f.Results), resume, i.inst)
	if err := i.stack.PushActivation(a); err != nil {
		return err
	}
	if _, err := i.stack.PushLabel(stack.LabelBlock, len(f.Results), len(f.Body)); err != nil {
		return err
	}

	i.log.Debug("call", "func", funcName(f, fn), "depth", i.stack.CallDepth())
	i.fn, i.pc = fn, 0
	return nil
}

// ret returns from the executing function; halted is true when control goes
// back to the host
func (i *Interpreter) ret() (bool, error) {
	a, err := i.stack.Return()
	if err != nil {
		return false, err
	}

	i.log.Debug("return", "func", funcName(i.mod.Funcs[a.Func], a.Func), "height", i.stack.Height())
	if a.Resume.IsHost() {
		return true, nil
	}
	i.fn, i.pc = a.Resume.Func, a.Resume.PC
	return false, nil
}

func (i *Interpreter) trap(fn, pc int, op parser.Opcode, err error) error {
	t := &Trap{Func: funcName(i.funcAt(fn), fn), PC: pc, Op: op, Err: err}
	i.log.Debug("trap", "func", t.Func, "pc", t.PC, "op", t.Op, "error", err)
	return t
}

// funcAt returns function fn of the loaded module, or nil when out of range
func (i *Interpreter) funcAt(fn int) *parser.Func {
	if fn < 0 || fn >= len(i.mod.Funcs) {
		return nil
	}
	return i.mod.Funcs[fn]
}

func funcName(f *parser.Func, idx int) string {
	if f != nil && f.Name != "" {
		return f.Name
	}
	return fmt.Sprintf("func[%d]", idx)
}
