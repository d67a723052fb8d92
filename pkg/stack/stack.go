// Package stack implements the execution stack of the interpreter: one LIFO
// sequence interleaving value, label and activation frames.
package stack

const (
	DefaultMaxCallDepth = 1024
	DefaultMaxHeight    = 1 << 20
)

// Stack owns every frame of one executing call chain. It is not safe for
// concurrent use; a paused computation is handed off as a whole Stack.
type Stack struct {
	frames []Frame
	depth  int // live activation frames

	maxDepth  int
	maxHeight int
}

type Option func(*Stack)

// WithMaxCallDepth limits the number of nested activations (0 = unlimited).
func WithMaxCallDepth(n int) Option {
	return func(s *Stack) { s.maxDepth = n }
}

// WithMaxHeight limits the total number of frames (0 = unlimited).
func WithMaxHeight(n int) Option {
	return func(s *Stack) { s.maxHeight = n }
}

// New creates an empty stack
func New(opts ...Option) *Stack {
	s := &Stack{
		frames:    make([]Frame, 0, 64),
		maxDepth:  DefaultMaxCallDepth,
		maxHeight: DefaultMaxHeight,
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

// Height returns the number of frames on the stack
func (s *Stack) Height() int {
	return len(s.frames)
}

// CallDepth returns the number of live activation frames
func (s *Stack) CallDepth() int {
	return s.depth
}

// Reset drops every frame, keeping the allocated storage
func (s *Stack) Reset() {
	clear(s.frames)
	s.frames = s.frames[:0]
	s.depth = 0
}

// Push adds a frame to the top of the stack.
//
// A pushed activation gets its SavedHeight set to the current height. A label
// must claim an entry height within the innermost activation and not above
// the current height.
func (s *Stack) Push(f Frame) error {
	switch x := f.(type) {
	case Value:
		if !x.typ.Valid() {
			return opErr("push", ErrInvalidStackState, "value frame without a numeric type")
		}
	case *Label:
		if x == nil {
			return opErr("push", ErrInvalidStackState, "nil label")
		}
		if x.EntryHeight < 0 || x.EntryHeight > len(s.frames) {
			return opErr("push", ErrInvalidStackState, "label entry height %d, stack height %d", x.EntryHeight, len(s.frames))
		}
		if a := s.activationBelow(len(s.frames)); x.EntryHeight <= a {
			return opErr("push", ErrInvalidStackState, "label entry height %d crosses activation at %d", x.EntryHeight, a)
		}
	case *Activation:
		if x == nil {
			return opErr("push", ErrInvalidStackState, "nil activation")
		}
		if s.maxDepth > 0 && s.depth >= s.maxDepth {
			return opErr("push", ErrCallStackOverflow, "limit %d", s.maxDepth)
		}
	default:
		return opErr("push", ErrInvalidStackState, "unknown frame %T", f)
	}

	if s.maxHeight > 0 && len(s.frames) >= s.maxHeight {
		return opErr("push", ErrStackOverflow, "limit %d", s.maxHeight)
	}

	if a, ok := f.(*Activation); ok {
		a.SavedHeight = len(s.frames)
		s.depth++
	}
	s.frames = append(s.frames, f)
	return nil
}

// PushValue pushes value frames in order
func (s *Stack) PushValue(vs ...Value) error {
	for _, v := range vs {
		if err := s.Push(v); err != nil {
			return err
		}
	}
	return nil
}

// PushLabel pushes a label whose entry height is the current height
func (s *Stack) PushLabel(construct LabelKind, arity, target int) (*Label, error) {
	l := &Label{
		Construct:   construct,
		Arity:       arity,
		EntryHeight: len(s.frames),
		Target:      target,
	}
	if err := s.Push(l); err != nil {
		return nil, err
	}
	return l, nil
}

// PushActivation pushes a call record, enforcing the call depth limit
func (s *Stack) PushActivation(a *Activation) error {
	return s.Push(a)
}

// Pop removes and returns the top frame
func (s *Stack) Pop() (Frame, error) {
	n := len(s.frames)
	if n == 0 {
		return nil, opErr("pop", ErrStackUnderflow, "empty stack")
	}

	f := s.frames[n-1]
	s.frames[n-1] = nil
	s.frames = s.frames[:n-1]
	if f.Kind() == KindActivation {
		s.depth--
	}

	return f, nil
}

// Peek returns the top frame without removing it
func (s *Stack) Peek() (Frame, error) {
	if len(s.frames) == 0 {
		return nil, opErr("peek", ErrStackUnderflow, "empty stack")
	}
	return s.frames[len(s.frames)-1], nil
}

// PeekKind reports the kind of the top frame without removing it
func (s *Stack) PeekKind() (FrameKind, error) {
	f, err := s.Peek()
	if err != nil {
		return 0, err
	}
	return f.Kind(), nil
}

// PopValue pops the top frame, which must be a value frame of any type
func (s *Stack) PopValue() (Value, error) {
	v, err := s.topValue("pop_value")
	if err != nil {
		return Value{}, err
	}
	s.drop()
	return v, nil
}

// PopValueOf pops the top frame only if it is a value frame of type t.
// On a type mismatch the frame stays on the stack.
func (s *Stack) PopValueOf(t ValueType) (Value, error) {
	v, err := s.topValue("pop_value")
	if err != nil {
		return Value{}, err
	}
	if v.typ != t {
		return Value{}, opErr("pop_value", ErrTypeMismatch, "want %s, have %s", t, v.typ)
	}
	s.drop()
	return v, nil
}

// PopAs pops the top value frame and returns its payload as T.
func PopAs[T Number](s *Stack) (T, error) {
	v, err := s.PopValueOf(typeOf[T]())
	if err != nil {
		var zero T
		return zero, err
	}
	return Read[T](v)
}

func (s *Stack) PopI32() (int32, error)   { return PopAs[int32](s) }
func (s *Stack) PopI64() (int64, error)   { return PopAs[int64](s) }
func (s *Stack) PopF32() (float32, error) { return PopAs[float32](s) }
func (s *Stack) PopF64() (float64, error) { return PopAs[float64](s) }

// PopValues pops the top n frames, which must all be value frames, and
// returns them in push order. Nothing is popped on failure.
func (s *Stack) PopValues(n int) ([]Value, error) {
	if err := s.checkValues("pop_values", len(s.frames), n); err != nil {
		return nil, err
	}
	out := make([]Value, n)
	base := len(s.frames) - n
	for i := range out {
		out[i] = s.frames[base+i].(Value)
	}
	clear(s.frames[base:])
	s.frames = s.frames[:base]
	return out, nil
}

// PopValuesOf pops len(types) values whose types must match types, in push
// order. Nothing is popped on failure.
func (s *Stack) PopValuesOf(types []ValueType) ([]Value, error) {
	n := len(types)
	if err := s.checkValues("pop_values", len(s.frames), n); err != nil {
		return nil, err
	}
	base := len(s.frames) - n
	for i, t := range types {
		if have := s.frames[base+i].(Value).typ; have != t {
			return nil, opErr("pop_values", ErrTypeMismatch, "operand %d: want %s, have %s", i, t, have)
		}
	}
	return s.PopValues(n)
}

// FindLabel returns the label at the given nesting depth, 0 being the
// innermost. Value frames in between are skipped; the search does not cross
// the innermost activation, since outer labels belong to other functions.
func (s *Stack) FindLabel(depth int) (*Label, error) {
	i, err := s.labelIndex("find_label", depth)
	if err != nil {
		return nil, err
	}
	return s.frames[i].(*Label), nil
}

// FindInnermostActivation returns the nearest activation below the top.
func (s *Stack) FindInnermostActivation() (*Activation, error) {
	i, err := s.activationIndex("find_activation")
	if err != nil {
		return nil, err
	}
	return s.frames[i].(*Activation), nil
}

// UnwindToLabel performs a branch to the label at depth: the top arity values
// are kept, everything down to and including the label is discarded, and the
// kept values are pushed back on top of the label's entry height.
func (s *Stack) UnwindToLabel(depth, arity int) (*Label, error) {
	i, err := s.labelIndex("unwind_label", depth)
	if err != nil {
		return nil, err
	}
	l := s.frames[i].(*Label)
	if l.EntryHeight > i || l.EntryHeight <= s.activationBelow(i) {
		return nil, opErr("unwind_label", ErrInvalidStackState, "label at %d has entry height %d", i, l.EntryHeight)
	}
	if err := s.checkValues("unwind_label", len(s.frames)-i-1, arity); err != nil {
		return nil, err
	}

	s.collapse(l.EntryHeight, arity)
	return l, nil
}

// Branch unwinds to the label at depth carrying the label's branch arity.
func (s *Stack) Branch(depth int) (*Label, error) {
	l, err := s.FindLabel(depth)
	if err != nil {
		return nil, err
	}
	return s.UnwindToLabel(depth, l.BranchArity())
}

// ExitLabel ends the innermost construct normally, keeping its results.
func (s *Stack) ExitLabel() (*Label, error) {
	l, err := s.FindLabel(0)
	if err != nil {
		return nil, opErr("exit_label", ErrInvalidStackState, "no open label")
	}
	return s.UnwindToLabel(0, l.Arity)
}

// UnwindToActivation performs a return: the top arity values are kept, the
// innermost activation and everything above it are discarded, and the kept
// values are pushed back at the caller's saved height.
func (s *Stack) UnwindToActivation(arity int) (*Activation, error) {
	i, err := s.activationIndex("unwind_activation")
	if err != nil {
		return nil, err
	}
	a := s.frames[i].(*Activation)
	if a.SavedHeight > i || a.SavedHeight <= s.activationBelow(i) {
		return nil, opErr("unwind_activation", ErrInvalidStackState, "activation at %d has saved height %d", i, a.SavedHeight)
	}
	if err := s.checkValues("unwind_activation", len(s.frames)-i-1, arity); err != nil {
		return nil, err
	}

	s.collapse(a.SavedHeight, arity)
	return a, nil
}

// Return unwinds the innermost activation with its declared return arity.
func (s *Stack) Return() (*Activation, error) {
	a, err := s.FindInnermostActivation()
	if err != nil {
		return nil, err
	}
	return s.UnwindToActivation(a.Arity)
}

// Local reads local idx of the innermost activation.
func (s *Stack) Local(idx int) (Value, error) {
	a, err := s.FindInnermostActivation()
	if err != nil {
		return Value{}, err
	}
	return a.local(idx)
}

// SetLocal writes local idx of the innermost activation; v must have the
// local's declared type.
func (s *Stack) SetLocal(idx int, v Value) error {
	a, err := s.FindInnermostActivation()
	if err != nil {
		return err
	}
	return a.setLocal(idx, v)
}

func (s *Stack) topValue(op string) (Value, error) {
	n := len(s.frames)
	if n == 0 {
		return Value{}, opErr(op, ErrStackUnderflow, "empty stack")
	}
	v, ok := s.frames[n-1].(Value)
	if !ok {
		return Value{}, opErr(op, ErrInvalidTopFrame, "top is a %s frame", s.frames[n-1].Kind())
	}
	return v, nil
}

// drop removes the top frame, known to be a value frame.
func (s *Stack) drop() {
	n := len(s.frames) - 1
	s.frames[n] = nil
	s.frames = s.frames[:n]
}

// checkValues verifies that the top n frames are value frames lying within
// the top avail frames.
func (s *Stack) checkValues(op string, avail, n int) error {
	if n < 0 {
		return opErr(op, ErrInvalidStackState, "negative arity %d", n)
	}
	if n > avail {
		return opErr(op, ErrStackUnderflow, "need %d values, have %d frames", n, avail)
	}
	top := len(s.frames)
	for i := top - n; i < top; i++ {
		if s.frames[i].Kind() != KindValue {
			return opErr(op, ErrStackUnderflow, "need %d values, found %s frame at %d", n, s.frames[i].Kind(), i)
		}
	}
	return nil
}

func (s *Stack) labelIndex(op string, depth int) (int, error) {
	if depth < 0 {
		return 0, opErr(op, ErrInvalidBranchDepth, "depth %d", depth)
	}
	d := depth
	for i := len(s.frames) - 1; i >= 0; i-- {
		switch s.frames[i].Kind() {
		case KindActivation:
			return 0, opErr(op, ErrInvalidBranchDepth, "depth %d, %d labels in current function", depth, depth-d)
		case KindLabel:
			if d == 0 {
				return i, nil
			}
			d--
		}
	}
	return 0, opErr(op, ErrInvalidBranchDepth, "depth %d, %d labels on stack", depth, depth-d)
}

func (s *Stack) activationIndex(op string) (int, error) {
	if i := s.activationBelow(len(s.frames)); i >= 0 {
		return i, nil
	}
	return 0, opErr(op, ErrInvalidStackState, "no activation on stack")
}

// activationBelow returns the index of the nearest activation below height,
// or -1 when there is none
func (s *Stack) activationBelow(height int) int {
	for i := height - 1; i >= 0; i-- {
		if s.frames[i].Kind() == KindActivation {
			return i
		}
	}
	return -1
}

// collapse discards the frames between height and the top keep frames, then
// slides the kept frames down to height.
func (s *Stack) collapse(height, keep int) {
	n := len(s.frames)
	for _, f := range s.frames[height : n-keep] {
		if f.Kind() == KindActivation {
			s.depth--
		}
	}
	copy(s.frames[height:], s.frames[n-keep:])
	clear(s.frames[height+keep : n])
	s.frames = s.frames[:height+keep]
}
