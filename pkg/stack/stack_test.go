package stack_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wasmstack/pkg/stack"
)

// callFrame pushes a fresh activation with the given locals and arity.
func callFrame(t *testing.T, s *stack.Stack, arity int, args ...stack.Value) *stack.Activation {
	t.Helper()
	a := stack.NewActivation(0, args, nil, arity, stack.HostContinuation, nil)
	require.NoError(t, s.PushActivation(a))
	return a
}

func kinds(s *stack.Stack) []string {
	var out []string
	for _, fi := range s.Snapshot() {
		out = append(out, fi.Kind)
	}
	return out
}

func TestPopEmpty(t *testing.T) {
	s := stack.New()

	_, err := s.Pop()
	require.ErrorIs(t, err, stack.ErrStackUnderflow)

	_, err = s.PeekKind()
	require.ErrorIs(t, err, stack.ErrStackUnderflow)

	_, err = s.PopValue()
	require.ErrorIs(t, err, stack.ErrStackUnderflow)

	_, err = s.PopI64()
	require.ErrorIs(t, err, stack.ErrStackUnderflow)
}

func TestPopValueTypeMismatchLeavesFrame(t *testing.T) {
	s := stack.New()
	require.NoError(t, s.Push(stack.F64(6.5)))

	_, err := s.PopI32()
	require.ErrorIs(t, err, stack.ErrTypeMismatch)
	assert.Equal(t, 1, s.Height(), "mismatched pop must not consume")

	var opErr *stack.OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "pop_value", opErr.Op)

	got, err := s.PopF64()
	require.NoError(t, err)
	assert.Equal(t, 6.5, got)
}

func TestPopValueInvalidTopFrame(t *testing.T) {
	s := stack.New()
	callFrame(t, s, 0)
	_, err := s.PopValue()
	require.ErrorIs(t, err, stack.ErrInvalidTopFrame)

	_, err = s.PushLabel(stack.LabelBlock, 0, 0)
	require.NoError(t, err)
	_, err = s.PopValueOf(stack.ValueTypeI32)
	require.ErrorIs(t, err, stack.ErrInvalidTopFrame)

	kind, err := s.PeekKind()
	require.NoError(t, err)
	assert.Equal(t, stack.KindLabel, kind)
	assert.Equal(t, 2, s.Height())
}

func TestPushRejectsMalformedFrames(t *testing.T) {
	s := stack.New()

	require.ErrorIs(t, s.Push(nil), stack.ErrInvalidStackState)
	require.ErrorIs(t, s.Push(stack.Value{}), stack.ErrInvalidStackState)
	require.ErrorIs(t, s.Push((*stack.Label)(nil)), stack.ErrInvalidStackState)
	require.ErrorIs(t, s.Push((*stack.Activation)(nil)), stack.ErrInvalidStackState)
	require.ErrorIs(t, s.Push(&stack.Label{EntryHeight: 3}), stack.ErrInvalidStackState)

	assert.Equal(t, 0, s.Height())
}

func TestBranchUnwinding(t *testing.T) {
	s := stack.New()
	callFrame(t, s, 1)
	h0 := s.Height()

	_, err := s.PushLabel(stack.LabelBlock, 1, 17)
	require.NoError(t, err)
	require.NoError(t, s.PushValue(stack.I32(1), stack.I32(2), stack.I32(99)))

	l, err := s.UnwindToLabel(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 17, l.Target)
	assert.Equal(t, h0, l.EntryHeight)

	assert.Equal(t, []string{"activation", "value"}, kinds(s))
	got, err := s.PopI32()
	require.NoError(t, err)
	assert.Equal(t, int32(99), got)
}

func TestBranchToOuterLabel(t *testing.T) {
	s := stack.New()
	callFrame(t, s, 0)
	require.NoError(t, s.PushValue(stack.I64(7)))

	outer, err := s.PushLabel(stack.LabelBlock, 2, 40)
	require.NoError(t, err)
	require.NoError(t, s.PushValue(stack.I32(1)))
	_, err = s.PushLabel(stack.LabelIf, 0, 30)
	require.NoError(t, err)
	require.NoError(t, s.PushValue(stack.F32(3), stack.I32(4), stack.I32(5)))

	l, err := s.Branch(1)
	require.NoError(t, err)
	assert.Same(t, outer, l)
	assert.Equal(t, []string{"activation", "value", "value", "value"}, kinds(s))

	top, err := s.PopValues(2)
	require.NoError(t, err)
	assert.Equal(t, []stack.Value{stack.I32(4), stack.I32(5)}, top)
	v, err := s.PopI64()
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
}

func TestBranchToLoopCarriesNothing(t *testing.T) {
	s := stack.New()
	callFrame(t, s, 0)
	_, err := s.PushLabel(stack.LabelLoop, 1, 5)
	require.NoError(t, err)
	require.NoError(t, s.PushValue(stack.I32(1), stack.I32(2)))

	l, err := s.Branch(0)
	require.NoError(t, err)
	assert.Equal(t, 5, l.Target)
	assert.Equal(t, 0, l.BranchArity())
	assert.Equal(t, []string{"activation"}, kinds(s))
}

func TestExitLabelKeepsResults(t *testing.T) {
	s := stack.New()
	callFrame(t, s, 0)
	_, err := s.PushLabel(stack.LabelBlock, 1, 9)
	require.NoError(t, err)
	require.NoError(t, s.PushValue(stack.I32(1), stack.F64(2)))

	_, err = s.ExitLabel()
	require.NoError(t, err)
	assert.Equal(t, []string{"activation", "value"}, kinds(s))

	_, err = s.ExitLabel()
	require.ErrorIs(t, err, stack.ErrInvalidStackState)
}

func TestUnwindToLabelNeedsValues(t *testing.T) {
	s := stack.New()
	callFrame(t, s, 0)
	_, err := s.PushLabel(stack.LabelBlock, 2, 0)
	require.NoError(t, err)
	require.NoError(t, s.PushValue(stack.I32(1)))

	_, err = s.UnwindToLabel(0, 2)
	require.ErrorIs(t, err, stack.ErrStackUnderflow)
	assert.Equal(t, 3, s.Height(), "failed unwind must not consume")

	_, err = s.PushLabel(stack.LabelBlock, 0, 0)
	require.NoError(t, err)
	_, err = s.UnwindToLabel(1, 1)
	require.ErrorIs(t, err, stack.ErrStackUnderflow, "a label is not a result value")
}

func TestFindLabelNested(t *testing.T) {
	s := stack.New()
	callFrame(t, s, 0)

	outer, err := s.PushLabel(stack.LabelBlock, 0, 100)
	require.NoError(t, err)
	require.NoError(t, s.PushValue(stack.I32(1), stack.I32(2)))
	inner, err := s.PushLabel(stack.LabelLoop, 0, 50)
	require.NoError(t, err)
	require.NoError(t, s.PushValue(stack.I64(3), stack.F32(4)))

	l, err := s.FindLabel(0)
	require.NoError(t, err)
	assert.Same(t, inner, l)

	l, err = s.FindLabel(1)
	require.NoError(t, err)
	assert.Same(t, outer, l)

	_, err = s.FindLabel(2)
	require.ErrorIs(t, err, stack.ErrInvalidBranchDepth)
	_, err = s.FindLabel(-1)
	require.ErrorIs(t, err, stack.ErrInvalidBranchDepth)

	assert.Equal(t, 7, s.Height(), "lookups never mutate")
}

func TestFindLabelStopsAtActivation(t *testing.T) {
	s := stack.New()
	callFrame(t, s, 0)
	_, err := s.PushLabel(stack.LabelBlock, 0, 0)
	require.NoError(t, err)
	callFrame(t, s, 0)

	_, err = s.FindLabel(0)
	require.ErrorIs(t, err, stack.ErrInvalidBranchDepth, "caller labels are not branch targets")
}

func TestFindInnermostActivation(t *testing.T) {
	s := stack.New()
	_, err := s.FindInnermostActivation()
	require.ErrorIs(t, err, stack.ErrInvalidStackState)

	outer := callFrame(t, s, 0)
	require.NoError(t, s.PushValue(stack.I32(1)))
	inner := callFrame(t, s, 0)
	_, err = s.PushLabel(stack.LabelBlock, 0, 0)
	require.NoError(t, err)
	require.NoError(t, s.PushValue(stack.I32(2)))

	a, err := s.FindInnermostActivation()
	require.NoError(t, err)
	assert.Same(t, inner, a)
	assert.Equal(t, 2, inner.SavedHeight)
	assert.Equal(t, 0, outer.SavedHeight)
	assert.Equal(t, 2, s.CallDepth())
}

func TestUnwindStaysWithinActivation(t *testing.T) {
	s := stack.New()
	callFrame(t, s, 0)
	require.NoError(t, s.PushValue(stack.I32(1)))
	inner := callFrame(t, s, 0)

	require.ErrorIs(t, s.Push(&stack.Label{EntryHeight: 0}), stack.ErrInvalidStackState)
	require.ErrorIs(t, s.Push(&stack.Label{EntryHeight: 2}), stack.ErrInvalidStackState)
	assert.Equal(t, 3, s.Height())

	l, err := s.PushLabel(stack.LabelBlock, 0, 0)
	require.NoError(t, err)
	l.EntryHeight = 1
	_, err = s.Branch(0)
	require.ErrorIs(t, err, stack.ErrInvalidStackState)
	assert.Equal(t, 4, s.Height())
	assert.Equal(t, 2, s.CallDepth())

	l.EntryHeight = 3
	_, err = s.Branch(0)
	require.NoError(t, err)

	inner.SavedHeight = 0
	_, err = s.Return()
	require.ErrorIs(t, err, stack.ErrInvalidStackState)
	assert.Equal(t, []string{"activation", "value", "activation"}, kinds(s))

	inner.SavedHeight = 2
	_, err = s.Return()
	require.NoError(t, err)
	assert.Equal(t, []string{"activation", "value"}, kinds(s))
	assert.Equal(t, 1, s.CallDepth())
}

func TestReturnIsolatesCallee(t *testing.T) {
	s := stack.New()
	caller := callFrame(t, s, 0, stack.I32(10))
	require.NoError(t, s.PushValue(stack.F64(1.25)))

	callee := stack.NewActivation(1, []stack.Value{stack.I32(5)}, []stack.ValueType{stack.ValueTypeI64}, 1,
		stack.Continuation{Func: 0, PC: 12}, nil)
	require.NoError(t, s.PushActivation(callee))
	assert.Equal(t, 2, callee.NumLocals())

	require.NoError(t, s.SetLocal(1, stack.I64(77)))
	_, err := s.PushLabel(stack.LabelBlock, 0, 0)
	require.NoError(t, err)
	require.NoError(t, s.PushValue(stack.I32(1), stack.I64(2), stack.I32(3)))

	a, err := s.Return()
	require.NoError(t, err)
	assert.Same(t, callee, a)
	assert.Equal(t, stack.Continuation{Func: 0, PC: 12}, a.Resume)
	assert.Equal(t, 1, s.CallDepth())

	assert.Equal(t, []string{"activation", "value", "value"}, kinds(s))
	ret, err := s.PopI32()
	require.NoError(t, err)
	assert.Equal(t, int32(3), ret)

	// only the caller's locals are addressable now
	v, err := s.Local(0)
	require.NoError(t, err)
	assert.Equal(t, stack.I32(10), v)
	_, err = s.Local(1)
	require.ErrorIs(t, err, stack.ErrInvalidStackState)

	got, err := s.PopF64()
	require.NoError(t, err)
	assert.Equal(t, 1.25, got)

	top, err := s.Peek()
	require.NoError(t, err)
	assert.Same(t, caller, top)
}

func TestReturnUnderflow(t *testing.T) {
	s := stack.New()
	require.NoError(t, s.PushValue(stack.I32(1), stack.I32(2)))
	callFrame(t, s, 2)
	require.NoError(t, s.PushValue(stack.I32(3)))

	_, err := s.Return()
	require.ErrorIs(t, err, stack.ErrStackUnderflow, "caller values are not return values")
	assert.Equal(t, 4, s.Height())

	_, err = s.UnwindToActivation(1)
	require.NoError(t, err)
	assert.Equal(t, 0, s.CallDepth())
	values, err := s.PopValues(3)
	require.NoError(t, err)
	assert.Equal(t, []stack.Value{stack.I32(1), stack.I32(2), stack.I32(3)}, values)
}

func TestUnwindWithoutActivation(t *testing.T) {
	s := stack.New()
	require.NoError(t, s.PushValue(stack.I32(1)))

	_, err := s.UnwindToActivation(1)
	require.ErrorIs(t, err, stack.ErrInvalidStackState)
	_, err = s.Local(0)
	require.ErrorIs(t, err, stack.ErrInvalidStackState)
}

func TestSetLocalKeepsDeclaredType(t *testing.T) {
	s := stack.New()
	callFrame(t, s, 0, stack.F32(1))

	err := s.SetLocal(0, stack.F64(1))
	require.ErrorIs(t, err, stack.ErrTypeMismatch)

	require.NoError(t, s.SetLocal(0, stack.F32(2)))
	v, err := s.Local(0)
	require.NoError(t, err)
	assert.Equal(t, stack.F32(2), v)

	require.ErrorIs(t, s.SetLocal(3, stack.F32(0)), stack.ErrInvalidStackState)
}

func TestCallDepthGuard(t *testing.T) {
	s := stack.New(stack.WithMaxCallDepth(3))
	for k := 0; k < 3; k++ {
		callFrame(t, s, 0)
	}

	snapshot := s.Snapshot()
	err := s.PushActivation(stack.NewActivation(0, nil, nil, 0, stack.HostContinuation, nil))
	require.ErrorIs(t, err, stack.ErrCallStackOverflow)
	assert.Equal(t, snapshot, s.Snapshot(), "the offending push must not change the stack")
	assert.Equal(t, 3, s.CallDepth())

	_, err = s.Return()
	require.NoError(t, err)
	callFrame(t, s, 0)
}

func TestHeightGuard(t *testing.T) {
	s := stack.New(stack.WithMaxHeight(2))
	require.NoError(t, s.PushValue(stack.I32(1), stack.I32(2)))

	err := s.Push(stack.I32(3))
	require.ErrorIs(t, err, stack.ErrStackOverflow)
	assert.Equal(t, 2, s.Height())
}

func TestUnlimitedStack(t *testing.T) {
	s := stack.New(stack.WithMaxCallDepth(0), stack.WithMaxHeight(0))
	for k := 0; k < stack.DefaultMaxCallDepth+1; k++ {
		callFrame(t, s, 0)
	}
	assert.Equal(t, stack.DefaultMaxCallDepth+1, s.CallDepth())
}

func TestPopValuesOf(t *testing.T) {
	s := stack.New()
	require.NoError(t, s.PushValue(stack.I32(1), stack.F64(2)))

	_, err := s.PopValuesOf([]stack.ValueType{stack.ValueTypeF64, stack.ValueTypeF64})
	require.ErrorIs(t, err, stack.ErrTypeMismatch)
	assert.Equal(t, 2, s.Height())

	_, err = s.PopValuesOf([]stack.ValueType{stack.ValueTypeI32, stack.ValueTypeI32, stack.ValueTypeF64})
	require.ErrorIs(t, err, stack.ErrStackUnderflow)

	values, err := s.PopValuesOf([]stack.ValueType{stack.ValueTypeI32, stack.ValueTypeF64})
	require.NoError(t, err)
	assert.Equal(t, []stack.Value{stack.I32(1), stack.F64(2)}, values)
}

func TestPopTracksCallDepth(t *testing.T) {
	s := stack.New()
	callFrame(t, s, 0)
	f, err := s.Pop()
	require.NoError(t, err)
	assert.Equal(t, stack.KindActivation, f.Kind())
	assert.Equal(t, 0, s.CallDepth())
}

func TestReset(t *testing.T) {
	s := stack.New()
	callFrame(t, s, 0)
	require.NoError(t, s.PushValue(stack.I32(1)))

	s.Reset()
	assert.Equal(t, 0, s.Height())
	assert.Equal(t, 0, s.CallDepth())
	assert.Empty(t, s.Snapshot())
}

func TestSnapshot(t *testing.T) {
	s := stack.New()
	callFrame(t, s, 1, stack.I32(4))
	_, err := s.PushLabel(stack.LabelIf, 1, 8)
	require.NoError(t, err)
	require.NoError(t, s.PushValue(stack.I64(-2)))

	assert.Equal(t, []stack.FrameInfo{
		{Height: 0, Kind: "activation", Detail: "func=0 arity=1 saved=0 resume=-1:0 locals=[i32:4]"},
		{Height: 1, Kind: "label", Detail: "if arity=1 entry=1 target=8"},
		{Height: 2, Kind: "value", Detail: "i64:-2"},
	}, s.Snapshot())
}
