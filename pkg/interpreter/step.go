package interpreter

import (
	"fmt"

	"wasmstack/pkg/parser"
	"wasmstack/pkg/stack"
)

// coreStep is the main single-step execution function
// it returns (halted, error).
func coreStep(i *Interpreter) (bool, error) {
	body := i.mod.Funcs[i.fn].Body
	if i.pc >= len(body) {
		// falling off the end of the body returns
		return i.ret()
	}

	in := &body[i.pc]
	if i.trace != nil {
		fmt.Fprintf(i.trace, "%s:%d %s height=%d\n", funcName(i.mod.Funcs[i.fn], i.fn), i.pc, in, i.stack.Height())
	}

	s := i.stack
	switch in.Op {
	case parser.OpNop:

	case parser.OpUnreachable:
		return false, ErrUnreachable

	case parser.OpDrop:
		if _, err := s.PopValue(); err != nil {
			return false, err
		}

	case parser.OpSelect:
		c, err := s.PopI32()
		if err != nil {
			return false, err
		}
		vs, err := s.PopValues(2)
		if err != nil {
			return false, err
		}
		if vs[0].Type() != vs[1].Type() {
			return false, fmt.Errorf("select: %w: %s and %s", stack.ErrTypeMismatch, vs[0].Type(), vs[1].Type())
		}
		pick := vs[1]
		if c != 0 {
			pick = vs[0]
		}
		if err := s.PushValue(pick); err != nil {
			return false, err
		}

	case parser.OpBlock:
		if _, err := s.PushLabel(stack.LabelBlock, in.Arity, in.End+1); err != nil {
			return false, err
		}

	case parser.OpLoop:
		// branching back re-executes the loop instruction, which pushes a
		// fresh label
		if _, err := s.PushLabel(stack.LabelLoop, in.Arity, i.pc); err != nil {
			return false, err
		}

	case parser.OpIf:
		c, err := s.PopI32()
		if err != nil {
			return false, err
		}
		if _, err := s.PushLabel(stack.LabelIf, in.Arity, in.End+1); err != nil {
			return false, err
		}
		if c == 0 {
			if in.Else >= 0 {
				i.pc = in.Else + 1
			} else {
				i.pc = in.End
			}
			return false, nil
		}

	case parser.OpElse:
		// reached at the end of the then arm
		if _, err := s.ExitLabel(); err != nil {
			return false, err
		}
		i.pc = in.End + 1
		return false, nil

	case parser.OpEnd:
		if _, err := s.ExitLabel(); err != nil {
			return false, err
		}

	case parser.OpBr:
		return false, i.branch(in.Index)

	case parser.OpBrIf:
		c, err := s.PopI32()
		if err != nil {
			return false, err
		}
		if c != 0 {
			return false, i.branch(in.Index)
		}

	case parser.OpBrTable:
		n, err := s.PopI32()
		if err != nil {
			return false, err
		}
		depth := in.Targets[len(in.Targets)-1]
		if idx := uint32(n); idx < uint32(len(in.Targets)-1) {
			depth = in.Targets[idx]
		}
		return false, i.branch(depth)

	case parser.OpReturn:
		return i.ret()

	case parser.OpCall:
		callee := i.mod.Funcs[in.Index]
		args, err := s.PopValuesOf(callee.Params)
		if err != nil {
			return false, err
		}
		return false, i.call(int(in.Index), args, stack.Continuation{Func: i.fn, PC: i.pc + 1})

	case parser.OpLocalGet:
		v, err := s.Local(int(in.Index))
		if err != nil {
			return false, err
		}
		if err := s.PushValue(v); err != nil {
			return false, err
		}

	case parser.OpLocalSet, parser.OpLocalTee:
		v, err := s.PopValue()
		if err != nil {
			return false, err
		}
		if err := s.SetLocal(int(in.Index), v); err != nil {
			return false, err
		}
		if in.Op == parser.OpLocalTee {
			if err := s.PushValue(v); err != nil {
				return false, err
			}
		}

	case parser.OpGlobalGet:
		a, err := s.FindInnermostActivation()
		if err != nil {
			return false, err
		}
		v, err := a.Module.Global(in.Index)
		if err != nil {
			return false, err
		}
		if err := s.PushValue(v); err != nil {
			return false, err
		}

	case parser.OpGlobalSet:
		v, err := s.PopValue()
		if err != nil {
			return false, err
		}
		a, err := s.FindInnermostActivation()
		if err != nil {
			return false, err
		}
		if err := a.Module.SetGlobal(in.Index, v); err != nil {
			return false, err
		}

	case parser.OpI32Const, parser.OpI64Const, parser.OpF32Const, parser.OpF64Const:
		if err := s.PushValue(in.Value); err != nil {
			return false, err
		}

	default:
		if err := execNumeric(s, in.Op); err != nil {
			return false, err
		}
	}

	i.pc++
	return false, nil
}

// branch unwinds to the label at depth and continues at its target
func (i *Interpreter) branch(depth uint32) error {
	l, err := i.stack.Branch(int(depth))
	if err != nil {
		return err
	}
	i.log.Debug("branch", "depth", depth, "label", l, "height", i.stack.Height())
	i.pc = l.Target
	return nil
}
