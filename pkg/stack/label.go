package stack

import "fmt"

// LabelKind is the structured construct that pushed a label.
type LabelKind uint8

const (
	LabelBlock LabelKind = iota
	LabelLoop
	LabelIf
)

func (k LabelKind) String() string {
	switch k {
	case LabelBlock:
		return "block"
	case LabelLoop:
		return "loop"
	case LabelIf:
		return "if"
	default:
		return fmt.Sprintf("LabelKind(%d)", uint8(k))
	}
}

// Label is the control frame pushed on entry to a block, loop or if.
type Label struct {
	Construct   LabelKind // construct that opened the label
	Arity       int       // result values produced on normal exit
	EntryHeight int       // stack height at entry, the label itself excluded
	Target      int       // pc to continue at when branched to
}

func (*Label) Kind() FrameKind { return KindLabel }
func (*Label) frame()          {}

// BranchArity is the number of values a branch to this label carries.
// A loop is re-entered at its start, where it takes no operands.
func (l *Label) BranchArity() int {
	if l.Construct == LabelLoop {
		return 0
	}
	return l.Arity
}

func (l *Label) String() string {
	if l == nil {
		return "<nil label>"
	}
	return fmt.Sprintf("%s arity=%d entry=%d target=%d", l.Construct, l.Arity, l.EntryHeight, l.Target)
}
