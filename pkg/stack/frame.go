package stack

import "fmt"

// FrameKind tells which of the three frame variants a Frame holds.
type FrameKind uint8

const (
	KindValue FrameKind = iota
	KindLabel
	KindActivation
)

func (k FrameKind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindLabel:
		return "label"
	case KindActivation:
		return "activation"
	default:
		return fmt.Sprintf("FrameKind(%d)", uint8(k))
	}
}

// Frame is one element of the execution stack.
//
// The set of implementations is closed: Value, *Label and *Activation are the
// only frame types, and the unexported marker keeps it that way.
type Frame interface {
	Kind() FrameKind
	String() string
	frame()
}

// As returns f as the frame type T, or ErrTypeMismatch if f holds another variant.
func As[T Frame](f Frame) (T, error) {
	t, ok := f.(T)
	if !ok {
		var zero T
		return zero, opErr("as", ErrTypeMismatch, "want %T, have %s", zero, describe(f))
	}
	return t, nil
}

// describe names a frame for error messages, tolerating nil.
func describe(f Frame) string {
	if f == nil {
		return "nil frame"
	}
	return f.Kind().String() + " frame " + f.String()
}
