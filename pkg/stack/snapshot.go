package stack

// FrameInfo is a printable description of one frame.
type FrameInfo struct {
	Height int    `yaml:"height"`
	Kind   string `yaml:"kind"`
	Detail string `yaml:"detail"`
}

// Snapshot describes the frames bottom to top without exposing them.
func (s *Stack) Snapshot() []FrameInfo {
	out := make([]FrameInfo, len(s.frames))
	for i, f := range s.frames {
		out[i] = FrameInfo{
			Height: i,
			Kind:   f.Kind().String(),
			Detail: f.String(),
		}
	}
	return out
}
