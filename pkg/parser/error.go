package parser

import (
	"fmt"

	"wasmstack/pkg/color"
	"wasmstack/pkg/lexer"
)

// SyntaxError is a parse failure at a source position.
type SyntaxError struct {
	Pos lexer.Position
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func (p *Parser) errorf(tok lexer.Token, format string, args ...any) error {
	return &SyntaxError{Pos: tok.Pos, Msg: fmt.Sprintf(format, args...)}
}

// Errors returns the collected errors formatted for the terminal
func (p *Parser) Errors() []string {
	out := make([]string, len(p.errors))
	for i, e := range p.errors {
		out[i] = color.ErrorWithPosition(e.Pos.Line, e.Pos.Column, e.Msg)
	}
	return out
}
