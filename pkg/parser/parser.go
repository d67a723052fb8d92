package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"wasmstack/pkg/lexer"
	"wasmstack/pkg/parser/nesting"
	"wasmstack/pkg/stack"
)

type Parser struct {
	lexer        *lexer.Lexer  // lexer instance
	currentToken lexer.Token   // current token
	errors       []SyntaxError // list of errors

	module      *Module
	funcNames   map[string]int
	globalNames map[string]int
}

// NewParser creates a new parser instance
func NewParser(l *lexer.Lexer) *Parser {
	p := &Parser{
		lexer: l,
		module: &Module{
			Exports: map[string]int{},
		},
		funcNames:   map[string]int{},
		globalNames: map[string]int{},
	}

	// Initialize current token
	p.nextToken()

	return p
}

// Parse parses a whole source text into a module
func Parse(src string) (*Module, error) {
	return NewParser(lexer.NewLexer(src)).Parse()
}

// Parse reads the module. It stops at the first syntax error, which is also
// kept for Errors.
func (p *Parser) Parse() (*Module, error) {
	err := p.parseModule()
	if err == nil {
		err = p.resolve()
	}
	if err != nil {
		var se *SyntaxError
		if errors.As(err, &se) {
			p.errors = append(p.errors, *se)
		}
		return nil, err
	}
	return p.module, nil
}

// nextToken advances to the next token from the lexer
func (p *Parser) nextToken() {
	p.currentToken = p.lexer.NextToken()
}

// expect consumes a token of the given type
func (p *Parser) expect(t lexer.TokenType) (lexer.Token, error) {
	tok := p.currentToken
	if tok.Type != t {
		return tok, p.errorf(tok, "expected %s, found %s", t, tok)
	}
	p.nextToken()
	return tok, nil
}

// openClause consumes "(" keyword when the next clause is introduced by keyword
func (p *Parser) openClause(keyword string) bool {
	if p.currentToken.Type != lexer.LPAREN || !p.lexer.Peek().Is(keyword) {
		return false
	}
	p.nextToken()
	p.nextToken()
	return true
}

func (p *Parser) parseModule() error {
	if p.openClause("module") {
		if p.currentToken.Type == lexer.ID {
			p.nextToken()
		}
		if err := p.parseFields(lexer.RPAREN); err != nil {
			return err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return err
		}
	} else if err := p.parseFields(lexer.EOF); err != nil {
		return err
	}

	if p.currentToken.Type != lexer.EOF {
		return p.errorf(p.currentToken, "unexpected %s after module", p.currentToken)
	}
	return nil
}

func (p *Parser) parseFields(until lexer.TokenType) error {
	for p.currentToken.Type != until {
		switch {
		case p.openClause("func"):
			if err := p.parseFunc(); err != nil {
				return err
			}
		case p.openClause("global"):
			if err := p.parseGlobal(); err != nil {
				return err
			}
		default:
			return p.errorf(p.currentToken, "expected (func ...) or (global ...), found %s", p.currentToken)
		}
	}
	return nil
}

// parseFunc parses a function after "(func"
func (p *Parser) parseFunc() error {
	f := &Func{}
	idx := len(p.module.Funcs)
	p.module.Funcs = append(p.module.Funcs, f)

	if tok := p.currentToken; tok.Type == lexer.ID {
		if _, dup := p.funcNames[tok.Lexeme]; dup {
			return p.errorf(tok, "duplicate function %s", tok.Lexeme)
		}
		f.Name = tok.Lexeme
		p.funcNames[tok.Lexeme] = idx
		p.nextToken()
	}

	names := map[string]uint32{}
	for {
		clause := p.currentToken
		switch {
		case p.openClause("export"):
			tok, err := p.expect(lexer.STRING)
			if err != nil {
				return err
			}
			if _, dup := p.module.Exports[tok.Literal]; dup {
				return p.errorf(tok, "duplicate export %q", tok.Literal)
			}
			p.module.Exports[tok.Literal] = idx
			if f.Name == "" {
				f.Name = tok.Literal
			}
			if _, err := p.expect(lexer.RPAREN); err != nil {
				return err
			}

		case p.openClause("param"):
			if len(f.Results) > 0 || len(f.Locals) > 0 {
				return p.errorf(clause, "param must precede result and local")
			}
			if err := p.parseTypeList(names, &f.Params, 0); err != nil {
				return err
			}

		case p.openClause("result"):
			if len(f.Locals) > 0 {
				return p.errorf(clause, "result must precede local")
			}
			if err := p.parseTypeList(nil, &f.Results, 0); err != nil {
				return err
			}

		case p.openClause("local"):
			if err := p.parseTypeList(names, &f.Locals, len(f.Params)); err != nil {
				return err
			}

		default:
			if err := p.parseBody(f, names); err != nil {
				return err
			}
			_, err := p.expect(lexer.RPAREN)
			return err
		}
	}
}

// parseTypeList parses the rest of a (param ...), (result ...) or (local ...)
// clause. A named entry declares exactly one type; base is the index of the
// first entry of dst in the function's local index space.
func (p *Parser) parseTypeList(names map[string]uint32, dst *[]stack.ValueType, base int) error {
	if tok := p.currentToken; tok.Type == lexer.ID {
		if names == nil {
			return p.errorf(tok, "unexpected name %s", tok.Lexeme)
		}
		if _, dup := names[tok.Lexeme]; dup {
			return p.errorf(tok, "duplicate local %s", tok.Lexeme)
		}
		names[tok.Lexeme] = uint32(base + len(*dst))
		p.nextToken()

		t, err := p.parseValueType()
		if err != nil {
			return err
		}
		*dst = append(*dst, t)
	} else {
		for p.currentToken.Type == lexer.KEYWORD {
			t, err := p.parseValueType()
			if err != nil {
				return err
			}
			*dst = append(*dst, t)
		}
	}

	_, err := p.expect(lexer.RPAREN)
	return err
}

func (p *Parser) parseValueType() (stack.ValueType, error) {
	tok := p.currentToken
	if tok.Type != lexer.KEYWORD {
		return 0, p.errorf(tok, "expected value type, found %s", tok)
	}
	t, err := stack.ParseValueType(tok.Lexeme)
	if err != nil {
		return 0, p.errorf(tok, "%v", err)
	}
	p.nextToken()
	return t, nil
}

// parseGlobal parses a global after "(global"
func (p *Parser) parseGlobal() error {
	g := Global{}
	if tok := p.currentToken; tok.Type == lexer.ID {
		if _, dup := p.globalNames[tok.Lexeme]; dup {
			return p.errorf(tok, "duplicate global %s", tok.Lexeme)
		}
		g.Name = tok.Lexeme
		p.globalNames[tok.Lexeme] = len(p.module.Globals)
		p.nextToken()
	}

	var err error
	if p.openClause("mut") {
		g.Mutable = true
		if g.Type, err = p.parseValueType(); err != nil {
			return err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return err
		}
	} else if g.Type, err = p.parseValueType(); err != nil {
		return err
	}

	if _, err := p.expect(lexer.LPAREN); err != nil {
		return err
	}
	tok := p.currentToken
	want := Opcode(g.Type.String() + ".const")
	if !tok.Is(string(want)) {
		return p.errorf(tok, "global initializer must be %s, found %s", want, tok)
	}
	p.nextToken()
	if g.Init, err = p.parseConst(want); err != nil {
		return err
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return err
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return err
	}

	p.module.Globals = append(p.module.Globals, g)
	return nil
}

// openBlock is a block, loop or if whose end has not been read yet
type openBlock struct {
	pc    int    // body index of the opening instruction
	label string // "" when unnamed
}

// parseBody parses a flat instruction sequence up to the closing paren of the
// function, pairing every block, loop and if with its else and end.
func (p *Parser) parseBody(f *Func, names map[string]uint32) error {
	open := nesting.New[openBlock]()
	numLocals := len(f.Params) + len(f.Locals)

	for p.currentToken.Type != lexer.RPAREN {
		tok := p.currentToken
		if tok.Type != lexer.KEYWORD {
			return p.errorf(tok, "expected instruction, found %s", tok)
		}
		op := Opcode(tok.Lexeme)
		imm, ok := opcodes[op]
		if !ok {
			return p.errorf(tok, "unknown instruction %q", tok.Lexeme)
		}
		p.nextToken()

		pc := len(f.Body)
		in := Instruction{Op: op, Else: -1, End: -1, Pos: tok.Pos}

		var err error
		switch imm {
		case immBlock:
			b := openBlock{pc: pc}
			if p.currentToken.Type == lexer.ID {
				b.label = p.currentToken.Lexeme
				p.nextToken()
			}
			if in.Arity, err = p.parseBlockType(); err != nil {
				return err
			}
			open.Push(b)

		case immLabel:
			in.Index, err = p.parseLabel(open)

		case immLabels:
			for p.currentToken.Type == lexer.NUM || p.currentToken.Type == lexer.ID {
				var depth uint32
				if depth, err = p.parseLabel(open); err != nil {
					return err
				}
				in.Targets = append(in.Targets, depth)
			}
			if len(in.Targets) == 0 {
				err = p.errorf(tok, "br_table needs at least a default label")
			}

		case immLocal:
			in.Index, err = p.parseLocal(names, numLocals)

		case immGlobal, immFunc:
			in.Index, in.ref, err = p.parseRef()

		case immConst:
			in.Value, err = p.parseConst(op)
		}
		if err != nil {
			return err
		}

		switch op {
		case OpElse:
			b, ok := open.Peek()
			if !ok || f.Body[b.pc].Op != OpIf || f.Body[b.pc].Else >= 0 {
				return p.errorf(tok, "else without matching if")
			}
			f.Body[b.pc].Else = pc
			p.skipLabelName()

		case OpEnd:
			b, ok := open.Pop()
			if !ok {
				return p.errorf(tok, "end without matching block")
			}
			f.Body[b.pc].End = pc
			if e := f.Body[b.pc].Else; e >= 0 {
				f.Body[e].End = pc
			}
			p.skipLabelName()
		}

		f.Body = append(f.Body, in)
	}

	if b, ok := open.Peek(); ok {
		in := f.Body[b.pc]
		return &SyntaxError{Pos: in.Pos, Msg: "unclosed " + string(in.Op)}
	}
	return nil
}

// skipLabelName drops the optional label name repeated after else and end
func (p *Parser) skipLabelName() {
	if p.currentToken.Type == lexer.ID {
		p.nextToken()
	}
}

// parseBlockType parses an optional (result t*) and returns its arity
func (p *Parser) parseBlockType() (int, error) {
	var results []stack.ValueType
	for p.openClause("result") {
		if err := p.parseTypeList(nil, &results, 0); err != nil {
			return 0, err
		}
	}
	return len(results), nil
}

// parseLabel parses a branch depth or the name of an enclosing label
func (p *Parser) parseLabel(open *nesting.Stack[openBlock]) (uint32, error) {
	tok := p.currentToken
	switch tok.Type {
	case lexer.NUM:
		p.nextToken()
		return p.parseIndex(tok)
	case lexer.ID:
		depth, ok := open.Depth(func(b openBlock) bool { return b.label == tok.Lexeme })
		if !ok {
			return 0, p.errorf(tok, "unknown label %s", tok.Lexeme)
		}
		p.nextToken()
		return uint32(depth), nil
	}
	return 0, p.errorf(tok, "expected label, found %s", tok)
}

// parseLocal parses a local index or name
func (p *Parser) parseLocal(names map[string]uint32, numLocals int) (uint32, error) {
	tok := p.currentToken
	switch tok.Type {
	case lexer.NUM:
		p.nextToken()
		idx, err := p.parseIndex(tok)
		if err == nil && int(idx) >= numLocals {
			err = p.errorf(tok, "local %d out of range (%d locals)", idx, numLocals)
		}
		return idx, err
	case lexer.ID:
		idx, ok := names[tok.Lexeme]
		if !ok {
			return 0, p.errorf(tok, "unknown local %s", tok.Lexeme)
		}
		p.nextToken()
		return idx, nil
	}
	return 0, p.errorf(tok, "expected local, found %s", tok)
}

// parseRef parses a function or global index, or a name resolved once the
// whole module is read
func (p *Parser) parseRef() (uint32, string, error) {
	tok := p.currentToken
	switch tok.Type {
	case lexer.NUM:
		p.nextToken()
		idx, err := p.parseIndex(tok)
		return idx, "", err
	case lexer.ID:
		p.nextToken()
		return 0, tok.Lexeme, nil
	}
	return 0, "", p.errorf(tok, "expected index or name, found %s", tok)
}

func (p *Parser) parseIndex(tok lexer.Token) (uint32, error) {
	u, err := parseUint(tok.Lexeme, 32)
	if err != nil || strings.HasPrefix(tok.Lexeme, "-") || strings.HasPrefix(tok.Lexeme, "+") {
		return 0, p.errorf(tok, "invalid index %s", tok.Lexeme)
	}
	return uint32(u), nil
}

// parseConst parses the literal operand of a t.const instruction
func (p *Parser) parseConst(op Opcode) (stack.Value, error) {
	tok := p.currentToken
	if tok.Type != lexer.NUM {
		return stack.Value{}, p.errorf(tok, "%s expects a number, found %s", op, tok)
	}
	p.nextToken()

	t, _, _ := op.Numeric()
	v, err := ParseValue(t, tok.Lexeme)
	if err != nil {
		return stack.Value{}, p.errorf(tok, "%v", err)
	}
	return v, nil
}

// ParseValue parses a numeric literal as a value of type t
func ParseValue(t stack.ValueType, lit string) (stack.Value, error) {
	switch t {
	case stack.ValueTypeI32:
		if u, err := parseInt(lit, 32); err == nil {
			return stack.I32(int32(uint32(u))), nil
		}
	case stack.ValueTypeI64:
		if u, err := parseInt(lit, 64); err == nil {
			return stack.I64(int64(u)), nil
		}
	case stack.ValueTypeF32:
		if f, err := parseFloat(lit, 32); err == nil {
			return stack.F32(float32(f)), nil
		}
	case stack.ValueTypeF64:
		if f, err := parseFloat(lit, 64); err == nil {
			return stack.F64(f), nil
		}
	}
	return stack.Value{}, fmt.Errorf("invalid %s literal %q", t, lit)
}

// resolve replaces function and global names by indices and checks ranges
func (p *Parser) resolve() error {
	for _, f := range p.module.Funcs {
		for i := range f.Body {
			in := &f.Body[i]
			var names map[string]int
			var count int
			switch in.Op {
			case OpCall:
				names, count = p.funcNames, len(p.module.Funcs)
			case OpGlobalGet, OpGlobalSet:
				names, count = p.globalNames, len(p.module.Globals)
			default:
				continue
			}

			if in.ref != "" {
				idx, ok := names[in.ref]
				if !ok {
					return &SyntaxError{Pos: in.Pos, Msg: "unknown name " + in.ref}
				}
				in.Index = uint32(idx)
			} else if int(in.Index) >= count {
				return &SyntaxError{Pos: in.Pos, Msg: string(in.Op) + " index " + strconv.Itoa(int(in.Index)) + " out of range"}
			}

			if in.Op == OpGlobalSet && !p.module.Globals[in.Index].Mutable {
				return &SyntaxError{Pos: in.Pos, Msg: "global.set on immutable global"}
			}
		}
	}
	return nil
}

// parseUint parses a decimal or 0x-prefixed unsigned literal
func parseUint(lit string, bits int) (uint64, error) {
	s := strings.ReplaceAll(lit, "_", "")
	s = strings.TrimPrefix(s, "+")
	if hex, ok := strings.CutPrefix(s, "0x"); ok {
		return strconv.ParseUint(hex, 16, bits)
	}
	return strconv.ParseUint(s, 10, bits)
}

// parseInt parses a signed or unsigned integer literal of the given width and
// returns its two's complement bits
func parseInt(lit string, bits int) (uint64, error) {
	digits, neg := strings.CutPrefix(lit, "-")
	u, err := parseUint(digits, bits)
	if err != nil {
		return 0, err
	}
	if !neg {
		return u, nil
	}
	if u > 1<<(bits-1) {
		return 0, strconv.ErrRange
	}
	return -u, nil
}

func parseFloat(lit string, bits int) (float64, error) {
	s := strings.ReplaceAll(lit, "_", "")
	unsigned := strings.TrimLeft(s, "+-")
	if strings.HasPrefix(unsigned, "0x") && !strings.ContainsAny(unsigned, "pP") {
		s += "p0"
	}
	return strconv.ParseFloat(s, bits)
}
