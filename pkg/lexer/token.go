package lexer

import "fmt"

type TokenType int

type Token struct {
	Type    TokenType // Type of the token
	Lexeme  string    // Actual string from source code
	Literal string    // Literal value (if applicable), empty string if not
	Pos     Position  // Position in source code
}

// NewToken creates a new Token instance
func NewToken(tokenType TokenType, lexeme string, literal string, pos Position) Token {
	return Token{
		Type:    tokenType,
		Lexeme:  lexeme,
		Literal: literal,
		Pos:     pos,
	}
}

const (
	EOF TokenType = iota // End of file

	LPAREN  // (
	RPAREN  // )
	KEYWORD // module, func, i32.const, local.get, ...
	ID      // $name
	NUM     // 42, -7, 0x1f, 1.5e3, inf, nan
	STRING  // "export name"

	ILLEGAL // illegal token
)

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	LPAREN:  "(",
	RPAREN:  ")",
	KEYWORD: "keyword",
	ID:      "identifier",
	NUM:     "number",
	STRING:  "string",
	ILLEGAL: "illegal",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

func (t Token) String() string {
	if t.Type == EOF {
		return "end of input"
	}
	return fmt.Sprintf("%s %q", t.Type, t.Lexeme)
}

// Is reports whether the token is the given keyword
func (t Token) Is(keyword string) bool {
	return t.Type == KEYWORD && t.Lexeme == keyword
}
