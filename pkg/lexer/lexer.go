package lexer

type Lexer struct {
	input    string // input string to be tokenized
	length   int    // length of the input string
	position int    // current position in the input string
	line     int    // current line number for error reporting
	column   int    // current column number for error reporting
}

// Create a new lexer instance
func NewLexer(s string) *Lexer {
	return &Lexer{
		input:    s,
		length:   len(s),
		position: 0,
		line:     1,
		column:   1,
	}
}

// Get the next token from the input
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	// End of input
	if l.position >= l.length {
		return NewToken(EOF, "", "", l.currentPosition())
	}

	pos := l.currentPosition()
	remaining := l.input[l.position:]
	tokenType, lexeme, matched := MatchToken(remaining)

	if !matched {
		char := string(l.input[l.position])
		l.advance(1)

		return NewToken(ILLEGAL, char, "", pos)
	}

	literal := lexeme
	if tokenType == STRING {
		// Remove the surrounding quotes from the lexeme
		literal = lexeme[1 : len(lexeme)-1]
	}

	l.advance(len(lexeme))
	return NewToken(tokenType, lexeme, literal, pos)
}

// View next token without advancing the position
func (l *Lexer) Peek() Token {
	cpos, cline, ccol := l.position, l.line, l.column

	token := l.NextToken()

	l.position, l.line, l.column = cpos, cline, ccol

	return token
}

// Check if there are more characters to read
func (l *Lexer) HasMore() bool {
	return l.position < l.length
}

// Tokens lexes the remaining input, EOF excluded
func (l *Lexer) Tokens() []Token {
	var out []Token
	for tok := l.NextToken(); tok.Type != EOF; tok = l.NextToken() {
		out = append(out, tok)
	}
	return out
}

// Skip whitespace, line comments (;; ...) and block comments ((; ... ;))
func (l *Lexer) skipWhitespace() {
	for l.position < l.length {
		rest := l.input[l.position:]
		if match := whitespaceRegex.FindString(rest); match != "" {
			l.advance(len(match))
		} else if match := commentRegex.FindString(rest); match != "" {
			l.advance(len(match))
		} else if l.hasPrefix("(;") {
			l.advance(2)
			for l.position < l.length && !l.hasPrefix(";)") {
				l.advance(1)
			}
			l.advance(2)
		} else {
			return
		}
	}
}

func (l *Lexer) hasPrefix(p string) bool {
	return l.position+len(p) <= l.length && l.input[l.position:l.position+len(p)] == p
}

// Advance the lexer position by n characters
func (l *Lexer) advance(n int) {
	for k := 0; k < n; k++ {
		if l.position >= l.length {
			break
		}

		if l.input[l.position] == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}

		l.position++
	}
}

// Get the current position of the lexer
func (l *Lexer) currentPosition() Position {
	return Position{
		Line:   l.line,
		Column: l.column,
		Offset: l.position,
	}
}
