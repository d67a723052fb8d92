package lexer

import (
	"regexp"
)

// Token regex patterns
var tokenRegexes = map[TokenType]*regexp.Regexp{
	LPAREN:  regexp.MustCompile(`^\(`),
	RPAREN:  regexp.MustCompile(`^\)`),
	NUM:     regexp.MustCompile(`^[+-]?(0x[0-9a-fA-F][0-9a-fA-F_]*(\.[0-9a-fA-F_]*)?([pP][+-]?\d+)?|\d[\d_]*(\.[\d_]*)?([eE][+-]?\d+)?|(inf|nan)\b)`),
	STRING:  regexp.MustCompile(`^"([^"\\]|\\.)*"`),
	ID:      regexp.MustCompile(`^\$[0-9A-Za-z_.\-]+`),
	KEYWORD: regexp.MustCompile(`^[a-z][a-z0-9_.]*`),
}

var (
	whitespaceRegex = regexp.MustCompile(`^\s+`)
	commentRegex    = regexp.MustCompile(`^;;[^\n]*`)
)

// Token precedence order for matching; numbers before keywords so that
// inf and nan lex as numbers
var tokenPrecedenceOrder = []TokenType{
	LPAREN, RPAREN, NUM, STRING, ID, KEYWORD,
}

// Match the token at the start of the string; whitespace and comments must
// already be skipped
func MatchToken(s string) (TokenType, string, bool) {
	if s == "" {
		return EOF, "", false
	}

	for _, tokenType := range tokenPrecedenceOrder {
		if match := tokenRegexes[tokenType].FindString(s); match != "" {
			return tokenType, match, true
		}
	}

	return ILLEGAL, string(s[0]), false
}
