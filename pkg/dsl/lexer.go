package dsl

import (
	"strings"
)

// TokenType is the closed set of lexical token kinds in the DSL grammar
// (spec §4.1, §6).
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenLParen
	TokenRParen
	TokenComma
)

// Token is a single lexical unit with its source position.
type Token struct {
	Type   TokenType
	Value  string
	Line   int
	Column int
}

// identChar reports whether r is a legal identifier character per §6:
// letters, digits, underscore, hyphen, dot, and (identifiers only) slash.
func identChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '-', r == '.', r == '/':
		return true
	}
	return false
}

// lexer tokenizes DSL source text. Any character outside the grammar's
// closed token set is a SYNTAX_ERROR, reported with line/column.
type lexer struct {
	src    []rune
	pos    int
	line   int
	column int
	depth  int // paren nesting depth; newlines inside a block are illegal
}

func newLexer(text string) *lexer {
	return &lexer{src: []rune(text), pos: 0, line: 1, column: 1}
}

func (l *lexer) peekRune() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *lexer) advance() (rune, bool) {
	r, ok := l.peekRune()
	if !ok {
		return 0, false
	}
	l.pos++
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return r, true
}

// next returns the next token, or a *syntaxError on the first illegal
// byte/position. Whitespace outside tokens is ignored; newlines are
// only permitted between top-level blocks (paren depth 0).
func (l *lexer) next() (Token, *syntaxError) {
	for {
		r, ok := l.peekRune()
		if !ok {
			return Token{Type: TokenEOF, Line: l.line, Column: l.column}, nil
		}
		switch {
		case r == '\n':
			if l.depth > 0 {
				return Token{}, &syntaxError{line: l.line, column: l.column, msg: "newline not permitted inside a statement block"}
			}
			l.advance()
			continue
		case r == ' ' || r == '\t' || r == '\r':
			l.advance()
			continue
		}
		break
	}

	startLine, startCol := l.line, l.column
	r, _ := l.peekRune()

	switch r {
	case '(':
		l.advance()
		l.depth++
		return Token{Type: TokenLParen, Value: "(", Line: startLine, Column: startCol}, nil
	case ')':
		l.advance()
		l.depth--
		return Token{Type: TokenRParen, Value: ")", Line: startLine, Column: startCol}, nil
	case ',':
		l.advance()
		return Token{Type: TokenComma, Value: ",", Line: startLine, Column: startCol}, nil
	}

	if identChar(r) {
		var b strings.Builder
		for {
			rr, ok := l.peekRune()
			if !ok || !identChar(rr) {
				break
			}
			b.WriteRune(rr)
			l.advance()
		}
		return Token{Type: TokenIdent, Value: b.String(), Line: startLine, Column: startCol}, nil
	}

	return Token{}, &syntaxError{line: startLine, column: startCol, msg: "unexpected character " + string(r)}
}

type syntaxError struct {
	line, column int
	msg          string
}

func (e *syntaxError) Error() string { return e.msg }
