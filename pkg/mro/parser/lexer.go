package parser

import (
	"strconv"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of file"
	case tokWord:
		return "word"
	case tokString:
		return "string"
	default:
		return "punctuation"
	}
}

// Pos is a 1-based source position.
type Pos struct {
	Line   int
	Column int
}

type token struct {
	kind tokenKind
	// text is the word, the punctuation character, or the unquoted string content.
	text string
	pos  Pos
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of file"
	case tokString:
		return strconv.Quote(t.text)
	}
	return "'" + t.text + "'"
}

type lexer struct {
	file string
	src  []byte
	off  int
	line int
	col  int
}

func newLexer(file string, src []byte) *lexer {
	return &lexer{file: file, src: src, line: 1, col: 1}
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' || c == '-' || c == '+' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func isPunct(c byte) bool {
	switch c {
	case '(', ')', '{', '}', '[', ']', ',', ';', '=', '@', ':':
		return true
	}
	return false
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.off < len(l.src); i++ {
		if l.src[l.off] == '\n' {
			l.line++
			l.col = 1
		} else if l.src[l.off] < utf8.RuneSelf || utf8.RuneStart(l.src[l.off]) {
			l.col++
		}
		l.off++
	}
}

func (l *lexer) skipSpaceAndComments() {
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance(1)
		case c == '#' || (c == '/' && l.off+1 < len(l.src) && l.src[l.off+1] == '/'):
			for l.off < len(l.src) && l.src[l.off] != '\n' {
				l.advance(1)
			}
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()
	pos := Pos{Line: l.line, Column: l.col}
	if l.off >= len(l.src) {
		return token{kind: tokEOF, pos: pos}, nil
	}

	c := l.src[l.off]
	switch {
	case isPunct(c):
		l.advance(1)
		return token{kind: tokPunct, text: string(c), pos: pos}, nil
	case c == '"':
		return l.doubleQuoted(pos)
	case c == '\'':
		return l.singleQuoted(pos)
	case isWordByte(c):
		start := l.off
		for l.off < len(l.src) && isWordByte(l.src[l.off]) {
			l.advance(1)
		}
		return token{kind: tokWord, text: string(l.src[start:l.off]), pos: pos}, nil
	}

	r, _ := utf8.DecodeRune(l.src[l.off:])
	return token{}, newError(l.file, pos, ErrUnexpectedToken, "unexpected character %q", r)
}

func (l *lexer) doubleQuoted(pos Pos) (token, error) {
	start := l.off
	l.advance(1)
	for l.off < len(l.src) {
		switch l.src[l.off] {
		case '\\':
			l.advance(2)
			continue
		case '\n':
			return token{}, newError(l.file, pos, ErrUnterminated, "unterminated string")
		case '"':
			l.advance(1)
			text, err := strconv.Unquote(string(l.src[start:l.off]))
			if err != nil {
				return token{}, newError(l.file, pos, ErrUnexpectedToken, "invalid string literal: %v", err)
			}
			return token{kind: tokString, text: text, pos: pos}, nil
		}
		l.advance(1)
	}
	return token{}, newError(l.file, pos, ErrUnterminated, "unterminated string")
}

func (l *lexer) singleQuoted(pos Pos) (token, error) {
	l.advance(1)
	start := l.off
	for l.off < len(l.src) {
		switch l.src[l.off] {
		case '\n':
			return token{}, newError(l.file, pos, ErrUnterminated, "unterminated string")
		case '\'':
			text := string(l.src[start:l.off])
			l.advance(1)
			return token{kind: tokString, text: text, pos: pos}, nil
		}
		l.advance(1)
	}
	return token{}, newError(l.file, pos, ErrUnterminated, "unterminated string")
}
