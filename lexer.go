// lexer.go — streaming scanner for the kalc expression grammar.
//
// The lexer owns a single forward-only rune cursor over the input stream
// (one rune of lookahead, never rewound) and produces tokens lazily, one per
// Next call. The grammar has no identifiers, so a letter run is itself a
// lexical error; any rune that is not whitespace, a number or a letter is
// returned verbatim as a CHAR token, which lets the parser recognize
// operators and punctuation without a fixed operator alphabet here.
package kalc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TokenType represents the kind of token.
type TokenType int

const (
	EOF TokenType = iota
	ERROR
	NUMBER
	CHAR
)

// Token is a lexical token. NUMBER carries Num, CHAR carries Ch, ERROR
// carries Msg. Line is 1-based, Col is 0-based.
type Token struct {
	Type TokenType
	Num  float64
	Ch   rune
	Msg  string
	Line int
	Col  int
}

// Lexer scans an input stream into tokens.
type Lexer struct {
	r   *bufio.Reader
	ch  rune // lookahead rune; a synthetic blank before the first read
	eof bool

	line int
	col  int
}

// NewLexer creates a lexer over r. The cursor starts on a synthetic blank so
// the first Next call pulls the first real rune.
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{
		r:    bufio.NewReader(r),
		ch:   ' ',
		line: 1,
		col:  -1,
	}
}

// read advances the cursor by one rune. At end of input it latches eof; the
// cursor is never rewound, so eof is permanent.
func (l *Lexer) read() {
	if l.eof {
		return
	}
	ch, _, err := l.r.ReadRune()
	if err != nil {
		l.eof = true
		l.ch = 0
		return
	}
	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	l.ch = ch
}

// Next returns the next token. After the stream is exhausted it keeps
// returning EOF.
func (l *Lexer) Next() Token {
	for !l.eof && isSpace(l.ch) {
		l.read()
	}
	if l.eof {
		return Token{Type: EOF, Line: l.line, Col: l.col}
	}

	line, col := l.line, l.col

	// Identifiers are not part of the grammar; consume the whole run so the
	// tail does not cascade into further errors.
	if isAlpha(l.ch) {
		var run strings.Builder
		for !l.eof && isAlphaNum(l.ch) {
			run.WriteRune(l.ch)
			l.read()
		}
		return Token{
			Type: ERROR,
			Msg:  fmt.Sprintf("only numeric literals and operators are permitted (got %q)", run.String()),
			Line: line,
			Col:  col,
		}
	}

	// Number run: [0-9.]+ scanned leniently; whether the run is a valid
	// literal is decided by the float parser, not the scanner.
	if isDigit(l.ch) || l.ch == '.' {
		var run strings.Builder
		for !l.eof && (isDigit(l.ch) || l.ch == '.') {
			run.WriteRune(l.ch)
			l.read()
		}
		num, err := strconv.ParseFloat(run.String(), 64)
		if err != nil {
			return Token{
				Type: ERROR,
				Msg:  fmt.Sprintf("invalid numeric literal %q", run.String()),
				Line: line,
				Col:  col,
			}
		}
		return Token{Type: NUMBER, Num: num, Line: line, Col: col}
	}

	ch := l.ch
	l.read()
	return Token{Type: CHAR, Ch: ch, Line: line, Col: col}
}

// helpers

func isSpace(r rune) bool    { return r == ' ' || r == '\t' || r == '\r' || r == '\n' }
func isDigit(r rune) bool    { return r >= '0' && r <= '9' }
func isAlpha(r rune) bool    { return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }
func isAlphaNum(r rune) bool { return isAlpha(r) || isDigit(r) }

// ----- errors -----

// LexError reports a lexical error with its source position.
type LexError struct {
	Line int
	Col  int
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("LEXICAL ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// lexErr converts an ERROR token into the error it carries.
func (t Token) lexErr() *LexError {
	return &LexError{Line: t.Line, Col: t.Col, Msg: t.Msg}
}
