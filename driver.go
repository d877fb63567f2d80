// driver.go — the read → parse → compile → print loop.
//
// One top-level unit is fully lexed, parsed and code-generated before the
// next character is read. Every error is non-fatal: the current unit is
// abandoned, exactly one further token is discarded for resynchronization,
// and the loop continues with the next unit.

// Package kalc compiles arithmetic expressions to LLVM IR, one interactive
// top-level unit at a time.
package kalc

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/llir/llvm/ir"
)

// Version is the release version reported by the kalc command.
const Version = "0.1.0"

// EnableColor turns on ANSI coloring of session output. REPL-only; tests
// and stream mode leave it off.
var EnableColor = false

var (
	errorColor = color.New(color.FgRed)
	irColor    = color.New(color.FgGreen)
)

// Session drives one compilation session. It owns the parser, the code
// generator and the two output channels: diag receives per-expression IR
// and diagnostics, out receives the final module dump. Everything is
// single-threaded; the session is the sole owner of the module from
// creation of a function until its explicit erasure.
type Session struct {
	parser *Parser
	cg     *Codegen
	diag   io.Writer
	out    io.Writer
}

// NewSession creates a session reading from src. Constructing the session
// primes the parser's lookahead, which reads from src immediately.
func NewSession(src io.Reader, diag, out io.Writer) *Session {
	return &Session{
		parser: NewParser(NewLexer(src)),
		cg:     NewCodegen(),
		diag:   diag,
		out:    out,
	}
}

// Run processes top-level units until end of input, then dumps the whole
// remaining module to the output writer. Lexical, syntax and codegen errors
// are reported and recovered from; none of them stops the session.
func (s *Session) Run() {
	for {
		tok := s.parser.Cur()
		switch {
		case tok.Type == EOF:
			fmt.Fprint(s.out, s.cg.Module.String())
			return
		case tok.Type == ERROR:
			s.report(tok.lexErr())
			s.parser.Advance()
		case tok.Type == CHAR && tok.Ch == ';':
			s.parser.Advance() // ignore top-level separators
		default:
			s.handleTopLevelExpression()
		}
	}
}

// handleTopLevelExpression compiles one expression into the module, prints
// the generated function and erases it again, so anonymous expressions
// never accumulate in the module.
func (s *Session) handleTopLevelExpression() {
	fn, err := s.parser.ParseTopLevel()
	if err == nil {
		var f *ir.Func
		f, err = s.cg.Function(fn)
		if err == nil {
			s.printIR(f.LLString())
			s.cg.RemoveFunc(f)
			return
		}
	}

	s.report(err)
	s.parser.Advance() // discard one token to resynchronize
}

func (s *Session) printIR(ll string) {
	fmt.Fprintln(s.diag, "Generated IR:")
	if EnableColor {
		irColor.Fprintln(s.diag, ll)
		return
	}
	fmt.Fprintln(s.diag, ll)
}

func (s *Session) report(err error) {
	if EnableColor {
		errorColor.Fprintln(s.diag, err.Error())
		return
	}
	fmt.Fprintln(s.diag, err.Error())
}
