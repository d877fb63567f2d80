// parser.go — AST and precedence-climbing parser for kalc.
//
// OVERVIEW
// --------
// The parser consumes the token stream produced by the lexer (see lexer.go)
// through one token of lookahead and builds one expression tree per
// top-level unit.
//
// Grammar (expression-only; no statements):
//
//	primary    := NUMBER | '(' expression ')'
//	expression := primary binoprhs
//
// Binary operators are resolved by precedence climbing against a mutable
// table of binding strengths: operators of equal precedence associate
// left-to-right, and an operator is absorbed into the right-hand side first
// only when the next operator binds strictly tighter.
//
// The AST is a closed tagged struct rather than an interface hierarchy:
//
//	("num", value)          Expr{Kind: ExprNumber, Val: v}
//	("binop", op, lhs, rhs) Expr{Kind: ExprBinary, Op: op, LHS: l, RHS: r}
//
// A node exclusively owns its children; the grammar is strictly tree-shaped.
//
// Every successfully parsed top-level expression is wrapped as a
// zero-parameter Function under the fixed reserved name AnonExprName, which
// gives the code generator (codegen.go) a uniform compilation target.
package kalc

import "fmt"

// AnonExprName is the reserved function name every top-level expression
// compiles under. The driver erases the function after printing it, so the
// name never collides with itself.
const AnonExprName = "__anon_expr"

// ───────────────────────────────── AST ─────────────────────────────────────

// ExprKind tags the closed set of expression node shapes.
type ExprKind int

const (
	ExprNumber ExprKind = iota
	ExprBinary
)

// Expr is one expression node.
type Expr struct {
	Kind ExprKind
	Val  float64 // ExprNumber
	Op   rune    // ExprBinary
	LHS  *Expr   // ExprBinary
	RHS  *Expr   // ExprBinary
}

func numberExpr(v float64) *Expr { return &Expr{Kind: ExprNumber, Val: v} }

func binaryExpr(op rune, lhs, rhs *Expr) *Expr {
	return &Expr{Kind: ExprBinary, Op: op, LHS: lhs, RHS: rhs}
}

// Prototype captures a function's name and ordered parameter names. Under
// this grammar only anonymous zero-parameter wrappers are produced, but the
// code generator supports the general shape.
type Prototype struct {
	Name   string
	Params []string
}

// Function pairs a prototype with its single owned body expression. It is
// compiled exactly once into one IR function.
type Function struct {
	Proto *Prototype
	Body  *Expr
}

// ─────────────────────────── precedence table ──────────────────────────────

// PrecedenceTable maps operator runes to binding strength. A missing entry
// or a non-positive strength means "not a binary operator".
type PrecedenceTable map[rune]int

// DefaultPrecedence returns the standard operator table.
func DefaultPrecedence() PrecedenceTable {
	return PrecedenceTable{
		'<': 10, '>': 10, '=': 10,
		'+': 20, '-': 20,
		'*': 40, '/': 40,
	}
}

// ──────────────────────────────── parser ───────────────────────────────────

// ParseError reports a syntax error with its source position.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("PARSE ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// Parser reads tokens through one token of lookahead.
type Parser struct {
	lex  *Lexer
	cur  Token
	prec PrecedenceTable
}

// NewParser creates a parser over lex and primes the lookahead, which reads
// from the underlying source immediately.
func NewParser(lex *Lexer) *Parser {
	p := &Parser{lex: lex, prec: DefaultPrecedence()}
	p.Advance()
	return p
}

// Cur returns the current lookahead token.
func (p *Parser) Cur() Token { return p.cur }

// Advance consumes the current token.
func (p *Parser) Advance() { p.cur = p.lex.Next() }

// SetPrecedence installs or overrides the binding strength of op. A
// non-positive strength disables op as a binary operator.
func (p *Parser) SetPrecedence(op rune, prec int) { p.prec[op] = prec }

// curPrecedence returns the binding strength of the current token, or -1 if
// it is not a declared binary operator (non-CHAR, non-ASCII, unset, or set
// non-positive).
func (p *Parser) curPrecedence() int {
	if p.cur.Type != CHAR || p.cur.Ch > 127 {
		return -1
	}
	prec, ok := p.prec[p.cur.Ch]
	if !ok || prec <= 0 {
		return -1
	}
	return prec
}

func (p *Parser) errf(format string, args ...any) *ParseError {
	return &ParseError{Line: p.cur.Line, Col: p.cur.Col, Msg: fmt.Sprintf(format, args...)}
}

// parsePrimary ::= NUMBER | '(' expression ')'
func (p *Parser) parsePrimary() (*Expr, error) {
	switch {
	case p.cur.Type == NUMBER:
		e := numberExpr(p.cur.Num)
		p.Advance()
		return e, nil
	case p.cur.Type == CHAR && p.cur.Ch == '(':
		return p.parseParenExpr()
	case p.cur.Type == ERROR:
		return nil, p.cur.lexErr()
	default:
		return nil, p.errf("unexpected token when expecting an expression")
	}
}

// parseParenExpr ::= '(' expression ')'
func (p *Parser) parseParenExpr() (*Expr, error) {
	p.Advance() // consume '('
	e, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if p.cur.Type != CHAR || p.cur.Ch != ')' {
		return nil, p.errf("expected ')'")
	}
	p.Advance() // consume ')'
	return e, nil
}

// parseBinOpRHS ::= (op primary)*
//
// Standard precedence climbing: anything binding below minPrec ends the
// sequence and lhs is returned as-is.
func (p *Parser) parseBinOpRHS(minPrec int, lhs *Expr) (*Expr, error) {
	for {
		prec := p.curPrecedence()
		if prec < minPrec {
			return lhs, nil
		}

		op := p.cur.Ch
		p.Advance() // consume the operator

		rhs, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}

		// A strictly tighter-binding operator on the right takes rhs as its
		// own lhs before we fold.
		if prec < p.curPrecedence() {
			rhs, err = p.parseBinOpRHS(prec+1, rhs)
			if err != nil {
				return nil, err
			}
		}

		lhs = binaryExpr(op, lhs, rhs)
	}
}

// ParseExpression parses one full expression.
func (p *Parser) ParseExpression() (*Expr, error) {
	lhs, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parseBinOpRHS(0, lhs)
}

// ParseTopLevel parses one expression and wraps it as an anonymous
// zero-parameter function definition.
func (p *Parser) ParseTopLevel() (*Function, error) {
	body, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	return &Function{
		Proto: &Prototype{Name: AnonExprName},
		Body:  body,
	}, nil
}
