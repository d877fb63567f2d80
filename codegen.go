// codegen.go — AST-to-IR lowering against llir/llvm.
//
// Everything compiles over a single numeric type: double. Comparisons lower
// to an unordered fcmp producing an i1, immediately widened back to double
// via uitofp, so every expression value stays a double.
//
// The Codegen context owns the long-lived module and the per-function
// insertion state (current block, symbol table). A failure while compiling a
// function body erases the function from the module entirely; no half-built
// definition ever survives.
package kalc

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// CodegenError reports a failure while lowering an AST to IR.
type CodegenError struct {
	Msg string
}

func (e *CodegenError) Error() string { return "CODEGEN ERROR: " + e.Msg }

func codegenErrf(format string, args ...any) *CodegenError {
	return &CodegenError{Msg: fmt.Sprintf(format, args...)}
}

// Codegen holds the IR module plus the per-function insertion state. The
// symbol table holds exactly one function's parameters at a time; it is
// rebuilt at the start of every function compile.
type Codegen struct {
	Module *ir.Module

	block *ir.Block
	vars  map[string]value.Value
}

// NewCodegen creates a code generator with a fresh, empty module.
func NewCodegen() *Codegen {
	return &Codegen{
		Module: ir.NewModule(),
		vars:   map[string]value.Value{},
	}
}

// Expr emits IR for one expression node into the current block and returns
// the handle to its value. On failure no instruction is emitted for the
// failing node and the error propagates unchanged.
func (cg *Codegen) Expr(e *Expr) (value.Value, error) {
	switch e.Kind {
	case ExprNumber:
		return constant.NewFloat(types.Double, e.Val), nil

	case ExprBinary:
		lhs, err := cg.Expr(e.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := cg.Expr(e.RHS)
		if err != nil {
			return nil, err
		}

		switch e.Op {
		case '+':
			return cg.block.NewFAdd(lhs, rhs), nil
		case '-':
			return cg.block.NewFSub(lhs, rhs), nil
		case '*':
			return cg.block.NewFMul(lhs, rhs), nil
		case '/':
			return cg.block.NewFDiv(lhs, rhs), nil
		case '<':
			cmp := cg.block.NewFCmp(enum.FPredULT, lhs, rhs)
			return cg.block.NewUIToFP(cmp, types.Double), nil
		case '>':
			cmp := cg.block.NewFCmp(enum.FPredUGT, lhs, rhs)
			return cg.block.NewUIToFP(cmp, types.Double), nil
		case '=':
			cmp := cg.block.NewFCmp(enum.FPredUEQ, lhs, rhs)
			return cg.block.NewUIToFP(cmp, types.Double), nil
		default:
			return nil, codegenErrf("invalid binary operator %q", e.Op)
		}

	default:
		return nil, codegenErrf("unknown expression kind %d", e.Kind)
	}
}

// Prototype registers name: (double^N) -> double in the module as an
// externally linkable function and names its parameters positionally.
func (cg *Codegen) Prototype(proto *Prototype) *ir.Func {
	params := make([]*ir.Param, len(proto.Params))
	for i, name := range proto.Params {
		params[i] = ir.NewParam(name, types.Double)
	}
	f := cg.Module.NewFunc(proto.Name, types.Double, params...)
	f.Linkage = enum.LinkageExternal
	return f
}

// Function compiles one function definition into the module and returns the
// finished IR function. A body-less declaration of the same name is reused
// (declare-then-define); a same-named function that already has a body is a
// redefinition error and is left untouched.
func (cg *Codegen) Function(fn *Function) (*ir.Func, error) {
	f := cg.lookupFunc(fn.Proto.Name)
	if f == nil {
		f = cg.Prototype(fn.Proto)
	} else if len(f.Blocks) != 0 {
		return nil, codegenErrf("function %q cannot be redefined", fn.Proto.Name)
	}

	cg.block = f.NewBlock("entry")

	cg.vars = make(map[string]value.Value, len(f.Params))
	for _, param := range f.Params {
		cg.vars[param.Name()] = param
	}

	ret, err := cg.Expr(fn.Body)
	if err != nil {
		// Never leave a half-built function behind.
		cg.RemoveFunc(f)
		cg.block = nil
		return nil, err
	}

	cg.block.NewRet(ret)
	cg.block = nil

	if err := verifyFunc(f); err != nil {
		cg.RemoveFunc(f)
		return nil, err
	}
	return f, nil
}

// RemoveFunc erases f from the module. The module stays valid for further
// definitions.
func (cg *Codegen) RemoveFunc(f *ir.Func) {
	funcs := cg.Module.Funcs[:0]
	for _, g := range cg.Module.Funcs {
		if g != f {
			funcs = append(funcs, g)
		}
	}
	cg.Module.Funcs = funcs
}

func (cg *Codegen) lookupFunc(name string) *ir.Func {
	for _, f := range cg.Module.Funcs {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// verifyFunc is a structural consistency check over a finished function:
// every block must be terminated, and every return must carry a value of
// the signature's return type.
func verifyFunc(f *ir.Func) error {
	if len(f.Blocks) == 0 {
		return codegenErrf("function %q has no body", f.Name())
	}
	for _, b := range f.Blocks {
		if b.Term == nil {
			return codegenErrf("function %q: block %q lacks a terminator", f.Name(), b.Name())
		}
		if ret, ok := b.Term.(*ir.TermRet); ok {
			if ret.X == nil || !ret.X.Type().Equal(f.Sig.RetType) {
				return codegenErrf("function %q: return type mismatch", f.Name())
			}
		}
	}
	return nil
}
