// codegen_test.go
package kalc

import (
	"errors"
	"strings"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
)

// --- helpers ---------------------------------------------------------------

func mustParseTopLevel(t *testing.T, src string) *Function {
	t.Helper()
	fn, err := newParser(src).ParseTopLevel()
	if err != nil {
		t.Fatalf("parse error: %v\nsource: %q", err, src)
	}
	return fn
}

func mustCompile(t *testing.T, src string) (*Codegen, *ir.Func) {
	t.Helper()
	cg := NewCodegen()
	f, err := cg.Function(mustParseTopLevel(t, src))
	if err != nil {
		t.Fatalf("codegen error: %v\nsource: %q", err, src)
	}
	return cg, f
}

func entryOf(t *testing.T, f *ir.Func) *ir.Block {
	t.Helper()
	if len(f.Blocks) != 1 {
		t.Fatalf("want one entry block, got %d", len(f.Blocks))
	}
	return f.Blocks[0]
}

func retOf(t *testing.T, b *ir.Block) *ir.TermRet {
	t.Helper()
	ret, ok := b.Term.(*ir.TermRet)
	if !ok {
		t.Fatalf("entry block not terminated by ret: %T", b.Term)
	}
	return ret
}

// --- tests -----------------------------------------------------------------

func Test_Codegen_Number_Is_Constant_Return(t *testing.T) {
	_, f := mustCompile(t, "42")
	entry := entryOf(t, f)
	if len(entry.Insts) != 0 {
		t.Fatalf("a bare literal should emit no instructions, got %d", len(entry.Insts))
	}
	c, ok := retOf(t, entry).X.(*constant.Float)
	if !ok {
		t.Fatalf("return is not a float constant: %T", retOf(t, entry).X)
	}
	if !c.Typ.Equal(types.Double) {
		t.Fatalf("constant is not double: %v", c.Typ)
	}
}

func Test_Codegen_Prototype_Shape(t *testing.T) {
	_, f := mustCompile(t, "1")
	if f.Name() != AnonExprName {
		t.Fatalf("want function name %q, got %q", AnonExprName, f.Name())
	}
	if f.Linkage != enum.LinkageExternal {
		t.Fatalf("want external linkage, got %v", f.Linkage)
	}
	if !f.Sig.RetType.Equal(types.Double) || len(f.Params) != 0 {
		t.Fatalf("want double() signature, got %v", f.Sig)
	}
}

func Test_Codegen_Precedence_Chain_Instruction_Shape(t *testing.T) {
	// 2 + 25 * 2 - 8  →  one fmul, then fadd, then fsub, nested in order.
	_, f := mustCompile(t, "2 + 25 * 2 - 8")
	insts := entryOf(t, f).Insts
	if len(insts) != 3 {
		t.Fatalf("want 3 instructions, got %d", len(insts))
	}
	mul, ok := insts[0].(*ir.InstFMul)
	if !ok {
		t.Fatalf("inst 0: want fmul, got %T", insts[0])
	}
	add, ok := insts[1].(*ir.InstFAdd)
	if !ok {
		t.Fatalf("inst 1: want fadd, got %T", insts[1])
	}
	sub, ok := insts[2].(*ir.InstFSub)
	if !ok {
		t.Fatalf("inst 2: want fsub, got %T", insts[2])
	}
	if add.Y != mul {
		t.Fatalf("fadd should take the fmul result on its right")
	}
	if sub.X != add {
		t.Fatalf("fsub should take the fadd result on its left")
	}
	if retOf(t, entryOf(t, f)).X != sub {
		t.Fatalf("function should return the fsub result")
	}
}

func Test_Codegen_Left_Associativity_Shape(t *testing.T) {
	// 8 - 3 - 2  ≡  (8 - 3) - 2
	_, f := mustCompile(t, "8 - 3 - 2")
	insts := entryOf(t, f).Insts
	if len(insts) != 2 {
		t.Fatalf("want 2 instructions, got %d", len(insts))
	}
	first, ok := insts[0].(*ir.InstFSub)
	if !ok {
		t.Fatalf("inst 0: want fsub, got %T", insts[0])
	}
	second, ok := insts[1].(*ir.InstFSub)
	if !ok {
		t.Fatalf("inst 1: want fsub, got %T", insts[1])
	}
	if second.X != first {
		t.Fatalf("second fsub should take the first as its left operand")
	}
}

func Test_Codegen_Grouping_Shape(t *testing.T) {
	// (1 + 2) * 3  →  multiply(add(1,2), 3)
	_, f := mustCompile(t, "(1 + 2) * 3")
	insts := entryOf(t, f).Insts
	if len(insts) != 2 {
		t.Fatalf("want 2 instructions, got %d", len(insts))
	}
	add, ok := insts[0].(*ir.InstFAdd)
	if !ok {
		t.Fatalf("inst 0: want fadd, got %T", insts[0])
	}
	mul, ok := insts[1].(*ir.InstFMul)
	if !ok {
		t.Fatalf("inst 1: want fmul, got %T", insts[1])
	}
	if mul.X != add {
		t.Fatalf("fmul should take the fadd result on its left")
	}
}

func Test_Codegen_Comparisons_Widen_To_Double(t *testing.T) {
	cases := []struct {
		src  string
		pred enum.FPred
	}{
		{"3 < 5", enum.FPredULT},
		{"3 > 5", enum.FPredUGT},
		{"3 = 5", enum.FPredUEQ},
	}
	for _, tc := range cases {
		_, f := mustCompile(t, tc.src)
		entry := entryOf(t, f)
		if len(entry.Insts) != 2 {
			t.Fatalf("source %q: want fcmp + uitofp, got %d insts", tc.src, len(entry.Insts))
		}
		cmp, ok := entry.Insts[0].(*ir.InstFCmp)
		if !ok {
			t.Fatalf("source %q: inst 0: want fcmp, got %T", tc.src, entry.Insts[0])
		}
		if cmp.Pred != tc.pred {
			t.Fatalf("source %q: want predicate %v, got %v", tc.src, tc.pred, cmp.Pred)
		}
		conv, ok := entry.Insts[1].(*ir.InstUIToFP)
		if !ok {
			t.Fatalf("source %q: inst 1: want uitofp, got %T", tc.src, entry.Insts[1])
		}
		if conv.From != cmp {
			t.Fatalf("source %q: uitofp should widen the fcmp result", tc.src)
		}
		if !conv.To.Equal(types.Double) {
			t.Fatalf("source %q: uitofp should widen to double, got %v", tc.src, conv.To)
		}
		if retOf(t, entry).X != conv {
			t.Fatalf("source %q: function should return the widened value", tc.src)
		}
	}
}

func Test_Codegen_Invalid_Operator_Removes_Function(t *testing.T) {
	p := newParser("1 % 2")
	p.SetPrecedence('%', 40) // parses fine, has no codegen mapping
	fn, err := p.ParseTopLevel()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	cg := NewCodegen()
	_, err = cg.Function(fn)
	var cerr *CodegenError
	if !errors.As(err, &cerr) {
		t.Fatalf("want *CodegenError, got %v", err)
	}
	if !strings.Contains(cerr.Msg, "invalid binary operator") {
		t.Fatalf("wrong message: %q", cerr.Msg)
	}
	if len(cg.Module.Funcs) != 0 {
		t.Fatalf("failed function must be erased, module still has %d", len(cg.Module.Funcs))
	}
}

func Test_Codegen_RemoveFunc_Then_Recompile_Same_Name(t *testing.T) {
	cg, f := mustCompile(t, "1")
	cg.RemoveFunc(f)
	if len(cg.Module.Funcs) != 0 {
		t.Fatalf("module should be empty after removal")
	}
	if _, err := cg.Function(mustParseTopLevel(t, "2")); err != nil {
		t.Fatalf("recompiling under the erased name failed: %v", err)
	}
	if len(cg.Module.Funcs) != 1 {
		t.Fatalf("want exactly one function, got %d", len(cg.Module.Funcs))
	}
}

func Test_Codegen_Declaration_Is_Reused(t *testing.T) {
	cg := NewCodegen()
	decl := cg.Prototype(&Prototype{Name: AnonExprName})

	f, err := cg.Function(mustParseTopLevel(t, "1 + 2"))
	if err != nil {
		t.Fatalf("codegen error: %v", err)
	}
	if f != decl {
		t.Fatalf("existing declaration should be reused, got a new function")
	}
	if len(cg.Module.Funcs) != 1 {
		t.Fatalf("want one function in module, got %d", len(cg.Module.Funcs))
	}
}

func Test_Codegen_Redefinition_Fails_And_Keeps_Original(t *testing.T) {
	cg, f := mustCompile(t, "1")

	_, err := cg.Function(mustParseTopLevel(t, "2"))
	var cerr *CodegenError
	if !errors.As(err, &cerr) {
		t.Fatalf("want *CodegenError, got %v", err)
	}
	if !strings.Contains(cerr.Msg, "cannot be redefined") {
		t.Fatalf("wrong message: %q", cerr.Msg)
	}
	if len(cg.Module.Funcs) != 1 || cg.Module.Funcs[0] != f {
		t.Fatalf("the original function must survive a redefinition attempt")
	}
}

func Test_Codegen_Symbol_Table_Never_Spans_Functions(t *testing.T) {
	cg := NewCodegen()
	decl := cg.Prototype(&Prototype{Name: "witharg", Params: []string{"x"}})
	if _, err := cg.Function(&Function{
		Proto: &Prototype{Name: "witharg", Params: []string{"x"}},
		Body:  numberExpr(1),
	}); err != nil {
		t.Fatalf("codegen error: %v", err)
	}
	if cg.vars["x"] != decl.Params[0] {
		t.Fatalf("parameter should be recorded in the symbol table")
	}

	if _, err := cg.Function(mustParseTopLevel(t, "2")); err != nil {
		t.Fatalf("codegen error: %v", err)
	}
	if _, ok := cg.vars["x"]; ok {
		t.Fatalf("symbol table leaked entries across functions")
	}
}

func Test_Codegen_Printed_IR_Mentions_Instructions(t *testing.T) {
	_, f := mustCompile(t, "3 < 5")
	ll := f.LLString()
	for _, want := range []string{"@__anon_expr", "fcmp ult", "uitofp", "ret double"} {
		if !strings.Contains(ll, want) {
			t.Fatalf("printed IR missing %q:\n%s", want, ll)
		}
	}
}
