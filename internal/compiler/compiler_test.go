package compiler

import (
	"runtime"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/gots/internal/arena"
	"github.com/example/gots/internal/ast"
	"github.com/example/gots/internal/classreg"
	"github.com/example/gots/internal/module"
	"github.com/example/gots/internal/native"
	"github.com/example/gots/internal/registry"
	"github.com/example/gots/internal/types"
)

// newTestManager wires a Manager exactly the way cmd/gotsc does, with every
// runtime-ABI symbol a test program might call pre-registered at a fake
// address so EmitCallKnown's lookup succeeds without needing the full
// runtimeabi package.
func newTestManager(t *testing.T) *Manager {
	t.Helper()
	reg := registry.New()
	for i, sym := range []string{
		"__console_log_string", "__console_log_number", "__console_log_array",
		"__console_log_object", "__console_log_auto", "__console_log_newline",
		"__console_log_space", "__string_concat_cstr", "__lookup_function_fast",
		"__string_intern", "__string_create_empty",
	} {
		reg.RegisterName(sym, uintptr(0x9000+i*16))
	}
	classes := classreg.New()
	mods := module.New(zerolog.Nop())
	ar := arena.New(zerolog.Nop())
	return NewManager(zerolog.Nop(), reg, classes, mods, ar, newFakeConstPool())
}

// fakeConstPool stands in for the runtime ABI's string intern pool: same
// byte-exact dedup contract, no runtimeabi dependency.
type fakeConstPool struct {
	byValue map[string]int64
	next    int64
}

func newFakeConstPool() *fakeConstPool {
	return &fakeConstPool{byValue: make(map[string]int64), next: 1}
}

func (p *fakeConstPool) InternLiteral(s string) int64 {
	if h, ok := p.byValue[s]; ok {
		return h
	}
	h := p.next
	p.next++
	p.byValue[s] = h
	return h
}

func consoleLogCall(arg ast.Node) *ast.ExpressionStatement {
	return &ast.ExpressionStatement{
		Expr: &ast.MethodCall{
			Object: &ast.Identifier{Name: "console"},
			Method: "log",
			Args:   []ast.Node{arg},
		},
	}
}

func TestCompileSimpleProgramProducesEntryPoint(t *testing.T) {
	mgr := newTestManager(t)
	program := &ast.Program{
		Body: []ast.Node{
			consoleLogCall(&ast.StringLiteral{Value: "hello"}),
		},
	}

	result, err := mgr.Compile(program)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if result.FunctionCount == 0 {
		t.Error("expected at least the synthesized __main__ entry point")
	}
	if result.BytesEmitted == 0 {
		t.Error("expected non-zero bytes emitted")
	}
	if result.EntryPointAddr == 0 {
		t.Error("expected a resolved entry point address")
	}
	if result.CorrelationID == "" {
		t.Error("expected a non-empty correlation ID")
	}
}

// Exercises §4.6's three-phase protocol across a forward reference: f calls
// g, but g is declared textually after f. Discovery must register g's
// FuncEntry before f's body is emitted so the call resolves without a
// two-pass emitter.
func TestCompileForwardFunctionReference(t *testing.T) {
	mgr := newTestManager(t)
	program := &ast.Program{
		Body: []ast.Node{
			&ast.FunctionDecl{
				Name:       "f",
				ReturnType: types.INT64,
				Body: []ast.Node{
					&ast.ReturnStatement{
						Value: &ast.FunctionCall{
							Callee: &ast.Identifier{Name: "g"},
							Args:   []ast.Node{&ast.NumberLiteral{IntValue: 10, IsInt: true, Declared: types.INT64}},
						},
					},
				},
			},
			&ast.FunctionDecl{
				Name:       "g",
				Params:     []ast.Parameter{{Name: "n", Type: types.INT64}},
				ReturnType: types.INT64,
				Body: []ast.Node{
					&ast.ReturnStatement{Value: &ast.Identifier{Name: "n"}},
				},
			},
		},
	}

	result, err := mgr.Compile(program)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	// __main__ + f + g
	if result.FunctionCount != 3 {
		t.Errorf("FunctionCount = %d, want 3 (__main__, f, g)", result.FunctionCount)
	}
	fe, ok := mgr.funcs["f"]
	if !ok || !fe.HasAddr || fe.Addr == 0 {
		t.Error("f should have a finalized address after Compile")
	}
	ge, ok := mgr.funcs["g"]
	if !ok || !ge.HasAddr || ge.Addr == 0 {
		t.Error("g should have a finalized address after Compile")
	}
}

func TestCompileAssignsDenseAnonymousNames(t *testing.T) {
	mgr := newTestManager(t)
	// A bare FunctionExpression used as a value (e.g. what an `x := func(){}`
	// assignment's RHS looks like) is discovered and named by phase 1 even
	// though nothing ever calls it here.
	program := &ast.Program{
		Body: []ast.Node{
			&ast.ExpressionStatement{
				Expr: &ast.FunctionExpression{
					ReturnType: types.INT64,
					Body:       []ast.Node{&ast.ReturnStatement{Value: &ast.NumberLiteral{IntValue: 1, IsInt: true}}},
				},
			},
		},
	}
	if _, err := mgr.Compile(program); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if _, ok := mgr.funcs["__anon_1__"]; !ok {
		t.Error("expected the anonymous function expression to be named __anon_1__")
	}
}

// A subclass constructor's super(...) must resolve to the parent's own
// constructor symbol at emit time and link like any other forward
// reference.
func TestCompileClassHierarchyResolvesSuperStatically(t *testing.T) {
	mgr := newTestManager(t)
	program := &ast.Program{
		Body: []ast.Node{
			&ast.ClassDecl{
				Name:        "Animal",
				Fields:      []ast.Field{{Name: "name", Type: types.STRING}},
				Constructor: &ast.ConstructorDecl{ClassName: "Animal"},
				Methods: []*ast.MethodDecl{{
					ClassName:  "Animal",
					Name:       "speak",
					ReturnType: types.INT64,
					Body: []ast.Node{
						&ast.ReturnStatement{Value: &ast.NumberLiteral{IntValue: 1, IsInt: true, Declared: types.INT64}},
					},
				}},
			},
			&ast.ClassDecl{
				Name:       "Dog",
				ParentName: "Animal",
				Fields:     []ast.Field{{Name: "name", Type: types.STRING}},
				Constructor: &ast.ConstructorDecl{
					ClassName: "Dog",
					Body:      []ast.Node{&ast.ExpressionStatement{Expr: &ast.SuperCall{}}},
				},
			},
		},
	}
	if _, err := mgr.Compile(program); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	for _, symbol := range []string{"__constructor_Animal__", "__constructor_Dog__", "__method_Animal_speak__"} {
		fe, ok := mgr.funcs[symbol]
		if !ok || !fe.HasAddr {
			t.Errorf("%s should be compiled with a finalized address", symbol)
		}
	}
}

// End-to-end scenario 1: `let x: int64 = 2; let y: int64 = x * 3 + 1;`
// compiles to direct instructions with no runtime calls, and the finalized
// entry point actually executes and returns 7.
func TestCompileTypedArithmeticExecutes(t *testing.T) {
	if runtime.GOARCH != "amd64" {
		t.Skipf("JIT execution requires amd64, running on %s", runtime.GOARCH)
	}
	mgr := newTestManager(t)
	intLit := func(v int64) *ast.NumberLiteral {
		return &ast.NumberLiteral{IntValue: v, IsInt: true, Declared: types.INT64}
	}
	program := &ast.Program{
		Body: []ast.Node{
			&ast.Assignment{Target: &ast.Identifier{Name: "x"}, Value: intLit(2), Declared: types.INT64},
			&ast.Assignment{
				Target: &ast.Identifier{Name: "y"},
				Value: &ast.BinaryOp{
					Op:    "+",
					Left:  &ast.BinaryOp{Op: "*", Left: &ast.Identifier{Name: "x"}, Right: intLit(3)},
					Right: intLit(1),
				},
				Declared: types.INT64,
			},
			&ast.ReturnStatement{Value: &ast.Identifier{Name: "y"}},
		},
	}
	result, err := mgr.Compile(program)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(result.HostSymbols) != 0 {
		t.Fatalf("pure arithmetic should reference no Go-hosted symbols, got %v", result.HostSymbols)
	}
	got, err := native.Caller{}.Call(result.EntryPointAddr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Errorf("entry point returned %d, want 7", got)
	}
}

// A program that calls a Go-hosted runtime symbol must surface it in
// HostSymbols so the embedder refuses execution instead of corrupting a
// frame at run time.
func TestCompileReportsHostSymbolCalls(t *testing.T) {
	reg := registry.New()
	reg.RegisterHostName("__console_log_number", 0x9100)
	reg.RegisterHostName("__console_log_newline", 0x9110)
	mgr := NewManager(zerolog.Nop(), reg, classreg.New(), module.New(zerolog.Nop()), arena.New(zerolog.Nop()), newFakeConstPool())

	program := &ast.Program{
		Body: []ast.Node{
			consoleLogCall(&ast.NumberLiteral{IntValue: 7, IsInt: true, Declared: types.INT64}),
		},
	}
	result, err := mgr.Compile(program)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want := map[string]bool{"__console_log_number": true, "__console_log_newline": true}
	if len(result.HostSymbols) != len(want) {
		t.Fatalf("HostSymbols = %v, want both console symbols", result.HostSymbols)
	}
	for _, s := range result.HostSymbols {
		if !want[s] {
			t.Errorf("unexpected host symbol %q", s)
		}
	}
}

func TestCompileUnresolvedSymbolFails(t *testing.T) {
	mgr := newTestManager(t)
	program := &ast.Program{
		Body: []ast.Node{
			&ast.FunctionDecl{
				Name:       "f",
				ReturnType: types.VOID,
				Body: []ast.Node{
					&ast.ExpressionStatement{
						Expr: &ast.FunctionCall{
							Callee: &ast.Identifier{Name: "neverDeclared"},
						},
					},
				},
			},
		},
	}
	if _, err := mgr.Compile(program); err == nil {
		t.Error("calling an undeclared function should fail at patch time")
	}
}
