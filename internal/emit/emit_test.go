package emit

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/gots/internal/ast"
	"github.com/example/gots/internal/classreg"
	"github.com/example/gots/internal/codegen"
	"github.com/example/gots/internal/module"
	"github.com/example/gots/internal/registry"
	"github.com/example/gots/internal/types"
)

type stubFuncs struct{}

func (stubFuncs) Resolve(string) (FuncInfo, bool) { return FuncInfo{}, false }

type stubConsts struct {
	byValue map[string]int64
	next    int64
}

func newStubConsts() *stubConsts {
	return &stubConsts{byValue: make(map[string]int64), next: 1}
}

func (p *stubConsts) InternLiteral(s string) int64 {
	if h, ok := p.byValue[s]; ok {
		return h
	}
	h := p.next
	p.next++
	p.byValue[s] = h
	return h
}

var testSymbols = []string{
	"__runtime_js_equal", "__runtime_pow", "__runtime_modulo",
	"__string_concat", "__string_concat_cstr", "__string_concat_cstr_left",
	"__string_create_empty", "__console_log_number", "__console_log_space",
	"__console_log_newline", "__object_create", "__object_set_property_name",
	"__object_property_count", "__object_property_name_at",
	"__array_create", "__array_push", "__array_size", "__array_get",
}

func newTestEmitter(t *testing.T) *Emitter {
	t.Helper()
	reg := registry.New()
	for i, sym := range testSymbols {
		reg.RegisterName(sym, uintptr(0x4000+i*16))
	}
	return New(codegen.New(zerolog.Nop()), reg, classreg.New(), stubFuncs{}, module.New(zerolog.Nop()), newStubConsts(), "test", zerolog.Nop())
}

func intLit(v int64, t types.DataType) *ast.NumberLiteral {
	return &ast.NumberLiteral{IntValue: v, IsInt: true, Declared: t}
}

// Two operands of the same known numeric type must lower to direct
// instructions with no runtime call at all.
func TestTypedArithmeticEmitsNoRuntimeCalls(t *testing.T) {
	for _, op := range []string{"+", "-", "*", "/"} {
		t.Run(op, func(t *testing.T) {
			e := newTestEmitter(t)
			n := &ast.BinaryOp{Op: op, Left: intLit(2, types.INT64), Right: intLit(3, types.INT64)}
			if err := e.Emit(n); err != nil {
				t.Fatal(err)
			}
			if got := len(e.Gen.PendingAbsCalls()); got != 0 {
				t.Errorf("%d resolved call sites emitted, want 0", got)
			}
			if got := len(e.Gen.PendingRelocs()); got != 0 {
				t.Errorf("%d unresolved call sites emitted, want 0", got)
			}
			if n.ResultType() != types.INT64 {
				t.Errorf("result type = %v, want int64", n.ResultType())
			}
		})
	}
}

// == with either operand UNKNOWN/ANY must go through __runtime_js_equal.
func TestUnknownEqualityCallsJSEqual(t *testing.T) {
	e := newTestEmitter(t)
	unknown := &ast.Identifier{Name: "neverBound"} // resolves to UNKNOWN (§4.9 opaque import)
	n := &ast.BinaryOp{Op: "==", Left: unknown, Right: intLit(1, types.INT64)}
	if err := e.Emit(n); err != nil {
		t.Fatal(err)
	}
	jsEqualAddr, _ := e.Reg.LookupName("__runtime_js_equal")
	calls := e.Gen.PendingAbsCalls()
	if len(calls) != 1 || calls[0].Target != jsEqualAddr {
		t.Fatalf("call sites = %+v, want exactly one targeting __runtime_js_equal (%#x)", calls, jsEqualAddr)
	}
	if n.ResultType() != types.BOOLEAN {
		t.Errorf("result type = %v, want boolean", n.ResultType())
	}
}

// Same-typed == lowers to compare+sete, never the runtime.
func TestSameTypedEqualityIsDirect(t *testing.T) {
	e := newTestEmitter(t)
	n := &ast.BinaryOp{Op: "==", Left: intLit(1, types.INT64), Right: intLit(2, types.INT64)}
	if err := e.Emit(n); err != nil {
		t.Fatal(err)
	}
	if got := len(e.Gen.PendingAbsCalls()); got != 0 {
		t.Errorf("%d call sites emitted, want 0", got)
	}
}

// Byte-equal string literals must load the same interned handle: the two
// emissions produce identical instruction bytes.
func TestEqualStringLiteralsShareOneHandle(t *testing.T) {
	e := newTestEmitter(t)
	first := &ast.StringLiteral{Value: "hello"}
	if err := e.Emit(first); err != nil {
		t.Fatal(err)
	}
	firstBytes := append([]byte(nil), e.Gen.Bytes()...)
	second := &ast.StringLiteral{Value: "hello"}
	if err := e.Emit(second); err != nil {
		t.Fatal(err)
	}
	secondBytes := e.Gen.Bytes()[len(firstBytes):]
	if !bytes.Equal(firstBytes, secondBytes) {
		t.Error("equal literals emitted different handle loads")
	}
}

// An empty string literal must use __string_create_empty, not the intern
// pool.
func TestEmptyStringLiteralUsesCreateEmpty(t *testing.T) {
	e := newTestEmitter(t)
	n := &ast.StringLiteral{Value: ""}
	if err := e.Emit(n); err != nil {
		t.Fatal(err)
	}
	createEmptyAddr, _ := e.Reg.LookupName("__string_create_empty")
	calls := e.Gen.PendingAbsCalls()
	if len(calls) != 1 || calls[0].Target != createEmptyAddr {
		t.Fatalf("call sites = %+v, want exactly one targeting __string_create_empty", calls)
	}
}

// String + number dispatches to the mixed concat variant (§8 scenario 2).
func TestStringConcatDispatch(t *testing.T) {
	e := newTestEmitter(t)
	n := &ast.BinaryOp{
		Op:    "+",
		Left:  &ast.StringLiteral{Value: "hello"},
		Right: intLit(1, types.INT64),
	}
	if err := e.Emit(n); err != nil {
		t.Fatal(err)
	}
	concatAddr, _ := e.Reg.LookupName("__string_concat_cstr")
	calls := e.Gen.PendingAbsCalls()
	if len(calls) != 1 || calls[0].Target != concatAddr {
		t.Fatalf("call sites = %+v, want one targeting __string_concat_cstr", calls)
	}
	if n.ResultType() != types.STRING {
		t.Errorf("result type = %v, want string", n.ResultType())
	}
}

// callTargets resolves the emitted resolved-call sites back to symbol
// addresses for membership checks.
func callTargets(e *Emitter) map[uintptr]bool {
	out := make(map[uintptr]bool)
	for _, c := range e.Gen.PendingAbsCalls() {
		out[c.Target] = true
	}
	return out
}

// ForEach over an object literal must iterate the object handle table's
// properties (count + name-at-index), never the array accessors — object
// and array handles are disjoint (§8 scenario 5).
func TestForEachOverObjectIteratesProperties(t *testing.T) {
	e := newTestEmitter(t)
	loop := &ast.ForEachLoop{
		VarName: "k",
		Iterable: &ast.ObjectLiteral{
			Keys:   []string{"k1", "k2", "k3"},
			Values: []ast.Node{intLit(1, types.INT64), intLit(2, types.INT64), intLit(3, types.INT64)},
		},
	}
	if err := e.Emit(loop); err != nil {
		t.Fatal(err)
	}
	targets := callTargets(e)
	for _, sym := range []string{"__object_property_count", "__object_property_name_at"} {
		addr, _ := e.Reg.LookupName(sym)
		if !targets[addr] {
			t.Errorf("object iteration should call %s", sym)
		}
	}
	for _, sym := range []string{"__array_size", "__array_get"} {
		addr, _ := e.Reg.LookupName(sym)
		if targets[addr] {
			t.Errorf("object iteration must not call %s (array handles are a different table)", sym)
		}
	}
	slot, ok := e.Slots.Lookup("k")
	if !ok || slot.Type != types.STRING {
		t.Errorf("loop variable = %+v, want a STRING-typed property name", slot)
	}
}

// The same loop over an array literal takes the index-based path.
func TestForEachOverArrayIteratesByIndex(t *testing.T) {
	e := newTestEmitter(t)
	loop := &ast.ForEachLoop{
		VarName: "v",
		Iterable: &ast.ArrayLiteral{
			Elements: []ast.Node{intLit(10, types.INT64), intLit(20, types.INT64)},
		},
	}
	if err := e.Emit(loop); err != nil {
		t.Fatal(err)
	}
	targets := callTargets(e)
	for _, sym := range []string{"__array_size", "__array_get"} {
		addr, _ := e.Reg.LookupName(sym)
		if !targets[addr] {
			t.Errorf("array iteration should call %s", sym)
		}
	}
	addr, _ := e.Reg.LookupName("__object_property_count")
	if targets[addr] {
		t.Error("array iteration must not call __object_property_count")
	}
}

func TestBreakOutsideLoopFails(t *testing.T) {
	e := newTestEmitter(t)
	if err := e.Emit(&ast.BreakStatement{}); err == nil {
		t.Error("break outside any loop or switch should fail emission")
	}
}

// Assignment allocates a stable slot: re-assigning the same name reuses the
// offset (§8's Allocate(name, t) law, observed through the emitter).
func TestAssignmentReusesSlot(t *testing.T) {
	e := newTestEmitter(t)
	first := &ast.Assignment{
		Target:   &ast.Identifier{Name: "x"},
		Value:    intLit(1, types.INT64),
		Declared: types.INT64,
	}
	if err := e.Emit(first); err != nil {
		t.Fatal(err)
	}
	slot1, ok := e.Slots.Lookup("x")
	if !ok {
		t.Fatal("x not allocated")
	}
	second := &ast.Assignment{
		Target: &ast.Identifier{Name: "x"},
		Value:  intLit(2, types.INT64),
	}
	if err := e.Emit(second); err != nil {
		t.Fatal(err)
	}
	slot2, _ := e.Slots.Lookup("x")
	if slot1.Offset != slot2.Offset {
		t.Errorf("offsets differ across assignments: %d vs %d", slot1.Offset, slot2.Offset)
	}
}

// console.log(a, b) interleaves a space and ends with a newline (§8
// scenarios 1 and 2 depend on this exact call sequence).
func TestConsoleLogCallSequence(t *testing.T) {
	e := newTestEmitter(t)
	n := &ast.MethodCall{
		Object: &ast.Identifier{Name: "console"},
		Method: "log",
		Args:   []ast.Node{intLit(1, types.INT64), intLit(2, types.INT64)},
	}
	if err := e.Emit(n); err != nil {
		t.Fatal(err)
	}
	want := []string{"__console_log_number", "__console_log_space", "__console_log_number", "__console_log_newline"}
	calls := e.Gen.PendingAbsCalls()
	if len(calls) != len(want) {
		t.Fatalf("%d call sites, want %d", len(calls), len(want))
	}
	for i, sym := range want {
		addr, _ := e.Reg.LookupName(sym)
		if calls[i].Target != addr {
			t.Errorf("call %d targets %#x, want %s (%#x)", i, calls[i].Target, sym, addr)
		}
	}
}
