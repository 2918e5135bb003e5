// Package emit implements C5: one code-emitting method per AST node
// variant, each leaving its result in RAX and setting the node's
// result_type (spec.md §4.5). Emitters never execute anything themselves —
// they call through to internal/codegen to append bytes, internal/types to
// resolve variables, and internal/registry/internal/classreg to resolve
// call targets.
package emit

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/gots/internal/ast"
	"github.com/example/gots/internal/classreg"
	"github.com/example/gots/internal/codegen"
	"github.com/example/gots/internal/module"
	"github.com/example/gots/internal/registry"
	"github.com/example/gots/internal/types"
)

// FuncInfo is what the function compilation manager can tell an emitter
// about a function by name, at whatever phase compilation has reached.
// HasID is true as soon as the function is registered; HasOffset and HasAddr
// become true as its body is emitted and linked, and may be true together
// with HasID. FunctionExpression picks the first available in the order
// address, offset, ID (§4.5).
type FuncInfo struct {
	Name       string
	Addr       uintptr
	HasAddr    bool
	Offset     int
	HasOffset  bool
	ID         uint16
	HasID      bool
	ReturnType types.DataType
}

// FuncResolver is implemented by internal/compiler's Manager.
type FuncResolver interface {
	Resolve(name string) (FuncInfo, bool)
}

// ConstPool interns compile-time string constants — string literals, object
// literal keys, regex patterns and flags — into the runtime's string table,
// so emitted code loads the resulting handle as an immediate instead of
// carrying the literal's bytes in a data segment the arena doesn't have.
// Byte-equal literals intern to the same handle (§8's Intern(s) == Intern(s)
// law holds across functions because the pool is process-wide).
type ConstPool interface {
	InternLiteral(s string) int64
}

// Emitter holds everything needed to lower one function body: the code
// generator (shared by every function, so all bodies land in one buffer),
// its own slot allocator, and the shared process-wide registries.
type Emitter struct {
	Gen    *codegen.Generator
	Slots  *types.SlotAllocator
	Reg    *registry.Registry
	Classes *classreg.Registry
	Funcs  FuncResolver
	Mods   *module.Loader
	Consts ConstPool
	Log    zerolog.Logger

	// breakTargets is a stack of labels the nearest enclosing loop or switch
	// has registered for BreakStatement; spec.md §4.5 describes this as a
	// thread-local in the source, but since one Emitter compiles exactly one
	// function body on one goroutine, an ordinary field stack is the direct
	// analogue without inventing cross-goroutine shared mutable state.
	breakTargets []string

	// currentClass is the class whose method/constructor/operator body is
	// being emitted ("" for free functions); SuperCall/SuperMethodCall
	// resolve the parent's symbols through it.
	currentClass string

	// labelNS namespaces this Emitter's labels within the Generator's single
	// flat label map: every function compiled into the shared buffer (§4.6
	// phase 2) gets its own Emitter but the same Generator, so two functions
	// each starting a local label counter at 1 would collide without it.
	labelNS  string
	labelSeq int
}

func New(gen *codegen.Generator, reg *registry.Registry, classes *classreg.Registry, funcs FuncResolver, mods *module.Loader, consts ConstPool, labelNS string, log zerolog.Logger) *Emitter {
	return &Emitter{
		Gen:     gen,
		Slots:   types.NewSlotAllocator(),
		Reg:     reg,
		Classes: classes,
		Funcs:   funcs,
		Mods:    mods,
		Consts:  consts,
		labelNS: labelNS,
		Log:     log.With().Str("component", "emit").Logger(),
	}
}

// SetCurrentClass is called by the compilation manager before emitting a
// method, constructor, or operator body.
func (e *Emitter) SetCurrentClass(className string) { e.currentClass = className }

func (e *Emitter) newLabel(prefix string) string {
	e.labelSeq++
	return fmt.Sprintf("__L_%s_%s_%d__", e.labelNS, prefix, e.labelSeq)
}

func (e *Emitter) pushBreakTarget(label string) { e.breakTargets = append(e.breakTargets, label) }
func (e *Emitter) popBreakTarget()              { e.breakTargets = e.breakTargets[:len(e.breakTargets)-1] }
func (e *Emitter) currentBreakTarget() (string, bool) {
	if len(e.breakTargets) == 0 {
		return "", false
	}
	return e.breakTargets[len(e.breakTargets)-1], true
}

// EmitCallKnown resolves symbol immediately against the registry and emits a
// direct call; used for runtime-ABI calls, which are always registered
// before any GoTS source is compiled (see internal/runtimeabi.RegisterAll).
func (e *Emitter) EmitCallKnown(symbol string) error {
	addr, ok := e.Reg.LookupName(symbol)
	if !ok {
		return fmt.Errorf("emit: unresolved runtime symbol %q", symbol)
	}
	e.Gen.Call(symbol, addr, true)
	return nil
}

// EmitCallSymbol emits a call to a possibly-not-yet-resolved symbol (a user
// function referenced before its own phase-2 emission). The compiler's link
// phase patches it in phase 3 if it was still unresolved here.
func (e *Emitter) EmitCallSymbol(symbol string) {
	if addr, ok := e.Reg.LookupName(symbol); ok {
		e.Gen.Call(symbol, addr, true)
		return
	}
	e.Gen.Call(symbol, 0, false)
}

// Emit dispatches on the dynamic type of n, the single entry point the
// function compilation manager calls for each top-level statement in a
// body.
func (e *Emitter) Emit(n ast.Node) error {
	switch v := n.(type) {
	case *ast.NumberLiteral:
		return e.emitNumberLiteral(v)
	case *ast.StringLiteral:
		return e.emitStringLiteral(v)
	case *ast.BooleanLiteral:
		return e.emitBooleanLiteral(v)
	case *ast.RegexLiteral:
		return e.emitRegexLiteral(v)
	case *ast.Identifier:
		return e.emitIdentifier(v)
	case *ast.BinaryOp:
		return e.emitBinaryOp(v)
	case *ast.LogicalOp:
		return e.emitLogicalOp(v)
	case *ast.Ternary:
		return e.emitTernary(v)
	case *ast.Assignment:
		return e.emitAssignment(v)
	case *ast.IncDec:
		return e.emitIncDec(v)
	case *ast.ArrayLiteral:
		return e.emitArrayLiteral(v)
	case *ast.TypedArrayLiteral:
		return e.emitTypedArrayLiteral(v)
	case *ast.ObjectLiteral:
		return e.emitObjectLiteral(v)
	case *ast.ArrayAccess:
		return e.emitArrayAccess(v)
	case *ast.PropertyAccess:
		return e.emitPropertyAccess(v)
	case *ast.ExpressionPropertyAccess:
		return e.emitExpressionPropertyAccess(v)
	case *ast.MethodCall:
		return e.emitMethodCall(v)
	case *ast.ExpressionMethodCall:
		return e.emitExpressionMethodCall(v)
	case *ast.RuntimeCall:
		return e.emitRuntimeCall(v)
	case *ast.FunctionCall:
		return e.emitFunctionCall(v)
	case *ast.NewExpression:
		return e.emitNewExpression(v)
	case *ast.SuperCall:
		return e.emitSuperCall(v)
	case *ast.SuperMethodCall:
		return e.emitSuperMethodCall(v)
	case *ast.GoExpression:
		return e.emitGoExpression(v)
	case *ast.AwaitExpression:
		return e.emitAwaitExpression(v)
	case *ast.FunctionExpression:
		return e.emitFunctionExpressionRef(v)
	case *ast.IfStatement:
		return e.emitIfStatement(v)
	case *ast.ForLoop:
		return e.emitForLoop(v)
	case *ast.ForEachLoop:
		return e.emitForEachLoop(v)
	case *ast.SwitchStatement:
		return e.emitSwitchStatement(v)
	case *ast.BreakStatement:
		return e.emitBreakStatement(v)
	case *ast.ReturnStatement:
		return e.emitReturnStatement(v)
	case *ast.ExpressionStatement:
		if err := e.Emit(v.Expr); err != nil {
			return err
		}
		v.SetResultType(v.Expr.ResultType())
		return nil
	case *ast.ImportStatement:
		return e.emitImportStatement(v)
	case *ast.ExportStatement:
		return e.emitExportStatement(v)
	default:
		return fmt.Errorf("emit: unhandled AST node %T", n)
	}
}

func (e *Emitter) emitBody(body []ast.Node) error {
	for _, stmt := range body {
		if err := e.Emit(stmt); err != nil {
			return err
		}
	}
	return nil
}
