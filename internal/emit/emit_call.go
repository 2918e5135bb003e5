package emit

import (
	"fmt"

	"github.com/example/gots/internal/ast"
	"github.com/example/gots/internal/codegen"
	"github.com/example/gots/internal/types"
)

// consoleLogSym picks the per-argument-type console.log symbol (§4.5
// MethodCall): console.log is the one built-in whose dispatch is by
// *argument* type rather than receiver type, since it type-switches each
// argument independently and interleaves spacing.
func consoleLogSym(t types.DataType) string {
	switch t {
	case types.STRING:
		return "__console_log_string"
	case types.ARRAY, types.TENSOR:
		return "__console_log_array"
	case types.CLASS_INSTANCE, types.RUNTIME_OBJECT:
		return "__console_log_object"
	case types.UNKNOWN, types.ANY:
		return "__console_log_auto"
	default:
		return "__console_log_number"
	}
}

// emitArgs lowers a call's arguments with the same spill discipline
// BinaryOp uses for its operands: evaluate left to right, park every result
// on the stack (a later argument may itself call into the runtime and
// clobber every caller-saved register), then pop them into the SysV
// registers right-to-left. firstReg reserves leading argument registers the
// caller fills afterward (a receiver in RDI, a method-name handle in RSI).
func (e *Emitter) emitArgs(args []ast.Node, firstReg int) error {
	if firstReg+len(args) > len(codegen.ArgRegs) {
		return fmt.Errorf("emit: calls with more than %d register arguments are not supported", len(codegen.ArgRegs))
	}
	for _, a := range args {
		if err := e.Emit(a); err != nil {
			return err
		}
		e.Gen.Push(codegen.RAX)
	}
	for i := len(args) - 1; i >= 0; i-- {
		e.Gen.Pop(codegen.ArgRegs[firstReg+i])
	}
	return nil
}

// emitMethodCall implements §4.5's built-in dispatch table plus the
// runtime-object fusion optimization and class-instance method dispatch.
func (e *Emitter) emitMethodCall(n *ast.MethodCall) error {
	if ident, ok := n.Object.(*ast.Identifier); ok && ident.Name == runtimeSentinel {
		return fmt.Errorf("emit: bare runtime.%s must be parsed as a RuntimeCall node", n.Method)
	}
	if pa, ok := n.Object.(*ast.PropertyAccess); ok {
		if ident, ok := pa.Object.(*ast.Identifier); ok && ident.Name == runtimeSentinel {
			// Runtime-object fusion: the parser should emit a RuntimeCall
			// directly (design-notes §9); this branch only covers ASTs built
			// by hand or by an older parser revision that still nests it as
			// PropertyAccess+MethodCall.
			return e.emitRuntimeCall(&ast.RuntimeCall{Namespace: pa.Property, Method: n.Method, Args: n.Args})
		}
	}

	switch {
	case isReceiver(n.Object, "console") && n.Method == "log":
		return e.emitConsoleLog(n)
	case isReceiver(n.Object, "console") && (n.Method == "time" || n.Method == "timeEnd"):
		if err := e.emitStringArg0(n); err != nil {
			return err
		}
		n.SetResultType(types.VOID)
		return e.EmitCallKnown("__console_" + n.Method)
	case isReceiver(n.Object, "Promise") && n.Method == "all":
		if err := e.Emit(n.Args[0]); err != nil {
			return err
		}
		e.Gen.MovRegReg(codegen.RDI, codegen.RAX)
		n.SetResultType(types.PROMISE)
		return e.EmitCallKnown("__promise_all")
	case isReceiver(n.Object, "") && n.Method == "setTimeout":
		return e.emitTimerCall(n, "__gots_set_timeout")
	case isReceiver(n.Object, "") && n.Method == "setInterval":
		return e.emitTimerCall(n, "__gots_set_interval")
	case isReceiver(n.Object, "") && n.Method == "clearTimeout":
		return e.emitTimerCall(n, "__gots_clear_timeout")
	case isReceiver(n.Object, "") && n.Method == "clearInterval":
		return e.emitTimerCall(n, "__gots_clear_interval")
	}

	if err := e.Emit(n.Object); err != nil {
		return err
	}
	objType := n.Object.ResultType()
	switch objType {
	case types.ARRAY, types.TENSOR:
		return e.emitSimpleArrayMethod(n)
	case types.REGEX:
		return e.emitRegexMethod(n)
	case types.CLASS_INSTANCE:
		return e.emitClassMethodCall(n)
	default:
		n.SetResultType(types.ANY)
		return nil
	}
}

// isReceiver reports whether obj is a bare Identifier named want (or, for
// want=="", any bare identifier — used for the free functions setTimeout et
// al., which the parser represents as a MethodCall on the implicit global
// object).
func isReceiver(obj ast.Node, want string) bool {
	ident, ok := obj.(*ast.Identifier)
	if !ok {
		return false
	}
	if want == "" {
		return true
	}
	return ident.Name == want
}

func (e *Emitter) emitConsoleLog(n *ast.MethodCall) error {
	for i, arg := range n.Args {
		if i > 0 {
			if err := e.EmitCallKnown("__console_log_space"); err != nil {
				return err
			}
		}
		if err := e.Emit(arg); err != nil {
			return err
		}
		e.Gen.MovRegReg(codegen.RDI, codegen.RAX)
		if err := e.EmitCallKnown(consoleLogSym(arg.ResultType())); err != nil {
			return err
		}
	}
	n.SetResultType(types.VOID)
	return e.EmitCallKnown("__console_log_newline")
}

func (e *Emitter) emitStringArg0(n *ast.MethodCall) error {
	if len(n.Args) == 0 {
		return fmt.Errorf("emit: %s requires one string argument", n.Method)
	}
	if err := e.Emit(n.Args[0]); err != nil {
		return err
	}
	e.Gen.MovRegReg(codegen.RDI, codegen.RAX)
	return nil
}

func (e *Emitter) emitTimerCall(n *ast.MethodCall, symbol string) error {
	if err := e.emitArgs(n.Args, 0); err != nil {
		return err
	}
	n.SetResultType(types.INT64)
	return e.EmitCallKnown(symbol)
}

func (e *Emitter) emitSimpleArrayMethod(n *ast.MethodCall) error {
	e.Gen.Push(codegen.RAX) // receiver, across argument evaluation
	if err := e.emitArgs(n.Args, 1); err != nil {
		return err
	}
	e.Gen.Pop(codegen.RDI)
	n.SetResultType(types.ANY)
	return e.EmitCallKnown("__simple_array_" + n.Method)
}

func (e *Emitter) emitRegexMethod(n *ast.MethodCall) error {
	e.Gen.Push(codegen.RAX) // receiver, across argument evaluation
	if err := e.emitArgs(n.Args, 1); err != nil {
		return err
	}
	e.Gen.Pop(codegen.RDI)
	n.SetResultType(types.ANY)
	return e.EmitCallKnown("__regex_" + n.Method)
}

func (e *Emitter) emitClassMethodCall(n *ast.MethodCall) error {
	className := classNameOfSlot(e, n.Object)
	if className == "" {
		return fmt.Errorf("emit: method call on class instance with unresolved class name")
	}
	info, ok := e.Classes.Lookup(className)
	if !ok {
		return fmt.Errorf("emit: unknown class %q", className)
	}
	symbol, ok := info.Methods[n.Method]
	if !ok {
		symbol = fmt.Sprintf("__method_%s_%s__", className, n.Method)
	}
	e.Gen.Push(codegen.RAX) // object id, across arg evaluation
	if err := e.emitArgs(n.Args, 1); err != nil {
		return err
	}
	e.Gen.Pop(codegen.RDI)
	n.SetResultType(types.ANY)
	e.EmitCallSymbol(symbol)
	return nil
}

func (e *Emitter) emitExpressionMethodCall(n *ast.ExpressionMethodCall) error {
	if err := e.Emit(n.Object); err != nil {
		return err
	}
	e.Gen.Push(codegen.RAX) // object id
	if err := e.Emit(n.MethodExpr); err != nil {
		return err
	}
	e.Gen.Push(codegen.RAX) // method-name value
	if err := e.emitArgs(n.Args, 2); err != nil {
		return err
	}
	e.Gen.Pop(codegen.RSI)
	e.Gen.Pop(codegen.RDI)
	n.SetResultType(types.ANY)
	return e.EmitCallKnown("__object_invoke_dynamic")
}

// emitRuntimeCall is the fused fast path design-notes §9 calls for: a
// RuntimeCall node always lowers to one direct call, with no dispatch
// overhead and no string pattern-matching on an Identifier.
func (e *Emitter) emitRuntimeCall(n *ast.RuntimeCall) error {
	symbol, ret, ok := runtimeCallMapping(n.Namespace, n.Method)
	if !ok {
		symbol = fmt.Sprintf("__runtime_%s_%s", n.Namespace, n.Method)
		ret = types.ANY
	}
	if err := e.emitArgs(n.Args, 0); err != nil {
		return err
	}
	n.SetResultType(ret)
	return e.EmitCallKnown(symbol)
}

// runtimeCallMapping covers the name-specific mappings §4.5 calls out
// explicitly (e.g. `runtime.time.nowMillis()` is not spelled
// `__runtime_time_nowMillis` but `__runtime_time_now_millis`); anything not listed
// here falls back to the canonical `__runtime_<X>_<method>` form.
func runtimeCallMapping(namespace, method string) (symbol string, ret types.DataType, ok bool) {
	switch namespace + "." + method {
	case "time.nowMillis":
		return "__runtime_time_now_millis", types.INT64, true
	case "time.nowNanos":
		return "__runtime_time_now_nanos", types.INT64, true
	case "process.pid":
		return "__runtime_process_pid", types.INT64, true
	case "process.cwd":
		return "__runtime_process_cwd", types.STRING, true
	case "setTimeout.set":
		return "__gots_set_timeout", types.INT64, true
	}
	return "", types.UNKNOWN, false
}

func (e *Emitter) emitFunctionCall(n *ast.FunctionCall) error {
	ident, ok := n.Callee.(*ast.Identifier)
	if !ok {
		return fmt.Errorf("emit: only named function calls are supported at a FunctionCall site")
	}
	if err := e.emitArgs(n.Args, 0); err != nil {
		return err
	}
	n.SetResultType(types.ANY)
	if info, ok := e.Funcs.Resolve(ident.Name); ok && info.ReturnType != types.UNKNOWN {
		n.SetResultType(info.ReturnType)
	}
	e.EmitCallSymbol(ident.Name)
	return nil
}

// emitNewExpression looks up the class's field count, creates an object,
// then invokes the constructor with the id in RDI. Dart-style
// `new C{k: v}` is desugared here into property sets before the constructor
// runs with no positional arguments (§4.5).
func (e *Emitter) emitNewExpression(n *ast.NewExpression) error {
	info, ok := e.Classes.Lookup(n.ClassName)
	if !ok {
		return fmt.Errorf("emit: new of unknown class %q", n.ClassName)
	}
	e.Gen.MovRegImm(codegen.RDI, int64(len(info.Fields)))
	if err := e.EmitCallKnown("__object_create"); err != nil {
		return err
	}
	e.Gen.Push(codegen.RAX) // object id

	if n.NamedArgs != nil {
		for field, valueExpr := range n.NamedArgs {
			idx, ok := info.FieldOffset(field)
			if !ok {
				return fmt.Errorf("emit: class %q has no field %q", n.ClassName, field)
			}
			if err := e.Emit(valueExpr); err != nil {
				return err
			}
			e.Gen.MovRegReg(codegen.RDX, codegen.RAX)
			e.Gen.MovRegImm(codegen.RSI, int64(idx))
			e.Gen.MovRegMemRSP(codegen.RDI, 0)
			if err := e.EmitCallKnown("__object_set_property"); err != nil {
				return err
			}
		}
		e.Gen.Pop(codegen.RDI)
		n.SetResultType(types.CLASS_INSTANCE)
		e.EmitCallSymbol(fmt.Sprintf("__constructor_%s__", n.ClassName))
		return nil
	}

	if err := e.emitArgs(n.Args, 1); err != nil {
		return err
	}
	e.Gen.Pop(codegen.RDI)
	n.SetResultType(types.CLASS_INSTANCE)
	e.EmitCallSymbol(fmt.Sprintf("__constructor_%s__", n.ClassName))
	return nil
}

// emitSuperCall loads `this` from its fixed spill slot at RBP-8 (every
// constructor/method prologue spills `this` there first) and calls the
// parent class's constructor symbol, resolved at emit time through the
// inheritance registry rather than deferred to a runtime placeholder.
func (e *Emitter) emitSuperCall(n *ast.SuperCall) error {
	parent, ok := e.parentClass()
	if !ok {
		return fmt.Errorf("emit: super(...) in %q, which has no parent class", e.currentClass)
	}
	if err := e.emitArgs(n.Args, 1); err != nil {
		return err
	}
	e.Gen.MovRegMem(codegen.RDI, -8)
	n.SetResultType(types.VOID)
	e.EmitCallSymbol(fmt.Sprintf("__constructor_%s__", parent))
	return nil
}

func (e *Emitter) emitSuperMethodCall(n *ast.SuperMethodCall) error {
	parent, ok := e.parentClass()
	if !ok {
		return fmt.Errorf("emit: super.%s(...) in %q, which has no parent class", n.Method, e.currentClass)
	}
	symbol := fmt.Sprintf("__method_%s_%s__", parent, n.Method)
	if info, ok := e.Classes.Lookup(parent); ok {
		if s, ok := info.Methods[n.Method]; ok {
			symbol = s
		}
	}
	if err := e.emitArgs(n.Args, 1); err != nil {
		return err
	}
	e.Gen.MovRegMem(codegen.RDI, -8)
	n.SetResultType(types.ANY)
	e.EmitCallSymbol(symbol)
	return nil
}

func (e *Emitter) parentClass() (string, bool) {
	if e.currentClass == "" {
		return "", false
	}
	return e.Classes.Parent(e.currentClass)
}

// emitFunctionExpressionRef loads a callable reference to a (by-now-named)
// function expression: an immediate address if finalized, a RIP-relative
// lea if only an offset is known, or a fast-ID lookup as the last resort
// (§4.5).
func (e *Emitter) emitFunctionExpressionRef(n *ast.FunctionExpression) error {
	info, ok := e.Funcs.Resolve(n.Name)
	if !ok {
		return fmt.Errorf("emit: function expression %q was not registered by the compilation manager", n.Name)
	}
	switch {
	case info.HasAddr:
		e.Gen.MovRegImm(codegen.RAX, int64(info.Addr))
	case info.HasOffset:
		// The target's buffer offset and this instruction's are both known,
		// so the RIP-relative displacement is a compile-time constant: 7 is
		// LeaRIP's own encoded length, since RIP points past it.
		e.Gen.LeaRIP(codegen.RAX, int32(info.Offset-(e.Gen.Len()+7)))
	default:
		e.Gen.MovRegImm(codegen.RDI, int64(info.ID))
		if err := e.EmitCallKnown("__lookup_function_fast"); err != nil {
			return err
		}
	}
	n.SetResultType(types.FUNCTION)
	return nil
}

// emitGoExpression lowers `go f(...)` by §4.5's preference order: a known
// address spawns directly, a known buffer offset materializes the address
// via RIP-relative lea, and the fast-ID registry is the always-works
// fallback.
func (e *Emitter) emitGoExpression(n *ast.GoExpression) error {
	ident, ok := n.Call.Callee.(*ast.Identifier)
	if !ok {
		return fmt.Errorf("emit: go expression callee must be a named function in this core")
	}
	info, ok := e.Funcs.Resolve(ident.Name)
	if !ok {
		return fmt.Errorf("emit: go %s(...) references unregistered function", ident.Name)
	}
	argSuffix := ""
	switch len(n.Call.Args) {
	case 0:
	case 1:
		argSuffix = "_arg1"
	case 2:
		argSuffix = "_arg2"
	default:
		return fmt.Errorf("emit: go %s(...) supports at most two arguments", ident.Name)
	}
	if err := e.emitArgs(n.Call.Args, 1); err != nil {
		return err
	}
	n.SetResultType(types.PROMISE)
	switch {
	case info.HasAddr:
		e.Gen.MovRegImm(codegen.RDI, int64(info.Addr))
		if argSuffix == "" {
			return e.EmitCallKnown("__goroutine_spawn_direct")
		}
		return e.EmitCallKnown("__goroutine_spawn_with" + argSuffix)
	case info.HasOffset:
		// A RIP-relative lea materializes the final address from the
		// known intra-buffer displacement, so the offset form still spawns
		// through the direct entry points.
		e.Gen.LeaRIP(codegen.RDI, int32(info.Offset-(e.Gen.Len()+7)))
		if argSuffix == "" {
			return e.EmitCallKnown("__goroutine_spawn_direct")
		}
		return e.EmitCallKnown("__goroutine_spawn_with" + argSuffix)
	default:
		e.Gen.MovRegImm(codegen.RDI, int64(info.ID))
		return e.EmitCallKnown("__goroutine_spawn_fast" + argSuffix)
	}
}

func (e *Emitter) emitAwaitExpression(n *ast.AwaitExpression) error {
	if err := e.Emit(n.Operand); err != nil {
		return err
	}
	e.Gen.MovRegReg(codegen.RDI, codegen.RAX)
	n.SetResultType(types.ANY)
	return e.EmitCallKnown("__promise_await")
}
