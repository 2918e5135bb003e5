package emit

import (
	"fmt"

	"github.com/example/gots/internal/ast"
	"github.com/example/gots/internal/classreg"
	"github.com/example/gots/internal/codegen"
	"github.com/example/gots/internal/types"
)

// emitBinaryOp implements §4.5 BinaryOp: left first, spill to the stack,
// right, pop, then compute. Numeric +-*/ lower to direct instructions when
// both operands are the same known numeric type (the property spec.md §8
// requires); everything else — **, %, UNKNOWN comparisons, string
// concatenation — dispatches to a runtime symbol.
func (e *Emitter) emitBinaryOp(n *ast.BinaryOp) error {
	if err := e.Emit(n.Left); err != nil {
		return err
	}
	e.Gen.Push(codegen.RAX)
	if err := e.Emit(n.Right); err != nil {
		return err
	}
	e.Gen.MovRegReg(codegen.RCX, codegen.RAX) // right -> RCX
	e.Gen.Pop(codegen.RAX)                    // left -> RAX

	lt, rt := n.Left.ResultType(), n.Right.ResultType()

	if lt == types.STRING || rt == types.STRING {
		return e.emitStringConcat(n, lt, rt)
	}

	switch n.Op {
	case "+", "-", "*", "/":
		if lt.IsNumeric() && rt.IsNumeric() && lt == rt {
			e.emitDirectArith(n.Op, lt)
			n.SetResultType(lt)
			return nil
		}
		if lt.IsNumeric() && rt.IsNumeric() {
			wide := types.GetCastType(lt, rt)
			e.emitDirectArith(n.Op, wide)
			n.SetResultType(wide)
			return nil
		}
		// Neither operand is a known numeric type (e.g. an imported UNKNOWN
		// binding): the direct instructions are still correct for the
		// 64-bit representation every value shares, but the result can't be
		// trusted to a narrower type than NUMBER.
		e.emitDirectArith(n.Op, types.NUMBER)
		n.SetResultType(types.NUMBER)
		return nil
	case "**":
		e.Gen.MovRegReg(codegen.RDI, codegen.RAX)
		e.Gen.MovRegReg(codegen.RSI, codegen.RCX)
		n.SetResultType(types.NUMBER)
		return e.EmitCallKnown("__runtime_pow")
	case "%":
		e.Gen.MovRegReg(codegen.RDI, codegen.RAX)
		e.Gen.MovRegReg(codegen.RSI, codegen.RCX)
		n.SetResultType(lt)
		return e.EmitCallKnown("__runtime_modulo")
	case "==", "!=", "<", "<=", ">", ">=":
		return e.emitComparison(n, lt, rt)
	default:
		return fmt.Errorf("emit: unsupported binary operator %q", n.Op)
	}
}

func (e *Emitter) emitDirectArith(op string, t types.DataType) {
	switch op {
	case "+":
		e.Gen.AddRegReg(codegen.RAX, codegen.RCX)
	case "-":
		e.Gen.SubRegReg(codegen.RAX, codegen.RCX)
	case "*":
		e.Gen.MulRegReg(codegen.RAX, codegen.RCX)
	case "/":
		e.Gen.DivRegReg(codegen.RAX, codegen.RCX)
	}
	_ = t
}

func (e *Emitter) emitStringConcat(n *ast.BinaryOp, lt, rt types.DataType) error {
	e.Gen.MovRegReg(codegen.RDI, codegen.RAX)
	e.Gen.MovRegReg(codegen.RSI, codegen.RCX)
	n.SetResultType(types.STRING)
	switch {
	case lt == types.STRING && rt == types.STRING:
		return e.EmitCallKnown("__string_concat")
	case lt == types.STRING:
		return e.EmitCallKnown("__string_concat_cstr")
	default:
		return e.EmitCallKnown("__string_concat_cstr_left")
	}
}

// emitComparison implements §4.5's rule: `==`/`!=` with two identically
// typed operands lowers to direct compare+setcc; anything touching
// ANY/UNKNOWN goes through __runtime_js_equal, which is the property
// spec.md §8 requires be testable independently of this emitter's other
// paths.
func (e *Emitter) emitComparison(n *ast.BinaryOp, lt, rt types.DataType) error {
	if (n.Op == "==" || n.Op == "!=") && lt != types.UNKNOWN && rt != types.UNKNOWN && lt != types.ANY && rt != types.ANY && lt == rt {
		e.Gen.Compare(codegen.RAX, codegen.RCX)
		if n.Op == "==" {
			e.Gen.SetEqual(codegen.RAX)
		} else {
			e.Gen.SetNotEqual(codegen.RAX)
		}
		e.Gen.AndRegImm(codegen.RAX, 1)
		n.SetResultType(types.BOOLEAN)
		return nil
	}
	if (n.Op == "==" || n.Op == "!=") && (lt == types.UNKNOWN || rt == types.UNKNOWN || lt == types.ANY || rt == types.ANY || lt != rt) {
		// __runtime_js_equal(lval, ltype, rval, rtype): the right operand
		// must reach RDX before RCX is overwritten with its type tag.
		e.Gen.MovRegReg(codegen.RDI, codegen.RAX)
		e.Gen.MovRegReg(codegen.RDX, codegen.RCX)
		e.Gen.MovRegImm(codegen.RSI, int64(lt))
		e.Gen.MovRegImm(codegen.RCX, int64(rt))
		if err := e.EmitCallKnown("__runtime_js_equal"); err != nil {
			return err
		}
		if n.Op == "!=" {
			e.Gen.XorRegImm(codegen.RAX, 1)
		}
		n.SetResultType(types.BOOLEAN)
		return nil
	}
	// Ordering comparisons fall through to a direct signed compare even when
	// a side is UNKNOWN: every value shares the 64-bit register
	// representation, and there is no runtime ordering helper in the ABI.
	e.Gen.Compare(codegen.RAX, codegen.RCX)
	switch n.Op {
	case "<":
		e.Gen.SetLess(codegen.RAX)
	case "<=":
		e.Gen.SetLessEqual(codegen.RAX)
	case ">":
		e.Gen.SetGreater(codegen.RAX)
	case ">=":
		e.Gen.SetGreaterEqual(codegen.RAX)
	case "==":
		e.Gen.SetEqual(codegen.RAX)
	case "!=":
		e.Gen.SetNotEqual(codegen.RAX)
	}
	e.Gen.AndRegImm(codegen.RAX, 1)
	n.SetResultType(types.BOOLEAN)
	return nil
}

// emitLogicalOp short-circuits by jumping over the right operand, then
// normalizes the result to 0/1 (§4.5).
func (e *Emitter) emitLogicalOp(n *ast.LogicalOp) error {
	if err := e.Emit(n.Left); err != nil {
		return err
	}
	end := e.newLabel("logical_end")
	e.Gen.AndRegImm(codegen.RAX, 1)
	e.Gen.TestRegReg(codegen.RAX, codegen.RAX)
	if n.Op == "&&" {
		e.Gen.JumpIfZero(end) // left is false -> short circuit, RAX already 0
	} else {
		e.Gen.JumpIfNotZero(end) // left is true -> short circuit, RAX already 1
	}
	if err := e.Emit(n.Right); err != nil {
		return err
	}
	e.Gen.AndRegImm(codegen.RAX, 1)
	e.Gen.Label(end)
	n.SetResultType(types.BOOLEAN)
	return nil
}

func (e *Emitter) emitTernary(n *ast.Ternary) error {
	falseLbl := e.newLabel("ternary_false")
	endLbl := e.newLabel("ternary_end")
	if err := e.Emit(n.Cond); err != nil {
		return err
	}
	e.Gen.AndRegImm(codegen.RAX, 1)
	e.Gen.TestRegReg(codegen.RAX, codegen.RAX)
	e.Gen.JumpIfZero(falseLbl)
	if err := e.Emit(n.Then); err != nil {
		return err
	}
	thenType := n.Then.ResultType()
	e.Gen.Jump(endLbl)
	e.Gen.Label(falseLbl)
	if err := e.Emit(n.Else); err != nil {
		return err
	}
	e.Gen.Label(endLbl)
	n.SetResultType(types.GetCastType(thenType, n.Else.ResultType()))
	return nil
}

// emitAssignment picks the variable's type by the precedence §4.5 fixes:
// explicit declared type, else an inferred heap-object type carried by the
// RHS, else UNKNOWN. It then allocates or reuses the slot and stores RAX.
func (e *Emitter) emitAssignment(n *ast.Assignment) error {
	if err := e.Emit(n.Value); err != nil {
		return err
	}
	valType := n.Value.ResultType()

	ident, ok := n.Target.(*ast.Identifier)
	if !ok {
		return e.emitCompoundAssignTarget(n, valType)
	}

	// Type precedence (§4.5): explicit declared type, else whatever the RHS
	// inferred — heap-object types (STRING/ARRAY/TENSOR/REGEX/FUNCTION) and
	// numerics alike ride through, and UNKNOWN stays UNKNOWN deliberately.
	t := n.Declared
	if t == types.UNKNOWN {
		t = valType
	}
	var offset int64
	if t == types.CLASS_INSTANCE {
		offset = e.Slots.AllocateClass(ident.Name, classNameOf(n.Value))
	} else {
		offset = e.Slots.Allocate(ident.Name, t)
	}
	e.Gen.MovMemReg(int32(offset), codegen.RAX)
	n.SetResultType(t)
	return nil
}

func classNameOf(n ast.Node) string {
	if ne, ok := n.(*ast.NewExpression); ok {
		return ne.ClassName
	}
	return ""
}

// emitCompoundAssignTarget handles `obj.field = v` and `arr[i] = v`, storing
// via the object/array runtime rather than a stack slot.
func (e *Emitter) emitCompoundAssignTarget(n *ast.Assignment, valType types.DataType) error {
	e.Gen.Push(codegen.RAX) // save value across target-address evaluation
	switch t := n.Target.(type) {
	case *ast.PropertyAccess:
		if err := e.Emit(t.Object); err != nil {
			return err
		}
		e.Gen.MovRegReg(codegen.RDI, codegen.RAX) // object id
		idx, err := e.fieldIndex(t.Object.ResultType(), classNameOfSlot(e, t.Object), t.Property)
		if err != nil {
			return err
		}
		e.Gen.MovRegImm(codegen.RSI, int64(idx))
		e.Gen.Pop(codegen.RDX) // value
		n.SetResultType(valType)
		return e.EmitCallKnown("__object_set_property")
	case *ast.ArrayAccess:
		if err := e.Emit(t.Object); err != nil {
			return err
		}
		e.Gen.Push(codegen.RAX) // container, across index evaluation
		if err := e.Emit(t.Index); err != nil {
			return err
		}
		e.Gen.MovRegReg(codegen.RSI, codegen.RAX)
		e.Gen.Pop(codegen.RDI)
		e.Gen.Pop(codegen.RDX)
		n.SetResultType(valType)
		return e.EmitCallKnown("__simple_array_set")
	default:
		return fmt.Errorf("emit: unsupported assignment target %T", n.Target)
	}
}

func classNameOfSlot(e *Emitter, obj ast.Node) string {
	if ident, ok := obj.(*ast.Identifier); ok {
		if slot, ok := e.Slots.Lookup(ident.Name); ok {
			return slot.ClassName
		}
	}
	return ""
}

func (e *Emitter) fieldIndex(objType types.DataType, className, field string) (int, error) {
	if objType != types.CLASS_INSTANCE || className == "" {
		return 0, fmt.Errorf("emit: field access %q on non-class-instance", field)
	}
	info, ok := e.Classes.Lookup(className)
	if !ok {
		return 0, fmt.Errorf("emit: unknown class %q", className)
	}
	idx, ok := info.FieldOffset(field)
	if !ok {
		return 0, fmt.Errorf("emit: class %q has no field %q", className, field)
	}
	return idx, nil
}

// emitIncDec loads, adds/subs 1, stores back; the result is the pre- or
// post-value depending on AST.Prefix (§4.5).
func (e *Emitter) emitIncDec(n *ast.IncDec) error {
	ident, ok := n.Target.(*ast.Identifier)
	if !ok {
		return fmt.Errorf("emit: ++/-- target must be an identifier in this core")
	}
	slot, ok := e.Slots.Lookup(ident.Name)
	if !ok {
		return fmt.Errorf("emit: ++/-- on unresolved identifier %q", ident.Name)
	}
	e.Gen.MovRegMem(codegen.RAX, int32(slot.Offset))
	if !n.Prefix {
		e.Gen.Push(codegen.RAX) // preserve original for postfix result
	}
	if n.Op == "++" {
		e.Gen.AddRegImm(codegen.RAX, 1)
	} else {
		e.Gen.SubRegImm(codegen.RAX, 1)
	}
	e.Gen.MovMemReg(int32(slot.Offset), codegen.RAX)
	if !n.Prefix {
		e.Gen.Pop(codegen.RAX)
	}
	n.SetResultType(slot.Type)
	return nil
}

// emitArrayLiteral creates an empty container then pushes each element in
// order, keeping the container pointer live on the stack across element
// evaluation since an element expression may itself call into the runtime
// (§4.5).
func (e *Emitter) emitArrayLiteral(n *ast.ArrayLiteral) error {
	e.Gen.MovRegImm(codegen.RDI, int64(types.UNKNOWN)) // heterogeneous element type
	if err := e.EmitCallKnown("__array_create"); err != nil {
		return err
	}
	e.Gen.Push(codegen.RAX)
	for _, elem := range n.Elements {
		if err := e.Emit(elem); err != nil {
			return err
		}
		e.Gen.MovRegReg(codegen.RSI, codegen.RAX)
		e.Gen.MovRegMemRSP(codegen.RDI, 0)
		if err := e.EmitCallKnown("__array_push"); err != nil {
			return err
		}
	}
	e.Gen.Pop(codegen.RAX)
	n.SetResultType(types.ARRAY)
	return nil
}

func (e *Emitter) emitTypedArrayLiteral(n *ast.TypedArrayLiteral) error {
	ctor := "__typed_array_create_" + n.ElemType.String()
	e.Gen.MovRegImm(codegen.RDI, int64(n.ElemType))
	if err := e.EmitCallKnown(ctor); err != nil {
		return err
	}
	e.Gen.Push(codegen.RAX)
	pushSym := "__typed_array_push_" + n.ElemType.String()
	for _, elem := range n.Elements {
		if err := e.Emit(elem); err != nil {
			return err
		}
		e.Gen.MovRegReg(codegen.RSI, codegen.RAX)
		e.Gen.MovRegMemRSP(codegen.RDI, 0)
		if err := e.EmitCallKnown(pushSym); err != nil {
			return err
		}
	}
	e.Gen.Pop(codegen.RAX)
	n.SetResultType(types.ARRAY)
	return nil
}

// emitObjectLiteral creates a classless instance and stores each property by
// name in declaration order (ForEachLoop over the result observes the same
// order, §8 scenario 5). Key names are compile-time interned so the store is
// one call per property: __object_set_property_name(obj, nameHandle, value).
func (e *Emitter) emitObjectLiteral(n *ast.ObjectLiteral) error {
	e.Gen.MovRegImm(codegen.RDI, 0) // no declared class, so no dense field slots
	if err := e.EmitCallKnown("__object_create"); err != nil {
		return err
	}
	e.Gen.Push(codegen.RAX)
	for i, key := range n.Keys {
		if err := e.Emit(n.Values[i]); err != nil {
			return err
		}
		e.Gen.MovRegReg(codegen.RDX, codegen.RAX)
		e.Gen.MovRegImm(codegen.RSI, e.Consts.InternLiteral(key))
		e.Gen.MovRegMemRSP(codegen.RDI, 0)
		if err := e.EmitCallKnown("__object_set_property_name"); err != nil {
			return err
		}
	}
	e.Gen.Pop(codegen.RAX)
	n.SetResultType(types.RUNTIME_OBJECT)
	return nil
}

// emitArrayAccess sends every index on an instance of a known class through
// the class's `operator[]`/`operator[:]` resolution, which falls back to the
// legacy mangled symbol when no overload matches; any other container goes
// to the plain array/tensor accessor (§4.5, §4.8).
func (e *Emitter) emitArrayAccess(n *ast.ArrayAccess) error {
	if err := e.Emit(n.Object); err != nil {
		return err
	}
	objType := n.Object.ResultType()
	className := classNameOfSlot(e, n.Object)
	if objType == types.CLASS_INSTANCE && className != "" {
		return e.emitOverloadedIndex(n, className)
	}
	e.Gen.Push(codegen.RAX) // container, across index evaluation
	if err := e.Emit(n.Index); err != nil {
		return err
	}
	e.Gen.MovRegReg(codegen.RSI, codegen.RAX)
	e.Gen.Pop(codegen.RDI)
	if objType == types.TENSOR {
		n.SetResultType(types.NUMBER)
		return e.EmitCallKnown("__array_access")
	}
	n.SetResultType(types.ANY)
	return e.EmitCallKnown("__simple_array_get")
}

func (e *Emitter) emitOverloadedIndex(n *ast.ArrayAccess, className string) error {
	info, ok := e.Classes.Lookup(className)
	if !ok {
		return fmt.Errorf("emit: unknown class %q for operator[]", className)
	}
	e.Gen.Push(codegen.RAX) // object id
	if err := e.Emit(n.Index); err != nil {
		return err
	}
	indexType := n.Index.ResultType()
	var overload classreg.Overload
	var matched bool
	if n.IsSlice {
		overload, matched = info.ResolveOverload("[]", []types.DataType{indexType}, true)
	} else {
		overload, matched = info.ResolveOverload("[]", []types.DataType{indexType}, false)
	}
	_ = matched
	e.Gen.MovRegReg(codegen.RSI, codegen.RAX) // index value
	e.Gen.Pop(codegen.RDI)                    // object id
	n.SetResultType(overload.ReturnType)
	e.EmitCallSymbol(overload.Symbol)
	return nil
}

// emitPropertyAccess covers string/array/tensor/regex builtin properties and
// user class field access (§4.5). `runtime.x` emits no code: it is fused
// into the enclosing RuntimeCall at the call site.
func (e *Emitter) emitPropertyAccess(n *ast.PropertyAccess) error {
	if ident, ok := n.Object.(*ast.Identifier); ok && ident.Name == runtimeSentinel {
		n.SetResultType(types.RUNTIME_OBJECT)
		return nil
	}
	if err := e.Emit(n.Object); err != nil {
		return err
	}
	objType := n.Object.ResultType()
	switch {
	case objType == types.STRING && n.Property == "length":
		e.Gen.MovRegReg(codegen.RDI, codegen.RAX)
		n.SetResultType(types.INT64)
		return e.EmitCallKnown("__string_length")
	case (objType == types.ARRAY) && n.Property == "length":
		e.Gen.MovRegReg(codegen.RDI, codegen.RAX)
		n.SetResultType(types.INT64)
		return e.EmitCallKnown("__simple_array_length")
	case objType == types.TENSOR && n.Property == "length":
		e.Gen.MovRegReg(codegen.RDI, codegen.RAX)
		n.SetResultType(types.INT64)
		return e.EmitCallKnown("__array_size")
	case objType == types.REGEX && (n.Property == "source" || n.Property == "global" || n.Property == "ignoreCase"):
		e.Gen.MovRegReg(codegen.RDI, codegen.RAX)
		if n.Property == "source" {
			n.SetResultType(types.STRING)
		} else {
			n.SetResultType(types.BOOLEAN)
		}
		return e.EmitCallKnown("__regex_" + n.Property)
	case objType == types.CLASS_INSTANCE:
		className := classNameOfSlot(e, n.Object)
		idx, err := e.fieldIndex(objType, className, n.Property)
		if err != nil {
			return err
		}
		e.Gen.MovRegReg(codegen.RDI, codegen.RAX)
		e.Gen.MovRegImm(codegen.RSI, int64(idx))
		n.SetResultType(types.ANY)
		return e.EmitCallKnown("__object_get_property")
	default:
		n.SetResultType(types.UNKNOWN)
		return nil
	}
}

func (e *Emitter) emitExpressionPropertyAccess(n *ast.ExpressionPropertyAccess) error {
	if err := e.Emit(n.Object); err != nil {
		return err
	}
	e.Gen.Push(codegen.RAX)
	if err := e.Emit(n.PropertyExpr); err != nil {
		return err
	}
	e.Gen.MovRegReg(codegen.RSI, codegen.RAX)
	e.Gen.Pop(codegen.RDI)
	n.SetResultType(types.ANY)
	return e.EmitCallKnown("__object_get_property_name")
}
