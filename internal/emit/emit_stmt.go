package emit

import (
	"errors"

	"github.com/example/gots/internal/ast"
	"github.com/example/gots/internal/codegen"
	"github.com/example/gots/internal/types"
)

var errBreakOutsideLoop = errors.New("emit: break statement outside any loop or switch")

func (e *Emitter) emitCondJumpIfFalse(cond ast.Node, target string) error {
	if err := e.Emit(cond); err != nil {
		return err
	}
	e.Gen.AndRegImm(codegen.RAX, 1)
	e.Gen.TestRegReg(codegen.RAX, codegen.RAX)
	e.Gen.JumpIfZero(target)
	return nil
}

func (e *Emitter) emitIfStatement(n *ast.IfStatement) error {
	elseLbl := e.newLabel("if_else")
	endLbl := e.newLabel("if_end")
	if err := e.emitCondJumpIfFalse(n.Cond, elseLbl); err != nil {
		return err
	}
	if err := e.emitBody(n.Then); err != nil {
		return err
	}
	e.Gen.Jump(endLbl)
	e.Gen.Label(elseLbl)
	if err := e.emitBody(n.Else); err != nil {
		return err
	}
	e.Gen.Label(endLbl)
	n.SetResultType(types.VOID)
	return nil
}

func (e *Emitter) emitForLoop(n *ast.ForLoop) error {
	startLbl := e.newLabel("for_start")
	postLbl := e.newLabel("for_post")
	endLbl := e.newLabel("for_end")

	if n.Init != nil {
		if err := e.Emit(n.Init); err != nil {
			return err
		}
	}
	e.Gen.Label(startLbl)
	if n.Cond != nil {
		if err := e.emitCondJumpIfFalse(n.Cond, endLbl); err != nil {
			return err
		}
	}
	e.pushBreakTarget(endLbl)
	if err := e.emitBody(n.Body); err != nil {
		e.popBreakTarget()
		return err
	}
	e.popBreakTarget()
	e.Gen.Label(postLbl)
	if n.Post != nil {
		if err := e.Emit(n.Post); err != nil {
			return err
		}
	}
	e.Gen.Jump(startLbl)
	e.Gen.Label(endLbl)
	n.SetResultType(types.VOID)
	return nil
}

// emitForEachLoop iterates a TENSOR/ARRAY by index (__array_size/
// __array_get) or a property-bearing container — a CLASS_INSTANCE or an
// object literal's RUNTIME_OBJECT, which live in the object handle table,
// not the array one — by property index, binding the loop variable to each
// property name in declaration order (§4.5, §8 scenario 5).
func (e *Emitter) emitForEachLoop(n *ast.ForEachLoop) error {
	if err := e.Emit(n.Iterable); err != nil {
		return err
	}
	iterType := n.Iterable.ResultType()
	overProperties := iterType == types.CLASS_INSTANCE || iterType == types.RUNTIME_OBJECT
	containerOff := e.Slots.Allocate("__foreach_container__", types.ANY)
	e.Gen.MovMemReg(int32(containerOff), codegen.RAX)

	countSym := "__array_size"
	if overProperties {
		countSym = "__object_property_count"
	}
	if err := e.EmitCallKnownOnSlot(countSym, containerOff); err != nil {
		return err
	}
	countOff := e.Slots.Allocate("__foreach_count__", types.INT64)
	e.Gen.MovMemReg(int32(countOff), codegen.RAX)

	idxOff := e.Slots.Allocate("__foreach_idx__", types.INT64)
	e.Gen.MovRegImm(codegen.RAX, 0)
	e.Gen.MovMemReg(int32(idxOff), codegen.RAX)

	startLbl := e.newLabel("foreach_start")
	endLbl := e.newLabel("foreach_end")
	e.Gen.Label(startLbl)
	e.Gen.MovRegMem(codegen.RAX, int32(idxOff))
	e.Gen.MovRegMem(codegen.RCX, int32(countOff))
	e.Gen.Compare(codegen.RAX, codegen.RCX)
	e.Gen.SetLess(codegen.RAX)
	e.Gen.AndRegImm(codegen.RAX, 1)
	e.Gen.TestRegReg(codegen.RAX, codegen.RAX)
	e.Gen.JumpIfZero(endLbl)

	e.Gen.MovRegMem(codegen.RDI, int32(containerOff))
	e.Gen.MovRegMem(codegen.RSI, int32(idxOff))
	varType := types.ANY
	if overProperties {
		if err := e.EmitCallKnown("__object_property_name_at"); err != nil {
			return err
		}
		varType = types.STRING
	} else {
		if err := e.EmitCallKnown("__array_get"); err != nil {
			return err
		}
	}
	varOff := e.Slots.Allocate(n.VarName, varType)
	e.Gen.MovMemReg(int32(varOff), codegen.RAX)

	e.pushBreakTarget(endLbl)
	if err := e.emitBody(n.Body); err != nil {
		e.popBreakTarget()
		return err
	}
	e.popBreakTarget()

	e.Gen.MovRegMem(codegen.RAX, int32(idxOff))
	e.Gen.AddRegImm(codegen.RAX, 1)
	e.Gen.MovMemReg(int32(idxOff), codegen.RAX)
	e.Gen.Jump(startLbl)
	e.Gen.Label(endLbl)
	n.SetResultType(types.VOID)
	return nil
}

// EmitCallKnownOnSlot loads a slot's value into RDI and calls symbol; used
// by ForEachLoop since the container must be reloaded from its temporary
// slot rather than assumed to still be live in RAX.
func (e *Emitter) EmitCallKnownOnSlot(symbol string, slotOffset int64) error {
	e.Gen.MovRegMem(codegen.RDI, int32(slotOffset))
	return e.EmitCallKnown(symbol)
}

// emitSwitchStatement emits a linear compare chain. When the discriminant
// and a case value have the same type and that type is neither UNKNOWN nor
// ANY, the case becomes a direct compare+setne+conditional jump; every other
// combination goes through __runtime_js_equal (§4.5).
func (e *Emitter) emitSwitchStatement(n *ast.SwitchStatement) error {
	if err := e.Emit(n.Discriminant); err != nil {
		return err
	}
	discOff := e.Slots.Allocate("__switch_disc__", n.Discriminant.ResultType())
	e.Gen.MovMemReg(int32(discOff), codegen.RAX)
	discType := n.Discriminant.ResultType()

	endLbl := e.newLabel("switch_end")
	e.pushBreakTarget(endLbl)

	var defaultCase *ast.SwitchCase
	for i := range n.Cases {
		c := &n.Cases[i]
		if c.Value == nil {
			defaultCase = c
			continue
		}
		nextLbl := e.newLabel("switch_case")
		e.Gen.MovRegMem(codegen.RAX, int32(discOff))
		if err := e.Emit(c.Value); err != nil {
			e.popBreakTarget()
			return err
		}
		e.Gen.MovRegReg(codegen.RCX, codegen.RAX)
		e.Gen.MovRegMem(codegen.RAX, int32(discOff))
		if discType != types.UNKNOWN && discType != types.ANY && discType == c.Value.ResultType() {
			e.Gen.Compare(codegen.RAX, codegen.RCX)
			e.Gen.SetNotEqual(codegen.RAX)
		} else {
			e.Gen.MovRegReg(codegen.RDI, codegen.RAX)
			e.Gen.MovRegReg(codegen.RDX, codegen.RCX)
			e.Gen.MovRegImm(codegen.RSI, int64(discType))
			e.Gen.MovRegImm(codegen.RCX, int64(c.Value.ResultType()))
			if err := e.EmitCallKnown("__runtime_js_equal"); err != nil {
				e.popBreakTarget()
				return err
			}
			e.Gen.XorRegImm(codegen.RAX, 1) // invert: jump to next case when NOT equal
		}
		e.Gen.AndRegImm(codegen.RAX, 1)
		e.Gen.TestRegReg(codegen.RAX, codegen.RAX)
		e.Gen.JumpIfNotZero(nextLbl)
		if err := e.emitBody(c.Body); err != nil {
			e.popBreakTarget()
			return err
		}
		e.Gen.Jump(endLbl)
		e.Gen.Label(nextLbl)
	}
	if defaultCase != nil {
		if err := e.emitBody(defaultCase.Body); err != nil {
			e.popBreakTarget()
			return err
		}
	}
	e.popBreakTarget()
	e.Gen.Label(endLbl)
	n.SetResultType(types.VOID)
	return nil
}

func (e *Emitter) emitBreakStatement(n *ast.BreakStatement) error {
	target, ok := e.currentBreakTarget()
	if !ok {
		return errBreakOutsideLoop
	}
	e.Gen.Jump(target)
	n.SetResultType(types.VOID)
	return nil
}

func (e *Emitter) emitReturnStatement(n *ast.ReturnStatement) error {
	if n.Value != nil {
		if err := e.Emit(n.Value); err != nil {
			return err
		}
		n.SetResultType(n.Value.ResultType())
	} else {
		e.Gen.MovRegImm(codegen.RAX, 0)
		n.SetResultType(types.VOID)
	}
	e.Gen.FunctionReturn()
	return nil
}

// emitImportStatement folds constant exports directly into the
// importer's global-constants table (via internal/module) so later
// Identifier lookups resolve to an immediate with no runtime call; all
// other bindings remain opaque UNKNOWN slots (§4.9).
func (e *Emitter) emitImportStatement(n *ast.ImportStatement) error {
	if e.Mods != nil {
		e.Mods.Import(n.ModulePath, n.Bindings)
	}
	n.SetResultType(types.VOID)
	return nil
}

func (e *Emitter) emitExportStatement(n *ast.ExportStatement) error {
	if n.Value != nil {
		if lit, ok := n.Value.(*ast.NumberLiteral); ok && e.Mods != nil {
			val := lit.IntValue
			if !lit.IsInt {
				val = int64(lit.Value)
			}
			e.Mods.ExportConstant(n.Name, val)
		}
	}
	n.SetResultType(types.VOID)
	return nil
}
