package compiler

import (
	"github.com/example/gots/internal/codegen"
	"github.com/example/gots/internal/emit"
	"github.com/example/gots/internal/types"
)

// emitFunction implements §4.6 phase 2 for one discovered function: record
// its start offset within the shared buffer, emit the standard
// prologue/frame/param-spill sequence, lower its body through a fresh
// Emitter, then close with an epilogue and patch the frame size now that the
// body's local-slot count is finally known.
func (m *Manager) emitFunction(fb *funcBody) error {
	fb.entry.Offset = m.gen.Len()
	fb.entry.HasOffset = true

	m.gen.Prologue()
	m.gen.SetFunctionStackSize(80) // placeholder; patched below once locals are counted
	frameInstrOff := m.gen.EmitFrameAllocation()

	e := emit.New(m.gen, m.reg, m.classes, m, m.mods, m.consts, fb.entry.Name, m.log)
	e.SetCurrentClass(fb.thisClass)

	total := len(fb.params)
	if fb.thisClass != "" {
		total++
	}
	e.Slots.ResetForFunctionWithParams(total)

	argIdx := 0
	if fb.thisClass != "" {
		spillParam(m.gen, e.Slots, "this", types.CLASS_INSTANCE, fb.thisClass, argIdx)
		argIdx++
	}
	for _, p := range fb.params {
		spillParam(m.gen, e.Slots, p.Name, p.Type, p.ClassName, argIdx)
		argIdx++
	}

	for _, stmt := range fb.stmts {
		if err := e.Emit(stmt); err != nil {
			return err
		}
	}

	// Implicit return: a body that falls off its last statement without an
	// explicit ReturnStatement still needs a well-formed epilogue. Any
	// ReturnStatement just above has already emitted its own, leaving this
	// dead but harmless.
	m.gen.MovRegImm(codegen.RAX, 0)
	m.gen.FunctionReturn()

	// One extra slot covers the padding slot between the parameter spill
	// area and the first local, so the lowest local lies inside the frame.
	m.gen.PatchFrameAllocation(frameInstrOff, int64((e.Slots.Count()+1)*8))
	fb.entry.StackSize = int64((e.Slots.Count() + 1) * 8)
	return nil
}

// spillParam writes argument argIdx (SysV register, or the stack past the
// sixth) into its fixed negative-offset local slot and binds it in slots so
// the rest of the body's emitters can resolve it by name.
func spillParam(gen *codegen.Generator, slots *types.SlotAllocator, name string, t types.DataType, className string, argIdx int) {
	offset := int64(-8 * (argIdx + 1))
	if argIdx < len(codegen.ArgRegs) {
		gen.MovMemReg(int32(offset), codegen.ArgRegs[argIdx])
	} else {
		stackOff := int32(16 + 8*(argIdx-len(codegen.ArgRegs)))
		gen.MovRegMem(codegen.RAX, stackOff)
		gen.MovMemReg(int32(offset), codegen.RAX)
	}
	if t == types.CLASS_INSTANCE {
		slots.BindParamClass(name, className, offset)
	} else {
		slots.BindParam(name, t, offset)
	}
}
