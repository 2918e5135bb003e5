// Package codegen implements C4: the x86-64 SysV instruction encoder. Every
// exported method appends bytes to the Generator's internal buffer and
// returns the byte offset it was emitted at (needed by callers patching
// jumps). Nothing here executes anything; Generator only ever produces
// bytes for internal/arena to later mmap and run.
package codegen

import (
	"encoding/binary"
	"fmt"

	"github.com/rs/zerolog"
)

// Generator accumulates emitted code plus the label/relocation bookkeeping
// needed to resolve forward jumps and external symbols in one pass at the
// end of compilation (§4.4 "Label resolution").
type Generator struct {
	buf       []byte
	labels    map[string]int        // label name -> byte offset, once defined
	fixups    []jumpFixup           // forward/backward jump sites awaiting a label
	relocs    []callReloc           // call sites awaiting a symbol's final address
	pendingAbs []absCallSite        // call sites with a known target, awaiting arena base
	stackSize int64
	log       zerolog.Logger
}

type jumpFixup struct {
	offset int // where the rel32 displacement starts
	label  string
	width  int // 4 for rel32
}

// callReloc is a call-site awaiting resolution of an external or
// forward-declared symbol. Resolved either by internal/registry (runtime
// symbols) or by internal/compiler's patch phase (user functions).
type callReloc struct {
	offset int
	symbol string
}

func New(log zerolog.Logger) *Generator {
	return &Generator{
		labels: make(map[string]int),
		log:    log.With().Str("component", "codegen").Logger(),
	}
}

func (g *Generator) Bytes() []byte { return g.buf }
func (g *Generator) Len() int      { return len(g.buf) }

func (g *Generator) emit(b ...byte) int {
	off := len(g.buf)
	g.buf = append(g.buf, b...)
	return off
}

func (g *Generator) emit32(off int, v int32) {
	binary.LittleEndian.PutUint32(g.buf[off:], uint32(v))
}

func (g *Generator) emit64At(off int, v int64) {
	binary.LittleEndian.PutUint64(g.buf[off:], uint64(v))
}

func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modrm(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 0x7) << 3) | (rm & 0x7)
}

// --- register/immediate moves -------------------------------------------------

// MovRegImm emits `mov reg, imm64` via REX.W + B8+rd + imm64.
func (g *Generator) MovRegImm(dst Reg, imm int64) int {
	off := g.emit(rex(true, false, false, isExtended(dst)), 0xB8+lowBits(dst))
	g.buf = append(g.buf, make([]byte, 8)...)
	g.emit64At(off+2, imm)
	return off
}

// MovRegReg emits `mov dst, src` (64-bit).
func (g *Generator) MovRegReg(dst, src Reg) int {
	return g.emit(rex(true, isExtended(src), false, isExtended(dst)), 0x89, modrm(3, byte(src), byte(dst)))
}

// MovRegMem emits `mov dst, [rbp+disp32]`.
func (g *Generator) MovRegMem(dst Reg, rbpOffset int32) int {
	off := g.emit(rex(true, isExtended(dst), false, false), 0x8B, modrm(2, byte(dst), byte(RBP)))
	g.buf = append(g.buf, make([]byte, 4)...)
	g.emit32(off+3, rbpOffset)
	return off
}

// MovMemReg emits `mov [rbp+disp32], src`.
func (g *Generator) MovMemReg(rbpOffset int32, src Reg) int {
	off := g.emit(rex(true, isExtended(src), false, false), 0x89, modrm(2, byte(src), byte(RBP)))
	g.buf = append(g.buf, make([]byte, 4)...)
	g.emit32(off+3, rbpOffset)
	return off
}

// MovRegMemRSP / MovMemRSPReg mirror the RBP-relative forms but addressed off
// RSP, used by argument spill code emitted before a call when RBP-relative
// addressing would be ambiguous mid-expression.
func (g *Generator) MovRegMemRSP(dst Reg, rspOffset int32) int {
	off := g.emit(rex(true, isExtended(dst), false, false), 0x8B, modrm(2, byte(dst), byte(RSP)), 0x24)
	g.buf = append(g.buf, make([]byte, 4)...)
	g.emit32(off+4, rspOffset)
	return off
}

func (g *Generator) MovMemRSPReg(rspOffset int32, src Reg) int {
	off := g.emit(rex(true, isExtended(src), false, false), 0x89, modrm(2, byte(src), byte(RSP)), 0x24)
	g.buf = append(g.buf, make([]byte, 4)...)
	g.emit32(off+4, rspOffset)
	return off
}

// --- arithmetic ---------------------------------------------------------------

func (g *Generator) AddRegReg(dst, src Reg) int {
	return g.emit(rex(true, isExtended(src), false, isExtended(dst)), 0x01, modrm(3, byte(src), byte(dst)))
}

func (g *Generator) SubRegReg(dst, src Reg) int {
	return g.emit(rex(true, isExtended(src), false, isExtended(dst)), 0x29, modrm(3, byte(src), byte(dst)))
}

// MulRegReg emits a signed 64-bit `imul dst, src`.
func (g *Generator) MulRegReg(dst, src Reg) int {
	return g.emit(rex(true, isExtended(dst), false, isExtended(src)), 0x0F, 0xAF, modrm(3, byte(dst), byte(src)))
}

// DivRegReg emits signed 64-bit division (`cqo; idiv src`): dst := RAX(=dst)/src, clobbering
// RDX as the remainder per the cqo/div convention. Callers are required to
// have their dividend in RAX already (BinaryOp arranges this).
func (g *Generator) DivRegReg(dst, src Reg) int {
	off := g.emit(0x48, 0x99) // cqo: sign-extend RAX into RDX:RAX
	g.emit(rex(true, false, false, isExtended(src)), 0xF7, modrm(3, 7, byte(src)))
	_ = dst
	return off
}

func (g *Generator) AddRegImm(dst Reg, imm int32) int {
	off := g.emit(rex(true, false, false, isExtended(dst)), 0x81, modrm(3, 0, byte(dst)))
	g.buf = append(g.buf, make([]byte, 4)...)
	g.emit32(off+3, imm)
	return off
}

func (g *Generator) SubRegImm(dst Reg, imm int32) int {
	off := g.emit(rex(true, false, false, isExtended(dst)), 0x81, modrm(3, 5, byte(dst)))
	g.buf = append(g.buf, make([]byte, 4)...)
	g.emit32(off+3, imm)
	return off
}

func (g *Generator) AndRegImm(dst Reg, imm int32) int {
	off := g.emit(rex(true, false, false, isExtended(dst)), 0x81, modrm(3, 4, byte(dst)))
	g.buf = append(g.buf, make([]byte, 4)...)
	g.emit32(off+3, imm)
	return off
}

func (g *Generator) XorRegImm(dst Reg, imm int32) int {
	off := g.emit(rex(true, false, false, isExtended(dst)), 0x81, modrm(3, 6, byte(dst)))
	g.buf = append(g.buf, make([]byte, 4)...)
	g.emit32(off+3, imm)
	return off
}

// TestRegReg emits `test a, b`, setting ZF from a&b without modifying
// either register; used to branch on a register's truthiness (0 vs
// nonzero) ahead of JumpIfZero/JumpIfNotZero.
func (g *Generator) TestRegReg(a, b Reg) int {
	return g.emit(rex(true, isExtended(b), false, isExtended(a)), 0x85, modrm(3, byte(b), byte(a)))
}

// Compare emits `cmp a, b`.
func (g *Generator) Compare(a, b Reg) int {
	return g.emit(rex(true, isExtended(b), false, isExtended(a)), 0x39, modrm(3, byte(b), byte(a)))
}

// setcc family: each writes a 0/1 byte into the low 8 bits of dst, which
// BinaryOp then zero-extends via AndRegImm(dst, 1).
func (g *Generator) setcc(op byte, dst Reg) int {
	return g.emit(rex(false, false, false, isExtended(dst)), 0x0F, op, modrm(3, 0, byte(dst)))
}

func (g *Generator) SetLess(dst Reg) int         { return g.setcc(0x9C, dst) }
func (g *Generator) SetGreater(dst Reg) int      { return g.setcc(0x9F, dst) }
func (g *Generator) SetLessEqual(dst Reg) int    { return g.setcc(0x9E, dst) }
func (g *Generator) SetGreaterEqual(dst Reg) int { return g.setcc(0x9D, dst) }
func (g *Generator) SetEqual(dst Reg) int        { return g.setcc(0x94, dst) }
func (g *Generator) SetNotEqual(dst Reg) int     { return g.setcc(0x95, dst) }

// Push/Pop spill a register to/from the stack. BinaryOp uses these to save
// the left operand across evaluation of the right, since the right
// sub-expression may itself call into the runtime and clobber every
// caller-saved register (§4.4 "Result discipline").
func (g *Generator) Push(r Reg) int {
	if isExtended(r) {
		return g.emit(rex(false, false, false, true), 0x50+lowBits(r))
	}
	return g.emit(0x50 + lowBits(r))
}

func (g *Generator) Pop(r Reg) int {
	if isExtended(r) {
		return g.emit(rex(false, false, false, true), 0x58+lowBits(r))
	}
	return g.emit(0x58 + lowBits(r))
}

// --- control flow --------------------------------------------------------------

// Label defines name at the current offset. Any fixups already recorded for
// name are left for the final ResolveLabels pass (keeps label definition and
// use order-independent, matching §4.4's forward/backward jump handling).
func (g *Generator) Label(name string) {
	if _, exists := g.labels[name]; exists {
		panic(fmt.Sprintf("codegen: label %q redefined", name))
	}
	g.labels[name] = len(g.buf)
}

// Jump emits an unconditional near jump to label (rel32, patched later).
func (g *Generator) Jump(label string) int { return g.condJump(0xE9, label, false) }

// JumpIfZero / JumpIfNotZero emit conditional near jumps testing the result
// of the most recent Compare/test-equivalent instruction.
func (g *Generator) JumpIfZero(label string) int    { return g.condJump(0x84, label, true) }
func (g *Generator) JumpIfNotZero(label string) int { return g.condJump(0x85, label, true) }

func (g *Generator) condJump(op byte, label string, twoByte bool) int {
	var off int
	if twoByte {
		off = g.emit(0x0F, op)
	} else {
		off = g.emit(op)
	}
	dispOff := len(g.buf)
	g.buf = append(g.buf, 0, 0, 0, 0)
	g.fixups = append(g.fixups, jumpFixup{offset: dispOff, label: label, width: 4})
	return off
}

// Call emits a direct near call to symbol. If the registry already knows the
// address, the call site is recorded with that absolute target and its 32-bit
// displacement is computed once the arena's base is known (PendingAbsCalls);
// otherwise the call site is recorded as a relocation and patched once the symbol is known
// (either by the registry, for runtime calls, or by the compiler's finalize
// phase, for forward-declared user functions).
func (g *Generator) Call(symbol string, resolvedAddr uintptr, known bool) int {
	off := g.emit(0xE8)
	dispOff := len(g.buf)
	g.buf = append(g.buf, 0, 0, 0, 0)
	if known {
		g.patchCallDisp(off, dispOff, resolvedAddr)
	} else {
		g.relocs = append(g.relocs, callReloc{offset: dispOff, symbol: symbol})
	}
	return off
}

func (g *Generator) patchCallDisp(callOff, dispOff int, target uintptr) {
	// rel32 is relative to the address of the instruction *after* the call,
	// i.e. dispOff+4; resolved against the arena's base once it is known, see
	// PatchReloc.
	_ = callOff
	g.emit32(dispOff, 0) // left zero; true patch happens with base known
	g.pendingAbs = append(g.pendingAbs, absCallSite{DispOff: dispOff, Target: target})
}

// absCallSite fields are exported so internal/compiler's link phase can read
// them back out of PendingAbsCalls.
type absCallSite struct {
	DispOff int
	Target  uintptr
}

// CallReg emits an indirect call through reg (`call reg`), used when the
// target address was only resolved via the fast-ID table at runtime (§4.5
// FunctionExpression, ID fallback).
func (g *Generator) CallReg(reg Reg) int {
	return g.emit(rex(false, false, false, isExtended(reg)), 0xFF, modrm(3, 2, byte(reg)))
}

// CallAddr emits `mov r11, addr; call r11`, a two-instruction indirect call
// to a fixed absolute address known at emit time, bypassing the
// symbol/relocation bookkeeping Call uses. R11 is never used as an argument
// or callee-saved register in this core's convention (§4.4), so it is free
// scratch for any caller that already has a resolved uintptr in hand (e.g.
// a fast-ID lookup result).
func (g *Generator) CallAddr(addr uintptr) int {
	off := g.emit(rex(true, false, false, true), 0xBB)
	g.buf = append(g.buf, make([]byte, 8)...)
	g.emit64At(off+2, int64(addr))
	g.emit(0x41, 0xFF, 0xD3) // call r11
	return off
}

// LeaRIP emits `lea dst, [rip+disp32]` (7 bytes: REX.W + 0x8D + ModRM with
// rm=101 + disp32). RIP-relative addressing is what makes the offset form
// of a function reference position-independent: the displacement between
// two sites in the same buffer survives the copy to the arena unchanged.
func (g *Generator) LeaRIP(dst Reg, disp int32) int {
	off := g.emit(rex(true, isExtended(dst), false, false), 0x8D, modrm(0, byte(dst), 5))
	g.buf = append(g.buf, make([]byte, 4)...)
	g.emit32(off+3, disp)
	return off
}

// --- frame management ----------------------------------------------------------

// Prologue emits `push rbp; mov rbp, rsp`.
func (g *Generator) Prologue() int {
	off := g.emit(0x55) // push rbp
	g.MovRegReg(RBP, RSP)
	return off
}

// SetFunctionStackSize rounds bytes up to a 16-byte multiple (floor 80, per
// §4.5's stack-size estimate) and remembers it for EmitFrameAllocation's
// `sub rsp, size`.
func (g *Generator) SetFunctionStackSize(bytes int64) {
	if bytes < 80 {
		bytes = 80
	}
	g.stackSize = ((bytes + 15) / 16) * 16
}

// EmitFrameAllocation emits `sub rsp, stackSize`; called right after
// Prologue, using whatever placeholder size SetFunctionStackSize currently
// holds. The true local-slot count for a function is only known once its
// whole body has been walked by the emitter, so the immediate this writes is
// provisional — the compiler calls PatchFrameAllocation with the real size
// once body emission finishes, using the offset this returns.
func (g *Generator) EmitFrameAllocation() int {
	return g.SubRegImm(RSP, int32(g.stackSize))
}

// PatchFrameAllocation rewrites the immediate operand of a previously-emitted
// `sub rsp, imm32` (the one EmitFrameAllocation produced at instrOff) with
// the function's final stack size, rounded up to 16 bytes with an 80-byte
// floor per §4.5. The instruction's own length never changes — only the
// four-byte immediate starting at instrOff+3 (REX + opcode + ModRM) — so this
// can run long after the rest of the function's bytes have been appended.
func (g *Generator) PatchFrameAllocation(instrOff int, bytes int64) {
	if bytes < 80 {
		bytes = 80
	}
	size := ((bytes + 15) / 16) * 16
	g.emit32(instrOff+3, int32(size))
}

// Epilogue emits `mov rsp, rbp; pop rbp; ret`.
func (g *Generator) Epilogue() int {
	g.MovRegReg(RSP, RBP)
	off := g.emit(0x5D) // pop rbp
	g.emit(0xC3)        // ret
	return off
}

// FunctionReturn is an alias kept distinct from Epilogue because some
// emitters (early `return` statements mid-body) need the full
// mov-rsp/pop/ret sequence without also closing the label scope Epilogue's
// caller manages.
func (g *Generator) FunctionReturn() int { return g.Epilogue() }

// --- finalize --------------------------------------------------------------

// ResolveLabels patches every recorded jump fixup now that all labels in
// this function (or module, if compiled as one unit) have been defined. It
// is a fatal, non-recoverable error for a fixup's label to be undefined —
// spec.md §4.4: "Any unresolved label is a fatal code-generation error."
func (g *Generator) ResolveLabels() error {
	for _, f := range g.fixups {
		target, ok := g.labels[f.label]
		if !ok {
			return fmt.Errorf("codegen: unresolved label %q", f.label)
		}
		rel := int32(target - (f.offset + f.width))
		g.emit32(f.offset, rel)
	}
	g.fixups = nil
	return nil
}

// PendingRelocs returns the symbols still awaiting an address, for the
// compiler's link phase to resolve via internal/registry.
func (g *Generator) PendingRelocs() []struct {
	Offset int
	Symbol string
} {
	out := make([]struct {
		Offset int
		Symbol string
	}, len(g.relocs))
	for i, r := range g.relocs {
		out[i] = struct {
			Offset int
			Symbol string
		}{r.offset, r.symbol}
	}
	return out
}

// PatchReloc writes the final rel32 displacement for a previously-unresolved
// call site once base (the arena's load address) and target are both known.
func (g *Generator) PatchReloc(dispOff int, base, target uintptr) {
	rel := int32(int64(target) - int64(base) - int64(dispOff) - 4)
	g.emit32(dispOff, rel)
}

// PendingAbsCalls returns call sites whose target address was already known
// at emit time (e.g. a runtime-library symbol resolved from
// internal/registry immediately) but still need the rel32 recomputed once
// the arena's final base address is known.
func (g *Generator) PendingAbsCalls() []absCallSite { return g.pendingAbs }
