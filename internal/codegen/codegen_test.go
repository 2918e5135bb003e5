package codegen

import (
	"encoding/binary"
	"testing"

	"github.com/rs/zerolog"
)

func newGen() *Generator {
	return New(zerolog.Nop())
}

func TestResolveLabelsPatchesForwardJump(t *testing.T) {
	g := newGen()
	jmpOff := g.Jump("end")
	g.Label("end")
	if err := g.ResolveLabels(); err != nil {
		t.Fatal(err)
	}
	// Jump opcode is 0xE9 at jmpOff; the rel32 operand starts at jmpOff+1 and
	// is relative to the byte after the 4-byte displacement.
	dispOff := jmpOff + 1
	rel := int32(binary.LittleEndian.Uint32(g.Bytes()[dispOff : dispOff+4]))
	want := int32(len(g.Bytes())) - int32(dispOff+4)
	if rel != want {
		t.Errorf("rel32 = %d, want %d", rel, want)
	}
}

func TestResolveLabelsUnresolvedIsFatal(t *testing.T) {
	g := newGen()
	g.Jump("nowhere")
	if err := g.ResolveLabels(); err == nil {
		t.Error("expected an error for an undefined label per spec.md §4.4")
	}
}

func TestLabelRedefinitionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("redefining a label should panic")
		}
	}()
	g := newGen()
	g.Label("dup")
	g.Label("dup")
}

func TestSetFunctionStackSizeRoundsAndFloors(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  int64
	}{
		{"below floor rounds up to 80", 16, 80},
		{"exact multiple of 16 stays", 96, 96},
		{"non-multiple rounds up", 90, 96},
		{"zero floors to 80", 0, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGen()
			g.SetFunctionStackSize(tt.bytes)
			if g.stackSize != tt.want {
				t.Errorf("stackSize = %d, want %d", g.stackSize, tt.want)
			}
		})
	}
}

func TestPatchFrameAllocationRewritesImmediateOnly(t *testing.T) {
	g := newGen()
	g.SetFunctionStackSize(80)
	instrOff := g.EmitFrameAllocation()
	lenBefore := g.Len()
	g.PatchFrameAllocation(instrOff, 200)
	if g.Len() != lenBefore {
		t.Errorf("PatchFrameAllocation changed instruction length: %d -> %d", lenBefore, g.Len())
	}
	imm := int32(binary.LittleEndian.Uint32(g.Bytes()[instrOff+3 : instrOff+7]))
	if imm != 208 { // 200 rounded up to a multiple of 16
		t.Errorf("patched immediate = %d, want 208", imm)
	}
}

func TestPendingRelocsRoundTrip(t *testing.T) {
	g := newGen()
	g.Call("__console_log", 0, false)
	relocs := g.PendingRelocs()
	if len(relocs) != 1 || relocs[0].Symbol != "__console_log" {
		t.Fatalf("PendingRelocs = %+v, want one entry for __console_log", relocs)
	}
}

func TestPatchRelocComputesRel32(t *testing.T) {
	g := newGen()
	dispOff := g.Call("__missing", 0, false)
	_ = dispOff
	relocs := g.PendingRelocs()
	base := uintptr(0x1000)
	target := uintptr(0x2000)
	g.PatchReloc(relocs[0].Offset, base, target)
	rel := int32(binary.LittleEndian.Uint32(g.Bytes()[relocs[0].Offset : relocs[0].Offset+4]))
	want := int32(int64(target) - int64(base) - int64(relocs[0].Offset) - 4)
	if rel != want {
		t.Errorf("rel = %d, want %d", rel, want)
	}
}

func TestLeaRIPEncodesSevenBytesWithDisp(t *testing.T) {
	g := newGen()
	off := g.LeaRIP(RAX, -32)
	if g.Len()-off != 7 {
		t.Fatalf("lea encoded %d bytes, want 7 (the constant call sites subtract)", g.Len()-off)
	}
	if got := int32(binary.LittleEndian.Uint32(g.Bytes()[off+3 : off+7])); got != -32 {
		t.Errorf("disp32 = %d, want -32", got)
	}
}

func TestPushEncodesExtendedRegistersWithRex(t *testing.T) {
	g := newGen()
	// R8 requires a REX.B prefix; RAX does not. Both must still encode as
	// single push ops (plus the optional REX byte).
	g.Push(RAX)
	g.Push(R8)
	if l := g.Len(); l != 1+2 {
		t.Errorf("Len() = %d, want 3 (1-byte push rax + 2-byte push r8)", l)
	}
}
