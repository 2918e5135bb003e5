package codegen

// Reg is the logical register numbering spec.md §4.4 fixes for this core.
// It matches the x86-64 ModRM/REX encoding numbering directly except that
// R10/R11/R13-R15 have no Reg constant (R11 appears only as CallAddr's
// hard-coded scratch register; R12 is the sole callee-saved scratch register
// used to spill live pointers across external calls, per §4.4).
type Reg int

const (
	RAX Reg = 0
	RCX Reg = 1
	RDX Reg = 2
	RBX Reg = 3
	RSP Reg = 4
	RBP Reg = 5
	RSI Reg = 6
	RDI Reg = 7
	R8  Reg = 8
	R9  Reg = 9
	R12 Reg = 12
)

// isExtended reports whether encoding reg requires the REX.B/REX.R bit.
func isExtended(r Reg) bool { return r >= R8 }

// lowBits returns the 3-bit field used in ModRM/opcode encodings.
func lowBits(r Reg) byte { return byte(r) & 0x7 }

// ArgRegs is the SysV AMD64 integer argument order: RDI, RSI, RDX, RCX, R8,
// R9. Arguments beyond the sixth are pushed right-to-left (§4.4).
var ArgRegs = [6]Reg{RDI, RSI, RDX, RCX, R8, R9}
