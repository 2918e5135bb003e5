//go:build amd64

package native

import (
	"fmt"
	"runtime"
)

// Call invokes addr with up to six integer arguments in the SysV AMD64
// registers (RDI, RSI, RDX, RCX, R8, R9 — internal/codegen.ArgRegs) and
// returns the callee's RAX.
func (Caller) Call(addr uintptr, args []int64) (int64, error) {
	if addr == 0 {
		return 0, fmt.Errorf("native: call of null code address")
	}
	if len(args) > 6 {
		return 0, fmt.Errorf("native: %d arguments exceed the six SysV integer registers", len(args))
	}
	var a [6]int64
	copy(a[:], args)
	return callWithHeadroom(addr, &a), nil
}

// callWithHeadroom forces a large Go stack frame before entering foreign
// code. The JIT'd callee borrows the goroutine stack without morestack
// checks, so any growth has to happen here, while only Go frames are live
// and the runtime can still copy the stack.
//
//go:noinline
func callWithHeadroom(addr uintptr, a *[6]int64) int64 {
	var headroom [64 * 1024]byte
	ret := sysvCall(addr, a[0], a[1], a[2], a[3], a[4], a[5])
	runtime.KeepAlive(&headroom)
	return ret
}

// sysvCall is implemented in call_amd64.s: load the six argument
// registers, align RSP to the 16-byte SysV boundary, call addr, restore.
func sysvCall(addr uintptr, a0, a1, a2, a3, a4, a5 int64) int64
