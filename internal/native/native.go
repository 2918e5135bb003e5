// Package native implements the host-to-JIT half of the calling-convention
// boundary internal/runtimeabi.NativeCaller names: invoking a raw SysV
// AMD64 code address — the entry point internal/arena finalized, or a
// compiled function a goroutine spawn resolved — from Go, and handing its
// RAX back as an int64.
//
// The callee runs on the calling goroutine's stack with no stack-growth
// checks and no Go safepoints until it returns, which imposes two rules on
// what may be called through here:
//
//   - The target must not call back into Go. Go-implemented runtime
//     symbols use Go's internal ABI, and the runtime cannot unwind across
//     foreign frames, so a SysV call into one corrupts the goroutine. The
//     compiler enforces this statically: a program whose emitted code
//     references any Go-hosted symbol is reported via
//     CompileResult.HostSymbols and refused execution (see DESIGN.md,
//     "The native-call boundary").
//   - The target's stack use must fit the headroom Call reserves before
//     entering foreign code (64 KiB — hundreds of JIT frames at the
//     80-byte floor internal/codegen enforces).
package native

// Caller invokes JIT-compiled SysV code. The zero value is ready to use;
// the per-architecture Call implementations live in call_amd64.go and
// call_other.go.
type Caller struct{}
