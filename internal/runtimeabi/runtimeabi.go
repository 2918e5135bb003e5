// Package runtimeabi implements §6's runtime ABI: the C-linkage functions
// emitted code calls into by name through internal/registry. Every exported
// family here backs one row of spec.md's "Runtime ABI (C linkage) consumed
// by emitted code" table.
//
// The value types spec.md marks out of scope (GoTSString's small-string
// optimization, typed arrays, Date, Regex) are "external collaborators,
// specified only at their interfaces" (§1): this package gives each of
// their entry points a working Go-side implementation backed by a handle
// table rather than reproducing their internal representation, which is
// enough to make every testable property in §8 exercisable without
// reimplementing the excluded subsystems.
//
// Calling discipline: every ABI function takes and returns int64, the
// single tagged-value width the code generator ever holds in a register
// (§4.4). Pointer-shaped results (strings, arrays, objects) are handle
// table indices, not real pointers — design-notes §9 flags the source's
// pointer-tagging heuristic as a hazard and asks a reimplementation not to
// reproduce it; handles sidestep the problem entirely since a handle is
// never mistaken for a small integer.
//
// The calling boundary has two directions. Go-to-SysV — the host invoking
// compiled code — is implemented by internal/native and wired in as the
// NativeCaller. SysV-to-Go — compiled code calling the functions this
// package registers — remains closed: the registry marks every RegisterAll
// address Go-hosted, the compiler reports call sites into them, and the
// embedder refuses execution of such programs (see register.go and
// DESIGN.md, "The native-call boundary"). Everything in this package up to
// that boundary — the handle tables and the Go-level semantics of every
// ABI call — is real and independently testable.
package runtimeabi

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/example/gots/internal/classreg"
	"github.com/example/gots/internal/registry"
	"github.com/example/gots/internal/sched"
	"github.com/example/gots/internal/timer"
)

// ABI bundles every stateful table the runtime functions close over:
// string intern pool, array/object handle tables, and the shared
// scheduler/timer/class registries built elsewhere in the program. One ABI
// is created per process, matching the process-wide-registry shape
// design-notes §9 asks for (owned explicitly, not a package-level
// singleton — except the string pool, which §9 allows as
// process-lifetime).
type ABI struct {
	log zerolog.Logger

	strings  *stringTable
	arrays   *arrayTable
	objects  *objectTable
	regexes  *regexTable
	promises *promiseTable

	pool    *sched.Pool
	timers  *timer.System
	classes *classreg.Registry
	funcs   FuncLookup
	native  NativeCaller
	console *Console

	// goroutineCtx holds the goroutine id the running JIT'd code last
	// declared via __set_goroutine_context; timer registrations attribute
	// ownership to it so ClearGoroutineTimers works (§4.10).
	goroutineCtx atomic.Int64

	staticsMu sync.Mutex
	statics   map[staticKey]int64
}

// staticKey addresses one static class property: __static_set_property and
// __static_get_property identify the slot by class-name handle plus index.
type staticKey struct {
	classHandle int64
	index       int64
}

// NativeCaller invokes a raw SysV-ABI code address (as produced by
// internal/arena) with a fixed argument list and hands back its RAX.
// internal/native implements it with a per-arch assembly trampoline; it
// stays an interface here so this package never depends on assembly
// directly and tests can substitute a recorder. The target must be real
// SysV machine code that does not call back into Go — programs whose
// emitted code references Go-hosted ABI symbols are refused before
// execution via CompileResult.HostSymbols (see RegisterAll). Goroutine
// spawns degrade to ErrNativeCallUnavailable when nil.
type NativeCaller interface {
	Call(addr uintptr, args []int64) (int64, error)
}

// FuncLookup is what the goroutine family needs: resolving a fast-dispatch
// ID or a finalized address back to something callable.
// *registry.Registry satisfies it, and cmd/gotsc passes its registry here.
// Taking an interface keeps internal/runtimeabi from importing
// internal/compiler, the same pattern internal/emit.FuncResolver uses.
type FuncLookup interface {
	LookupFast(id uint16) (uintptr, bool)
	RegisterFast(addr uintptr, argc int, cc registry.CallingConvention) (uint16, error)
}

// New builds an ABI instance. pool/timers/classes may be nil in contexts
// that only need the value-type families (e.g. unit tests exercising
// string/array semantics in isolation).
func New(log zerolog.Logger, pool *sched.Pool, timers *timer.System, classes *classreg.Registry, funcs FuncLookup, native NativeCaller) *ABI {
	return &ABI{
		log:      log.With().Str("component", "runtimeabi").Logger(),
		strings:  newStringTable(),
		arrays:   newArrayTable(),
		objects:  newObjectTable(),
		regexes:  newRegexTable(),
		promises: newPromiseTable(),
		pool:     pool,
		timers:   timers,
		classes:  classes,
		funcs:    funcs,
		native:   native,
		console:  newConsole(),
		statics:  make(map[staticKey]int64),
	}
}

// InternLiteral implements internal/emit.ConstPool: the compiler interns
// string constants into the same pool emitted code reads at run time, so a
// literal's immediate handle and a runtime __string_intern of equal bytes
// agree.
func (a *ABI) InternLiteral(s string) int64 {
	return a.strings.Intern(s)
}

// ErrNativeCallUnavailable is returned by the goroutine-spawn family when no
// NativeCaller was supplied to New.
var ErrNativeCallUnavailable = fmt.Errorf("runtimeabi: no NativeCaller wired in for raw code-address invocation")

// handleTable is the shared shape behind strings/arrays/objects/regexes: a
// dense, mutex-guarded, append-mostly slice addressed by a 1-based handle
// (0 is reserved so a zeroed register is never mistaken for a live
// handle, mirroring registry.Registry's id-0-means-unregistered
// convention).
type handleTable[T any] struct {
	mu    sync.RWMutex
	items []T
}

func (t *handleTable[T]) alloc(v T) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, v)
	return int64(len(t.items))
}

func (t *handleTable[T]) get(h int64) (T, bool) {
	var zero T
	if h <= 0 {
		return zero, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx := int(h) - 1
	if idx >= len(t.items) {
		return zero, false
	}
	return t.items[idx], true
}

