package runtimeabi

import (
	"github.com/example/gots/internal/registry"
	"github.com/example/gots/internal/sched"
)

// spawnTask builds the sched.Task closure shared by every spawn variant:
// invoke the target through the NativeCaller shim and turn its result (or
// error) into the (int64, error) shape sched.Pool.run expects.
func (a *ABI) spawnTask(addr uintptr, args []int64) sched.Task {
	return func() (int64, error) {
		if a.native == nil {
			return 0, ErrNativeCallUnavailable
		}
		return a.native.Call(addr, args)
	}
}

// SpawnDirect backs __goroutine_spawn_direct: the target function's final
// arena address is already known at emit time (§4.5's first preference).
func (a *ABI) SpawnDirect(addr uintptr, args []int64) int64 {
	p := a.pool.Spawn(a.spawnTask(addr, args))
	return a.promises.wrap(p)
}

// SpawnWithScope is an alias of SpawnDirect. RegisterAll binds
// __goroutine_spawn_with_scope and __goroutine_spawn_with_offset to the
// direct-spawn shim rather than to this method; emitted code always hands a
// spawn a final address, since the offset form is materialized by a
// RIP-relative lea at the call site.
func (a *ABI) SpawnWithScope(addr uintptr, args []int64) int64 {
	return a.SpawnDirect(addr, args)
}

// SpawnFast backs __goroutine_spawn_fast: the target is known only by its
// dense registry ID (third preference, used for functions not yet emitted
// when the call site was compiled).
func (a *ABI) SpawnFast(id uint16, args []int64) int64 {
	addr, ok := a.funcs.LookupFast(id)
	if !ok {
		p := sched.NewPromise()
		p.Fail(0)
		return a.promises.wrap(p)
	}
	p := a.pool.Spawn(a.spawnTask(addr, args))
	return a.promises.wrap(p)
}

// RegisterFunctionFast and LookupFunctionFast back the two halves of
// §4.2's dense fast-dispatch table from the runtime-ABI side; the registry
// itself (internal/registry.Registry) does the real bookkeeping, these are
// thin pass-throughs so emitted code only ever needs one calling
// convention (symbol name -> registry lookup) for every runtime facility.
func (a *ABI) LookupFunctionFast(id uint16) (uintptr, bool) {
	return a.funcs.LookupFast(id)
}

// RegisterFunctionFast backs __register_function_fast(ptr, argc, cc) -> u16:
// the runtime-side half of §4.2's registration path, used by embedders that
// hand the scheduler a native-code target the compiler never saw. Returns 0
// once the id space is exhausted (id 0 means "unregistered", §3).
func (a *ABI) RegisterFunctionFast(ptr int64, argc int64) int64 {
	id, err := a.funcs.RegisterFast(uintptr(ptr), int(argc), registry.SysV)
	if err != nil {
		a.log.Error().Err(err).Msg("fast function registration failed")
		return 0
	}
	return int64(id)
}

// SetGoroutineContext backs __set_goroutine_context: JIT'd code declares
// which goroutine id is executing on the current worker, so subsequent
// timer registrations are attributed to it (§4.10's per-goroutine timer
// ownership).
func (a *ABI) SetGoroutineContext(id int64) int64 {
	a.goroutineCtx.Store(id)
	return 0
}
