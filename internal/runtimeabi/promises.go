package runtimeabi

import "github.com/example/gots/internal/sched"

// promiseTable hands out the same int64-handle shape every other ABI
// family uses rather than leaking a *sched.Promise pointer into emitted
// code's registers (design-notes §9's no-raw-pointers rule applies here
// just as much as to strings/arrays/objects).
type promiseTable struct {
	handleTable[*sched.Promise]
}

func newPromiseTable() *promiseTable { return &promiseTable{} }

func (t *promiseTable) wrap(p *sched.Promise) int64 { return t.alloc(p) }

// Resolve backs __promise_resolve: assign a promise's final value from
// emitted code. Later calls are ignored, per the single-assignment
// invariant (§3).
func (a *ABI) Resolve(handle int64, value int64) int64 {
	p, ok := a.promises.get(handle)
	if !ok {
		return 0
	}
	p.Resolve(value)
	return 1
}

// Await backs __promise_await: block the calling goroutine (a worker, or
// the main thread for a top-level `await`) until the promise settles and
// return its value, matching §4.7's spin+yield contract at the Go level
// (Promise.Await already parks on a channel rather than literally
// spinning, the direct analogue 24-sync-mutex-vs-rwmutex's benchmark
// package uses for "block, don't busy-wait").
func (a *ABI) Await(handle int64) int64 {
	p, ok := a.promises.get(handle)
	if !ok {
		return 0
	}
	return p.Await()
}

// All backs __promise_all: the argument is an array-literal handle holding
// one promise handle per element (Promise.all([p1, p2]) in GoTS source),
// matching emitMethodCall's Promise.all lowering, which leaves the array's
// own handle in RDI rather than unpacking it element by element. Resolves
// once every entry has settled, carrying the last one's value (§4.7).
func (a *ABI) All(arrayHandle int64) int64 {
	ids, _ := a.arrays.Data(arrayHandle)
	promises := make([]*sched.Promise, 0, len(ids))
	for _, id := range ids {
		if p, ok := a.promises.get(id); ok {
			promises = append(promises, p)
		}
	}
	composite := sched.All(promises)
	return a.promises.wrap(composite)
}
