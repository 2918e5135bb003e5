// Package sched implements C7 (the goroutine work-stealing-style thread
// pool), C8 (Promise), and C10 (the main-thread quiescence controller).
package sched

import "sync"

// Promise is a single-assignment value cell. Exactly one of Resolve/Fail
// ever takes effect; later calls are no-ops, matching §4.7's "resolves the
// Promise" (singular) contract. Await blocks until that first assignment is
// visible, which gives the sequentially-consistent guarantee §5 requires:
// once one goroutine observes resolved, every goroutine does.
type Promise struct {
	once  sync.Once
	done  chan struct{}
	value int64
	fail  bool
}

// NewPromise returns an unresolved promise.
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolve assigns value as the promise's final result.
func (p *Promise) Resolve(value int64) {
	p.once.Do(func() {
		p.value = value
		close(p.done)
	})
}

// Fail resolves the promise with the failure sentinel (spec.md §4.6
// Failure Semantics: "resolves its Promise with a sentinel (integer 0)").
// The distinct method exists so callers can still tell FAILED apart from a
// genuine zero result via Failed(), even though the emitted value is the
// same sentinel either way.
func (p *Promise) Fail(sentinel int64) {
	p.once.Do(func() {
		p.value = sentinel
		p.fail = true
		close(p.done)
	})
}

// Await blocks until the promise is resolved and returns its value. This is
// the Go-side implementation backing __promise_await; an emitted `await`
// makes a single __promise_await call, which parks here on the done
// channel rather than spinning.
func (p *Promise) Await() int64 {
	<-p.done
	return p.value
}

// IsResolved reports, without blocking, whether the promise has been
// assigned.
func (p *Promise) IsResolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Failed reports whether the promise resolved via Fail rather than Resolve.
// Blocks like Await since the answer isn't meaningful before resolution.
func (p *Promise) Failed() bool {
	<-p.done
	return p.fail
}

// All implements §4.7's Promise.all: it awaits every entry sequentially (in
// a background goroutine, so All itself never blocks its caller) and
// resolves the composite only once the last entry has resolved, carrying
// that entry's value forward — "acceptable because workers are parallel".
func All(promises []*Promise) *Promise {
	composite := NewPromise()
	if len(promises) == 0 {
		composite.Resolve(0)
		return composite
	}
	go func() {
		var last int64
		anyFailed := false
		for _, p := range promises {
			last = p.Await()
			if p.Failed() {
				anyFailed = true
			}
		}
		if anyFailed {
			composite.Fail(last)
			return
		}
		composite.Resolve(last)
	}()
	return composite
}
