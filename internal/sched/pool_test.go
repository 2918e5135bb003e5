package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestPool(t *testing.T) (*Pool, *Controller, context.CancelFunc) {
	t.Helper()
	ctrl := NewController(zerolog.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPool(2, 8, ctrl, nil, zerolog.Nop())
	p.Start(ctx)
	return p, ctrl, cancel
}

func TestSpawnResolvesPromiseWithTaskResult(t *testing.T) {
	p, _, cancel := newTestPool(t)
	defer cancel()

	promise := p.Spawn(func() (int64, error) { return 21 * 2, nil })
	if got := promise.Await(); got != 42 {
		t.Errorf("promise resolved to %d, want 42", got)
	}
	if promise.Failed() {
		t.Error("a successful task should not mark its promise failed")
	}
}

func TestSpawnTaskErrorFailsPromiseWithSentinel(t *testing.T) {
	p, _, cancel := newTestPool(t)
	defer cancel()

	promise := p.Spawn(func() (int64, error) { return 0, errors.New("boom") })
	if got := promise.Await(); got != 0 {
		t.Errorf("failed task resolved to %d, want sentinel 0", got)
	}
	if !promise.Failed() {
		t.Error("a task returning an error should mark its promise failed")
	}
}

func TestSpawnPanicIsContainedAsFailure(t *testing.T) {
	p, _, cancel := newTestPool(t)
	defer cancel()

	promise := p.Spawn(func() (int64, error) {
		panic("unexpected")
	})
	if got := promise.Await(); got != 0 {
		t.Errorf("panicking task resolved to %d, want sentinel 0", got)
	}
	if !promise.Failed() {
		t.Error("a panicking task should mark its promise failed, not crash the worker")
	}
}

func TestSpawnParallelTasksAllComplete(t *testing.T) {
	p, _, cancel := newTestPool(t)
	defer cancel()

	const n = 8
	promises := make([]*Promise, n)
	for i := 0; i < n; i++ {
		i := i
		promises[i] = p.Spawn(func() (int64, error) { return int64(i * i), nil })
	}
	for i, pr := range promises {
		if got := pr.Await(); got != int64(i*i) {
			t.Errorf("promise %d = %d, want %d", i, got, i*i)
		}
	}
}

func TestControllerTracksActiveGoroutineCount(t *testing.T) {
	p, ctrl, cancel := newTestPool(t)
	defer cancel()

	done := make(chan struct{})
	block := make(chan struct{})
	promise := p.Spawn(func() (int64, error) {
		close(done)
		<-block
		return 1, nil
	})
	<-done
	time.Sleep(5 * time.Millisecond)

	waitDone := make(chan struct{})
	go func() {
		ctrl.WaitForCompletion()
		close(waitDone)
	}()
	select {
	case <-waitDone:
		t.Fatal("controller reported quiescent while a goroutine is still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(block)
	promise.Await()
	select {
	case <-waitDone:
	case <-time.After(time.Second):
		t.Fatal("controller did not reach quiescence after the goroutine finished")
	}
}
