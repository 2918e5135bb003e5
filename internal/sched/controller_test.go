package sched

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWaitForCompletionBlocksUntilQuiescent(t *testing.T) {
	c := NewController(zerolog.Nop(), nil)
	c.GoroutineStarted()

	done := make(chan struct{})
	go func() {
		c.WaitForCompletion()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitForCompletion returned while a goroutine is still active")
	case <-time.After(20 * time.Millisecond):
	}

	c.GoroutineFinished(false)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForCompletion did not return after the last goroutine finished")
	}
}

func TestWaitForCompletionWithNoWorkReturnsImmediately(t *testing.T) {
	c := NewController(zerolog.Nop(), nil)
	done := make(chan struct{})
	go func() {
		c.WaitForCompletion()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForCompletion should return immediately with no outstanding work")
	}
}

func TestForceExitReleasesWaiters(t *testing.T) {
	c := NewController(zerolog.Nop(), nil)
	c.TimerAdded() // pending work that will never finish on its own
	done := make(chan struct{})
	go func() {
		c.WaitForCompletion()
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	c.ForceExit()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ForceExit should unblock WaitForCompletion unconditionally")
	}
}

func TestCountersAllThreeMustReachZero(t *testing.T) {
	c := NewController(zerolog.Nop(), nil)
	c.GoroutineStarted()
	c.TimerAdded()
	c.IOStarted()

	done := make(chan struct{})
	go func() {
		c.WaitForCompletion()
		close(done)
	}()

	c.GoroutineFinished(false)
	c.TimerRemoved()
	select {
	case <-done:
		t.Fatal("WaitForCompletion returned with active_io still outstanding")
	case <-time.After(20 * time.Millisecond):
	}

	c.IOFinished()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForCompletion did not return once all three counters hit zero")
	}
}
