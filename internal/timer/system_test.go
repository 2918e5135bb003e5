package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/gots/internal/config"
	"github.com/example/gots/internal/sched"
)

func newTestSystem(t *testing.T) (*System, *sched.Controller, context.CancelFunc) {
	t.Helper()
	ctrl := sched.NewController(zerolog.Nop(), nil)
	cfg := config.TimersConfig{MinResolution: time.Millisecond, MaxSleep: 50 * time.Millisecond}
	s := New(cfg, ctrl, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	return s, ctrl, cancel
}

// End-to-end scenario 4 from spec.md §8: two timeouts scheduled out of
// firing order must still fire in expiry order.
func TestTimersFireInExpiryOrder(t *testing.T) {
	s, _, cancel := newTestSystem(t)
	defer cancel()

	var mu sync.Mutex
	var order []string

	s.SetTimeout(1, func() {
		mu.Lock()
		order = append(order, "b")
		mu.Unlock()
	}, 40*time.Millisecond)
	s.SetTimeout(1, func() {
		mu.Lock()
		order = append(order, "a")
		mu.Unlock()
	}, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("fire order = %v, want [a b]", order)
	}
}

// set_timeout(cb, d) followed by clear_timer(id) before d elapses => cb
// never fires (spec.md §8 round-trip law).
func TestClearTimerBeforeExpiryPreventsFire(t *testing.T) {
	s, _, cancel := newTestSystem(t)
	defer cancel()

	fired := false
	id := s.SetTimeout(1, func() { fired = true }, 30*time.Millisecond)
	if !s.ClearTimer(id) {
		t.Fatal("ClearTimer should succeed before the timer fires")
	}
	time.Sleep(80 * time.Millisecond)
	if fired {
		t.Error("cleared timer fired anyway")
	}
}

func TestClearTimerTwiceReturnsFalseSecondTime(t *testing.T) {
	s, _, cancel := newTestSystem(t)
	defer cancel()

	id := s.SetTimeout(1, func() {}, time.Second)
	if !s.ClearTimer(id) {
		t.Fatal("first clear should succeed")
	}
	if s.ClearTimer(id) {
		t.Error("clearing an already-cleared timer should report false")
	}
}

func TestSetIntervalRecurs(t *testing.T) {
	s, _, cancel := newTestSystem(t)
	defer cancel()

	var mu sync.Mutex
	count := 0
	id := s.SetInterval(1, func() {
		mu.Lock()
		count++
		mu.Unlock()
	}, 10*time.Millisecond)

	time.Sleep(55 * time.Millisecond)
	s.ClearTimer(id)

	mu.Lock()
	defer mu.Unlock()
	if count < 3 {
		t.Errorf("interval fired %d times in ~55ms at a 10ms period, want at least 3 (true recurrence, not fire-once)", count)
	}
}

// Termination of a goroutine implies timer_count_for(G) == 0 after cleanup
// (spec.md §8).
func TestClearGoroutineTimersClearsAllOwnedTimers(t *testing.T) {
	s, _, cancel := newTestSystem(t)
	defer cancel()

	fired := 0
	var mu sync.Mutex
	s.SetTimeout(7, func() { mu.Lock(); fired++; mu.Unlock() }, 20*time.Millisecond)
	s.SetInterval(7, func() { mu.Lock(); fired++; mu.Unlock() }, 20*time.Millisecond)
	s.SetTimeout(8, func() { mu.Lock(); fired++; mu.Unlock() }, 20*time.Millisecond) // different goroutine

	s.ClearGoroutineTimers(7)
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Errorf("fired = %d, want exactly 1 (only goroutine 8's timer)", fired)
	}
}
