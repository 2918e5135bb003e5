package sched

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/example/gots/internal/metrics"
)

// Controller implements C10: the three atomic counters (tracked here under
// one mutex rather than as separate atomics, since every transition already
// needs to check the combined sum and possibly wake WaitForCompletion —
// spec.md §4.10 describes the counters and the zero-sum wakeup together)
// plus the condition variable the CLI driver's wait_for_completion() blocks
// on.
type Controller struct {
	mu               sync.Mutex
	cond             *sync.Cond
	activeGoroutines int64
	pendingTimers    int64
	activeIO         int64
	forceExited      bool

	log     zerolog.Logger
	metrics *metrics.Metrics
	// watchdogLimiter throttles the periodic diagnostic log of pending-work
	// counters (SPEC_FULL.md §3) so a runaway timer storm — thousands of
	// transitions a second — can't flood stdout; one line per second survives
	// even under that load.
	watchdogLimiter *rate.Limiter
}

func NewController(log zerolog.Logger, m *metrics.Metrics) *Controller {
	c := &Controller{
		log:             log.With().Str("component", "controller").Logger(),
		metrics:         m,
		watchdogLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *Controller) quiescentLocked() bool {
	return c.forceExited || (c.activeGoroutines+c.pendingTimers+c.activeIO) == 0
}

func (c *Controller) transitionLocked() {
	if c.quiescentLocked() {
		c.cond.Broadcast()
	}
	if c.watchdogLimiter.Allow() {
		c.log.Debug().
			Int64("active_goroutines", c.activeGoroutines).
			Int64("pending_timers", c.pendingTimers).
			Int64("active_io", c.activeIO).
			Msg("controller watchdog")
	}
}

func (c *Controller) GoroutineStarted() {
	c.mu.Lock()
	c.activeGoroutines++
	c.transitionLocked()
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.GoroutinesActive.Inc()
		c.metrics.GoroutinesSpawned.Inc()
	}
}

func (c *Controller) GoroutineFinished(failed bool) {
	c.mu.Lock()
	c.activeGoroutines--
	c.transitionLocked()
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.GoroutinesActive.Dec()
		if failed {
			c.metrics.GoroutinesFailed.Inc()
		}
	}
}

func (c *Controller) TimerAdded() {
	c.mu.Lock()
	c.pendingTimers++
	c.transitionLocked()
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.TimersPending.Inc()
	}
}

func (c *Controller) TimerRemoved() {
	c.mu.Lock()
	c.pendingTimers--
	c.transitionLocked()
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.TimersPending.Dec()
	}
}

func (c *Controller) IOStarted() {
	c.mu.Lock()
	c.activeIO++
	c.transitionLocked()
	c.mu.Unlock()
}

func (c *Controller) IOFinished() {
	c.mu.Lock()
	c.activeIO--
	c.transitionLocked()
	c.mu.Unlock()
}

// WaitForCompletion blocks until active_goroutines+pending_timers+active_io
// reaches zero, or ForceExit is called. This is the call the CLI driver
// makes between running the entry point and __runtime_cleanup (§6).
func (c *Controller) WaitForCompletion() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for !c.quiescentLocked() {
		c.cond.Wait()
	}
}

// ForceExit sets the sum-is-zero flag unconditionally, per §4.10, letting a
// signal-driven shutdown (SIGINT/SIGTERM, SPEC_FULL.md §5) release a blocked
// WaitForCompletion without actually draining outstanding work.
func (c *Controller) ForceExit() {
	c.mu.Lock()
	c.forceExited = true
	c.cond.Broadcast()
	c.mu.Unlock()
}
