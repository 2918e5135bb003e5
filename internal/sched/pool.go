package sched

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/example/gots/internal/metrics"
)

// Task is a JIT-compiled goroutine body reduced to its Go-callable shape: it
// runs on whichever worker dequeues it and returns the value (or
// error-derived sentinel) that resolves its Promise. The actual machine-code
// trampoline that turns a registry address into one of these lives in
// internal/runtimeabi; sched only ever deals with this already-wrapped form,
// mirroring how 22-worker-pool-with-backpressure's WorkerPool is generic
// over its job/process type.
type Task func() (int64, error)

// TimerOwner is implemented by internal/timer's TimerSystem; Pool calls it
// when a goroutine finishes so any timers it still owns are cleared,
// matching §4.7 step 2 ("any timers owned by the goroutine are cleared").
type TimerOwner interface {
	ClearGoroutineTimers(goroutineID uint64)
}

type job struct {
	id      uint64
	task    Task
	promise *Promise
}

// Pool is the fixed-size, one-worker-per-hardware-thread pool §5 specifies.
// Its shape follows 22-worker-pool-with-backpressure's WorkerPool: a
// buffered job channel enforces the bounded queue, a WaitGroup tracks
// worker lifetime, and Start/Close separate setup from teardown.
type Pool struct {
	jobs       chan job
	numWorkers int
	wg         sync.WaitGroup
	nextID     atomic.Uint64

	ctrl    *Controller
	timers  TimerOwner
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewPool builds a pool with numWorkers workers (0 means GOMAXPROCS, the
// "hardware concurrency" default) and the given queue depth.
func NewPool(numWorkers, queueSize int, ctrl *Controller, m *metrics.Metrics, log zerolog.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		jobs:       make(chan job, queueSize),
		numWorkers: numWorkers,
		ctrl:       ctrl,
		metrics:    m,
		log:        log.With().Str("component", "sched").Logger(),
	}
}

// SetTimerOwner wires the timer system in after construction, avoiding an
// import cycle (internal/timer needs *Pool's Controller, not the reverse).
func (p *Pool) SetTimerOwner(t TimerOwner) { p.timers = t }

// Start launches the worker goroutines. Workers run until ctx is cancelled
// or the jobs channel is closed and drained, exactly the shutdown shape
// 22-worker-pool-with-backpressure's Start uses.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			p.run(j)
		}
	}
}

// run executes one goroutine's task to completion. A panic inside task is
// the Go-level stand-in for "a task that throws" (§4.6 Failure Semantics):
// it is contained here, logged, and turned into a FAILED promise rather
// than crashing the worker.
func (p *Pool) run(j job) {
	failed := false
	value, err := p.invoke(j.task, &failed)
	if err != nil {
		p.log.Error().Err(err).Uint64("goroutine_id", j.id).Msg("goroutine task failed")
	}
	if p.timers != nil {
		p.timers.ClearGoroutineTimers(j.id)
	}
	if failed {
		j.promise.Fail(0)
	} else {
		j.promise.Resolve(value)
	}
	p.ctrl.GoroutineFinished(failed)
}

func (p *Pool) invoke(task Task, failed *bool) (value int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			*failed = true
			err = fmt.Errorf("goroutine panic: %v", r)
		}
	}()
	v, taskErr := task()
	if taskErr != nil {
		*failed = true
		return 0, taskErr
	}
	return v, nil
}

// Spawn implements §4.7's spawn(task) -> Promise: allocate a goroutine id
// and a Promise, enqueue the wrapped task, and return the Promise
// immediately. Enqueuing blocks if the queue is full — backpressure, rather
// than the reject-with-error strategy 22-worker-pool-with-backpressure
// demonstrates, since `go f()` has no caller-observable error path in GoTS.
func (p *Pool) Spawn(task Task) *Promise {
	id := p.nextID.Add(1)
	promise := NewPromise()
	p.ctrl.GoroutineStarted()
	p.jobs <- job{id: id, task: task, promise: promise}
	return promise
}

// Close signals no more tasks will be submitted and waits for the workers;
// each exits once the queue is drained, or earlier if ctx (passed to Start)
// is cancelled.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// QueueDepth returns the current number of jobs waiting in the queue.
func (p *Pool) QueueDepth() int { return len(p.jobs) }
