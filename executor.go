package flow_go

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"
)

// Task is one unit of work handed to an Executor.  worker labels the goroutine
// that runs it and ends up in the node's trace.
type Task func(worker string)

// Executor runs submitted tasks concurrently.
//
// Submit must not block waiting for capacity: the engine submits successor
// triggers from inside running tasks, and a blocking Submit could starve the
// executor.  An error means the task was not accepted and will never run.
type Executor interface {
	Submit(task Task) error
}

// GoExecutor runs every task on its own goroutine, tracked by an errgroup.Group.
// The zero value is ready to use.
type GoExecutor struct {
	g      errgroup.Group
	seq    atomic.Int64
	closed atomic.Bool
}

var _ Executor = (*GoExecutor)(nil)

// NewGoExecutor returns an empty GoExecutor.
func NewGoExecutor() *GoExecutor {
	return &GoExecutor{}
}

// Submit starts task on a new goroutine.
func (e *GoExecutor) Submit(task Task) error {
	if task == nil {
		return fmt.Errorf("submit: task is nil: %w", ErrInvalidArgument)
	}
	if e.closed.Load() {
		return ErrExecutorClosed
	}
	label := fmt.Sprintf("goroutine-%d", e.seq.Add(1))
	e.g.Go(func() error {
		task(label)
		return nil
	})
	return nil
}

// Close waits for every submitted task, including tasks submitted by running
// tasks, and rejects later submissions.
func (e *GoExecutor) Close() error {
	err := e.g.Wait()
	e.closed.Store(true)
	return err
}

// BoundedExecutor caps the number of goroutines running tasks at once using a
// conc pool.  Submit never blocks: tasks beyond the cap wait in the pool's
// hand-off instead of in the caller.
type BoundedExecutor struct {
	pool  *pool.Pool
	slots chan int

	mu       sync.Mutex
	idle     *sync.Cond
	inflight int
	closed   bool
}

var _ Executor = (*BoundedExecutor)(nil)

// NewBoundedExecutor returns an executor running at most limit tasks at a time.
// A limit below one is treated as one.
func NewBoundedExecutor(limit int) *BoundedExecutor {
	if limit < 1 {
		limit = 1
	}
	e := &BoundedExecutor{
		pool:  pool.New().WithMaxGoroutines(limit),
		slots: make(chan int, limit),
	}
	e.idle = sync.NewCond(&e.mu)
	for i := 1; i <= limit; i++ {
		e.slots <- i
	}
	return e
}

// Submit queues task.
func (e *BoundedExecutor) Submit(task Task) error {
	if task == nil {
		return fmt.Errorf("submit: task is nil: %w", ErrInvalidArgument)
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrExecutorClosed
	}
	e.inflight++
	e.mu.Unlock()

	// pool.Go blocks while every goroutine is busy, so the hand-off runs detached.
	go e.pool.Go(func() {
		slot := <-e.slots
		defer func() {
			e.slots <- slot
			e.taskDone()
		}()
		task(fmt.Sprintf("conc-worker-%d", slot))
	})
	return nil
}

func (e *BoundedExecutor) taskDone() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight--
	if e.inflight == 0 {
		e.idle.Broadcast()
	}
}

// Close waits until no task is queued or running, rejects later submissions and
// releases the pool goroutines.  It must not be called from inside a task.
func (e *BoundedExecutor) Close() {
	e.mu.Lock()
	for e.inflight > 0 {
		e.idle.Wait()
	}
	e.closed = true
	e.mu.Unlock()
	e.pool.Wait()
}
