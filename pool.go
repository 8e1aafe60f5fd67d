package flow_go

import (
	"fmt"
	"sync"
)

// WorkerPool manages a fixed set of goroutines for concurrent node execution.
// Tasks are submitted via Submit into an unbounded queue, so a task may submit
// further tasks without blocking; Close drains the queue and waits for all
// workers.
type WorkerPool struct {
	workerLimit int

	mu      sync.Mutex
	ready   *sync.Cond // signalled when the queue grows or the pool closes
	idle    *sync.Cond // broadcast when the queue is empty and nothing runs
	queue   []Task
	running int
	closed  bool

	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ Executor = (*WorkerPool)(nil)

// NewWorkerPool starts limit workers labelled pool-worker-1..limit.
// A limit below one is treated as one.
func NewWorkerPool(limit int) *WorkerPool {
	if limit < 1 {
		limit = 1
	}
	p := &WorkerPool{workerLimit: limit}
	p.ready = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)

	// 워커 고루틴 시작
	for i := 1; i <= limit; i++ {
		p.wg.Add(1)
		go p.work(fmt.Sprintf("pool-worker-%d", i))
	}
	return p
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int { return p.workerLimit }

func (p *WorkerPool) work(label string) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.ready.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.running++
		p.mu.Unlock()

		task(label)

		p.mu.Lock()
		p.running--
		if p.running == 0 && len(p.queue) == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}
}

// Submit enqueues task.  It returns ErrExecutorClosed after Close.
func (p *WorkerPool) Submit(task Task) error {
	if task == nil {
		return fmt.Errorf("submit: task is nil: %w", ErrInvalidArgument)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrExecutorClosed
	}
	p.queue = append(p.queue, task)
	p.ready.Signal()
	return nil
}

// Close waits until the queue is empty and no task is running, then stops the
// workers.  Tasks submitted by running tasks are still executed.  Calling Close
// twice is safe; calling it from inside a task deadlocks.
func (p *WorkerPool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		for len(p.queue) > 0 || p.running > 0 {
			p.idle.Wait()
		}
		p.closed = true
		p.ready.Broadcast()
		p.mu.Unlock()
	})
	p.wg.Wait()
}
