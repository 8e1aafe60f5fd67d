package flow_go

import (
	"fmt"
	"sync"
	"time"
)

// Trace records one launch of a node: its completion handle, when the work started
// and ended, and the executor worker that ran it.  Trace entries form a singly linked
// list in launch order, independent of the dependency graph.
type Trace struct {
	node *Node

	mu     sync.RWMutex // guards handle, start, end, worker and next
	handle *Future[struct{}]
	start  time.Time
	end    time.Time
	worker string
	next   *Trace
}

func newTrace(n *Node) *Trace {
	return &Trace{node: n}
}

// Node returns the traced node.
func (t *Trace) Node() *Node { return t.node }

// Handle returns the completion handle of the node and everything it launched.
func (t *Trace) Handle() *Future[struct{}] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.handle
}

func (t *Trace) setHandle(h *Future[struct{}]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handle = h
}

// Start returns when the work began.  The zero time means it never began (the node
// was skipped or found not ready).
func (t *Trace) Start() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.start
}

// End returns when the work finished.
func (t *Trace) End() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.end
}

// Worker returns the executor worker label that ran the node.
func (t *Trace) Worker() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.worker
}

// Cost returns End-Start, or zero while the node has not finished.
func (t *Trace) Cost() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.start.IsZero() || t.end.IsZero() {
		return 0
	}
	return t.end.Sub(t.start)
}

// Next returns the entry launched after this one, or nil.
func (t *Trace) Next() *Trace {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.next
}

func (t *Trace) markStart(at time.Time, worker string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start = at
	t.worker = worker
}

func (t *Trace) markEnd(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.end = at
}

// link sets the next entry.  The link may be set only once.
func (t *Trace) link(next *Trace) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.next != nil {
		return fmt.Errorf("trace %s -> %s: %w", t.node.ID(), next.node.ID(), ErrTraceLinked)
	}
	t.next = next
	return nil
}
