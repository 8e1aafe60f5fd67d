package flow_go

import (
	"context"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// RunContext is the shared state of one execution of a graph.
//
// It is created by Flow.Start and handed to every worker and callback.  The node set
// and the index are fixed at creation; results, errors, attributes and the trace
// chain grow while the run progresses and are safe for concurrent use.
type RunContext struct {
	id        string
	ctx       context.Context
	clock     Clock
	callbacks []Callback // flow-wide, sorted

	nodes   []*Node
	index   map[string]*Node
	entries []*Node

	resultsMu sync.RWMutex
	results   map[string]any
	errs      map[string]error

	attributes *Variables
	completed  atomic.Bool

	traceMu    sync.Mutex // guards firstTrace, lastTrace and traceIndex
	firstTrace *Trace
	lastTrace  *Trace
	traceIndex map[string]*Trace
}

func newRunContext(ctx context.Context, cfg Config, nodes []*Node, index map[string]*Node, entries []*Node) *RunContext {
	if ctx == nil {
		ctx = context.Background()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	if index == nil {
		index = make(map[string]*Node)
	}
	return &RunContext{
		id:         uuid.NewString(),
		ctx:        ctx,
		clock:      clock,
		callbacks:  sortCallbacks(cfg.Callbacks),
		nodes:      nodes,
		index:      index,
		entries:    entries,
		results:    make(map[string]any),
		errs:       make(map[string]error),
		attributes: NewVariables(),
		traceIndex: make(map[string]*Trace),
	}
}

// ID returns the run id.
func (rc *RunContext) ID() string { return rc.id }

// Context returns the context the run was started with.  Workers should honour it
// for long-running work; the engine itself never cancels a started node.
func (rc *RunContext) Context() context.Context { return rc.ctx }

// Node returns the node with the given id.
func (rc *RunContext) Node(id string) (*Node, bool) {
	n, ok := rc.index[id]
	return n, ok
}

// Nodes returns every node reachable from the entries, in breadth-first order.
func (rc *RunContext) Nodes() []*Node { return slices.Clone(rc.nodes) }

// Entries returns the nodes the run was started with.
func (rc *RunContext) Entries() []*Node { return slices.Clone(rc.entries) }

// Clock returns the clock the run stamps its traces with.
func (rc *RunContext) Clock() Clock { return rc.clock }

// Attributes returns the mutable, run-wide variable bag.
func (rc *RunContext) Attributes() *Variables { return rc.attributes }

// Completed reports whether every entry handle has resolved.
func (rc *RunContext) Completed() bool { return rc.completed.Load() }

// Results returns a copy of every stored result.
func (rc *RunContext) Results() map[string]any {
	rc.resultsMu.RLock()
	defer rc.resultsMu.RUnlock()
	return maps.Clone(rc.results)
}

// Result returns the result of the node with the given id, or def.
func (rc *RunContext) Result(id string, def any) any {
	rc.resultsMu.RLock()
	defer rc.resultsMu.RUnlock()
	if v, ok := rc.results[id]; ok {
		return v
	}
	return def
}

// Err returns the error the node with the given id finished with, if any.
func (rc *RunContext) Err(id string) error {
	rc.resultsMu.RLock()
	defer rc.resultsMu.RUnlock()
	return rc.errs[id]
}

// setOutcome records a node outcome.  Nil results are not stored; a non-nil result
// is kept even when the node failed.
func (rc *RunContext) setOutcome(id string, result any, err error) {
	if result == nil && err == nil {
		return
	}
	rc.resultsMu.Lock()
	defer rc.resultsMu.Unlock()
	if result != nil {
		rc.results[id] = result
	}
	if err != nil {
		rc.errs[id] = err
	}
}

// AllPrevCompleted reports whether every predecessor of n reached a terminal state.
func (rc *RunContext) AllPrevCompleted(n *Node) bool {
	for _, e := range n.Prevs() {
		if !e.prev.IsCompleted() {
			return false
		}
	}
	return true
}

// AllNextCompleted reports whether every successor of n reached a terminal state.
func (rc *RunContext) AllNextCompleted(n *Node) bool {
	for _, e := range n.Nexts() {
		if !e.next.IsCompleted() {
			return false
		}
	}
	return true
}

// AllPrevSucceeded reports whether every predecessor of n succeeded.
func (rc *RunContext) AllPrevSucceeded(n *Node) bool {
	for _, e := range n.Prevs() {
		if e.prev.State() != StateSucceeded {
			return false
		}
	}
	return true
}

// AllNextSucceeded reports whether every successor of n succeeded.
func (rc *RunContext) AllNextSucceeded(n *Node) bool {
	for _, e := range n.Nexts() {
		if e.next.State() != StateSucceeded {
			return false
		}
	}
	return true
}

// PrevResults returns the stored results of n's predecessors keyed by node id.
// Predecessors without a result are omitted.
func (rc *RunContext) PrevResults(n *Node) map[string]any {
	out := make(map[string]any)
	for _, e := range n.Prevs() {
		if v, ok := rc.lookupResult(e.prev.id); ok {
			out[e.prev.id] = v
		}
	}
	return out
}

// NextResults returns the stored results of n's successors keyed by node id.
func (rc *RunContext) NextResults(n *Node) map[string]any {
	out := make(map[string]any)
	for _, e := range n.Nexts() {
		if v, ok := rc.lookupResult(e.next.id); ok {
			out[e.next.id] = v
		}
	}
	return out
}

func (rc *RunContext) lookupResult(id string) (any, bool) {
	rc.resultsMu.RLock()
	defer rc.resultsMu.RUnlock()
	v, ok := rc.results[id]
	return v, ok
}

// FirstTrace returns the head of the trace chain, or nil when nothing launched.
func (rc *RunContext) FirstTrace() *Trace {
	rc.traceMu.Lock()
	defer rc.traceMu.Unlock()
	return rc.firstTrace
}

// Trace returns the trace entry of the node with the given id.
func (rc *RunContext) Trace(id string) (*Trace, bool) {
	rc.traceMu.Lock()
	defer rc.traceMu.Unlock()
	t, ok := rc.traceIndex[id]
	return t, ok
}

// Traces returns the trace chain in launch order.
func (rc *RunContext) Traces() []*Trace {
	var out []*Trace
	for t := rc.FirstTrace(); t != nil; t = t.Next() {
		out = append(out, t)
	}
	return out
}

// registerTrace creates and appends the trace entry of an entry node.  The handle is
// attached by the caller once the node is launched.
func (rc *RunContext) registerTrace(n *Node) *Trace {
	return rc.traceFor(n, nil)
}

// traceFor returns the trace entry of n, creating and appending it with handle when
// none exists yet.
func (rc *RunContext) traceFor(n *Node, handle *Future[struct{}]) *Trace {
	rc.traceMu.Lock()
	defer rc.traceMu.Unlock()
	if t, ok := rc.traceIndex[n.id]; ok {
		return t
	}
	t := newTrace(n)
	t.handle = handle
	rc.appendTraceLocked(t)
	return t
}

// appendTraceLocked links t after the current tail.  The caller holds traceMu.
func (rc *RunContext) appendTraceLocked(t *Trace) {
	rc.traceIndex[t.node.id] = t
	if rc.lastTrace == nil {
		rc.firstTrace = t
		rc.lastTrace = t
		return
	}
	if err := rc.lastTrace.link(t); err != nil {
		Log.WithFields(nodeFields(rc, t.node)).WithError(err).Error("trace chain corrupted")
		return
	}
	rc.lastTrace = t
}
