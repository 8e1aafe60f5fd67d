package flow_go

import (
	"context"
	"fmt"

	"github.com/seoyhaein/flow-go/debugonly"
)

// Config holds tunable parameters for a Flow.
// Use DefaultConfig for production-ready defaults, or override individual fields
// before passing to NewFlowWithConfig.
type Config struct {
	// WorkerPoolSize is the number of workers of the pool Run creates.  Start uses
	// the caller's executor and ignores it.  Default: 50.
	WorkerPoolSize int

	// Clock supplies trace timestamps.  Default: SystemClock.
	Clock Clock

	// CycleCheck runs DetectCycle before launching anything and fails the run with
	// ErrCycleDetected when a cycle is reachable from the entries.  Default: false.
	CycleCheck bool

	// Callbacks are attached to every node of every run, merged with the node's
	// own callbacks by Order.
	Callbacks []Callback
}

// Option is a functional-option type for NewFlow.
type Option func(*Config)

// DefaultConfig returns a Config populated with defaults:
//   - WorkerPoolSize: 50
//   - Clock:          SystemClock
//   - CycleCheck:     false
func DefaultConfig() Config {
	return Config{
		WorkerPoolSize: 50,
		Clock:          SystemClock{},
	}
}

// WithClock sets the trace clock.
func WithClock(c Clock) Option {
	return func(cfg *Config) {
		if c != nil {
			cfg.Clock = c
		}
	}
}

// WithWorkerPoolSize sets the size of the pool used by Run.
func WithWorkerPoolSize(size int) Option {
	return func(cfg *Config) {
		cfg.WorkerPoolSize = size
	}
}

// WithCycleCheck enables the pre-run cycle check.
func WithCycleCheck(enabled bool) Option {
	return func(cfg *Config) {
		cfg.CycleCheck = enabled
	}
}

// WithCallbacks appends flow-wide callbacks.
func WithCallbacks(cbs ...Callback) Option {
	return func(cfg *Config) {
		cfg.Callbacks = append(cfg.Callbacks, cbs...)
	}
}

// WithDefaultCallbacks attaches LoggingCallback to every node.
func WithDefaultCallbacks() Option {
	return WithCallbacks(LoggingCallback{})
}

// Flow starts runs of node graphs.  A Flow holds configuration only and may start
// any number of runs, concurrently or not.  A node however is single-use: once it
// left StateInitial it never runs again, so a graph is executed once.
type Flow struct {
	config Config
}

// NewFlow returns a Flow with DefaultConfig, then applies each Option in order.
func NewFlow(options ...Option) *Flow {
	cfg := DefaultConfig()
	for _, option := range options {
		option(&cfg)
	}
	return NewFlowWithConfig(cfg)
}

// NewFlowWithConfig returns a Flow using the supplied Config.
func NewFlowWithConfig(cfg Config) *Flow {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.WorkerPoolSize < 1 {
		cfg.WorkerPoolSize = DefaultConfig().WorkerPoolSize
	}
	return &Flow{config: cfg}
}

// Config returns a copy of the flow configuration.
func (f *Flow) Config() Config {
	cfg := f.config
	cfg.Callbacks = append([]Callback(nil), f.config.Callbacks...)
	return cfg
}

var defaultFlow = NewFlow()

// Start runs the graph reachable from entries on exec using the default Flow.
func Start(exec Executor, entries ...*Node) *Future[*RunContext] {
	return defaultFlow.Start(context.Background(), exec, entries...)
}

// Run runs the graph reachable from entries on an owned WorkerPool using the
// default Flow and waits for it.
func Run(ctx context.Context, entries ...*Node) (*RunContext, error) {
	return defaultFlow.Run(ctx, entries...)
}

// Start launches every entry on exec and returns a handle resolving once every
// entry, and everything reachable from it, has finished.
//
// The handle always carries the run context, also when it fails: the error is the
// joined failure of the entries.  A duplicate node id, a detected cycle or a nil
// entry fail the handle before anything runs.  ctx is exposed to workers through
// RunContext.Context; the engine does not cancel started nodes.
func (f *Flow) Start(ctx context.Context, exec Executor, entries ...*Node) *Future[*RunContext] {
	_, run := f.start(ctx, exec, entries)
	return run
}

// Run starts the graph on a WorkerPool of Config.WorkerPoolSize workers and blocks
// until the run finishes or ctx is done.  When ctx fires first the partially
// executed run context is returned with ctx.Err(); the pool is closed in the
// background once the remaining nodes drained.
func (f *Flow) Run(ctx context.Context, entries ...*Node) (*RunContext, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	pool := NewWorkerPool(f.config.WorkerPoolSize)
	rc, run := f.start(ctx, pool, entries)
	if rc == nil {
		// validation failed; the handle already carries the error.
		pool.Close()
		return run.Wait()
	}

	select {
	case <-run.Done():
		pool.Close()
		return run.Wait()
	case <-ctx.Done():
		go func() {
			_, _ = run.Wait()
			pool.Close()
		}()
		return rc, ctx.Err()
	}
}

// start validates the graph, creates the run context and launches the entries.
// The returned context is nil when validation failed.
func (f *Flow) start(ctx context.Context, exec Executor, entries []*Node) (*RunContext, *Future[*RunContext]) {
	if len(entries) == 0 {
		rc := newRunContext(ctx, f.config, nil, nil, nil)
		rc.completed.Store(true)
		return rc, Resolved(rc)
	}
	for i, e := range entries {
		if e == nil {
			return nil, Failed[*RunContext](nil, fmt.Errorf("start: entry %d is nil: %w", i, ErrInvalidArgument))
		}
	}
	if exec == nil {
		return nil, Failed[*RunContext](nil, fmt.Errorf("start: executor is nil: %w", ErrInvalidArgument))
	}

	entries = dedupNodes(entries)
	nodes := flatten(entries)
	index, err := indexNodes(nodes)
	if err != nil {
		return nil, Failed[*RunContext](nil, err)
	}
	if f.config.CycleCheck {
		if err := DetectCycle(entries...); err != nil {
			return nil, Failed[*RunContext](nil, err)
		}
	}

	rc := newRunContext(ctx, f.config, nodes, index, entries)
	Log.WithField("run_id", rc.id).
		WithField("entries", len(entries)).
		WithField("nodes", len(nodes)).
		Info("run started")

	handles := make([]*Future[struct{}], 0, len(entries))
	for _, e := range entries {
		// 엔트리 trace 는 launch 전에 등록해서 chain 순서를 launch 순서와 맞춘다.
		trace := rc.registerTrace(e)
		h := e.launch(rc, nil, exec)
		trace.setHandle(h)
		handles = append(handles, h)
	}

	out := NewFuture[*RunContext]()
	Join(handles...).OnComplete(func(_ struct{}, err error) {
		rc.completed.Store(true)
		entry := Log.WithField("run_id", rc.id)
		if err != nil {
			entry.WithError(err).Warn("run finished with errors")
		} else {
			entry.Info("run finished")
		}
		if debugonly.Enabled() {
			debugonly.DumpTrace(rc.dumpLines())
		}
		out.Complete(rc, err)
	})
	return rc, out
}

// flatten returns every node reachable from entries through next edges in
// breadth-first order.  Nodes are deduplicated by identity.
func flatten(entries []*Node) []*Node {
	seen := make(map[*Node]struct{}, len(entries))
	queue := make([]*Node, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e]; !ok {
			seen[e] = struct{}{}
			queue = append(queue, e)
		}
	}
	for i := 0; i < len(queue); i++ { //nolint:intrange // queue grows while iterating
		for _, edge := range queue[i].Nexts() {
			if _, ok := seen[edge.next]; ok {
				continue
			}
			seen[edge.next] = struct{}{}
			queue = append(queue, edge.next)
		}
	}
	return queue
}

func dedupNodes(nodes []*Node) []*Node {
	seen := make(map[*Node]struct{}, len(nodes))
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// indexNodes maps ids to nodes and rejects two distinct nodes sharing an id.
func indexNodes(nodes []*Node) (map[string]*Node, error) {
	index := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		if prev, ok := index[n.id]; ok && prev != n {
			return nil, fmt.Errorf("node id %q used by %q and %q: %w", n.id, prev.Name(), n.Name(), ErrDuplicateNodeID)
		}
		index[n.id] = n
	}
	return index, nil
}

// detectCycleDFS detects cycles using DFS.
func detectCycleDFS(node *Node, visited, recStack map[*Node]bool) []*Node {
	if recStack[node] {
		return []*Node{node}
	}
	if visited[node] {
		return nil
	}
	visited[node] = true
	recStack[node] = true

	for _, e := range node.Nexts() {
		if path := detectCycleDFS(e.next, visited, recStack); path != nil {
			return append(path, node)
		}
	}

	recStack[node] = false
	return nil
}

// DetectCycle reports a directed cycle reachable from entries through next edges.
// The returned error wraps ErrCycleDetected and names the nodes on the cycle.
func DetectCycle(entries ...*Node) error {
	visited := make(map[*Node]bool)
	recStack := make(map[*Node]bool)

	for _, node := range flatten(dedupNodes(entries)) {
		if visited[node] {
			continue
		}
		if path := detectCycleDFS(node, visited, recStack); path != nil {
			return fmt.Errorf("%s: %w", cyclePath(path), ErrCycleDetected)
		}
	}
	return nil
}

// cyclePath renders the DFS unwind path, which lists the cycle backwards and may
// carry the nodes leading into it, as "a -> b -> a".
func cyclePath(path []*Node) string {
	closing := path[0]
	s := closing.id
	for i := len(path) - 1; i >= 1; i-- {
		if path[i] == closing {
			s = closing.id
			continue
		}
		s += " -> " + path[i].id
	}
	return s + " -> " + closing.id
}
