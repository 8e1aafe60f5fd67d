package flow_go

import (
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"
)

// pendingEdge is an edge request recorded by a Builder and applied by Build.
type pendingEdge struct {
	node           *Node
	waitComplete   bool
	canSkip        bool
	updateIfExists bool
}

// Builder accumulates a node's configuration.  Build materialises the node and then
// applies every pending edge through Node.AddPrev / Node.AddNext, so edges declared
// on a builder behave exactly like edges added afterwards.
type Builder struct {
	id        string
	name      string
	worker    Worker
	ignoreErr bool
	params    map[string]any
	callbacks []Callback
	prevs     []pendingEdge
	nexts     []pendingEdge
}

// NewBuilder starts a node named name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, params: make(map[string]any)}
}

// ID sets the node id.  Left empty, Build generates a UUID.
func (b *Builder) ID(id string) *Builder {
	b.id = id
	return b
}

// Name sets the display name.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Worker sets the work function.
func (b *Builder) Worker(w Worker) *Builder {
	b.worker = w
	return b
}

// WorkerFunc sets the work function from a plain function.
func (b *Builder) WorkerFunc(fn func(from, current *Node, rc *RunContext) (any, error)) *Builder {
	if fn == nil {
		b.worker = nil
		return b
	}
	b.worker = WorkerFunc(fn)
	return b
}

// IgnoreError makes a failure of the node still trigger its successors.
func (b *Builder) IgnoreError(ignore bool) *Builder {
	b.ignoreErr = ignore
	return b
}

// Param sets one parameter.  A nil value removes the key.
func (b *Builder) Param(key string, value any) *Builder {
	if value == nil {
		delete(b.params, key)
		return b
	}
	b.params[key] = value
	return b
}

// Params merges m into the parameters.
func (b *Builder) Params(m map[string]any) *Builder {
	for k, v := range m {
		b.Param(k, v)
	}
	return b
}

// Callback appends callbacks.
func (b *Builder) Callback(cbs ...Callback) *Builder {
	for _, cb := range cbs {
		if cb != nil {
			b.callbacks = append(b.callbacks, cb)
		}
	}
	return b
}

// RemoveCallback removes every occurrence of cb.
func (b *Builder) RemoveCallback(cb Callback) *Builder {
	kept := b.callbacks[:0]
	for _, c := range b.callbacks {
		if c != cb {
			kept = append(kept, c)
		}
	}
	b.callbacks = kept
	return b
}

// Prev requests prev as a predecessor (waitComplete=true, canSkip=false).
func (b *Builder) Prev(prev *Node) *Builder {
	return b.AddPrev(prev, true, false, true)
}

// PrevWith requests prev as a predecessor with explicit flags.
func (b *Builder) PrevWith(prev *Node, waitComplete, canSkip bool) *Builder {
	return b.AddPrev(prev, waitComplete, canSkip, true)
}

// AddPrev records a predecessor request; see Node.AddPrev.
func (b *Builder) AddPrev(prev *Node, waitComplete, canSkip, updateIfExists bool) *Builder {
	b.prevs = append(b.prevs, pendingEdge{node: prev, waitComplete: waitComplete, canSkip: canSkip, updateIfExists: updateIfExists})
	return b
}

// Next requests next as a successor (waitComplete=true, canSkip=false).
func (b *Builder) Next(next *Node) *Builder {
	return b.AddNext(next, true, false, true)
}

// NextWith requests next as a successor with explicit flags.
func (b *Builder) NextWith(next *Node, waitComplete, canSkip bool) *Builder {
	return b.AddNext(next, waitComplete, canSkip, true)
}

// AddNext records a successor request; see Node.AddNext.
func (b *Builder) AddNext(next *Node, waitComplete, canSkip, updateIfExists bool) *Builder {
	b.nexts = append(b.nexts, pendingEdge{node: next, waitComplete: waitComplete, canSkip: canSkip, updateIfExists: updateIfExists})
	return b
}

// Build validates the configuration, creates the node and wires the pending edges.
// When an edge fails the already wired edges of the new node are kept; the node is
// returned together with the error.
func (b *Builder) Build() (*Node, error) {
	id := b.id
	if id == "" {
		id = uuid.NewString()
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("build node: id is blank: %w", ErrInvalidArgument)
	}
	if strings.TrimSpace(b.name) == "" {
		return nil, fmt.Errorf("build node %s: name is blank: %w", id, ErrInvalidArgument)
	}
	if b.worker == nil {
		return nil, fmt.Errorf("build node %s(%s): worker is nil: %w", id, b.name, ErrInvalidArgument)
	}

	n := newNode(id, b.name, b.worker, NewVariablesFrom(b.params), b.callbacks, b.ignoreErr)

	for _, p := range b.prevs {
		if err := n.AddPrev(p.node, p.waitComplete, p.canSkip, p.updateIfExists); err != nil {
			return n, fmt.Errorf("build node %s(%s): %w", id, b.name, err)
		}
	}
	for _, p := range b.nexts {
		if err := n.AddNext(p.node, p.waitComplete, p.canSkip, p.updateIfExists); err != nil {
			return n, fmt.Errorf("build node %s(%s): %w", id, b.name, err)
		}
	}
	return n, nil
}

// MustBuild is like Build but panics on error.  Intended for static graphs in
// tests and examples.
func (b *Builder) MustBuild() *Node {
	n, err := b.Build()
	if err != nil {
		panic(err)
	}
	return n
}

// Mutate returns a builder pre-loaded with n's name, worker, parameters, callbacks,
// ignore-error flag and edges, but without its id, so a variant of n can be built
// into the same graph.  Edge flags are read from both mirrored sides.
func (n *Node) Mutate() *Builder {
	b := NewBuilder(n.Name())
	b.worker = n.worker
	b.ignoreErr = n.IgnoreError()
	b.params = maps.Clone(n.params.All())
	b.callbacks = n.Callbacks()

	wiringMu.RLock()
	defer wiringMu.RUnlock()
	for _, e := range n.prevs {
		canSkip := false
		if i := indexOfNext(e.prev.nexts, n); i >= 0 {
			canSkip = e.prev.nexts[i].canSkip
		}
		b.AddPrev(e.prev, e.waitComplete, canSkip, true)
	}
	for _, e := range n.nexts {
		waitComplete := true
		if j := indexOfPrev(e.next.prevs, n); j >= 0 {
			waitComplete = e.next.prevs[j].waitComplete
		}
		b.AddNext(e.next, waitComplete, e.canSkip, true)
	}
	return b
}
