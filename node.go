package flow_go

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// State represents the lifecycle state of a Node.
type State int32

// StateInitial through StateTimedOut represent the lifecycle states of a Node.
const (
	StateInitial State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateSkipped // set when every successor already completed and allows it
	// StateTimedOut is reserved; no transition leads to it.
	StateTimedOut
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// IsCompleted reports whether s is terminal.
func (s State) IsCompleted() bool {
	return s != StateInitial && s != StateRunning
}

// wiringMu guards the edge lists of every node.  Adding or removing an edge touches
// two nodes, so a single lock keeps both mirrored sides consistent without a lock
// ordering between nodes.
var wiringMu sync.RWMutex

// Node is the unit of scheduling.
// A Node must always be handled as a pointer; copying a Node is forbidden because
// its state cell is an atomic value.
type Node struct {
	id        string
	params    *Variables // frozen at build time
	worker    Worker
	callbacks []Callback // sorted by Order at build time

	mu        sync.RWMutex // guards name and ignoreErr
	name      string
	ignoreErr bool

	// prevs / nexts are mirrored pairs; guarded by wiringMu.
	prevs []PrevEdge
	nexts []NextEdge

	state atomic.Int32
}

// NewNode is a shortcut for NewBuilder(name).Worker(w).Build().
func NewNode(name string, w Worker) (*Node, error) {
	return NewBuilder(name).Worker(w).Build()
}

func newNode(id, name string, w Worker, params *Variables, callbacks []Callback, ignoreErr bool) *Node {
	n := &Node{
		id:        id,
		name:      name,
		params:    params.Freeze(),
		worker:    w,
		callbacks: sortCallbacks(callbacks),
		ignoreErr: ignoreErr,
	}
	n.state.Store(int32(StateInitial))
	return n
}

// ID returns the node id.
func (n *Node) ID() string { return n.id }

// Name returns the display name.
func (n *Node) Name() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.name
}

// SetName changes the display name while the node is still modifiable.
func (n *Node) SetName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("node %s: name is blank: %w", n.id, ErrInvalidArgument)
	}
	if err := n.checkModifiable(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.name = name
	return nil
}

// IgnoreError reports whether a failure of this node still triggers its successors.
func (n *Node) IgnoreError() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.ignoreErr
}

// SetIgnoreError changes the ignore-error flag while the node is still modifiable.
func (n *Node) SetIgnoreError(ignore bool) error {
	if err := n.checkModifiable(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ignoreErr = ignore
	return nil
}

// Params returns the frozen parameter bag.
func (n *Node) Params() *Variables { return n.params }

// Worker returns the work function.
func (n *Node) Worker() Worker { return n.worker }

// Callbacks returns a copy of the sorted callback list.
func (n *Node) Callbacks() []Callback {
	out := make([]Callback, len(n.callbacks))
	copy(out, n.callbacks)
	return out
}

// State returns the current lifecycle state.
func (n *Node) State() State {
	return State(n.state.Load())
}

// IsCompleted reports whether the node reached a terminal state.
func (n *Node) IsCompleted() bool { return n.State().IsCompleted() }

// NotCompleted reports whether the node is initial or running.
func (n *Node) NotCompleted() bool { return !n.IsCompleted() }

// IsEntry reports whether the node has no predecessors.
func (n *Node) IsEntry() bool {
	wiringMu.RLock()
	defer wiringMu.RUnlock()
	return len(n.prevs) == 0
}

// Prevs returns a snapshot of the predecessor entries.
func (n *Node) Prevs() []PrevEdge {
	wiringMu.RLock()
	defer wiringMu.RUnlock()
	out := make([]PrevEdge, len(n.prevs))
	copy(out, n.prevs)
	return out
}

// Nexts returns a snapshot of the successor entries.
func (n *Node) Nexts() []NextEdge {
	wiringMu.RLock()
	defer wiringMu.RUnlock()
	out := make([]NextEdge, len(n.nexts))
	copy(out, n.nexts)
	return out
}

// transition atomically advances the state from `from` to `to`.  Leaving
// StateInitial holds wiringMu for reading so that it cannot interleave with an
// edge change that already passed checkModifiable.
func (n *Node) transition(from, to State) bool {
	if from == StateInitial {
		wiringMu.RLock()
		defer wiringMu.RUnlock()
	}
	return n.state.CompareAndSwap(int32(from), int32(to))
}

// finish stores a terminal state.  Only the goroutine that won the
// Initial→Running transition calls it, so no contention is possible.
func (n *Node) finish(to State) {
	n.state.Store(int32(to))
}

func (n *Node) checkModifiable() error {
	if st := n.State(); st != StateInitial {
		return fmt.Errorf("node %s(%s) is %s: %w", n.id, n.Name(), st, ErrNodeFrozen)
	}
	return nil
}

// Prev adds prev as a predecessor that must complete first
// (waitComplete=true, canSkip=false), replacing an existing entry.
func (n *Node) Prev(prev *Node) error {
	return n.AddPrev(prev, true, false, true)
}

// PrevWith adds prev with explicit flags, replacing an existing entry.
func (n *Node) PrevWith(prev *Node, waitComplete, canSkip bool) error {
	return n.AddPrev(prev, waitComplete, canSkip, true)
}

// AddPrev registers prev as a predecessor of n and n as a successor of prev.
//
// waitComplete applies to n's entry (n waits for prev); canSkip applies to prev's
// mirrored entry (prev may be skipped once n completed).  When an entry already
// exists on a side it is replaced only if updateIfExists is true.
func (n *Node) AddPrev(prev *Node, waitComplete, canSkip, updateIfExists bool) error {
	if prev == nil {
		return fmt.Errorf("add prev to node %s: prev is nil: %w", n.id, ErrInvalidArgument)
	}
	if prev == n {
		return fmt.Errorf("add prev to node %s: %w", n.id, ErrSelfEdge)
	}

	wiringMu.Lock()
	defer wiringMu.Unlock()

	if err := n.checkModifiable(); err != nil {
		return err
	}
	if err := prev.checkModifiable(); err != nil {
		return err
	}

	if i := indexOfNext(prev.nexts, n); i < 0 {
		prev.nexts = append(prev.nexts, NextEdge{current: prev, next: n, canSkip: canSkip})
	} else if updateIfExists {
		prev.nexts[i] = NextEdge{current: prev, next: n, canSkip: canSkip}
	}
	if j := indexOfPrev(n.prevs, prev); j < 0 {
		n.prevs = append(n.prevs, PrevEdge{current: n, prev: prev, waitComplete: waitComplete})
	} else if updateIfExists {
		n.prevs[j] = PrevEdge{current: n, prev: prev, waitComplete: waitComplete}
	}
	return nil
}

// Next adds next as a successor that waits for n (waitComplete=true,
// canSkip=false), replacing an existing entry.
func (n *Node) Next(next *Node) error {
	return n.AddNext(next, true, false, true)
}

// NextWith adds next with explicit flags, replacing an existing entry.
func (n *Node) NextWith(next *Node, waitComplete, canSkip bool) error {
	return n.AddNext(next, waitComplete, canSkip, true)
}

// AddNext registers next as a successor of n and n as a predecessor of next.
//
// waitComplete applies to next's mirrored entry (next waits for n); canSkip applies
// to n's entry (n may be skipped once next completed).
func (n *Node) AddNext(next *Node, waitComplete, canSkip, updateIfExists bool) error {
	if next == nil {
		return fmt.Errorf("add next to node %s: next is nil: %w", n.id, ErrInvalidArgument)
	}
	if next == n {
		return fmt.Errorf("add next to node %s: %w", n.id, ErrSelfEdge)
	}

	wiringMu.Lock()
	defer wiringMu.Unlock()

	if err := n.checkModifiable(); err != nil {
		return err
	}
	if err := next.checkModifiable(); err != nil {
		return err
	}

	if j := indexOfPrev(next.prevs, n); j < 0 {
		next.prevs = append(next.prevs, PrevEdge{current: next, prev: n, waitComplete: waitComplete})
	} else if updateIfExists {
		next.prevs[j] = PrevEdge{current: next, prev: n, waitComplete: waitComplete}
	}
	if i := indexOfNext(n.nexts, next); i < 0 {
		n.nexts = append(n.nexts, NextEdge{current: n, next: next, canSkip: canSkip})
	} else if updateIfExists {
		n.nexts[i] = NextEdge{current: n, next: next, canSkip: canSkip}
	}
	return nil
}

// RemovePrev deletes prev from n's predecessors and n from prev's successors.
// A missing mirror entry is logged and otherwise ignored.
func (n *Node) RemovePrev(prev *Node) error {
	if prev == nil {
		return fmt.Errorf("remove prev from node %s: prev is nil: %w", n.id, ErrInvalidArgument)
	}

	wiringMu.Lock()
	defer wiringMu.Unlock()

	if err := n.checkModifiable(); err != nil {
		return err
	}
	if err := prev.checkModifiable(); err != nil {
		return err
	}
	unlink(prev, n)
	return nil
}

// RemoveNext deletes next from n's successors and n from next's predecessors.
// A missing mirror entry is logged and otherwise ignored.
func (n *Node) RemoveNext(next *Node) error {
	if next == nil {
		return fmt.Errorf("remove next from node %s: next is nil: %w", n.id, ErrInvalidArgument)
	}

	wiringMu.Lock()
	defer wiringMu.Unlock()

	if err := n.checkModifiable(); err != nil {
		return err
	}
	if err := next.checkModifiable(); err != nil {
		return err
	}
	unlink(n, next)
	return nil
}

// unlink removes the from→to edge on both sides.  The caller holds wiringMu.
func unlink(from, to *Node) {
	i := indexOfNext(from.nexts, to)
	j := indexOfPrev(to.prevs, from)
	if i < 0 && j < 0 {
		return
	}
	if i >= 0 {
		from.nexts = append(from.nexts[:i:i], from.nexts[i+1:]...)
	}
	if j >= 0 {
		to.prevs = append(to.prevs[:j:j], to.prevs[j+1:]...)
	}
	if i < 0 || j < 0 {
		Log.WithFields(logrus.Fields{
			"from_id":        from.id,
			"to_id":          to.id,
			"next_entry_set": i >= 0,
			"prev_entry_set": j >= 0,
		}).Warn("edge mirror missing while removing edge")
	}
}
