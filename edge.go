package flow_go

// PrevEdge is the predecessor entry kept on a node: Current may not start until Prev
// has reached a terminal state when WaitComplete is true.
//
// Edges are values; they are replaced, never modified, and are created only through
// Node.AddPrev / Node.AddNext so that both mirrored sides stay in sync.
type PrevEdge struct {
	current      *Node
	prev         *Node
	waitComplete bool
}

// Current returns the node owning this entry.
func (e PrevEdge) Current() *Node { return e.current }

// Prev returns the predecessor.
func (e PrevEdge) Prev() *Node { return e.prev }

// WaitComplete reports whether Current waits for Prev.
func (e PrevEdge) WaitComplete() bool { return e.waitComplete }

// NextEdge is the successor entry kept on a node.  CanSkip is evaluated from
// Current's side: when Next already completed through another path, Current may skip
// its own execution.
type NextEdge struct {
	current *Node
	next    *Node
	canSkip bool
}

// Current returns the node owning this entry.
func (e NextEdge) Current() *Node { return e.current }

// Next returns the successor.
func (e NextEdge) Next() *Node { return e.next }

// CanSkip reports whether Current may be skipped once Next has completed.
func (e NextEdge) CanSkip() bool { return e.canSkip }

func indexOfPrev(edges []PrevEdge, prev *Node) int {
	for i, e := range edges {
		if e.prev == prev {
			return i
		}
	}
	return -1
}

func indexOfNext(edges []NextEdge, next *Node) int {
	for i, e := range edges {
		if e.next == next {
			return i
		}
	}
	return -1
}
