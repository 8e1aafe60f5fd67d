package flow_go

import (
	"errors"
	"fmt"
)

// Construction and validation errors.  They are returned wrapped with context, so
// match them with errors.Is.
var (
	// ErrInvalidArgument reports a nil or blank required argument.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrSelfEdge is returned when a node is wired to itself.
	ErrSelfEdge = errors.New("a node cannot be linked to itself")
	// ErrNodeFrozen is returned when mutating a node that has left StateInitial.
	ErrNodeFrozen = errors.New("node is no longer modifiable")
	// ErrIllegalMutation is returned by every mutator of a frozen Variables.
	ErrIllegalMutation = errors.New("variables are not modifiable")
	// ErrDuplicateNodeID is returned when two distinct nodes of one graph share an id.
	ErrDuplicateNodeID = errors.New("duplicate node id")
	// ErrCycleDetected is returned by the optional pre-run cycle check.
	ErrCycleDetected = errors.New("cycle detected")
	// ErrTraceLinked is returned when a trace entry is linked a second time.
	ErrTraceLinked = errors.New("trace entry already linked")
	// ErrExecutorClosed is returned by Submit after the executor was closed.
	ErrExecutorClosed = errors.New("executor is closed")
)

// Phase names the step of the callback protocol in which a node failed.
type Phase string

// PhaseBefore, PhaseExecute and PhaseAfter identify where a NodeError originated.
const (
	PhaseBefore  Phase = "before"
	PhaseExecute Phase = "execute"
	PhaseAfter   Phase = "after"
)

// NodeError carries structured information about a node-level execution failure.
type NodeError struct {
	NodeID   string
	NodeName string
	Phase    Phase
	Err      error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s(%s) failed in %s phase: %v", e.NodeID, e.NodeName, e.Phase, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError is produced when a worker or a callback hook panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
