package flow_go

// Worker defines the work attached to a node.
//
// Execute is invoked at most once per run.  from is the predecessor whose completion
// triggered the node, nil for entry nodes.  rc gives access to the shared
// attributes and to the results of other nodes; rc.Context() carries the caller's
// context, which implementations should honour for long-running work.  A non-nil
// result is stored in the run results under current.ID().
type Worker interface {
	Execute(from, current *Node, rc *RunContext) (any, error)
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(from, current *Node, rc *RunContext) (any, error)

// Execute calls f.
func (f WorkerFunc) Execute(from, current *Node, rc *RunContext) (any, error) {
	return f(from, current, rc)
}
