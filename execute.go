package flow_go

import (
	"context"
	"fmt"
	"runtime/debug"
	"runtime/pprof"

	"github.com/seoyhaein/flow-go/debugonly"
)

// launch submits a trigger of n to exec and returns a handle that resolves once n
// and everything it launched have finished.  A rejected submission fails the handle.
func (n *Node) launch(rc *RunContext, from *Node, exec Executor) *Future[struct{}] {
	handle := NewFuture[struct{}]()
	err := exec.Submit(func(worker string) {
		n.tryStart(rc, from, exec, worker).OnComplete(func(_ struct{}, err error) {
			handle.Complete(struct{}{}, err)
		})
	})
	if err != nil {
		Log.WithFields(nodeFields(rc, n)).WithError(err).Error("failed to submit node")
		handle.Complete(struct{}{}, fmt.Errorf("submit node %s(%s): %w", n.id, n.Name(), err))
	}
	return handle
}

// tryStart is the trigger algorithm.  It is called once per incoming edge (and once
// for entry nodes); the state CAS makes sure the work runs at most once.
//
//nolint:gocognit // the trigger steps are sequential and read best in one place
func (n *Node) tryStart(rc *RunContext, from *Node, exec Executor, worker string) *Future[struct{}] {
	log := Log.WithFields(nodeFields(rc, n))
	if from != nil {
		log = log.WithField("from_id", from.id)
	}

	if n.IsCompleted() {
		log.Debug("node already completed; trigger ignored")
		return Resolved(struct{}{})
	}
	if from != nil && !n.ready() {
		log.Debug("waiting for other predecessors")
		return Resolved(struct{}{})
	}
	if n.skippable() && n.transition(StateInitial, StateSkipped) {
		log.Info("node skipped; every successor already completed")
		return Resolved(struct{}{})
	}
	if !n.transition(StateInitial, StateRunning) {
		log.Debug("node claimed by another trigger")
		return Resolved(struct{}{})
	}

	done := NewFuture[struct{}]()
	trace := rc.traceFor(n, done)
	trace.markStart(rc.clock.Now(), worker)

	result, err := n.execute(rc, from, trace)

	// end time and result become visible before the terminal state, so anyone
	// observing the state also observes them.
	trace.markEnd(rc.clock.Now())
	rc.setOutcome(n.id, result, err)
	if err != nil {
		n.finish(StateFailed)
	} else {
		n.finish(StateSucceeded)
	}

	if err != nil {
		// Debug breakpoint (compiled away in production via build tag).
		debugonly.BreakHere()
		if !n.IgnoreError() {
			log.WithError(err).Error("node failed")
			done.Complete(struct{}{}, err)
			return done
		}
		log.WithError(err).Warn("node failed; error ignored, continuing with successors")
	}

	nexts := n.Nexts()
	handles := make([]*Future[struct{}], 0, len(nexts))
	for _, e := range nexts {
		handles = append(handles, e.next.launch(rc, n, exec))
	}
	Join(handles...).OnComplete(func(_ struct{}, err error) {
		done.Complete(struct{}{}, err)
	})
	return done
}

// ready reports whether every predecessor n waits for has completed.
func (n *Node) ready() bool {
	wiringMu.RLock()
	defer wiringMu.RUnlock()
	for _, e := range n.prevs {
		if e.waitComplete && !e.prev.IsCompleted() {
			return false
		}
	}
	return true
}

// skippable reports whether n has at least one successor and every successor is
// marked canSkip and already completed.
func (n *Node) skippable() bool {
	wiringMu.RLock()
	defer wiringMu.RUnlock()
	if len(n.nexts) == 0 {
		return false
	}
	for _, e := range n.nexts {
		if !e.canSkip || !e.next.IsCompleted() {
			return false
		}
	}
	return true
}

// execute runs the callback protocol around the worker.
//
// Before hooks run in order; the first failure aborts and only the callbacks whose
// Before succeeded receive Finally.  After hooks run in reverse order and may
// replace the result; a failing After keeps the result produced so far, as does a
// worker that returns a value together with an error.  Finally hooks run in reverse order whatever happened; their
// failures are logged and dropped.
func (n *Node) execute(rc *RunContext, from *Node, trace *Trace) (result any, err error) {
	cbs := rc.callbacksFor(n)
	base := CallbackContext{Run: rc, Node: n, From: from, Trace: trace}
	follow := make([]Callback, 0, len(cbs))

	defer func() {
		fc := &FinallyContext{CallbackContext: base, Result: result, Err: err}
		for i := len(follow) - 1; i >= 0; i-- {
			if ferr := safeCall(func() error { return follow[i].Finally(fc) }); ferr != nil {
				Log.WithFields(nodeFields(rc, n)).
					WithField("phase", "finally").
					WithError(ferr).
					Warn("finally callback failed; error discarded")
			}
		}
	}()

	for _, cb := range cbs {
		c := base
		if berr := safeCall(func() error { return cb.Before(&c) }); berr != nil {
			return nil, n.nodeError(PhaseBefore, berr)
		}
		follow = append(follow, cb)
	}

	var werr error
	lbl := pprof.Labels("phase", "execute", "nodeId", n.id, "runId", rc.id)
	pprof.Do(rc.Context(), lbl, func(context.Context) {
		werr = safeCall(func() error {
			var e error
			result, e = n.worker.Execute(from, n, rc)
			return e
		})
	})
	if werr != nil {
		return result, n.nodeError(PhaseExecute, werr)
	}

	ac := &AfterContext{CallbackContext: base, Result: result}
	for i := len(follow) - 1; i >= 0; i-- {
		if aerr := safeCall(func() error { return follow[i].After(ac) }); aerr != nil {
			return ac.Result, n.nodeError(PhaseAfter, aerr)
		}
	}
	return ac.Result, nil
}

func (n *Node) nodeError(phase Phase, err error) *NodeError {
	return &NodeError{NodeID: n.id, NodeName: n.Name(), Phase: phase, Err: err}
}

// callbacksFor merges the flow-wide callbacks with the node's own.  On equal Order
// the flow-wide callback runs first.
func (rc *RunContext) callbacksFor(n *Node) []Callback {
	if len(rc.callbacks) == 0 {
		return n.callbacks
	}
	merged := make([]Callback, 0, len(rc.callbacks)+len(n.callbacks))
	merged = append(merged, rc.callbacks...)
	merged = append(merged, n.callbacks...)
	return sortCallbacks(merged)
}

// safeCall runs fn and converts a panic into *PanicError.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
