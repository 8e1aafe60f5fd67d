package flow_go

import (
	"slices"
)

// Callback is a hook invoked around a node's work.
//
// Callbacks run in ascending Order.  Before hooks run first; if every Before
// succeeded the worker runs, then After hooks run in reverse order and may replace
// the result.  Finally hooks run, also in reverse order, for every callback whose
// Before succeeded, whatever happened; their errors are logged and discarded.
type Callback interface {
	Order() int
	Before(c *CallbackContext) error
	After(c *AfterContext) error
	Finally(c *FinallyContext) error
}

// CallbackContext is passed to Before.
type CallbackContext struct {
	Run  *RunContext
	Node *Node
	// From is the node whose completion triggered this one; nil for entry nodes.
	From *Node
	// Trace is the node's trace entry; its Start is already set.
	Trace *Trace
}

// AfterContext is passed to After.  Setting Result replaces the node's result for
// the remaining After hooks and for the final outcome.
type AfterContext struct {
	CallbackContext
	Result any
}

// FinallyContext is passed to Finally with the final outcome.
type FinallyContext struct {
	CallbackContext
	Result any
	Err    error
}

// Hooks adapts plain functions to Callback.  Nil functions are no-ops.
type Hooks struct {
	Priority  int
	OnBefore  func(c *CallbackContext) error
	OnAfter   func(c *AfterContext) error
	OnFinally func(c *FinallyContext) error
}

var _ Callback = (*Hooks)(nil)

// Order returns Priority.
func (h *Hooks) Order() int { return h.Priority }

// Before calls OnBefore.
func (h *Hooks) Before(c *CallbackContext) error {
	if h.OnBefore == nil {
		return nil
	}
	return h.OnBefore(c)
}

// After calls OnAfter.
func (h *Hooks) After(c *AfterContext) error {
	if h.OnAfter == nil {
		return nil
	}
	return h.OnAfter(c)
}

// Finally calls OnFinally.
func (h *Hooks) Finally(c *FinallyContext) error {
	if h.OnFinally == nil {
		return nil
	}
	return h.OnFinally(c)
}

// sortCallbacks returns a copy of cbs ordered by Order; ties keep insertion order.
func sortCallbacks(cbs []Callback) []Callback {
	out := make([]Callback, 0, len(cbs))
	for _, cb := range cbs {
		if cb != nil {
			out = append(out, cb)
		}
	}
	slices.SortStableFunc(out, func(a, b Callback) int {
		return a.Order() - b.Order()
	})
	return out
}

// LoggingCallback logs every phase of a node through Log.  It runs outermost
// (lowest Order) so its Finally sees the final outcome.
type LoggingCallback struct{}

var _ Callback = LoggingCallback{}

// Order places the logger before every default-priority callback.
func (LoggingCallback) Order() int { return -1000 }

// Before logs the node start.
func (LoggingCallback) Before(c *CallbackContext) error {
	e := Log.WithFields(nodeFields(c.Run, c.Node))
	if c.From != nil {
		e = e.WithField("triggered_by", c.From.ID())
	}
	e.Debug("node starting")
	return nil
}

// After logs the produced result type.
func (LoggingCallback) After(c *AfterContext) error {
	Log.WithFields(nodeFields(c.Run, c.Node)).
		WithField("result_type", typeName(c.Result)).
		Debug("node produced result")
	return nil
}

// Finally logs the outcome and elapsed time.
func (LoggingCallback) Finally(c *FinallyContext) error {
	e := Log.WithFields(nodeFields(c.Run, c.Node))
	if c.Trace != nil {
		e = e.WithField("elapsed", c.Run.clock.Now().Sub(c.Trace.Start()))
	}
	if c.Err != nil {
		e.WithError(c.Err).Info("node finished with error")
		return nil
	}
	e.Info("node finished")
	return nil
}
