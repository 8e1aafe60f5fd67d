package flow_go

import (
	"fmt"
	"time"
)

// NodeReport is the outcome of one node in a Report.
type NodeReport struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	State      string        `json:"state"`
	Worker     string        `json:"worker,omitempty"`
	Start      *time.Time    `json:"start,omitempty"`
	End        *time.Time    `json:"end,omitempty"`
	Cost       time.Duration `json:"cost_ns"`
	ResultType string        `json:"result_type,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Report is a snapshot of a run, suitable for printing or JSON encoding.
type Report struct {
	RunID     string       `json:"run_id"`
	Completed bool         `json:"completed"`
	Nodes     []NodeReport `json:"nodes"`
}

// Report snapshots the run.  Traced nodes come first in launch order, followed by
// the nodes that were never reached, in breadth-first order.
func (rc *RunContext) Report() Report {
	r := Report{RunID: rc.id, Completed: rc.Completed()}
	seen := make(map[*Node]struct{}, len(rc.nodes))

	for _, t := range rc.Traces() {
		seen[t.node] = struct{}{}
		r.Nodes = append(r.Nodes, rc.nodeReport(t.node, t))
	}
	for _, n := range rc.nodes {
		if _, ok := seen[n]; ok {
			continue
		}
		r.Nodes = append(r.Nodes, rc.nodeReport(n, nil))
	}
	return r
}

func (rc *RunContext) nodeReport(n *Node, t *Trace) NodeReport {
	nr := NodeReport{ID: n.id, Name: n.Name(), State: n.State().String()}
	if v, ok := rc.lookupResult(n.id); ok {
		nr.ResultType = typeName(v)
	}
	if err := rc.Err(n.id); err != nil {
		nr.Error = err.Error()
	}
	if t == nil {
		return nr
	}
	nr.Worker = t.Worker()
	if start := t.Start(); !start.IsZero() {
		nr.Start = &start
	}
	if end := t.End(); !end.IsZero() {
		nr.End = &end
	}
	nr.Cost = t.Cost()
	return nr
}

// Counts returns the number of nodes per state name.
func (r Report) Counts() map[string]int {
	out := make(map[string]int)
	for _, n := range r.Nodes {
		out[n.State]++
	}
	return out
}

// dumpLines renders the trace chain one line per entry for the debug dump.
func (rc *RunContext) dumpLines() []string {
	traces := rc.Traces()
	lines := make([]string, 0, len(traces))
	for i, t := range traces {
		lines = append(lines, fmt.Sprintf("%03d %s(%s) state=%s worker=%s cost=%s",
			i, t.node.id, t.node.Name(), t.node.State(), t.Worker(), t.Cost()))
	}
	return lines
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", v)
}
