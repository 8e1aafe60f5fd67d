package flow_go

import (
	"github.com/sirupsen/logrus" //nolint:depguard // this is used by logutils.Log for logging
)

// Log is the package-level logger used throughout flow-go.
var Log = logrus.New()

// SetLogger replaces the package-level logger.  Passing nil is ignored.
// Call it before starting any run; the logger is read without synchronisation.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		return
	}
	Log = l
}

// nodeFields returns the structured fields attached to every node-level log line.
func nodeFields(rc *RunContext, n *Node) logrus.Fields {
	f := logrus.Fields{}
	if rc != nil {
		f["run_id"] = rc.ID()
	}
	if n != nil {
		f["node_id"] = n.ID()
		f["node_name"] = n.Name()
	}
	return f
}
