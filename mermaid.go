package flow_go

import (
	"fmt"
	"strings"
)

// ToMermaid renders the graph reachable from entries as a Mermaid flowchart.
// Edges that do not wait are dotted and edges allowing the predecessor to be
// skipped are labelled "skip".
func ToMermaid(entries ...*Node) string {
	return renderMermaid(flatten(dedupNodes(entries)), false)
}

// ToMermaid renders the run's graph with one style class per node state.
func (rc *RunContext) ToMermaid() string {
	return renderMermaid(rc.nodes, true)
}

func renderMermaid(nodes []*Node, withState bool) string {
	ids := make(map[*Node]string, len(nodes))
	for i, n := range nodes {
		ids[n] = fmt.Sprintf("n%d", i)
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")
	for _, n := range nodes {
		label := mermaidEscape(n.Name())
		if withState {
			fmt.Fprintf(&sb, "    %s[\"%s\"]:::%s\n", ids[n], label, n.State())
			continue
		}
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", ids[n], label)
	}
	for _, n := range nodes {
		for _, e := range n.Nexts() {
			to, ok := ids[e.next]
			if !ok {
				continue
			}
			arrow := "-->"
			if !waitsFor(e.next, n) {
				arrow = "-.->"
			}
			if e.canSkip {
				fmt.Fprintf(&sb, "    %s %s|skip| %s\n", ids[n], arrow, to)
				continue
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", ids[n], arrow, to)
		}
	}
	if withState {
		sb.WriteString("    classDef initial fill:#eeeeee\n")
		sb.WriteString("    classDef running fill:#fff3b0\n")
		sb.WriteString("    classDef succeeded fill:#b7e4c7\n")
		sb.WriteString("    classDef failed fill:#f4a6a6\n")
		sb.WriteString("    classDef skipped fill:#cfe2ff\n")
	}
	return sb.String()
}

func waitsFor(n, prev *Node) bool {
	wiringMu.RLock()
	defer wiringMu.RUnlock()
	if i := indexOfPrev(n.prevs, prev); i >= 0 {
		return n.prevs[i].waitComplete
	}
	return true
}

func mermaidEscape(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
