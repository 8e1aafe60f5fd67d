package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	flow "github.com/seoyhaein/flow-go"
)

func writeReport(w io.Writer, format string, r flow.Report) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	_, _ = fmt.Fprintf(w, "run %s\n\n", r.RunID)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tSTATE\tWORKER\tCOST\tERROR")
	for _, n := range r.Nodes {
		cost := "-"
		if n.Start != nil {
			cost = n.Cost.String()
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			n.ID, n.Name, n.State, dash(n.Worker), cost, dash(n.Error))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	counts := r.Counts()
	states := make([]string, 0, len(counts))
	for s := range counts {
		states = append(states, s)
	}
	sort.Strings(states)
	parts := make([]string, 0, len(states))
	for _, s := range states {
		parts = append(parts, fmt.Sprintf("%s=%d", s, counts[s]))
	}
	_, _ = fmt.Fprintf(w, "\n%s\n", strings.Join(parts, " "))
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
