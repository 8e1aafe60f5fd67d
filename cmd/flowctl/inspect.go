package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	flow "github.com/seoyhaein/flow-go"
	"github.com/seoyhaein/flow-go/internal/graphfile"
)

func loadGraph(path string) (*graphfile.Graph, *graphfile.Built, error) {
	g, err := graphfile.Load(path)
	if err != nil {
		return nil, nil, err
	}
	built, err := graphfile.Build(g, nil)
	if err != nil {
		return nil, nil, err
	}
	return g, built, nil
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate GRAPH",
		Short: "Check a graph for unknown kinds, duplicate ids and cycles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, built, err := loadGraph(args[0])
			if err != nil {
				return err
			}
			if err := flow.DetectCycle(built.Nodes...); err != nil {
				return err
			}
			a.log.WithField("graph", g.Name).Debug("graph is valid")
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d nodes, %d entries\n", len(built.Nodes), len(built.Entries))
			return nil
		},
	}
}

func newMermaidCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mermaid GRAPH",
		Short: "Render a graph as a Mermaid flowchart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, built, err := loadGraph(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), flow.ToMermaid(built.Entries...))
			return nil
		},
	}
}

func newKindsCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the worker kinds a graph file may use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(graphfile.NewRegistry().Kinds(), "\n"))
			return nil
		},
	}
}
