// Package graphfile loads node graphs from YAML definitions.
//
// A definition lists nodes with a worker kind, parameters and dependencies:
//
//	name: build
//	nodes:
//	  - id: fetch
//	    kind: sleep
//	    params: {duration: 20ms}
//	  - id: compile
//	    kind: exec
//	    params: {command: [go, version]}
//	    depends_on: [fetch]
//	  - id: cache
//	    kind: echo
//	    depends_on:
//	      - {id: fetch, wait_complete: false, can_skip: true}
//
// Build turns a definition into wired flow nodes using a Registry of worker kinds.
package graphfile

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	flow "github.com/seoyhaein/flow-go"
)

// Graph is a parsed graph definition.
type Graph struct {
	Name  string    `yaml:"name"`
	Nodes []NodeDef `yaml:"nodes"`
}

// NodeDef describes one node.
type NodeDef struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Kind        string         `yaml:"kind"`
	Params      map[string]any `yaml:"params"`
	IgnoreError bool           `yaml:"ignore_error"`
	DependsOn   []Dependency   `yaml:"depends_on"`
}

// Dependency is an edge from ID to the declaring node.  In YAML it is either a
// plain id or a mapping with the edge flags.
type Dependency struct {
	ID string `yaml:"id"`
	// WaitComplete defaults to true when omitted.
	WaitComplete *bool `yaml:"wait_complete"`
	CanSkip      bool  `yaml:"can_skip"`
}

// UnmarshalYAML accepts both "fetch" and {id: fetch, ...}.
func (d *Dependency) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		d.ID = value.Value
		return nil
	}
	type plain Dependency
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*d = Dependency(p)
	return nil
}

func (d Dependency) waitComplete() bool {
	return d.WaitComplete == nil || *d.WaitComplete
}

// Load reads and parses the definition at path.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graphfile: reading %s: %w", path, err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("graphfile: parsing %s: %w", path, err)
	}
	return g, nil
}

// Parse parses a definition and checks that ids are unique and every dependency
// names a declared node.
func Parse(data []byte) (*Graph, error) {
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate checks the definition without building it.
func (g *Graph) Validate() error {
	seen := make(map[string]struct{}, len(g.Nodes))
	for i, n := range g.Nodes {
		if strings.TrimSpace(n.ID) == "" {
			return fmt.Errorf("node #%d: id is required", i)
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("node %q: %w", n.ID, flow.ErrDuplicateNodeID)
		}
		seen[n.ID] = struct{}{}
		if strings.TrimSpace(n.Kind) == "" {
			return fmt.Errorf("node %q: kind is required", n.ID)
		}
	}
	for _, n := range g.Nodes {
		for _, d := range n.DependsOn {
			if _, ok := seen[d.ID]; !ok {
				return fmt.Errorf("node %q depends on unknown node %q", n.ID, d.ID)
			}
			if d.ID == n.ID {
				return fmt.Errorf("node %q: %w", n.ID, flow.ErrSelfEdge)
			}
		}
	}
	return nil
}

// Built is the result of Build.
type Built struct {
	// Nodes in declaration order.
	Nodes []*flow.Node
	// Entries are the nodes without dependencies, in declaration order.
	Entries []*flow.Node
	byID    map[string]*flow.Node
}

// Node returns the built node with the given id.
func (b *Built) Node(id string) (*flow.Node, bool) {
	n, ok := b.byID[id]
	return n, ok
}

// Build creates one node per definition, resolving workers through reg, and wires
// the dependencies.  cbs are attached to every node.
func Build(g *Graph, reg *Registry, cbs ...flow.Callback) (*Built, error) {
	if reg == nil {
		reg = NewRegistry()
	}
	out := &Built{byID: make(map[string]*flow.Node, len(g.Nodes))}

	for _, def := range g.Nodes {
		w, err := reg.Worker(def)
		if err != nil {
			return nil, err
		}
		name := def.Name
		if name == "" {
			name = def.ID
		}
		n, err := flow.NewBuilder(name).
			ID(def.ID).
			Worker(w).
			Params(def.Params).
			Param(KindParam, def.Kind).
			IgnoreError(def.IgnoreError).
			Callback(cbs...).
			Build()
		if err != nil {
			return nil, fmt.Errorf("graphfile: %w", err)
		}
		out.Nodes = append(out.Nodes, n)
		out.byID[def.ID] = n
	}

	for _, def := range g.Nodes {
		n := out.byID[def.ID]
		for _, d := range def.DependsOn {
			prev, ok := out.byID[d.ID]
			if !ok {
				return nil, fmt.Errorf("graphfile: node %q depends on unknown node %q", def.ID, d.ID)
			}
			if err := n.AddPrev(prev, d.waitComplete(), d.CanSkip, true); err != nil {
				return nil, fmt.Errorf("graphfile: wiring %s -> %s: %w", d.ID, def.ID, err)
			}
		}
		if len(def.DependsOn) == 0 {
			out.Entries = append(out.Entries, n)
		}
	}
	return out, nil
}
