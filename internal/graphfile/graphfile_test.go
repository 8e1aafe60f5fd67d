package graphfile

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	flow "github.com/seoyhaein/flow-go"
)

func init() {
	flow.Log.SetOutput(io.Discard)
}

const pipeline = `
name: pipeline
nodes:
  - id: fetch
    kind: sleep
    params: {duration: 5ms}
  - id: transform
    name: Transform rows
    kind: echo
    params: {value: rows}
    depends_on: [fetch]
  - id: warm
    kind: heavy
    params: {iterations: 100, sleep: 1}
  - id: load
    kind: echo
    depends_on:
      - transform
      - {id: warm, wait_complete: false, can_skip: true}
`

func TestParseAndBuild(t *testing.T) {
	defer goleak.VerifyNone(t)
	g, err := Parse([]byte(pipeline))
	require.NoError(t, err)
	assert.Equal(t, "pipeline", g.Name)
	require.Len(t, g.Nodes, 4)

	deps := g.Nodes[3].DependsOn
	require.Len(t, deps, 2)
	assert.Equal(t, "transform", deps[0].ID)
	assert.True(t, deps[0].waitComplete())
	assert.False(t, deps[1].waitComplete())
	assert.True(t, deps[1].CanSkip)

	b, err := Build(g, nil)
	require.NoError(t, err)
	require.Len(t, b.Entries, 2)
	assert.Equal(t, "fetch", b.Entries[0].ID())
	assert.Equal(t, "warm", b.Entries[1].ID())

	tr, ok := b.Node("transform")
	require.True(t, ok)
	assert.Equal(t, "Transform rows", tr.Name())
	assert.Equal(t, "echo", tr.Params().Get(KindParam, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc, err := flow.NewFlow(flow.WithWorkerPoolSize(4)).Run(ctx, b.Entries...)
	require.NoError(t, err)
	assert.Equal(t, "rows", rc.Result("transform", nil))
	assert.Equal(t, "load", rc.Result("load", nil))
	assert.Equal(t, "5ms", rc.Result("fetch", nil))
	for _, id := range []string{"fetch", "transform", "load"} {
		n, _ := b.Node(id)
		assert.Equal(t, flow.StateSucceeded, n.State(), id)
	}
	// warm may be skipped when load finishes before it starts.
	warm, _ := b.Node("warm")
	assert.True(t, warm.IsCompleted())
}

func TestParse_Rejects(t *testing.T) {
	defer goleak.VerifyNone(t)
	cases := map[string]string{
		"missing id":   "nodes: [{kind: echo}]",
		"missing kind": "nodes: [{id: a}]",
		"duplicate":    "nodes: [{id: a, kind: echo}, {id: a, kind: echo}]",
		"unknown dep":  "nodes: [{id: a, kind: echo, depends_on: [b]}]",
		"self dep":     "nodes: [{id: a, kind: echo, depends_on: [a]}]",
		"bad yaml":     "nodes: {",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("nodes: [{id: a, kind: echo}, {id: a, kind: echo}]"))
	assert.ErrorIs(t, err, flow.ErrDuplicateNodeID)
}

func TestBuild_UnknownKindAndBadParams(t *testing.T) {
	defer goleak.VerifyNone(t)
	g, err := Parse([]byte("nodes: [{id: a, kind: teleport}]"))
	require.NoError(t, err)
	_, err = Build(g, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown kind "teleport"`)

	g, err = Parse([]byte("nodes: [{id: a, kind: sleep, params: {duration: soon}}]"))
	require.NoError(t, err)
	_, err = Build(g, nil)
	assert.Error(t, err)

	g, err = Parse([]byte("nodes: [{id: a, kind: exec}]"))
	require.NoError(t, err)
	_, err = Build(g, nil)
	assert.Error(t, err)
}

func TestRegistry_CustomKind(t *testing.T) {
	defer goleak.VerifyNone(t)
	reg := NewRegistry()
	reg.Register("double", func(def NodeDef) (flow.Worker, error) {
		n, err := intParam(def.Params, "n", 0)
		if err != nil {
			return nil, err
		}
		return flow.WorkerFunc(func(_, _ *flow.Node, _ *flow.RunContext) (any, error) {
			return n * 2, nil
		}), nil
	})
	assert.Contains(t, reg.Kinds(), "double")

	g, err := Parse([]byte("nodes: [{id: a, kind: double, params: {n: 21}}, {id: b, kind: fail, ignore_error: true, depends_on: [a]}, {id: c, kind: echo, depends_on: [b]}]"))
	require.NoError(t, err)
	b, err := Build(g, reg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc, err := flow.NewFlow().Run(ctx, b.Entries...)
	require.NoError(t, err, "b ignores its error")
	assert.Equal(t, 42, rc.Result("a", nil))
	assert.ErrorContains(t, rc.Err("b"), "failed in execute phase")
	assert.Equal(t, "c", rc.Result("c", nil))
}

func TestLoad(t *testing.T) {
	defer goleak.VerifyNone(t)
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pipeline), 0o600))

	g, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 4)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExecKind(t *testing.T) {
	defer goleak.VerifyNone(t)
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	g, err := Parse([]byte(`nodes: [{id: a, kind: exec, params: {command: "echo hello"}}, {id: b, kind: exec, params: {command: [sh, -c, "echo oops >&2; exit 3"]}}]`))
	require.NoError(t, err)
	b, err := Build(g, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc, err := flow.NewFlow().Run(ctx, b.Entries...)
	require.Error(t, err)
	assert.Equal(t, "hello", rc.Result("a", nil))
	assert.ErrorContains(t, rc.Err("b"), "oops")
}
