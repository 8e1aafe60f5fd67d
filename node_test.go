package flow_go

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// noopWorker returns nil without doing anything.
var noopWorker = WorkerFunc(func(_, _ *Node, _ *RunContext) (any, error) {
	return nil, nil
})

func mustNode(t testing.TB, id string) *Node {
	t.Helper()
	n, err := NewBuilder(id).ID(id).Worker(noopWorker).Build()
	require.NoError(t, err)
	return n
}

// prevIDs and nextIDs flatten edge lists into ids for comparison.
func prevIDs(n *Node) []string {
	var out []string
	for _, e := range n.Prevs() {
		out = append(out, e.Prev().ID())
	}
	return out
}

func nextIDs(n *Node) []string {
	var out []string
	for _, e := range n.Nexts() {
		out = append(out, e.Next().ID())
	}
	return out
}

func TestBuilder_Validation(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, err := NewBuilder("").Worker(noopWorker).Build()
	assert.ErrorIs(t, err, ErrInvalidArgument, "blank name")

	_, err = NewBuilder("x").Build()
	assert.ErrorIs(t, err, ErrInvalidArgument, "nil worker")

	_, err = NewBuilder("x").ID("   ").Worker(noopWorker).Build()
	assert.ErrorIs(t, err, ErrInvalidArgument, "blank id")

	n, err := NewNode("generated", noopWorker)
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID(), "id is generated when not set")
	assert.Equal(t, StateInitial, n.State())
}

func TestBuilder_ParamsFrozen(t *testing.T) {
	defer goleak.VerifyNone(t)
	n := NewBuilder("p").Worker(noopWorker).
		Param("a", 1).
		Params(map[string]any{"b": "two", "gone": nil}).
		MustBuild()

	assert.True(t, n.Params().Frozen())
	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, n.Params().All())
	assert.ErrorIs(t, n.Params().Set("c", 3), ErrIllegalMutation)
}

func TestBuilder_CallbacksSortedStable(t *testing.T) {
	defer goleak.VerifyNone(t)
	first := &Hooks{Priority: 5}
	second := &Hooks{Priority: 5}
	early := &Hooks{Priority: -1}
	removed := &Hooks{Priority: 0}

	n := NewBuilder("cb").Worker(noopWorker).
		Callback(first, nil, second, removed, early).
		RemoveCallback(removed).
		MustBuild()

	got := n.Callbacks()
	require.Len(t, got, 3)
	assert.Same(t, early, got[0])
	assert.Same(t, first, got[1], "ties keep insertion order")
	assert.Same(t, second, got[2])
}

func TestBuilder_PendingEdges(t *testing.T) {
	defer goleak.VerifyNone(t)
	a := mustNode(t, "a")
	c := mustNode(t, "c")

	b := NewBuilder("b").ID("b").Worker(noopWorker).
		PrevWith(a, false, true).
		Next(c).
		MustBuild()

	if diff := cmp.Diff([]string{"b"}, nextIDs(a)); diff != "" {
		t.Errorf("a nexts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a"}, prevIDs(b)); diff != "" {
		t.Errorf("b prevs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b"}, prevIDs(c)); diff != "" {
		t.Errorf("c prevs mismatch (-want +got):\n%s", diff)
	}

	assert.False(t, b.Prevs()[0].WaitComplete())
	assert.True(t, a.Nexts()[0].CanSkip())
	assert.True(t, c.Prevs()[0].WaitComplete())
	assert.False(t, b.Nexts()[0].CanSkip())
}

func TestAddPrev_MirrorsAndUpdates(t *testing.T) {
	defer goleak.VerifyNone(t)
	a := mustNode(t, "a")
	b := mustNode(t, "b")

	require.NoError(t, b.AddPrev(a, true, false, false))
	require.Len(t, a.Nexts(), 1)
	require.Len(t, b.Prevs(), 1)

	// 이미 존재하고 update=false 이면 그대로 유지
	require.NoError(t, b.AddPrev(a, false, true, false))
	assert.True(t, b.Prevs()[0].WaitComplete())
	assert.False(t, a.Nexts()[0].CanSkip())

	// update=true 이면 양쪽 모두 교체
	require.NoError(t, b.AddPrev(a, false, true, true))
	require.Len(t, b.Prevs(), 1, "update must not duplicate")
	assert.False(t, b.Prevs()[0].WaitComplete())
	assert.True(t, a.Nexts()[0].CanSkip())
	assert.Same(t, b, b.Prevs()[0].Current())
	assert.Same(t, a, a.Nexts()[0].Current())
}

func TestAddNext_Rejections(t *testing.T) {
	defer goleak.VerifyNone(t)
	a := mustNode(t, "a")
	b := mustNode(t, "b")

	assert.ErrorIs(t, a.AddNext(nil, true, false, true), ErrInvalidArgument)
	assert.ErrorIs(t, a.Next(a), ErrSelfEdge)
	assert.ErrorIs(t, a.Prev(a), ErrSelfEdge)

	b.finish(StateSucceeded)
	assert.ErrorIs(t, a.Next(b), ErrNodeFrozen, "frozen target")
	assert.ErrorIs(t, b.Next(a), ErrNodeFrozen, "frozen owner")
	assert.Empty(t, a.Nexts())
	assert.ErrorIs(t, b.SetName("renamed"), ErrNodeFrozen)
	assert.ErrorIs(t, b.SetIgnoreError(true), ErrNodeFrozen)
}

func TestRemoveEdges(t *testing.T) {
	defer goleak.VerifyNone(t)
	a := mustNode(t, "a")
	b := mustNode(t, "b")
	c := mustNode(t, "c")
	require.NoError(t, a.Next(b))
	require.NoError(t, a.Next(c))

	require.NoError(t, b.RemovePrev(a))
	assert.Equal(t, []string{"c"}, nextIDs(a))
	assert.Empty(t, b.Prevs())
	assert.True(t, b.IsEntry())

	require.NoError(t, a.RemoveNext(c))
	assert.Empty(t, a.Nexts())
	assert.Empty(t, c.Prevs())

	// removing a missing edge is a no-op
	require.NoError(t, a.RemoveNext(c))
}

func TestSetters(t *testing.T) {
	defer goleak.VerifyNone(t)
	n := mustNode(t, "n")
	assert.ErrorIs(t, n.SetName(" "), ErrInvalidArgument)
	require.NoError(t, n.SetName("renamed"))
	require.NoError(t, n.SetIgnoreError(true))
	assert.Equal(t, "renamed", n.Name())
	assert.True(t, n.IgnoreError())
}

func TestMutate_CopiesEverythingButID(t *testing.T) {
	defer goleak.VerifyNone(t)
	up := mustNode(t, "up")
	down := mustNode(t, "down")
	cb := &Hooks{Priority: 1}

	orig := NewBuilder("work").ID("orig").Worker(noopWorker).
		Param("k", "v").
		IgnoreError(true).
		Callback(cb).
		PrevWith(up, false, true).
		NextWith(down, false, true).
		MustBuild()

	variant, err := orig.Mutate().ID("variant").Build()
	require.NoError(t, err)

	assert.Equal(t, "work", variant.Name())
	assert.Equal(t, "variant", variant.ID())
	assert.True(t, variant.IgnoreError())
	assert.Equal(t, "v", variant.Params().Get("k", nil))
	assert.Equal(t, []Callback{cb}, variant.Callbacks())

	// edges and their flags from both mirrored sides
	require.Len(t, variant.Prevs(), 1)
	assert.False(t, variant.Prevs()[0].WaitComplete())
	assert.ElementsMatch(t, []string{"orig", "variant"}, nextIDs(up))
	for _, e := range up.Nexts() {
		assert.True(t, e.CanSkip())
	}
	require.Len(t, variant.Nexts(), 1)
	assert.True(t, variant.Nexts()[0].CanSkip())
	for _, e := range down.Prevs() {
		assert.False(t, e.WaitComplete())
	}

	auto, err := orig.Mutate().Build()
	require.NoError(t, err)
	assert.NotEqual(t, orig.ID(), auto.ID())
}

func TestStateString(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert.Equal(t, "succeeded", StateSucceeded.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.False(t, StateRunning.IsCompleted())
	assert.True(t, StateSkipped.IsCompleted())
}

func TestEdgesFrozenOnceRunning(t *testing.T) {
	defer goleak.VerifyNone(t)
	for i := 0; i < 200; i++ { //nolint:intrange
		var seen atomic.Int32
		a := NewBuilder("a").ID("a").WorkerFunc(func(_, cur *Node, _ *RunContext) (any, error) {
			seen.Store(int32(len(cur.Nexts())))
			return nil, nil
		}).MustBuild()

		exec := NewGoExecutor()
		run := NewFlow().Start(context.Background(), exec, a)
		// 실행과 경쟁하며 간선을 추가한다.
		for j := 0; j < 5; j++ { //nolint:intrange
			_ = a.Next(mustNode(t, fmt.Sprintf("late-%d", j)))
		}
		_, err := run.Wait()
		require.NoError(t, err)
		require.NoError(t, exec.Close())

		assert.Equal(t, int(seen.Load()), len(a.Nexts()),
			"no edge may be added after the node left initial")
	}
}
