package flow_go

import (
	"context"
	"io"
	"testing"
)

// ── run benchmarks ────────────────────────────────────────────────────────────
// Each iteration builds a fresh graph, because nodes are single-use, and runs it
// on a WorkerPool.  Graph construction is excluded from the timing.

func benchmarkRun(b *testing.B, numNodes int, edgeProb float64) {
	Log.SetOutput(io.Discard)
	pool := NewWorkerPool(8)
	defer pool.Close()
	f := NewFlow()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		_, entries := generateGraph(b, numNodes, edgeProb)
		b.StartTimer()
		if _, err := f.Start(context.Background(), pool, entries...).Wait(); err != nil {
			b.Fatalf("run failed: %v", err)
		}
	}
}

func BenchmarkRun_Small(b *testing.B)  { benchmarkRun(b, 10, 0.5) }
func BenchmarkRun_Medium(b *testing.B) { benchmarkRun(b, 100, 0.3) }
func BenchmarkRun_Large(b *testing.B)  { benchmarkRun(b, 1000, 0.1) }

// ── flatten benchmarks ────────────────────────────────────────────────────────

func BenchmarkFlatten_Large(b *testing.B) {
	Log.SetOutput(io.Discard)
	nodes, entries := generateGraph(b, 1000, 0.1)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if got := flatten(entries); len(got) != len(nodes) {
			b.Fatalf("flatten returned %d nodes, want %d", len(got), len(nodes))
		}
	}
}

func BenchmarkJoin(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		fs := make([]*Future[struct{}], 64)
		for j := range fs {
			fs[j] = NewFuture[struct{}]()
		}
		j := Join(fs...)
		for _, f := range fs {
			f.Complete(struct{}{}, nil)
		}
		if !j.IsDone() {
			b.Fatal("join not done")
		}
	}
}
