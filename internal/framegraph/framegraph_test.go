package framegraph

import (
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/ferrors"
	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/scopealloc"
	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/taskscheduler"
)

type position struct{}
type velocity struct{}

func newGraph(t *testing.T) (*Graph, *taskscheduler.Scheduler) {
	t.Helper()
	tasks := taskscheduler.New()
	tasks.Initialize(4)
	t.Cleanup(tasks.Shutdown)

	arena := scopealloc.NewArena(1 << 16)
	g := New(tasks, arena, slog.Default())
	return g, tasks
}

func TestLifecycleHappyPath(t *testing.T) {
	g, _ := newGraph(t)

	g.Reset()
	if g.State() != StateSetup {
		t.Fatalf("expected Setup after Reset, got %v", g.State())
	}

	var ran []string
	g.AddPass("movement", func(b *Builder) {
		Read[position](b)
		Write[velocity](b)
	}, func() { ran = append(ran, "movement") })

	if g.PassCount() != 1 || g.PassName(0) != "movement" {
		t.Fatalf("pass registration failed: count=%d name=%q", g.PassCount(), g.PassName(0))
	}

	if err := g.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if g.State() != StateReady {
		t.Fatalf("expected Ready after Compile, got %v", g.State())
	}

	if err := g.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if g.State() != StateIdle {
		t.Fatalf("expected Idle after Execute, got %v", g.State())
	}
	if len(ran) != 1 || ran[0] != "movement" {
		t.Fatalf("expected movement pass to run exactly once, got %v", ran)
	}
}

func TestSinglePassLayerRunsInline(t *testing.T) {
	g, tasks := newGraph(t)
	g.Reset()

	callerGoroutine := make(chan bool, 1)
	g.AddPass("solo", nil, func() {
		callerGoroutine <- tasks.ActiveTaskCount() == 0
	})

	if err := g.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := g.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	select {
	case inline := <-callerGoroutine:
		if !inline {
			t.Fatalf("expected single-pass layer to run without touching the task scheduler")
		}
	default:
		t.Fatalf("pass did not run")
	}
}

func TestMultiPassLayerDispatchesAndBarriers(t *testing.T) {
	g, _ := newGraph(t)
	g.Reset()

	var started, finished int32
	makeLeaf := func(name string) {
		g.AddPass(name, func(b *Builder) { Read[position](b) }, func() {
			atomic.AddInt32(&started, 1)
			atomic.AddInt32(&finished, 1)
		})
	}

	// Root writes position; two independent leaves read it concurrently.
	g.AddPass("root", func(b *Builder) { Write[position](b) }, func() {})
	makeLeaf("leaf-a")
	makeLeaf("leaf-b")

	if err := g.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	layers := g.ExecutionLayers()
	if len(layers) != 2 {
		t.Fatalf("expected 2 layers (root, then two leaves), got %d: %v", len(layers), layers)
	}
	if len(layers[1]) != 2 {
		t.Fatalf("expected second layer to contain both leaves, got %v", layers[1])
	}

	if err := g.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if atomic.LoadInt32(&finished) != 2 {
		t.Fatalf("expected both leaves to finish, got %d", finished)
	}
}

func TestLabelWaitForAndSignalOrdering(t *testing.T) {
	g, _ := newGraph(t)
	g.Reset()

	var order []string
	g.AddPass("producer", func(b *Builder) { b.Signal("GpuReady") }, func() { order = append(order, "producer") })
	g.AddPass("consumer", func(b *Builder) { b.WaitFor("GpuReady") }, func() { order = append(order, "consumer") })

	if err := g.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	layers := g.ExecutionLayers()
	if len(layers) != 2 {
		t.Fatalf("expected producer and consumer in separate layers, got %v", layers)
	}

	if err := g.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(order) != 2 || order[0] != "producer" || order[1] != "consumer" {
		t.Fatalf("expected producer before consumer, got %v", order)
	}
}

func TestCycleLeavesGraphIdleAndExecuteDisallowed(t *testing.T) {
	g, _ := newGraph(t)
	g.Reset()

	g.AddPass("p1", func(bd *Builder) { Write[position](bd) }, func() {})
	g.AddPass("p2", func(bd *Builder) { Read[position](bd); Write[velocity](bd) }, func() {})
	// Force a cycle: p2 already depends on p1 via position RAW; add an
	// explicit edge the other way to close the loop.
	g.dag.AddEdge(g.nodeOf[1], g.nodeOf[0])

	err := g.Compile()
	if !ferrors.Is(err, ferrors.InvalidState) {
		t.Fatalf("expected InvalidState cycle error, got %v", err)
	}
	if g.State() != StateIdle {
		t.Fatalf("expected Idle after cycle, got %v", g.State())
	}

	if err := g.Execute(); !ferrors.Is(err, ferrors.InvalidState) {
		t.Fatalf("expected Execute to refuse running after a cycle, got %v", err)
	}
}

func TestAddPassOutsideSetupIsRejected(t *testing.T) {
	g, _ := newGraph(t)
	// Never reset: graph starts Idle.
	called := false
	g.AddPass("too-early", nil, func() { called = true })
	if g.PassCount() != 0 {
		t.Fatalf("expected add_pass outside setup to be a no-op")
	}

	g.Reset()
	g.AddPass("ok", nil, func() {})
	if err := g.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := g.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Ready state rejects add_pass too (graph is Idle again post-execute,
	// so reach Ready by compiling a new frame and not executing it).
	g.Reset()
	g.AddPass("p", nil, func() {})
	if err := g.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	g.AddPass("late", nil, func() { called = true })
	if g.PassCount() != 1 {
		t.Fatalf("expected add_pass while Ready to be rejected, got count=%d", g.PassCount())
	}
	_ = called
}

func TestMultiFrameReuse(t *testing.T) {
	g, _ := newGraph(t)

	for frame := 0; frame < 3; frame++ {
		g.Reset()
		count := 0
		g.AddPass("a", nil, func() { count++ })
		g.AddPass("b", func(bd *Builder) {}, func() { count++ })
		if err := g.Compile(); err != nil {
			t.Fatalf("frame %d Compile: %v", frame, err)
		}
		if err := g.Execute(); err != nil {
			t.Fatalf("frame %d Execute: %v", frame, err)
		}
		if count != 2 {
			t.Fatalf("frame %d: expected both passes to run, got %d", frame, count)
		}
		if g.PassCount() != 2 {
			t.Fatalf("frame %d: expected pass count 2, got %d", frame, g.PassCount())
		}
	}
}

func TestSnapshotReflectsCompiledLayers(t *testing.T) {
	g, _ := newGraph(t)
	g.Reset()
	g.AddPass("root", func(b *Builder) { Write[position](b) }, func() {})
	g.AddPass("leaf", func(b *Builder) { Read[position](b) }, func() {})

	if err := g.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	snap := g.Snapshot()
	if snap.PassCount != 2 {
		t.Fatalf("snapshot pass count = %d, want 2", snap.PassCount)
	}
	if len(snap.Layers) != 2 {
		t.Fatalf("snapshot layers = %v, want 2 layers", snap.Layers)
	}
	if snap.Layers[0][0] != "root" || snap.Layers[1][0] != "leaf" {
		t.Fatalf("snapshot layer contents = %v, want [[root] [leaf]]", snap.Layers)
	}
}
