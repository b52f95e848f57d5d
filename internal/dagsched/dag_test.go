package dagsched

import (
	"testing"

	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/ferrors"
)

func layersEqual(t *testing.T, got [][]NodeIndex, want [][]NodeIndex) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("layer count = %d, want %d (got=%v want=%v)", len(got), len(want), got, want)
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("layer %d size = %d, want %d (got=%v want=%v)", i, len(got[i]), len(want[i]), got, want)
		}
		seen := map[NodeIndex]bool{}
		for _, n := range got[i] {
			seen[n] = true
		}
		for _, n := range want[i] {
			if !seen[n] {
				t.Fatalf("layer %d missing node %d (got=%v want=%v)", i, n, got, want)
			}
		}
	}
}

func TestPureChain(t *testing.T) {
	s := NewScheduler()
	a := s.AddNode()
	b := s.AddNode()
	c := s.AddNode()

	key := ResourceKey(42)
	s.DeclareWrite(a, key)
	s.DeclareRead(b, key)
	s.DeclareWrite(c, key)

	if err := s.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	layersEqual(t, s.ExecutionLayers(), [][]NodeIndex{{a}, {b}, {c}})
}

func TestFanOutFanIn(t *testing.T) {
	s := NewScheduler()
	root := s.AddNode()
	l1 := s.AddNode()
	l2 := s.AddNode()
	join := s.AddNode()

	key := ResourceKey(1)
	s.DeclareWrite(root, key)
	s.DeclareRead(l1, key)
	s.DeclareRead(l2, key)
	s.DeclareWrite(join, key)

	if err := s.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	layersEqual(t, s.ExecutionLayers(), [][]NodeIndex{{root}, {l1, l2}, {join}})
}

func TestLabelOrderingWeakReadDoesNotOrderFutureWriter(t *testing.T) {
	s := NewScheduler()
	p1 := s.AddNode()
	p2 := s.AddNode()
	p3 := s.AddNode()

	label := LabelKey("GpuReady")
	s.DeclareWrite(p1, label)  // signal
	s.DeclareWeakRead(p2, label) // wait_for
	s.DeclareWrite(p3, label)  // signal again

	if err := s.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	layers := s.ExecutionLayers()
	layersEqual(t, layers, [][]NodeIndex{{p1}, {p2, p3}})
}

func TestCycleDetected(t *testing.T) {
	s := NewScheduler()
	y := s.AddNode()
	x := s.AddNode()

	key := ResourceKey(7)
	s.DeclareWrite(y, key) // y writes key 7 first
	s.DeclareRead(x, key)  // x reads it after: RAW edge y -> x implied
	s.AddEdge(y, x)        // explicit edge, already implied: no-op
	s.AddEdge(x, y)        // explicit edge the other way: closes the cycle

	err := s.Compile()
	if !ferrors.Is(err, ferrors.InvalidState) {
		t.Fatalf("expected InvalidState cycle error, got %v", err)
	}
	if len(s.ExecutionLayers()) != 0 {
		t.Fatalf("expected no layers after cycle detection")
	}
}

func TestEmptyFrameCompilesToNoLayers(t *testing.T) {
	s := NewScheduler()
	if err := s.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(s.ExecutionLayers()) != 0 {
		t.Fatalf("expected zero layers for empty frame")
	}
}

func TestSinglePassNoDeclarations(t *testing.T) {
	s := NewScheduler()
	n := s.AddNode()
	if err := s.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	layersEqual(t, s.ExecutionLayers(), [][]NodeIndex{{n}})
}

func TestReadThenWriteSameKeyTreatedAsWrite(t *testing.T) {
	s := NewScheduler()
	a := s.AddNode()
	b := s.AddNode()

	key := ResourceKey(5)
	s.DeclareWrite(a, key)
	s.DeclareRead(b, key)
	s.DeclareWrite(b, key) // b both reads and writes key

	if err := s.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	layersEqual(t, s.ExecutionLayers(), [][]NodeIndex{{a}, {b}})

	// A subsequent writer of key must wait on b (the last writer), not on
	// some stale reader registration.
	c := s.AddNode()
	s.DeclareWrite(c, key)
	if err := s.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	layersEqual(t, s.ExecutionLayers(), [][]NodeIndex{{a}, {b}, {c}})
}

func TestEdgeDeduplication(t *testing.T) {
	s := NewScheduler()
	a := s.AddNode()
	b := s.AddNode()

	s.AddEdge(a, b)
	s.AddEdge(a, b)
	s.AddEdge(a, b)

	if len(s.nodes[a].dependents) != 1 {
		t.Fatalf("expected a single deduplicated edge, got %d", len(s.nodes[a].dependents))
	}
}

func TestSelfEdgeRejected(t *testing.T) {
	s := NewScheduler()
	a := s.AddNode()
	s.AddEdge(a, a)
	if len(s.nodes[a].dependents) != 0 {
		t.Fatalf("expected self-edge to be rejected")
	}
}

func TestResetIdempotence(t *testing.T) {
	s := NewScheduler()
	a := s.AddNode()
	s.DeclareWrite(a, ResourceKey(1))
	s.Reset()
	s.Reset()
	if s.ActiveNodeCount() != 0 {
		t.Fatalf("expected active node count 0 after reset")
	}
}

func TestMultiFrameNodePoolReuse(t *testing.T) {
	s := NewScheduler()
	for i := 0; i < 20; i++ {
		s.AddNode()
	}
	if err := s.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	s.Reset()

	for i := 0; i < 5; i++ {
		s.AddNode()
	}
	if s.ActiveNodeCount() != 5 {
		t.Fatalf("active node count = %d, want 5", s.ActiveNodeCount())
	}
	if len(s.nodes) < 20 {
		t.Fatalf("expected node pool to retain high-water mark capacity, got %d", len(s.nodes))
	}
}

func TestTypeKeyStableAndDistinct(t *testing.T) {
	type widget struct{}
	type gadget struct{}

	k1 := TypeKey[widget]()
	k2 := TypeKey[widget]()
	k3 := TypeKey[gadget]()

	if k1 != k2 {
		t.Fatalf("same type produced different keys: %v != %v", k1, k2)
	}
	if k1 == k3 {
		t.Fatalf("distinct types produced the same key")
	}
}

func TestLabelKeyDoesNotCollideWithTypeKeys(t *testing.T) {
	type widget struct{}
	tk := TypeKey[widget]()
	lk := LabelKey("some-label")

	if tk == ResourceKey(lk) {
		t.Fatalf("type key collided with label key")
	}
	if !IsLabelKey(lk) {
		t.Fatalf("expected label key to be recognized as such")
	}
	if IsLabelKey(tk) {
		t.Fatalf("expected type key to not be recognized as a label key")
	}
}
