// Package dagsched implements the DAG Scheduler: a per-frame node registry
// with per-resource read/write state, hazard-derived edges (RAW/WAW/WAR),
// explicit edges, and Kahn's-algorithm layering into parallel execution
// layers. It is pure algorithm, no threading, no I/O, and is only ever
// driven from the single goroutine that owns a frame.
package dagsched

import "github.com/intrinsicD/IntrinsicEngine-sub007/internal/ferrors"

const noNode NodeIndex = -1

type nodeData struct {
	dependents []NodeIndex
	inDegree   uint32
}

type resourceState struct {
	lastWriter     NodeIndex
	currentReaders []NodeIndex
}

// Scheduler is the DAG Scheduler. Zero value is not usable; use NewScheduler.
type Scheduler struct {
	nodes     []nodeData
	active    int
	resources map[ResourceKey]*resourceState
	layers    [][]NodeIndex
	names     map[ResourceKey]string
}

// NewScheduler constructs an empty DAG Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		resources: make(map[ResourceKey]*resourceState),
		names:     make(map[ResourceKey]string),
	}
}

// Reset clears active node count, resource states and execution layers.
// The node pool's backing array and resource-state map capacity are
// retained across resets.
func (s *Scheduler) Reset() {
	s.active = 0
	for k := range s.resources {
		delete(s.resources, k)
	}
	s.layers = s.layers[:0]
}

// AddNode returns the next integer NodeIndex, with an empty dependents list
// and zero in-degree. Recycles a pool slot if one is available from a prior
// frame's high-water mark.
func (s *Scheduler) AddNode() NodeIndex {
	idx := NodeIndex(s.active)
	if int(idx) < len(s.nodes) {
		s.nodes[idx].dependents = s.nodes[idx].dependents[:0]
		s.nodes[idx].inDegree = 0
	} else {
		s.nodes = append(s.nodes, nodeData{})
	}
	s.active++
	return idx
}

// ActiveNodeCount returns the number of nodes added since the last Reset.
func (s *Scheduler) ActiveNodeCount() int { return s.active }

func (s *Scheduler) valid(n NodeIndex) bool {
	return n >= 0 && int(n) < s.active
}

func (s *Scheduler) stateFor(key ResourceKey) *resourceState {
	rs, ok := s.resources[key]
	if !ok {
		rs = &resourceState{lastWriter: noNode}
		s.resources[key] = rs
	}
	return rs
}

// addEdge adds a deduplicated edge producer->consumer, rejecting self-edges
// and out-of-range indices.
func (s *Scheduler) addEdge(producer, consumer NodeIndex) {
	if producer == consumer {
		return
	}
	if !s.valid(producer) || !s.valid(consumer) {
		return
	}
	dependents := s.nodes[producer].dependents
	for _, d := range dependents {
		if d == consumer {
			return
		}
	}
	s.nodes[producer].dependents = append(dependents, consumer)
	s.nodes[consumer].inDegree++
}

// AddEdge adds an explicit ordering edge producer->consumer.
func (s *Scheduler) AddEdge(producer, consumer NodeIndex) {
	s.addEdge(producer, consumer)
}

// DeclareRead adds edge last_writer->n if a writer exists, and registers n
// as a reader of key for future WAR edges. Invalid n is a no-op.
func (s *Scheduler) DeclareRead(n NodeIndex, key ResourceKey) {
	if !s.valid(n) {
		return
	}
	rs := s.stateFor(key)
	if rs.lastWriter != noNode {
		s.addEdge(rs.lastWriter, n)
	}
	rs.currentReaders = append(rs.currentReaders, n)
}

// DeclareWeakRead adds edge last_writer->n if a writer exists, but does not
// register n as a reader: future writers of key will not wait on n.
func (s *Scheduler) DeclareWeakRead(n NodeIndex, key ResourceKey) {
	if !s.valid(n) {
		return
	}
	rs := s.stateFor(key)
	if rs.lastWriter != noNode {
		s.addEdge(rs.lastWriter, n)
	}
}

// DeclareWrite adds edges last_writer->n (WAW) and reader->n for every
// current reader (WAR), clears current_readers (including n itself, since
// a pass that both reads and writes the same key is treated as a writer),
// and sets last_writer[key] = n.
func (s *Scheduler) DeclareWrite(n NodeIndex, key ResourceKey) {
	if !s.valid(n) {
		return
	}
	rs := s.stateFor(key)
	if rs.lastWriter != noNode {
		s.addEdge(rs.lastWriter, n)
	}
	for _, reader := range rs.currentReaders {
		s.addEdge(reader, n)
	}
	rs.currentReaders = rs.currentReaders[:0]
	rs.lastWriter = n
}

// NameResource attaches a debug-only name to key, used purely for
// introspection/log output, never consulted by hazard logic.
func (s *Scheduler) NameResource(key ResourceKey, name string) {
	s.names[key] = name
}

// ResourceName returns the debug name for key, if any was attached.
func (s *Scheduler) ResourceName(key ResourceKey) (string, bool) {
	name, ok := s.names[key]
	return name, ok
}

// Compile runs Kahn's algorithm over the active nodes and edges, producing
// execution_layers. Returns an error of Kind ferrors.InvalidState if the
// implied graph is not acyclic; execution_layers is left empty in that case.
func (s *Scheduler) Compile() error {
	s.layers = s.layers[:0]

	indegree := make([]uint32, s.active)
	for i := 0; i < s.active; i++ {
		indegree[i] = s.nodes[i].inDegree
	}

	var layer []NodeIndex
	for i := 0; i < s.active; i++ {
		if indegree[i] == 0 {
			layer = append(layer, NodeIndex(i))
		}
	}

	processed := 0
	for len(layer) > 0 {
		s.layers = append(s.layers, layer)
		processed += len(layer)

		var next []NodeIndex
		for _, n := range layer {
			for _, dep := range s.nodes[n].dependents {
				indegree[dep]--
				if indegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		layer = next
	}

	if processed != s.active {
		s.layers = s.layers[:0]
		return ferrors.Wrap(ferrors.InvalidState, "dagsched.Compile",
			errCycle)
	}
	return nil
}

var errCycle = cycleError{}

type cycleError struct{}

func (cycleError) Error() string { return "cycle detected among declared passes" }

// ExecutionLayers returns the read-only view of the compiled layering. Call
// only after a successful Compile.
func (s *Scheduler) ExecutionLayers() [][]NodeIndex {
	return s.layers
}
