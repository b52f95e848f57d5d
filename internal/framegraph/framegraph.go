// Package framegraph implements the Frame Graph: the thin orchestrator
// that turns subsystem-level "pass" declarations into nodes in the DAG
// Scheduler, owns per-pass names and execute closures, and drives
// layer-by-layer execution on the Task Scheduler. It is the glue component
// that ties dagsched, taskscheduler and scopealloc together, mirroring how
// `scheduler.go` sits on top of dag_engine.go and task_executor.go.
package framegraph

import (
	"log/slog"

	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/dagsched"
	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/ferrors"
	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/scopealloc"
	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/taskscheduler"
)

// State is the Frame Graph's 3-state per-frame cycle.
type State int

const (
	StateIdle State = iota
	StateSetup
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSetup:
		return "setup"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// passNode holds a pass's name and its execute thunk. The closure itself
// is allocated in the frame's Scope Allocator; execute here is the thunk,
// already bound to that storage.
type passNode struct {
	name    string
	execute func()
}

// Graph is the Frame Graph. Construct with New, wiring it to a Task
// Scheduler and a Scope Allocator owned by the caller (the demo daemon
// owns one of each per frame-producing goroutine).
type Graph struct {
	dag     *dagsched.Scheduler
	tasks   *taskscheduler.Scheduler
	arena   *scopealloc.Arena
	state   State
	passes  []passNode
	active  int
	nodeOf  []dagsched.NodeIndex // nodeOf[i] is the DAG node for passes[i]
	logger  *slog.Logger
}

// New constructs an idle Frame Graph. tasks and arena must outlive the
// graph; AddPass allocates each pass's execute closure from arena, but the
// graph never rewinds it. Resetting the arena before Reset is the caller's
// responsibility.
func New(tasks *taskscheduler.Scheduler, arena *scopealloc.Arena, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		dag:    dagsched.NewScheduler(),
		tasks:  tasks,
		arena:  arena,
		state:  StateIdle,
		logger: logger,
	}
}

// Reset clears the pass pool's active region and delegates reset to the DAG
// Scheduler, moving the graph from whatever state it is in (Idle after
// Execute or a failed Compile, or Ready if Execute was never called) into
// Setup. The Scope Allocator is not touched here; callers
// reset it themselves once per frame alongside this call.
func (g *Graph) Reset() {
	g.active = 0
	g.nodeOf = g.nodeOf[:0]
	g.dag.Reset()
	g.state = StateSetup
}

// Builder is handed to each pass's setup callback to declare hazards.
type Builder struct {
	dag  *dagsched.Scheduler
	node dagsched.NodeIndex
}

// Read declares that the owning pass reads component type T.
func Read[T any](b *Builder) {
	b.dag.DeclareRead(b.node, dagsched.TypeKey[T]())
}

// Write declares that the owning pass writes component type T.
func Write[T any](b *Builder) {
	b.dag.DeclareWrite(b.node, dagsched.TypeKey[T]())
}

// WaitFor declares a weak dependency on a named label: the pass runs after
// whoever last signaled label, but does not itself become a dependency of
// future signalers of the same label.
func (b *Builder) WaitFor(label string) {
	key := dagsched.LabelKey(label)
	b.dag.NameResource(key, label)
	b.dag.DeclareWeakRead(b.node, key)
}

// Signal declares that the owning pass produces a named label, ordering it
// after the prior signaler of that label. Prior waiters are not ordered
// before it, since WaitFor does not register them as readers.
func (b *Builder) Signal(label string) {
	key := dagsched.LabelKey(label)
	b.dag.NameResource(key, label)
	b.dag.DeclareWrite(b.node, key)
}

// AddPass registers a pass: name must stay valid until the next Reset,
// setup is invoked synchronously to declare hazards via the Builder, and
// execute is the deferred work run during Execute. AddPass is only valid in
// the Setup state. If the Scope Allocator cannot hold the closure, the pass
// is logged and dropped rather than failing the whole frame.
func (g *Graph) AddPass(name string, setup func(*Builder), execute func()) {
	if g.state != StateSetup {
		g.logger.Warn("add_pass called outside setup state", "pass", name, "state", g.state.String())
		return
	}

	node := g.dag.AddNode()

	thunk, err := scopealloc.New(g.arena, execute)
	if err != nil {
		g.logger.Warn("pass closure allocation failed; pass dropped", "pass", name, "err", err)
		return
	}

	idx := g.active
	if idx < len(g.passes) {
		g.passes[idx] = passNode{name: name, execute: *thunk}
	} else {
		g.passes = append(g.passes, passNode{name: name, execute: *thunk})
	}
	g.active++
	g.nodeOf = append(g.nodeOf, node)

	if setup != nil {
		setup(&Builder{dag: g.dag, node: node})
	}
}

// Compile delegates to the DAG Scheduler, moving Setup → Ready on success.
// A cycle leaves the graph in Idle (execute disallowed) and the error
// propagates verbatim.
func (g *Graph) Compile() error {
	if g.state != StateSetup {
		return ferrors.New(ferrors.InvalidState, "framegraph.Compile")
	}
	if err := g.dag.Compile(); err != nil {
		g.state = StateIdle
		return err
	}
	g.state = StateReady
	return nil
}

// Execute runs every compiled layer in order: single-pass layers run
// inline on the calling goroutine to avoid dispatch overhead, multi-pass
// layers are dispatched to the Task Scheduler with a WaitForAll barrier
// before the next layer begins. Execute is only valid in the Ready state
// and returns the graph to Idle.
func (g *Graph) Execute() error {
	if g.state != StateReady {
		return ferrors.New(ferrors.InvalidState, "framegraph.Execute")
	}
	defer func() { g.state = StateIdle }()

	for _, layer := range g.dag.ExecutionLayers() {
		if len(layer) == 1 {
			g.runByNode(layer[0])
			continue
		}
		for _, n := range layer {
			node := n
			g.tasks.Dispatch(func() { g.runByNode(node) })
		}
		g.tasks.WaitForAll()
	}
	return nil
}

// runByNode locates the pass registered against DAG node n and runs its
// execute closure. Linear scan: pass counts per frame are small, and this
// only runs once per pass per frame.
func (g *Graph) runByNode(n dagsched.NodeIndex) {
	for i, node := range g.nodeOf {
		if node == n {
			g.passes[i].execute()
			return
		}
	}
}

// PassCount returns the number of passes added since the last Reset.
func (g *Graph) PassCount() int { return g.active }

// PassName returns the name of pass i, valid for i in [0, PassCount()).
func (g *Graph) PassName(i int) string {
	if i < 0 || i >= g.active {
		return ""
	}
	return g.passes[i].name
}

// ExecutionLayers returns the compiled layering for introspection/logging,
// expressed as pass indices rather than raw DAG node indices.
func (g *Graph) ExecutionLayers() [][]int {
	layers := g.dag.ExecutionLayers()
	out := make([][]int, len(layers))
	for li, layer := range layers {
		row := make([]int, 0, len(layer))
		for _, n := range layer {
			for i, node := range g.nodeOf {
				if node == n {
					row = append(row, i)
					break
				}
			}
		}
		out[li] = row
	}
	return out
}

// State returns the graph's current lifecycle state, for introspection.
func (g *Graph) State() State { return g.state }

// FrameSnapshot is a point-in-time, human-readable view of the most
// recently compiled frame: which passes ran, in which layers, by name
// rather than raw NodeIndex. Pure introspection, it adds no hazard
// semantics and is never consulted by Compile or Execute.
type FrameSnapshot struct {
	State      string     `json:"state"`
	PassCount  int        `json:"pass_count"`
	PassNames  []string   `json:"pass_names"`
	Layers     [][]string `json:"layers"`
}

// Snapshot renders the current pass set and compiled layering (if any) into
// a FrameSnapshot suitable for an HTTP introspection endpoint or CLI
// printout.
func (g *Graph) Snapshot() FrameSnapshot {
	names := make([]string, g.active)
	for i := 0; i < g.active; i++ {
		names[i] = g.passes[i].name
	}

	rawLayers := g.dag.ExecutionLayers()
	layers := make([][]string, len(rawLayers))
	for li, layer := range rawLayers {
		row := make([]string, 0, len(layer))
		for _, n := range layer {
			for i, node := range g.nodeOf {
				if node == n {
					row = append(row, g.passes[i].name)
					break
				}
			}
		}
		layers[li] = row
	}

	return FrameSnapshot{
		State:     g.state.String(),
		PassCount: g.active,
		PassNames: names,
		Layers:    layers,
	}
}
