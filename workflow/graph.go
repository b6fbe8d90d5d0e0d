package workflow

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Sentinel node names.
const (
	START = "__start__"
	END   = "__end__"
)

// DefaultMaxIterations is the step ceiling used when none is configured.
const DefaultMaxIterations = 100

// NodeAction is the unit of work behind a node. It reads the state through
// view and returns the partial update to merge. A non-nil error means the
// update is discarded.
type NodeAction func(ctx context.Context, view StateView) (Update, error)

type conditionalEdge struct {
	dispatcher Dispatcher
	routes     map[string]string
}

// StateGraph collects nodes and edges by name. Names only exist during the
// build phase; Compile resolves them to indices.
type StateGraph struct {
	name   string
	logger *zap.Logger

	nodes       map[string]NodeAction
	order       []string
	edges       map[string][]string
	conditional map[string][]conditionalEdge
	startEdges  []string
	strategies  map[string]MergeStrategy

	violations []string
}

// NewStateGraph creates an empty graph builder.
func NewStateGraph(name string) *StateGraph {
	return &StateGraph{
		name:        name,
		logger:      zap.NewNop(),
		nodes:       make(map[string]NodeAction),
		edges:       make(map[string][]string),
		conditional: make(map[string][]conditionalEdge),
		strategies:  make(map[string]MergeStrategy),
	}
}

// WithLogger sets a custom logger
func (g *StateGraph) WithLogger(logger *zap.Logger) *StateGraph {
	if logger != nil {
		g.logger = logger.With(zap.String("component", "state_graph"), zap.String("graph", g.name))
	}
	return g
}

// Name returns the graph name.
func (g *StateGraph) Name() string { return g.name }

func (g *StateGraph) violate(err error) error {
	g.violations = append(g.violations, err.Error())
	return err
}

// SetKeyStrategy registers the merge strategy for a state key.
func (g *StateGraph) SetKeyStrategy(key string, strategy MergeStrategy) *StateGraph {
	g.strategies[key] = strategy
	return g
}

// AddNode registers a node. Errors are also recorded and reported again by
// Compile.
func (g *StateGraph) AddNode(name string, action NodeAction) error {
	switch {
	case name == "":
		return g.violate(fmt.Errorf("node name must not be empty"))
	case name == START || name == END:
		return g.violate(fmt.Errorf("node name %q collides with a reserved sentinel", name))
	case action == nil:
		return g.violate(fmt.Errorf("node %q has no action", name))
	}
	if _, exists := g.nodes[name]; exists {
		return g.violate(&DuplicateNodeError{Node: name})
	}
	g.nodes[name] = action
	g.order = append(g.order, name)
	return nil
}

func (g *StateGraph) isNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

func (g *StateGraph) checkSource(from string) error {
	if from == END {
		return &UnknownNodeError{Node: from, Role: "source"}
	}
	if from != START && !g.isNode(from) {
		return &UnknownNodeError{Node: from, Role: "source"}
	}
	return nil
}

func (g *StateGraph) checkTarget(to string) error {
	if to == END || g.isNode(to) {
		return nil
	}
	return &UnknownNodeError{Node: to, Role: "target"}
}

// AddEdge adds a static edge. from may be START, to may be END.
func (g *StateGraph) AddEdge(from, to string) error {
	if err := g.checkSource(from); err != nil {
		return g.violate(err)
	}
	if err := g.checkTarget(to); err != nil {
		return g.violate(err)
	}
	if from == START {
		g.startEdges = append(g.startEdges, to)
		return nil
	}
	g.edges[from] = append(g.edges[from], to)
	return nil
}

// AddConditionalEdge routes from by the label dispatcher returns. Every
// route target must be a declared node or END.
func (g *StateGraph) AddConditionalEdge(from string, dispatcher Dispatcher, routes map[string]string) error {
	if from == START {
		return g.violate(fmt.Errorf("START cannot have a conditional edge"))
	}
	if err := g.checkSource(from); err != nil {
		return g.violate(err)
	}
	if dispatcher == nil {
		return g.violate(fmt.Errorf("conditional edge from %q has no dispatcher", from))
	}
	if len(routes) == 0 {
		return g.violate(fmt.Errorf("conditional edge from %q has no routes", from))
	}

	labels := make([]string, 0, len(routes))
	for label := range routes {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	cp := make(map[string]string, len(routes))
	for _, label := range labels {
		if err := g.checkTarget(routes[label]); err != nil {
			return g.violate(err)
		}
		cp[label] = routes[label]
	}
	g.conditional[from] = append(g.conditional[from], conditionalEdge{dispatcher: dispatcher, routes: cp})
	return nil
}

// Compile validates the whole definition and produces an immutable graph.
// All violations are collected into one GraphStateError.
func (g *StateGraph) Compile(opts ...CompileOption) (*CompiledGraph, error) {
	cfg := compileConfig{maxIterations: DefaultMaxIterations}
	for _, opt := range opts {
		opt(&cfg)
	}

	violations := append([]string(nil), g.violations...)

	if cfg.maxIterations <= 0 {
		violations = append(violations, fmt.Sprintf("max iterations must be positive, got %d", cfg.maxIterations))
	}
	if len(g.order) == 0 {
		violations = append(violations, "graph has no nodes")
	}

	switch len(g.startEdges) {
	case 0:
		violations = append(violations, "START has no outgoing edge")
	case 1:
		if g.startEdges[0] == END {
			violations = append(violations, "START must route to a node, not END")
		}
	default:
		violations = append(violations, fmt.Sprintf("START routes to %d nodes, want exactly 1", len(g.startEdges)))
	}

	for _, name := range g.order {
		static, cond := len(g.edges[name]), len(g.conditional[name])
		switch {
		case static == 0 && cond == 0:
			violations = append(violations, fmt.Sprintf("node %q has no outgoing route", name))
		case static > 0 && cond > 0:
			violations = append(violations, fmt.Sprintf("node %q has both a static and a conditional edge", name))
		case static > 1:
			violations = append(violations, fmt.Sprintf("node %q has %d static edges", name, static))
		case cond > 1:
			violations = append(violations, fmt.Sprintf("node %q has %d conditional edges", name, cond))
		}
	}

	if len(g.startEdges) == 1 && g.startEdges[0] != END {
		reached := g.reachableFrom(g.startEdges[0])
		for _, name := range g.order {
			if !reached[name] {
				violations = append(violations, fmt.Sprintf("node %q is unreachable from START", name))
			}
		}
	}

	if len(violations) > 0 {
		return nil, &GraphStateError{Graph: g.name, Violations: violations}
	}

	compiled := g.resolve(cfg)

	g.logger.Info("graph compiled",
		zap.Int("nodes", len(compiled.nodes)),
		zap.String("entry", compiled.nodes[compiled.entry].name),
		zap.Int("max_iterations", compiled.maxIterations),
	)

	return compiled, nil
}

func (g *StateGraph) reachableFrom(entry string) map[string]bool {
	reached := map[string]bool{entry: true}
	queue := []string{entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		var next []string
		next = append(next, g.edges[cur]...)
		for _, ce := range g.conditional[cur] {
			for _, to := range ce.routes {
				next = append(next, to)
			}
		}
		for _, to := range next {
			if to == END || reached[to] {
				continue
			}
			reached[to] = true
			queue = append(queue, to)
		}
	}
	return reached
}

// resolve builds the index arena. Only called on a valid definition.
func (g *StateGraph) resolve(cfg compileConfig) *CompiledGraph {
	index := make(map[string]int, len(g.order))
	for i, name := range g.order {
		index[name] = i
	}
	target := func(name string) int {
		if name == END {
			return endIndex
		}
		return index[name]
	}

	nodes := make([]compiledNode, len(g.order))
	for i, name := range g.order {
		n := compiledNode{name: name, action: g.nodes[name], next: endIndex}
		if static := g.edges[name]; len(static) == 1 {
			n.next = target(static[0])
		} else {
			ce := g.conditional[name][0]
			cc := &compiledConditional{
				dispatcher: ce.dispatcher,
				routes:     make(map[string]int, len(ce.routes)),
			}
			for label, to := range ce.routes {
				cc.routes[label] = target(to)
				cc.labels = append(cc.labels, label)
			}
			sort.Strings(cc.labels)
			n.conditional = cc
		}
		nodes[i] = n
	}

	strategies := make(map[string]MergeStrategy, len(g.strategies))
	for k, v := range g.strategies {
		strategies[k] = v
	}

	observer := cfg.observer
	if observer == nil {
		observer = NopObserver{}
	}

	return &CompiledGraph{
		name:          g.name,
		nodes:         nodes,
		entry:         index[g.startEdges[0]],
		strategies:    strategies,
		maxIterations: cfg.maxIterations,
		observer:      observer,
		logger:        g.logger.With(zap.String("component", "graph_executor")),
	}
}

// CompileOption configures the compiled graph.
type CompileOption func(*compileConfig)

type compileConfig struct {
	maxIterations int
	observer      Observer
}

// WithMaxIterations sets the per-run step ceiling.
func WithMaxIterations(n int) CompileOption {
	return func(c *compileConfig) { c.maxIterations = n }
}

// WithObserver attaches run and node lifecycle hooks.
func WithObserver(o Observer) CompileOption {
	return func(c *compileConfig) { c.observer = o }
}

const endIndex = -1

type compiledNode struct {
	name        string
	action      NodeAction
	next        int
	conditional *compiledConditional
}

type compiledConditional struct {
	dispatcher Dispatcher
	routes     map[string]int
	labels     []string
}

// CompiledGraph is immutable after Compile and safe for concurrent Run calls.
type CompiledGraph struct {
	name          string
	nodes         []compiledNode
	entry         int
	strategies    map[string]MergeStrategy
	maxIterations int
	observer      Observer
	logger        *zap.Logger
}

// Name returns the graph name.
func (cg *CompiledGraph) Name() string { return cg.name }

// MaxIterations returns the per-run step ceiling.
func (cg *CompiledGraph) MaxIterations() int { return cg.maxIterations }

// Nodes returns node names in registration order.
func (cg *CompiledGraph) Nodes() []string {
	names := make([]string, len(cg.nodes))
	for i, n := range cg.nodes {
		names[i] = n.name
	}
	return names
}

// Entry returns the node START routes to.
func (cg *CompiledGraph) Entry() string { return cg.nodes[cg.entry].name }

func (cg *CompiledGraph) nameOf(idx int) string {
	if idx == endIndex {
		return END
	}
	return cg.nodes[idx].name
}
