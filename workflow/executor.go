package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunResult describes a finished run. State is the final state on success
// and the last consistent state when the run aborted.
type RunResult struct {
	RunID string
	State *State
	// Path lists executed nodes in order.
	Path  []string
	Steps int
}

// Run executes the graph from START until END, returning the final state.
// On any abort the state is nil and the error is one of NodeExecutionError,
// UnroutableStateError, IterationLimitExceeded or the context error.
func (cg *CompiledGraph) Run(ctx context.Context, initial map[string]Value) (*State, error) {
	res, err := cg.Execute(ctx, initial)
	if err != nil {
		return nil, err
	}
	return res.State, nil
}

// Execute is Run with the run bookkeeping exposed.
func (cg *CompiledGraph) Execute(ctx context.Context, initial map[string]Value) (*RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	state, err := NewState(cg.strategies, initial)
	if err != nil {
		return nil, fmt.Errorf("graph %s: %w", cg.name, err)
	}

	r := &runner{
		graph: cg,
		info:  RunInfo{RunID: generateRunID(), Graph: cg.name},
		state: state,
	}
	r.logger = cg.logger.With(zap.String("run_id", r.info.RunID))
	r.emit, _ = streamEmitterFromContext(ctx)

	ctx = context.WithValue(ctx, runIDKey{}, r.info.RunID)
	return r.run(ctx)
}

// runner owns the mutable state of one run.
type runner struct {
	graph  *CompiledGraph
	info   RunInfo
	state  *State
	logger *zap.Logger
	emit   StreamEmitter
	path   []string
}

func (r *runner) run(ctx context.Context) (*RunResult, error) {
	started := time.Now()
	ctx = r.graph.observer.RunStarted(ctx, r.info)

	r.logger.Info("starting graph run",
		zap.String("entry", r.graph.Entry()),
		zap.Int("max_iterations", r.graph.maxIterations),
	)
	r.publish(StreamEvent{Type: EventRunStart, Node: r.graph.Entry()})

	steps, err := r.loop(ctx)
	elapsed := time.Since(started)
	r.graph.observer.RunFinished(ctx, r.info, steps, elapsed, err)

	result := &RunResult{RunID: r.info.RunID, State: r.state, Path: r.path, Steps: steps}
	if err != nil {
		r.logger.Error("graph run aborted",
			zap.Int("steps", steps),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		r.publish(StreamEvent{Type: EventRunError, Step: steps, Error: err.Error()})
		return result, err
	}

	r.logger.Info("graph run completed",
		zap.Int("steps", steps),
		zap.Duration("duration", elapsed),
	)
	r.publish(StreamEvent{Type: EventRunComplete, Step: steps, Keys: r.state.Keys()})
	return result, nil
}

func (r *runner) loop(ctx context.Context) (int, error) {
	cg := r.graph
	cur := cg.entry
	steps := 0

	for {
		// 只在节点边界检查取消与上限
		if err := ctx.Err(); err != nil {
			return steps, fmt.Errorf("graph %s cancelled before node %s: %w", cg.name, cg.nameOf(cur), err)
		}
		if steps >= cg.maxIterations {
			return steps, &IterationLimitExceeded{Limit: cg.maxIterations, Node: cg.nameOf(cur)}
		}
		steps++

		node := &cg.nodes[cur]
		r.path = append(r.path, node.name)

		next, err := r.step(ctx, node, steps)
		if err != nil {
			return steps, err
		}

		r.logger.Debug("routing",
			zap.String("from", node.name),
			zap.String("to", cg.nameOf(next)),
		)
		if next == endIndex {
			return steps, nil
		}
		cur = next
	}
}

// step runs one node, merges on success and resolves the successor index.
func (r *runner) step(ctx context.Context, node *compiledNode, step int) (int, error) {
	nodeCtx := r.graph.observer.NodeStarted(ctx, r.info, node.name, step)
	r.publish(StreamEvent{Type: EventNodeStart, Node: node.name, Step: step})

	r.logger.Debug("executing node", zap.String("node_id", node.name), zap.Int("step", step))

	startTime := time.Now()
	update, err := invoke(nodeCtx, node, r.state.View())
	if err == nil {
		if mergeErr := r.state.Merge(update); mergeErr != nil {
			err = Fail(FailureInvalidInput, fmt.Errorf("merge output: %w", mergeErr))
		}
	}
	duration := time.Since(startTime)
	outcome := outcomeOf(err)

	r.graph.observer.NodeFinished(nodeCtx, r.info, node.name, step, duration, outcome)

	if outcome.Failed() {
		r.logger.Warn("node execution failed",
			zap.String("node_id", node.name),
			zap.String("category", outcome.Category.String()),
			zap.Duration("duration", duration),
			zap.Error(outcome.Err),
		)
		r.publish(StreamEvent{
			Type:     EventNodeError,
			Node:     node.name,
			Step:     step,
			Category: outcome.Category.String(),
			Error:    outcome.Err.Error(),
		})
		if node.conditional == nil {
			return endIndex, &NodeExecutionError{Node: node.name, Category: outcome.Category, Err: outcome.Err}
		}
	} else {
		r.logger.Debug("node execution completed",
			zap.String("node_id", node.name),
			zap.Duration("duration", duration),
		)
	}

	next, err := r.route(node, outcome)
	if err != nil {
		return endIndex, err
	}
	if !outcome.Failed() {
		r.publish(StreamEvent{
			Type: EventNodeComplete,
			Node: node.name,
			Step: step,
			Next: r.graph.nameOf(next),
			Keys: sortedKeys(update),
		})
	}
	return next, nil
}

func (r *runner) route(node *compiledNode, outcome Outcome) (int, error) {
	if node.conditional == nil {
		return node.next, nil
	}
	label, err := dispatch(node, outcome)
	if err != nil {
		return endIndex, &NodeExecutionError{Node: node.name, Category: FailureUnknown, Err: err}
	}
	next, ok := node.conditional.routes[label]
	if !ok {
		return endIndex, &UnroutableStateError{Node: node.name, Label: label, Allowed: node.conditional.labels}
	}
	return next, nil
}

// dispatch calls the conditional dispatcher; a panic aborts the run.
func dispatch(node *compiledNode, outcome Outcome) (label string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in dispatcher of node %s: %v", node.name, rec)
		}
	}()
	return node.conditional.dispatcher(outcome), nil
}

// invoke calls the action and converts a panic into an ordinary failure.
func invoke(ctx context.Context, node *compiledNode, view StateView) (update Update, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			update = nil
			err = fmt.Errorf("panic in node %s: %v", node.name, rec)
		}
	}()
	return node.action(ctx, view)
}

func (r *runner) publish(ev StreamEvent) {
	if r.emit == nil {
		return
	}
	ev.RunID = r.info.RunID
	ev.Graph = r.info.Graph
	ev.Timestamp = time.Now()
	r.emit(ev)
}

func sortedKeys(u Update) []string {
	if len(u) == 0 {
		return nil
	}
	keys := make([]string, 0, len(u))
	for k := range u {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func generateRunID() string {
	return "run_" + uuid.NewString()
}
