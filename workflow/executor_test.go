package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTwoNodeLinear(t *testing.T) {
	g := NewStateGraph("linear")
	require.NoError(t, g.AddNode("node1", func(context.Context, StateView) (Update, error) {
		return Update{"a": Int(1)}, nil
	}))
	require.NoError(t, g.AddNode("node2", func(context.Context, StateView) (Update, error) {
		return Update{"b": Int(2)}, nil
	}))
	require.NoError(t, g.AddEdge(START, "node1"))
	require.NoError(t, g.AddEdge("node1", "node2"))
	require.NoError(t, g.AddEdge("node2", END))

	cg, err := g.Compile()
	require.NoError(t, err)

	state, err := cg.Run(context.Background(), map[string]Value{
		"task_id":       Int(42),
		"target_origin": String("X"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "target_origin", "task_id"}, state.Keys())
	id, _ := state.GetInt("task_id")
	assert.Equal(t, int64(42), id)
	origin, _ := state.GetString("target_origin")
	assert.Equal(t, "X", origin)
	a, _ := state.GetInt("a")
	b, _ := state.GetInt("b")
	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(2), b)
}

func TestRunFailureRoutedToEnd(t *testing.T) {
	var node2Ran atomic.Bool

	g := NewStateGraph("fail-to-end")
	require.NoError(t, g.AddNode("node1", func(context.Context, StateView) (Update, error) {
		return Update{"partial": String("never merged")}, Fail(FailureExternal, errors.New("upstream down"))
	}))
	require.NoError(t, g.AddNode("node2", func(context.Context, StateView) (Update, error) {
		node2Ran.Store(true)
		return Update{"b": Int(2)}, nil
	}))
	require.NoError(t, g.AddEdge(START, "node1"))
	require.NoError(t, g.AddConditionalEdge("node1", OnOutcome("success", "failure"),
		map[string]string{"success": "node2", "failure": END}))
	require.NoError(t, g.AddEdge("node2", END))

	cg, err := g.Compile()
	require.NoError(t, err)

	state, err := cg.Run(context.Background(), map[string]Value{"task_id": Int(42)})
	require.NoError(t, err)
	assert.False(t, node2Ran.Load())
	assert.Equal(t, []string{"task_id"}, state.Keys())
}

func TestRunSuccessRoutedByConditional(t *testing.T) {
	g := NewStateGraph("cond-ok")
	require.NoError(t, g.AddNode("node1", func(context.Context, StateView) (Update, error) {
		return Update{"a": Int(1)}, nil
	}))
	require.NoError(t, g.AddNode("node2", func(_ context.Context, view StateView) (Update, error) {
		// node1's merge is visible here
		a, ok := ViewInt(view, "a")
		if !ok {
			return nil, errors.New("a missing")
		}
		return Update{"b": Int(a + 1)}, nil
	}))
	require.NoError(t, g.AddEdge(START, "node1"))
	require.NoError(t, g.AddConditionalEdge("node1", OnOutcome("success", "failure"),
		map[string]string{"success": "node2", "failure": END}))
	require.NoError(t, g.AddEdge("node2", END))

	cg, err := g.Compile()
	require.NoError(t, err)

	res, err := cg.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"node1", "node2"}, res.Path)
	assert.Equal(t, 2, res.Steps)
	b, _ := res.State.GetInt("b")
	assert.Equal(t, int64(2), b)
}

func TestRunUnroutedFailure(t *testing.T) {
	cause := errors.New("disk full")
	g := NewStateGraph("unrouted")
	require.NoError(t, g.AddNode("node1", func(context.Context, StateView) (Update, error) {
		return nil, Fail(FailureIO, cause)
	}))
	require.NoError(t, g.AddEdge(START, "node1"))
	require.NoError(t, g.AddEdge("node1", END))

	cg, err := g.Compile()
	require.NoError(t, err)

	state, err := cg.Run(context.Background(), nil)
	assert.Nil(t, state)

	var nee *NodeExecutionError
	require.ErrorAs(t, err, &nee)
	assert.Equal(t, "node1", nee.Node)
	assert.Equal(t, FailureIO, nee.Category)
	assert.ErrorIs(t, err, cause)
}

func TestRunPlainErrorIsUnknownCategory(t *testing.T) {
	var seen Outcome
	g := NewStateGraph("plain")
	require.NoError(t, g.AddNode("node1", func(context.Context, StateView) (Update, error) {
		return nil, errors.New("plain")
	}))
	require.NoError(t, g.AddEdge(START, "node1"))
	require.NoError(t, g.AddConditionalEdge("node1", func(o Outcome) string {
		seen = o
		return "stop"
	}, map[string]string{"stop": END}))

	cg, err := g.Compile()
	require.NoError(t, err)
	_, err = cg.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, seen.Kind)
	assert.Equal(t, FailureUnknown, seen.Category)
	assert.EqualError(t, seen.Err, "plain")
}

func TestRunUnroutableLabel(t *testing.T) {
	g := NewStateGraph("unroutable")
	require.NoError(t, g.AddNode("node1", noop))
	require.NoError(t, g.AddEdge(START, "node1"))
	require.NoError(t, g.AddConditionalEdge("node1", func(Outcome) string { return "elsewhere" },
		map[string]string{"done": END}))

	cg, err := g.Compile()
	require.NoError(t, err)

	_, err = cg.Run(context.Background(), nil)
	var use *UnroutableStateError
	require.ErrorAs(t, err, &use)
	assert.Equal(t, "elsewhere", use.Label)
	assert.Equal(t, []string{"done"}, use.Allowed)
}

func TestRunByCategoryDispatch(t *testing.T) {
	g := NewStateGraph("by-category")
	require.NoError(t, g.AddNode("fetch", func(context.Context, StateView) (Update, error) {
		return nil, Failf(FailureNotFound, "item %d missing", 7)
	}))
	require.NoError(t, g.AddNode("fallback", func(context.Context, StateView) (Update, error) {
		return Update{"fallback": String("yes")}, nil
	}))
	require.NoError(t, g.AddEdge(START, "fetch"))
	require.NoError(t, g.AddConditionalEdge("fetch",
		ByCategory("ok", map[FailureCategory]string{FailureNotFound: "fallback"}, "abort"),
		map[string]string{"ok": END, "fallback": "fallback", "abort": END}))
	require.NoError(t, g.AddEdge("fallback", END))

	cg, err := g.Compile()
	require.NoError(t, err)
	state, err := cg.Run(context.Background(), nil)
	require.NoError(t, err)
	got, _ := state.GetString("fallback")
	assert.Equal(t, "yes", got)
}

func TestRunCycleStopsAtCeiling(t *testing.T) {
	var calls atomic.Int64
	g := NewStateGraph("cycle")
	require.NoError(t, g.AddNode("a", func(context.Context, StateView) (Update, error) {
		calls.Add(1)
		return Update{"n": Int(calls.Load())}, nil
	}))
	require.NoError(t, g.AddNode("b", func(context.Context, StateView) (Update, error) {
		calls.Add(1)
		return nil, nil
	}))
	require.NoError(t, g.AddEdge(START, "a"))
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "a"))

	cg, err := g.Compile(WithMaxIterations(5))
	require.NoError(t, err)

	res, err := cg.Execute(context.Background(), nil)
	var ile *IterationLimitExceeded
	require.ErrorAs(t, err, &ile)
	assert.Equal(t, 5, ile.Limit)
	assert.Equal(t, "b", ile.Node)
	assert.Equal(t, int64(5), calls.Load())
	assert.Equal(t, 5, res.Steps)
}

func TestRunDefaultCeiling(t *testing.T) {
	g := NewStateGraph("self-loop")
	require.NoError(t, g.AddNode("spin", noop))
	require.NoError(t, g.AddEdge(START, "spin"))
	require.NoError(t, g.AddEdge("spin", "spin"))

	cg, err := g.Compile()
	require.NoError(t, err)

	res, err := cg.Execute(context.Background(), nil)
	require.ErrorIs(t, err, ErrIterationLimit)
	assert.Equal(t, DefaultMaxIterations, res.Steps)
}

func TestRunHonoursCancellationAtNodeBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var secondRan atomic.Bool

	g := NewStateGraph("cancel")
	require.NoError(t, g.AddNode("first", func(context.Context, StateView) (Update, error) {
		cancel()
		return Update{"first": String("done")}, nil
	}))
	require.NoError(t, g.AddNode("second", func(context.Context, StateView) (Update, error) {
		secondRan.Store(true)
		return nil, nil
	}))
	require.NoError(t, g.AddEdge(START, "first"))
	require.NoError(t, g.AddEdge("first", "second"))
	require.NoError(t, g.AddEdge("second", END))

	cg, err := g.Compile()
	require.NoError(t, err)

	_, err = cg.Run(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, secondRan.Load())
}

func TestRunRecoversPanics(t *testing.T) {
	g := NewStateGraph("panic")
	require.NoError(t, g.AddNode("bad", func(context.Context, StateView) (Update, error) {
		panic("kaboom")
	}))
	require.NoError(t, g.AddEdge(START, "bad"))
	require.NoError(t, g.AddEdge("bad", END))

	cg, err := g.Compile()
	require.NoError(t, err)

	_, err = cg.Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrNodeExecution)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestRunRecoversDispatcherPanic(t *testing.T) {
	obs := &recordingObserver{}
	g := NewStateGraph("dispatcher-panic")
	require.NoError(t, g.AddNode("a", func(context.Context, StateView) (Update, error) {
		return nil, errors.New("download failed")
	}))
	require.NoError(t, g.AddEdge(START, "a"))
	require.NoError(t, g.AddConditionalEdge("a", func(Outcome) string { panic("dispatcher bug") },
		map[string]string{"x": END}))

	cg, err := g.Compile(WithObserver(obs))
	require.NoError(t, err)

	require.NotPanics(t, func() {
		_, err = cg.Run(context.Background(), nil)
	})
	var nee *NodeExecutionError
	require.ErrorAs(t, err, &nee)
	assert.Equal(t, "a", nee.Node)
	assert.Equal(t, FailureUnknown, nee.Category)
	assert.Contains(t, err.Error(), "dispatcher bug")

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, "run_error", obs.events[len(obs.events)-1])
}

func TestRunInvalidUpdateIsFailure(t *testing.T) {
	g := NewStateGraph("invalid-update")
	require.NoError(t, g.AddNode("bad", func(context.Context, StateView) (Update, error) {
		return Update{"ok": Int(1), "broken": {}}, nil
	}))
	require.NoError(t, g.AddEdge(START, "bad"))
	require.NoError(t, g.AddEdge("bad", END))

	cg, err := g.Compile()
	require.NoError(t, err)

	res, err := cg.Execute(context.Background(), nil)
	var nee *NodeExecutionError
	require.ErrorAs(t, err, &nee)
	assert.Equal(t, FailureInvalidInput, nee.Category)
	assert.Equal(t, 0, res.State.Len())
}

func TestRunConcurrentRunsAreIsolated(t *testing.T) {
	g := NewStateGraph("concurrent")
	require.NoError(t, g.AddNode("double", func(_ context.Context, view StateView) (Update, error) {
		n, _ := ViewInt(view, "n")
		return Update{"out": Int(n * 2)}, nil
	}))
	require.NoError(t, g.AddEdge(START, "double"))
	require.NoError(t, g.AddEdge("double", END))

	cg, err := g.Compile()
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			state, err := cg.Run(context.Background(), map[string]Value{"n": Int(n)})
			if err != nil {
				errs <- err
				return
			}
			if out, _ := state.GetInt("out"); out != n*2 {
				errs <- errors.New("state leaked between runs")
			}
		}(int64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) add(e string) {
	o.mu.Lock()
	o.events = append(o.events, e)
	o.mu.Unlock()
}

func (o *recordingObserver) RunStarted(ctx context.Context, run RunInfo) context.Context {
	o.add("run_start:" + run.Graph)
	return ctx
}

func (o *recordingObserver) NodeStarted(ctx context.Context, _ RunInfo, node string, _ int) context.Context {
	o.add("node_start:" + node)
	return ctx
}

func (o *recordingObserver) NodeFinished(_ context.Context, _ RunInfo, node string, _ int, _ time.Duration, outcome Outcome) {
	o.add("node_finish:" + node + ":" + outcome.Kind.String())
}

func (o *recordingObserver) RunFinished(_ context.Context, _ RunInfo, steps int, _ time.Duration, err error) {
	if err != nil {
		o.add("run_error")
		return
	}
	o.add("run_ok")
}

func TestObserverAndStreamEvents(t *testing.T) {
	obs := &recordingObserver{}
	g := linearGraph(t, "observed", 2)
	cg, err := g.Compile(WithObserver(MultiObserver{NopObserver{}, obs}))
	require.NoError(t, err)

	var mu sync.Mutex
	var types []StreamEventType
	var runIDs []string
	ctx := WithStreamEmitter(context.Background(), func(ev StreamEvent) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, ev.Type)
		runIDs = append(runIDs, ev.RunID)
	})

	res, err := cg.Execute(ctx, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"run_start:observed",
		"node_start:n0", "node_finish:n0:ok",
		"node_start:n1", "node_finish:n1:ok",
		"run_ok",
	}, obs.events)

	assert.Equal(t, []StreamEventType{
		EventRunStart,
		EventNodeStart, EventNodeComplete,
		EventNodeStart, EventNodeComplete,
		EventRunComplete,
	}, types)
	for _, id := range runIDs {
		assert.Equal(t, res.RunID, id)
	}
}

func TestRunIDVisibleToNodes(t *testing.T) {
	var seen string
	g := NewStateGraph("run-id")
	require.NoError(t, g.AddNode("n", func(ctx context.Context, _ StateView) (Update, error) {
		seen, _ = RunIDFromContext(ctx)
		return nil, nil
	}))
	require.NoError(t, g.AddEdge(START, "n"))
	require.NoError(t, g.AddEdge("n", END))
	cg, err := g.Compile()
	require.NoError(t, err)

	res, err := cg.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, seen)
}
