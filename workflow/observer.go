package workflow

import (
	"context"
	"time"
)

// RunInfo identifies a single run of a compiled graph.
type RunInfo struct {
	RunID string
	Graph string
}

// Observer receives run and node lifecycle callbacks. Start hooks may return
// a derived context (e.g. carrying a trace span) that the executor passes on.
// Implementations must be safe for concurrent runs.
type Observer interface {
	RunStarted(ctx context.Context, run RunInfo) context.Context
	NodeStarted(ctx context.Context, run RunInfo, node string, step int) context.Context
	NodeFinished(ctx context.Context, run RunInfo, node string, step int, elapsed time.Duration, outcome Outcome)
	RunFinished(ctx context.Context, run RunInfo, steps int, elapsed time.Duration, err error)
}

// NopObserver does nothing.
type NopObserver struct{}

func (NopObserver) RunStarted(ctx context.Context, _ RunInfo) context.Context { return ctx }
func (NopObserver) NodeStarted(ctx context.Context, _ RunInfo, _ string, _ int) context.Context {
	return ctx
}
func (NopObserver) NodeFinished(context.Context, RunInfo, string, int, time.Duration, Outcome) {}
func (NopObserver) RunFinished(context.Context, RunInfo, int, time.Duration, error)           {}

// MultiObserver fans callbacks out in order. Start hooks thread the context
// through each observer; finish hooks run in reverse order.
type MultiObserver []Observer

func (m MultiObserver) RunStarted(ctx context.Context, run RunInfo) context.Context {
	for _, o := range m {
		ctx = o.RunStarted(ctx, run)
	}
	return ctx
}

func (m MultiObserver) NodeStarted(ctx context.Context, run RunInfo, node string, step int) context.Context {
	for _, o := range m {
		ctx = o.NodeStarted(ctx, run, node, step)
	}
	return ctx
}

func (m MultiObserver) NodeFinished(ctx context.Context, run RunInfo, node string, step int, elapsed time.Duration, outcome Outcome) {
	for i := len(m) - 1; i >= 0; i-- {
		m[i].NodeFinished(ctx, run, node, step, elapsed, outcome)
	}
}

func (m MultiObserver) RunFinished(ctx context.Context, run RunInfo, steps int, elapsed time.Duration, err error) {
	for i := len(m) - 1; i >= 0; i-- {
		m[i].RunFinished(ctx, run, steps, elapsed, err)
	}
}
