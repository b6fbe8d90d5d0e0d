package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/postflow/workflow"
)

// WorkflowObserver 将工作流生命周期回调转为 Prometheus 指标
type WorkflowObserver struct {
	workflow.NopObserver
	c *Collector
}

// NewWorkflowObserver creates an observer backed by c.
func NewWorkflowObserver(c *Collector) *WorkflowObserver {
	return &WorkflowObserver{c: c}
}

var _ workflow.Observer = (*WorkflowObserver)(nil)

func (o *WorkflowObserver) RunStarted(ctx context.Context, run workflow.RunInfo) context.Context {
	o.c.RecordWorkflowRunStarted(run.Graph)
	return ctx
}

func (o *WorkflowObserver) NodeFinished(_ context.Context, run workflow.RunInfo, node string, _ int, elapsed time.Duration, outcome workflow.Outcome) {
	label := "ok"
	if outcome.Failed() {
		label = outcome.Category.String()
	}
	o.c.RecordNodeExecution(run.Graph, node, label, elapsed)
}

func (o *WorkflowObserver) RunFinished(_ context.Context, run workflow.RunInfo, _ int, elapsed time.Duration, err error) {
	o.c.RecordWorkflowRun(run.Graph, runStatus(err), elapsed)
}

// runStatus 将运行错误归类为低基数的 status 标签
func runStatus(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, workflow.ErrIterationLimit):
		return "iteration_limit"
	case errors.Is(err, workflow.ErrUnroutableState):
		return "unroutable"
	case errors.Is(err, workflow.ErrNodeExecution):
		return "node_failed"
	default:
		return "error"
	}
}
