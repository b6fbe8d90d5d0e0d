package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/BaSui01/postflow/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"
)

func newRecordingObserver(t *testing.T) (*TracingObserver, *tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})
	obs := NewTracingObserver(zaptest.NewLogger(t), WithTracerProvider(tp), WithMeterProvider(mp))
	return obs, recorder, reader
}

func buildTracedGraph(t *testing.T, obs workflow.Observer) *workflow.CompiledGraph {
	t.Helper()
	g := workflow.NewStateGraph("traced")
	require.NoError(t, g.AddNode("fetch", func(ctx context.Context, s workflow.StateView) (workflow.Update, error) {
		assert.True(t, trace.SpanContextFromContext(ctx).IsValid(), "node context should carry a span")
		return nil, workflow.Fail(workflow.FailureNotFound, errors.New("no item"))
	}))
	require.NoError(t, g.AddEdge(workflow.START, "fetch"))
	require.NoError(t, g.AddConditionalEdge("fetch",
		workflow.OnOutcome("ok", "missing"),
		map[string]string{"ok": workflow.END, "missing": workflow.END}))
	compiled, err := g.Compile(workflow.WithObserver(obs))
	require.NoError(t, err)
	return compiled
}

func TestTracingObserver_SpansPerRunAndNode(t *testing.T) {
	obs, recorder, _ := newRecordingObserver(t)
	compiled := buildTracedGraph(t, obs)

	_, err := compiled.Run(context.Background(), nil)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	node, run := spans[0], spans[1]
	assert.Equal(t, "workflow.node fetch", node.Name())
	assert.Equal(t, "workflow.run traced", run.Name())
	assert.Equal(t, run.SpanContext().SpanID(), node.Parent().SpanID())
	assert.Equal(t, codes.Error, node.Status().Code)
	assert.Equal(t, "not_found", node.Status().Description)
	assert.Equal(t, codes.Ok, run.Status().Code)
}

func TestTracingObserver_RunError(t *testing.T) {
	obs, recorder, _ := newRecordingObserver(t)

	g := workflow.NewStateGraph("broken")
	require.NoError(t, g.AddNode("a", func(ctx context.Context, s workflow.StateView) (workflow.Update, error) {
		return nil, errors.New("boom")
	}))
	require.NoError(t, g.AddEdge(workflow.START, "a"))
	require.NoError(t, g.AddEdge("a", workflow.END))
	compiled, err := g.Compile(workflow.WithObserver(obs))
	require.NoError(t, err)

	_, err = compiled.Run(context.Background(), nil)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.NotEmpty(t, spans[1].Events(), "run span should record the error")
}

func TestTracingObserver_RecordsNodeDuration(t *testing.T) {
	obs, _, reader := newRecordingObserver(t)
	compiled := buildTracedGraph(t, obs)

	_, err := compiled.Run(context.Background(), nil)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	m := rm.ScopeMetrics[0].Metrics[0]
	assert.Equal(t, "postflow.workflow.node.duration", m.Name)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}
