package telemetry

import (
	"context"
	"time"

	"github.com/BaSui01/postflow/workflow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/BaSui01/postflow/workflow"

// TracingObserver 为每次运行创建一个根 span，为每个节点创建子 span，
// 并通过 OTel Meter 上报节点耗时。
type TracingObserver struct {
	tracer       trace.Tracer
	nodeDuration metric.Float64Histogram
	logger       *zap.Logger
}

// TracingOption configures a TracingObserver.
type TracingOption func(*tracingOptions)

type tracingOptions struct {
	tp trace.TracerProvider
	mp metric.MeterProvider
}

// WithTracerProvider overrides the global TracerProvider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(o *tracingOptions) { o.tp = tp }
}

// WithMeterProvider overrides the global MeterProvider.
func WithMeterProvider(mp metric.MeterProvider) TracingOption {
	return func(o *tracingOptions) { o.mp = mp }
}

// NewTracingObserver creates the observer using the global providers unless
// overridden.
func NewTracingObserver(logger *zap.Logger, opts ...TracingOption) *TracingObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := tracingOptions{tp: otel.GetTracerProvider(), mp: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&o)
	}

	t := &TracingObserver{
		tracer: o.tp.Tracer(instrumentationName),
		logger: logger.With(zap.String("component", "tracing")),
	}
	hist, err := o.mp.Meter(instrumentationName).Float64Histogram(
		"postflow.workflow.node.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of workflow node executions"),
	)
	if err != nil {
		t.logger.Warn("create node duration histogram failed", zap.Error(err))
	} else {
		t.nodeDuration = hist
	}
	return t
}

var _ workflow.Observer = (*TracingObserver)(nil)

func (t *TracingObserver) RunStarted(ctx context.Context, run workflow.RunInfo) context.Context {
	ctx, _ = t.tracer.Start(ctx, "workflow.run "+run.Graph,
		trace.WithAttributes(
			attribute.String("workflow.graph", run.Graph),
			attribute.String("workflow.run_id", run.RunID),
		),
	)
	return ctx
}

func (t *TracingObserver) NodeStarted(ctx context.Context, run workflow.RunInfo, node string, step int) context.Context {
	ctx, _ = t.tracer.Start(ctx, "workflow.node "+node,
		trace.WithAttributes(
			attribute.String("workflow.graph", run.Graph),
			attribute.String("workflow.node", node),
			attribute.Int("workflow.step", step),
		),
	)
	return ctx
}

func (t *TracingObserver) NodeFinished(ctx context.Context, run workflow.RunInfo, node string, _ int, elapsed time.Duration, outcome workflow.Outcome) {
	span := trace.SpanFromContext(ctx)
	result := "ok"
	if outcome.Failed() {
		result = outcome.Category.String()
		span.SetAttributes(attribute.String("workflow.failure_category", result))
		if outcome.Err != nil {
			span.RecordError(outcome.Err)
		}
		span.SetStatus(codes.Error, result)
	}
	span.End()

	if t.nodeDuration != nil {
		t.nodeDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
			attribute.String("workflow.graph", run.Graph),
			attribute.String("workflow.node", node),
			attribute.String("workflow.outcome", result),
		))
	}
}

func (t *TracingObserver) RunFinished(ctx context.Context, _ workflow.RunInfo, steps int, _ time.Duration, err error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int("workflow.steps", steps))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
