package workflow

import (
	"context"
	"time"
)

// =============================================================================
// Workflow Streaming
// =============================================================================

// StreamEventType defines the type of workflow stream event.
type StreamEventType string

const (
	// EventRunStart is emitted once before the entry node runs.
	EventRunStart StreamEventType = "run_start"
	// EventNodeStart is emitted before a node begins execution.
	EventNodeStart StreamEventType = "node_start"
	// EventNodeComplete is emitted after a node finishes and its update is merged.
	EventNodeComplete StreamEventType = "node_complete"
	// EventNodeError is emitted when a node fails.
	EventNodeError StreamEventType = "node_error"
	// EventRunComplete is emitted when the run reaches END.
	EventRunComplete StreamEventType = "run_complete"
	// EventRunError is emitted when the run aborts.
	EventRunError StreamEventType = "run_error"
)

// StreamEvent carries information about a workflow execution event.
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	RunID     string          `json:"run_id"`
	Graph     string          `json:"graph"`
	Node      string          `json:"node,omitempty"`
	Step      int             `json:"step,omitempty"`
	Next      string          `json:"next,omitempty"`
	Category  string          `json:"category,omitempty"`
	Error     string          `json:"error,omitempty"`
	Keys      []string        `json:"keys,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// StreamEmitter is a callback that receives workflow stream events.
type StreamEmitter func(StreamEvent)

// streamEmitterKey is the context key for StreamEmitter.
type streamEmitterKey struct{}

// WithStreamEmitter stores a StreamEmitter in the context.
func WithStreamEmitter(ctx context.Context, emitter StreamEmitter) context.Context {
	if emitter == nil {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, streamEmitterKey{}, emitter)
}

// streamEmitterFromContext retrieves the StreamEmitter from context.
func streamEmitterFromContext(ctx context.Context) (StreamEmitter, bool) {
	if ctx == nil {
		return nil, false
	}
	emit, ok := ctx.Value(streamEmitterKey{}).(StreamEmitter)
	return emit, ok && emit != nil
}

// runIDKey 在 context 中携带当前运行 ID，便于节点写日志
type runIDKey struct{}

// RunIDFromContext returns the run ID of the run executing the current node.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}
