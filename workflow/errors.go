package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is matching.
var (
	ErrGraphState      = errors.New("workflow: invalid graph")
	ErrDuplicateNode   = errors.New("workflow: duplicate node")
	ErrUnknownNode     = errors.New("workflow: unknown node")
	ErrNodeExecution   = errors.New("workflow: node execution failed")
	ErrUnroutableState = errors.New("workflow: unroutable state")
	ErrIterationLimit  = errors.New("workflow: iteration limit exceeded")
)

// GraphStateError is returned by Compile and lists every violation found.
type GraphStateError struct {
	Graph      string
	Violations []string
}

func (e *GraphStateError) Error() string {
	return fmt.Sprintf("graph %q is invalid: %s", e.Graph, strings.Join(e.Violations, "; "))
}

func (e *GraphStateError) Is(target error) bool { return target == ErrGraphState }

// DuplicateNodeError 重复注册同名节点
type DuplicateNodeError struct {
	Node string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("node %q already registered", e.Node)
}

func (e *DuplicateNodeError) Is(target error) bool { return target == ErrDuplicateNode }

// UnknownNodeError 边引用了未注册的节点
type UnknownNodeError struct {
	Node string
	// Role is "source" or "target".
	Role string
}

func (e *UnknownNodeError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("unknown node %q", e.Node)
	}
	return fmt.Sprintf("unknown %s node %q", e.Role, e.Node)
}

func (e *UnknownNodeError) Is(target error) bool { return target == ErrUnknownNode }

// NodeExecutionError wraps a node failure that had no conditional route.
type NodeExecutionError struct {
	Node     string
	Category FailureCategory
	Err      error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %q failed (%s): %v", e.Node, e.Category, e.Err)
}

func (e *NodeExecutionError) Unwrap() error { return e.Err }

func (e *NodeExecutionError) Is(target error) bool { return target == ErrNodeExecution }

// UnroutableStateError 分发器返回的标签不在路由表中
type UnroutableStateError struct {
	Node    string
	Label   string
	Allowed []string
}

func (e *UnroutableStateError) Error() string {
	return fmt.Sprintf("node %q dispatched label %q, allowed: [%s]",
		e.Node, e.Label, strings.Join(e.Allowed, ", "))
}

func (e *UnroutableStateError) Is(target error) bool { return target == ErrUnroutableState }

// IterationLimitExceeded is returned when a run reaches its step ceiling
// before arriving at END. Node is the node that would have run next.
type IterationLimitExceeded struct {
	Limit int
	Node  string
}

func (e *IterationLimitExceeded) Error() string {
	return fmt.Sprintf("iteration limit %d exceeded before node %q", e.Limit, e.Node)
}

func (e *IterationLimitExceeded) Is(target error) bool { return target == ErrIterationLimit }
