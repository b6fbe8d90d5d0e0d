package workflow

import (
	"errors"
	"fmt"
)

// OutcomeKind 节点执行结果的类别
type OutcomeKind uint8

const (
	OutcomeOK OutcomeKind = iota
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	if k == OutcomeOK {
		return "ok"
	}
	return "failed"
}

// FailureCategory is chosen by the failing node. The engine never infers it
// from error text.
type FailureCategory uint8

const (
	FailureUnknown FailureCategory = iota
	FailureInvalidInput
	FailureExternal
	FailureIO
	FailureNotFound
)

func (c FailureCategory) String() string {
	switch c {
	case FailureInvalidInput:
		return "invalid_input"
	case FailureExternal:
		return "external"
	case FailureIO:
		return "io"
	case FailureNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Outcome is what a conditional dispatcher sees about the node that just ran.
type Outcome struct {
	Kind     OutcomeKind
	Category FailureCategory
	Err      error
}

// Failed reports whether the node failed.
func (o Outcome) Failed() bool { return o.Kind == OutcomeFailed }

// Failure is an error tagged with the category the node decided on.
type Failure struct {
	Category FailureCategory
	Err      error
}

// Fail 构造带分类的节点失败
func Fail(category FailureCategory, err error) error {
	if err == nil {
		err = errors.New(category.String())
	}
	return &Failure{Category: category, Err: err}
}

// Failf 是 Fail 的格式化版本
func Failf(category FailureCategory, format string, args ...any) error {
	return &Failure{Category: category, Err: fmt.Errorf(format, args...)}
}

func (f *Failure) Error() string { return f.Err.Error() }

func (f *Failure) Unwrap() error { return f.Err }

// outcomeOf classifies a node error. Plain errors are FailureUnknown.
func outcomeOf(err error) Outcome {
	if err == nil {
		return Outcome{Kind: OutcomeOK}
	}
	var f *Failure
	if errors.As(err, &f) {
		return Outcome{Kind: OutcomeFailed, Category: f.Category, Err: f.Err}
	}
	return Outcome{Kind: OutcomeFailed, Category: FailureUnknown, Err: err}
}

// Dispatcher maps an outcome to a route label. The label must be a key of
// the conditional edge's route table.
type Dispatcher func(Outcome) string

// OnOutcome builds the common two-way dispatcher: okLabel on success,
// failLabel on any failure.
func OnOutcome(okLabel, failLabel string) Dispatcher {
	return func(o Outcome) string {
		if o.Failed() {
			return failLabel
		}
		return okLabel
	}
}

// ByCategory routes failures by category, falling back to def for
// categories not in the table. Success routes to okLabel.
func ByCategory(okLabel string, table map[FailureCategory]string, def string) Dispatcher {
	cp := make(map[FailureCategory]string, len(table))
	for k, v := range table {
		cp[k] = v
	}
	return func(o Outcome) string {
		if !o.Failed() {
			return okLabel
		}
		if label, ok := cp[o.Category]; ok {
			return label
		}
		return def
	}
}
