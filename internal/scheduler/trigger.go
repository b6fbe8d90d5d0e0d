package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrInvalidCronSpec 表达式无法解析
var ErrInvalidCronSpec = errors.New("invalid cron spec")

// Runnable 被调度的工作
type Runnable interface {
	Run(ctx context.Context) error
}

// RunFunc 把函数适配为 Runnable
type RunFunc func(ctx context.Context) error

func (f RunFunc) Run(ctx context.Context) error { return f(ctx) }

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSpec 校验 cron 表达式
func ParseSpec(spec string) (cron.Schedule, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}
	return schedule, nil
}

// Trigger 按 cron 计划执行 Runnable，同一时刻最多一个执行
type Trigger struct {
	spec     string
	schedule cron.Schedule
	runnable Runnable
	timeout  time.Duration
	running  atomic.Bool
	skipped  atomic.Int64
	logger   *zap.Logger
}

// Option 配置 Trigger
type Option func(*Trigger)

// WithRunTimeout 限制单次执行时长，0 表示不限制
func WithRunTimeout(d time.Duration) Option {
	return func(t *Trigger) { t.timeout = d }
}

// NewTrigger 解析表达式并创建 Trigger
func NewTrigger(spec string, runnable Runnable, logger *zap.Logger, opts ...Option) (*Trigger, error) {
	schedule, err := ParseSpec(spec)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Trigger{
		spec:     spec,
		schedule: schedule,
		runnable: runnable,
		logger:   logger.With(zap.String("component", "scheduler"), zap.String("schedule", spec)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Start 在后台循环，ctx 取消时退出；立即返回
func (t *Trigger) Start(ctx context.Context) {
	t.logger.Info("scheduler started", zap.Time("next_run", t.NextRun()))
	go t.loop(ctx)
}

// NextRun 返回下一次计划执行时间
func (t *Trigger) NextRun() time.Time {
	return t.schedule.Next(time.Now())
}

// Skipped 返回因上一次仍在执行而被跳过的触发次数
func (t *Trigger) Skipped() int64 {
	return t.skipped.Load()
}

func (t *Trigger) loop(ctx context.Context) {
	for {
		next := t.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			t.logger.Info("scheduler stopped")
			return
		case <-timer.C:
			go t.fire(ctx)
		}
	}
}

// fire 执行一次；上一次未结束时跳过并返回 false
func (t *Trigger) fire(ctx context.Context) bool {
	if !t.running.CompareAndSwap(false, true) {
		t.skipped.Add(1)
		t.logger.Warn("previous run still in progress, skipping tick")
		return false
	}
	defer t.running.Store(false)

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	t.logger.Info("scheduled run started")
	if err := t.runnable.Run(ctx); err != nil {
		t.logger.Warn("scheduled run completed with error",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return true
	}
	t.logger.Info("scheduled run completed", zap.Duration("duration", time.Since(start)))
	return true
}
