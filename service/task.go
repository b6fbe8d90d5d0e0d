package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/postflow/internal/cache"
	"github.com/BaSui01/postflow/pipeline"
	"github.com/BaSui01/postflow/repository"
	"github.com/BaSui01/postflow/types"
	"github.com/BaSui01/postflow/workflow"
	"go.uber.org/zap"
)

// DefaultLockTTL 运行锁默认有效期，应大于单次执行的最长耗时
const DefaultLockTTL = 30 * time.Minute

// 更新人标识
const (
	OperatorManual    = "manual"
	OperatorScheduler = "scheduler"
)

// TaskStore post_tasks 存储
type TaskStore interface {
	Create(ctx context.Context, task *repository.PostTask) error
	FindByID(ctx context.Context, id int64) (*repository.PostTask, error)
	FindPage(ctx context.Context, page, size int) ([]repository.PostTask, int64, error)
	FindByStatus(ctx context.Context, status repository.TaskStatus, limit int) ([]repository.PostTask, error)
	UpdateStatus(ctx context.Context, id int64, status repository.TaskStatus, updateBy string) error
}

// ResultStore task_results 存储
type ResultStore interface {
	Upsert(ctx context.Context, result *repository.PostTaskResult) error
}

// GraphRunner 编译后的工作流图，*workflow.CompiledGraph 满足该接口
type GraphRunner interface {
	Execute(ctx context.Context, initial map[string]workflow.Value) (*workflow.RunResult, error)
}

// TaskRecorder 任务执行指标
type TaskRecorder interface {
	RecordTaskExecution(status string)
}

// ExecutionResult 一次任务执行的结果摘要
type ExecutionResult struct {
	TaskID          int64                 `json:"task_id"`
	RunID           string                `json:"run_id"`
	Status          repository.TaskStatus `json:"status"`
	PostID          int64                 `json:"post_id,omitempty"`
	Title           string                `json:"title,omitempty"`
	URL             string                `json:"url,omitempty"`
	OutputDirectory string                `json:"output_directory,omitempty"`
	Path            []string              `json:"path"`
	Steps           int                   `json:"steps"`
	Duration        time.Duration         `json:"duration"`
}

// TaskPage 分页结果
type TaskPage struct {
	Items []repository.PostTask `json:"items"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Size  int                   `json:"size"`
}

// TaskService post_task 业务服务
type TaskService struct {
	tasks    TaskStore
	results  ResultStore
	graph    GraphRunner
	locker   cache.Locker
	hub      *EventHub
	recorder TaskRecorder
	logger   *zap.Logger

	lockTTL        time.Duration
	executeTimeout time.Duration
}

// Option configures a TaskService.
type Option func(*TaskService)

// WithEventHub 发布运行事件
func WithEventHub(h *EventHub) Option {
	return func(s *TaskService) { s.hub = h }
}

// WithRecorder 记录任务执行指标
func WithRecorder(r TaskRecorder) Option {
	return func(s *TaskService) { s.recorder = r }
}

// WithLockTTL 设置运行锁有效期
func WithLockTTL(ttl time.Duration) Option {
	return func(s *TaskService) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithExecuteTimeout 设置单次执行超时，0 表示不限
func WithExecuteTimeout(d time.Duration) Option {
	return func(s *TaskService) { s.executeTimeout = d }
}

// NewTaskService creates a TaskService. A nil locker falls back to an
// in-process lock.
func NewTaskService(tasks TaskStore, results ResultStore, graph GraphRunner, locker cache.Locker, logger *zap.Logger, opts ...Option) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = cache.NewLocalLocker()
	}
	s := &TaskService{
		tasks:   tasks,
		results: results,
		graph:   graph,
		locker:  locker,
		logger:  logger.With(zap.String("component", "task_service")),
		lockTTL: DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// 📝 任务管理
// =============================================================================

// AddTask 创建任务，状态固定为 PENDING
func (s *TaskService) AddTask(ctx context.Context, task *repository.PostTask) error {
	if task == nil || strings.TrimSpace(task.TaskName) == "" {
		return types.NewError(types.ErrInvalidRequest, "task_name is required").
			WithHTTPStatus(http.StatusBadRequest)
	}
	origin := strings.ToLower(strings.TrimSpace(task.TargetOrigin))
	if origin != "" && origin != repository.DefaultTargetOrigin {
		return types.NewError(types.ErrInvalidRequest, fmt.Sprintf("unsupported target_origin %q", task.TargetOrigin)).
			WithHTTPStatus(http.StatusBadRequest)
	}

	task.ID = 0
	task.TargetOrigin = origin
	task.Status = repository.StatusPending
	task.CreateTime = time.Time{}
	if err := s.tasks.Create(ctx, task); err != nil {
		return types.NewError(types.ErrInternalError, "create task failed").WithCause(err)
	}

	s.logger.Info("task created", zap.Int64("task_id", task.ID), zap.String("task_name", task.TaskName))
	return nil
}

// ListTasks 按创建时间倒序分页，page 从 0 开始
func (s *TaskService) ListTasks(ctx context.Context, page, size int) (*TaskPage, error) {
	if page < 0 || size < 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "page and size must not be negative").
			WithHTTPStatus(http.StatusBadRequest)
	}
	items, total, err := s.tasks.FindPage(ctx, page, size)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "list tasks failed").WithCause(err)
	}
	page, size = repository.NormalizePage(page, size)
	return &TaskPage{Items: items, Total: total, Page: page, Size: size}, nil
}

// =============================================================================
// 🚀 任务执行
// =============================================================================

// ExecuteTask 同步执行任务
func (s *TaskService) ExecuteTask(ctx context.Context, id int64) (*ExecutionResult, error) {
	return s.execute(ctx, id, OperatorManual)
}

// ExecutePending 依次执行所有 PENDING 任务，单个任务失败不影响其余任务
func (s *TaskService) ExecutePending(ctx context.Context) error {
	pending, err := s.tasks.FindByStatus(ctx, repository.StatusPending, 0)
	if err != nil {
		return types.NewError(types.ErrInternalError, "list pending tasks failed").WithCause(err)
	}
	if len(pending) == 0 {
		s.logger.Debug("no pending tasks")
		return nil
	}

	s.logger.Info("executing pending tasks", zap.Int("count", len(pending)))
	var errs []error
	for _, task := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.execute(ctx, task.ID, OperatorScheduler); err != nil {
			if types.IsErrorCode(err, types.ErrTaskAlreadyRunning) {
				continue
			}
			errs = append(errs, fmt.Errorf("task %d: %w", task.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *TaskService) execute(ctx context.Context, id int64, operator string) (*ExecutionResult, error) {
	logger := s.logger.With(zap.Int64("task_id", id), zap.String("operator", operator))

	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, types.NewNotFoundError(fmt.Sprintf("task %d not found", id))
		}
		return nil, types.NewError(types.ErrInternalError, "load task failed").WithCause(err)
	}

	unlock, err := s.locker.TryLock(ctx, lockKey(id), s.lockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return nil, types.NewError(types.ErrTaskAlreadyRunning, fmt.Sprintf("task %d is already running", id)).
				WithHTTPStatus(http.StatusConflict)
		}
		return nil, types.NewError(types.ErrServiceUnavailable, "acquire task lock failed").WithCause(err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release task lock failed", zap.Error(err))
		}
	}()

	if err := s.tasks.UpdateStatus(ctx, id, repository.StatusRunning, operator); err != nil {
		return nil, types.NewError(types.ErrInternalError, "mark task running failed").WithCause(err)
	}

	runCtx := types.WithTaskID(ctx, id)
	if s.hub != nil {
		runCtx = workflow.WithStreamEmitter(runCtx, s.hub.Emitter(id))
	}
	if s.executeTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, s.executeTimeout)
		defer cancel()
	}

	logger.Info("task execution started", zap.String("target_origin", task.TargetOrigin))
	started := time.Now()
	run, runErr := s.graph.Execute(runCtx, pipeline.InitialState(id, task.TargetOrigin))

	result := &ExecutionResult{TaskID: id, Status: repository.StatusFailed, Duration: time.Since(started)}
	if run != nil {
		result.RunID = run.RunID
		result.Path = run.Path
		result.Steps = run.Steps
	}

	// 状态写回不受调用方取消影响
	finishCtx := context.WithoutCancel(ctx)

	if runErr != nil {
		s.finish(finishCtx, logger, id, repository.StatusFailed, operator)
		logger.Warn("task execution failed", zap.Error(runErr))
		return result, types.NewError(types.ErrWorkflowFailed, "workflow run aborted").
			WithCause(runErr).
			WithHTTPStatus(http.StatusUnprocessableEntity)
	}

	outcome, err := collectOutcome(run.State)
	if errors.Is(err, errStoppedEarly) {
		// 失败路由提前到达 END：不是引擎错误，任务记为失败
		s.finish(finishCtx, logger, id, repository.StatusFailed, operator)
		logger.Warn("task stopped before producing output", zap.Strings("path", run.Path))
		return result, nil
	}
	if err != nil {
		s.finish(finishCtx, logger, id, repository.StatusFailed, operator)
		return result, types.NewError(types.ErrWorkflowFailed, "workflow state incomplete").
			WithCause(err).
			WithHTTPStatus(http.StatusUnprocessableEntity)
	}

	result.PostID = outcome.postID
	result.Title = outcome.title
	result.URL = outcome.url
	result.OutputDirectory = outcome.dir

	if err := s.results.Upsert(finishCtx, &repository.PostTaskResult{
		TaskID:          id,
		DataID:          outcome.postID,
		Status:          repository.StatusSuccess,
		OutputDirectory: outcome.dir,
		Description:     repository.ResultDescription(outcome.title, outcome.url),
	}); err != nil {
		s.finish(finishCtx, logger, id, repository.StatusFailed, operator)
		return result, types.NewError(types.ErrInternalError, "save task result failed").WithCause(err)
	}

	s.finish(finishCtx, logger, id, repository.StatusSuccess, operator)
	result.Status = repository.StatusSuccess
	logger.Info("task execution succeeded",
		zap.Int64("post_id", outcome.postID),
		zap.String("output_directory", outcome.dir),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (s *TaskService) finish(ctx context.Context, logger *zap.Logger, id int64, status repository.TaskStatus, operator string) {
	if err := s.tasks.UpdateStatus(ctx, id, status, operator); err != nil {
		logger.Error("update task status failed", zap.String("status", string(status)), zap.Error(err))
	}
	if s.recorder != nil {
		s.recorder.RecordTaskExecution(strings.ToLower(string(status)))
	}
}

func lockKey(id int64) string {
	return "task:" + strconv.FormatInt(id, 10)
}

var errStoppedEarly = errors.New("run ended without output directory")

type runOutcome struct {
	postID int64
	title  string
	url    string
	dir    string
}

func collectOutcome(state *workflow.State) (*runOutcome, error) {
	if state == nil {
		return nil, errors.New("run returned no state")
	}
	dir, ok := state.GetString(pipeline.KeyOutputDirectory)
	if !ok || dir == "" {
		return nil, errStoppedEarly
	}

	var missing []string
	title, ok := state.GetString(pipeline.KeyCollectedTitle)
	if !ok {
		missing = append(missing, pipeline.KeyCollectedTitle)
	}
	url, ok := state.GetString(pipeline.KeyCollectedURL)
	if !ok || url == "" {
		missing = append(missing, pipeline.KeyCollectedURL)
	}
	postID, ok := state.GetInt(pipeline.KeyPostID)
	if !ok {
		missing = append(missing, pipeline.KeyPostID)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing state keys: %s", strings.Join(missing, ", "))
	}
	return &runOutcome{postID: postID, title: title, url: url, dir: dir}, nil
}
