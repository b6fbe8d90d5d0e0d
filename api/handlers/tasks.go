package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/BaSui01/postflow/repository"
	"github.com/BaSui01/postflow/service"
	"github.com/BaSui01/postflow/types"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// TaskService 任务业务接口，*service.TaskService 满足该接口
type TaskService interface {
	AddTask(ctx context.Context, task *repository.PostTask) error
	ListTasks(ctx context.Context, page, size int) (*service.TaskPage, error)
	ExecuteTask(ctx context.Context, id int64) (*service.ExecutionResult, error)
}

// EventSource 运行事件订阅接口，*service.EventHub 满足该接口
type EventSource interface {
	Subscribe(taskID int64) (<-chan service.TaskEvent, func())
}

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	TaskName     string `json:"task_name"`
	TargetOrigin string `json:"target_origin,omitempty"`
	Description  string `json:"description,omitempty"`
}

// TaskHandler post_task 相关端点
type TaskHandler struct {
	tasks  TaskService
	events EventSource
	logger *zap.Logger

	// websocket 写超时
	writeTimeout time.Duration
	// 允许的 websocket Origin 模式，为空时仅同源
	originPatterns []string
}

// NewTaskHandler 创建 TaskHandler，events 为空时不提供事件流
func NewTaskHandler(tasks TaskService, events EventSource, logger *zap.Logger) *TaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskHandler{
		tasks:        tasks,
		events:       events,
		logger:       logger.With(zap.String("handler", "tasks")),
		writeTimeout: 10 * time.Second,
	}
}

// WithOriginPatterns 设置 websocket 允许的跨域 Origin
func (h *TaskHandler) WithOriginPatterns(patterns []string) *TaskHandler {
	h.originPatterns = patterns
	return h
}

// Register 注册路由
func (h *TaskHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/tasks", h.HandleCreate)
	mux.HandleFunc("GET /api/v1/tasks", h.HandleList)
	mux.HandleFunc("POST /api/v1/tasks/{id}/execute", h.HandleExecute)
	if h.events != nil {
		mux.HandleFunc("GET /api/v1/tasks/{id}/events", h.HandleEvents)
	}
}

// =============================================================================
// 📝 任务管理
// =============================================================================

// HandleCreate 创建任务
// @Summary 创建任务
// @Tags 任务
// @Accept json
// @Produce json
// @Param request body CreateTaskRequest true "任务"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Router /api/v1/tasks [post]
func (h *TaskHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req CreateTaskRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	task := &repository.PostTask{
		TaskName:     req.TaskName,
		TargetOrigin: req.TargetOrigin,
		Description:  req.Description,
	}
	if err := h.tasks.AddTask(r.Context(), task); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteCreated(w, task)
}

// HandleList 分页查询任务
// @Summary 任务列表
// @Tags 任务
// @Produce json
// @Param page query int false "页码，从 0 开始"
// @Param size query int false "每页数量"
// @Success 200 {object} Response
// @Router /api/v1/tasks [get]
func (h *TaskHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, ok := h.queryInt(w, r, "page", 0)
	if !ok {
		return
	}
	size, ok := h.queryInt(w, r, "size", repository.DefaultPageSize)
	if !ok {
		return
	}

	result, err := h.tasks.ListTasks(r.Context(), page, size)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, result)
}

// HandleExecute 同步执行任务
// @Summary 执行任务
// @Tags 任务
// @Produce json
// @Param id path int true "任务 ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Failure 422 {object} Response
// @Router /api/v1/tasks/{id}/execute [post]
func (h *TaskHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	result, err := h.tasks.ExecuteTask(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, result)
}

// =============================================================================
// 📡 事件流
// =============================================================================

// HandleEvents 以 websocket 推送任务的运行事件，直到客户端断开
// @Summary 任务运行事件流
// @Tags 任务
// @Param id path int true "任务 ID"
// @Router /api/v1/tasks/{id}/events [get]
func (h *TaskHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Int64("task_id", id), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	events, cancel := h.events.Subscribe(id)
	defer cancel()

	// 只推送，不读取客户端消息；CloseRead 负责处理控制帧并在断开时取消 ctx
	ctx := conn.CloseRead(r.Context())
	h.logger.Debug("event stream opened", zap.Int64("task_id", id))

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, h.writeTimeout)
			err := wsjson.Write(writeCtx, conn, ev)
			cancelWrite()
			if err != nil {
				h.logger.Debug("event stream closed", zap.Int64("task_id", id), zap.Error(err))
				return
			}
		}
	}
}

// =============================================================================
// 🔧 参数解析
// =============================================================================

func (h *TaskHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "task id must be a positive integer").WithCause(err), h.logger)
		return 0, false
	}
	return id, true
}

func (h *TaskHandler) queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		WriteError(w, types.NewError(types.ErrInvalidRequest, key+" must be a non-negative integer").WithCause(err), h.logger)
		return 0, false
	}
	return n, true
}
