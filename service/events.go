package service

import (
	"sync"
	"sync/atomic"

	"github.com/BaSui01/postflow/workflow"
	"go.uber.org/zap"
)

// DefaultSubscriberBuffer 每个订阅者的事件缓冲
const DefaultSubscriberBuffer = 64

// TaskEvent 带任务 ID 的图运行事件
type TaskEvent struct {
	TaskID int64 `json:"task_id"`
	workflow.StreamEvent
}

// EventHub 按任务 ID 扇出运行事件。发布从不阻塞，慢订阅者会丢事件。
type EventHub struct {
	mu     sync.RWMutex
	subs   map[int64]map[*subscriber]struct{}
	buffer int
	logger *zap.Logger
}

type subscriber struct {
	ch      chan TaskEvent
	dropped atomic.Int64
}

// NewEventHub creates an EventHub.
func NewEventHub(buffer int, logger *zap.Logger) *EventHub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHub{
		subs:   make(map[int64]map[*subscriber]struct{}),
		buffer: buffer,
		logger: logger.With(zap.String("component", "event_hub")),
	}
}

// Subscribe 订阅某个任务的事件，返回的 cancel 必须调用
func (h *EventHub) Subscribe(taskID int64) (<-chan TaskEvent, func()) {
	sub := &subscriber{ch: make(chan TaskEvent, h.buffer)}

	h.mu.Lock()
	set, ok := h.subs[taskID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[taskID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[taskID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(h.subs, taskID)
				}
			}
			close(sub.ch)
			if n := sub.dropped.Load(); n > 0 {
				h.logger.Debug("subscriber dropped events",
					zap.Int64("task_id", taskID),
					zap.Int64("dropped", n),
				)
			}
		})
	}
	return sub.ch, cancel
}

// Publish 投递事件给该任务的所有订阅者
func (h *EventHub) Publish(ev TaskEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[ev.TaskID] {
		select {
		case sub.ch <- ev:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Subscribers 返回某任务当前订阅者数量
func (h *EventHub) Subscribers(taskID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[taskID])
}

// Emitter 返回绑定任务 ID 的 workflow.StreamEmitter
func (h *EventHub) Emitter(taskID int64) workflow.StreamEmitter {
	return func(ev workflow.StreamEvent) {
		h.Publish(TaskEvent{TaskID: taskID, StreamEvent: ev})
	}
}
