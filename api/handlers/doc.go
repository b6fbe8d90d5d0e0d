// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 PostFlow HTTP API 的请求处理器实现。

# 核心类型

  - TaskHandler    任务创建、分页查询、同步执行与 websocket 事件流
  - GraphHandler   输出 post-agent 图的 Mermaid 结构
  - HealthHandler  /health、/healthz、/ready、/version
  - Response       统一 JSON 响应（success + data + error + timestamp）
  - ErrorInfo      结构化错误信息，含 code、message、retryable

# 错误映射

服务层返回 *types.Error，WriteError 按错误码映射 HTTP 状态：
INVALID_REQUEST 400，UNAUTHORIZED 401，NOT_FOUND 404，
TASK_ALREADY_RUNNING 409，WORKFLOW_FAILED 422，RATE_LIMITED 429，
UPSTREAM_ERROR 502，SERVICE_UNAVAILABLE 503，UPSTREAM_TIMEOUT 504，
其余为 500。显式设置的 HTTPStatus 优先。

所有 Handler 均为标准 net/http 处理函数，路由使用 Go 1.22 的
"METHOD /path/{id}" 模式。
*/
package handlers
