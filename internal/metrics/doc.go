// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、工作流、任务、
外部脚本、LLM、缓存与数据库。

# 核心类型

  - Collector：指标收集器，使用 promauto 注册到默认 Registry，按 namespace 隔离。
  - WorkflowObserver：实现 workflow.Observer，把运行与节点生命周期转为
    workflow_runs_total、workflow_node_executions_total 等指标。

# 标签约定

  - HTTP 状态码归类为 2xx/3xx/4xx/5xx。
  - 节点 outcome 为 ok 或失败类别（external、io、not_found 等）。
  - 运行 status 为 completed、node_failed、unroutable、iteration_limit、cancelled、error。
*/
package metrics
