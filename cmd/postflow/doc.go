// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 PostFlow 服务端程序入口。

# 概述

cmd/postflow 装配 post-agent 工作流及其全部依赖，提供 HTTP API、
定时调度、单次执行、数据库迁移、健康检查和版本查询等子命令。

# 核心类型

  - App         ：按依赖顺序初始化数据库、Redis、LLM、采集器、脚本运行器与工作流图
  - Middleware  ：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、run --task、graph、migrate、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、OTelTracing、
    Metrics、RequestLogger、CORS、RateLimiter（基于 IP）、APIKeyAuth（X-API-Key）
  - 定时调度：workflow.schedule 非空时按 cron 执行全部 PENDING 任务
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：SIGINT / SIGTERM 后关闭 HTTP 与 Metrics 服务器，再逆序释放资源
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
