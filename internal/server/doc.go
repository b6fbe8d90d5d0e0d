// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

/*
包 server 管理 postflow 的 HTTP 服务器生命周期：API 服务与
Prometheus 指标服务各由一个 Manager 承载。

# 核心类型

  - Manager：封装 http.Server，提供非阻塞 Start/StartTLS、
    带超时的 Shutdown，以及异步错误通道 Errors。
  - Config：监听地址、读写与空闲超时、最大请求头与关闭超时。
  - RunAll：基于 errgroup 同时运行多个 Manager，ctx 结束或任一
    服务异常时统一优雅关闭。

StartTLS 使用 tlsutil.DefaultTLSConfig 的加固配置。
*/
package server
