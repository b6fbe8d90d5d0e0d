// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

/*
包 collector 提供 HackerNews Firebase API 的只读客户端，为工作流的
collector_agent 节点提供热门帖子列表与帖子详情。

# 核心类型

  - Client：TopStories 获取热门帖子 ID，Item 获取单个帖子。
    传输错误与 5xx/429 响应按 llm/retry 的指数退避策略重试，
    4xx 视为永久错误。
  - Item：帖子详情（id、type、title、url、by、score、time）。
  - StatusError：非 2xx 响应，携带状态码与响应片段。

帖子不存在时 API 返回 JSON null，Client 将其映射为 ErrItemNotFound。
*/
package collector
