// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

/*
包 llm 提供 PostFlow 的大语言模型接入层。

# Provider 抽象

核心接口是 [Provider]：Completion 发起同步聊天请求，HealthCheck 做轻量探活。
具体协议实现位于 providers 子包，目前提供 OpenAI 兼容协议（通义千问
DashScope 兼容模式默认即走此协议）。

# 错误语义

所有上游错误统一为 [*Error]，Code 描述错误类别，Retryable 标记是否值得重试。
[IsRetryable] 沿错误链判断。

# 重试与用量

[InstrumentedProvider] 包装任意 Provider：仅对可重试错误按指数退避重试，
并记录 prompt / completion token 用量，可选上报到 [UsageRecorder]（Prometheus 指标）。

# 子包

  - retry：指数退避重试器
  - tokenizer：token 计数与输入截断
  - providers/openaicompat：OpenAI 兼容协议实现
*/
package llm
