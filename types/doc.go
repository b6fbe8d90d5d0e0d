// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 PostFlow 的全局共享类型定义。

types 是最底层的公共包，不依赖任何内部包，为 service、api、llm 等上层
模块提供统一的错误码与 context 传播约定。

  - Error / ErrorCode：结构化错误，含 HTTP 状态码与 Retryable 标记
  - AsError / IsErrorCode / IsRetryable：沿错误链查找
  - WithTraceID / WithTaskID / WithLLMModel：context 传播
*/
package types
