// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

// Package tlsutil 提供集中式 TLS 配置，
// 为 HackerNews 采集、LLM 调用等出站 HTTP 客户端以及 HTTPS 服务端提供
// 安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件），并支持统一的 User-Agent。
package tlsutil
