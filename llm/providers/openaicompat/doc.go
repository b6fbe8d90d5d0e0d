// Package openaicompat 实现 OpenAI Chat Completions 兼容协议的 llm.Provider。
//
// 通义千问 DashScope 兼容模式、DeepSeek 等服务共用同一协议，
// 只需配置 BaseURL 与默认模型：
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "qwen",
//	    APIKey:       cfg.APIKey,
//	    BaseURL:      "https://dashscope.aliyuncs.com/compatible-mode",
//	    DefaultModel: "qwen3-max",
//	}, logger)
package openaicompat
