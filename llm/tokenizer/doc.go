// Package tokenizer 为 LLM 请求提供 Token 计数与截断，
// OpenAI 家族模型使用 tiktoken 精确编码，其余模型（如 qwen）使用 CJK 感知的估算器。
package tokenizer
