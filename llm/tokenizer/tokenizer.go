package tokenizer

import (
	"strings"

	"go.uber.org/zap"
)

// Tokenizer 计数并截断文本以适配模型输入预算。
type Tokenizer interface {
	// CountTokens 返回文本的 token 数
	CountTokens(text string) (int, error)

	// Truncate 返回不超过 maxTokens 的文本前缀，未超出时原样返回
	Truncate(text string, maxTokens int) (string, error)

	// Name 返回分词器名称
	Name() string
}

// ForModel 为模型选择分词器：已知 OpenAI 模型走 tiktoken，其余走估算器。
func ForModel(model string) Tokenizer {
	if t, ok := newTiktokenForModel(model); ok {
		return &fallbackTokenizer{primary: t, fallback: NewEstimatorTokenizer()}
	}
	return NewEstimatorTokenizer()
}

// FitInput 按预算截断文本，截断时记录一条 Warn 日志。
func FitInput(t Tokenizer, text string, maxTokens int, logger *zap.Logger) string {
	if maxTokens <= 0 || text == "" {
		return text
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	out, err := t.Truncate(text, maxTokens)
	if err != nil {
		logger.Warn("token truncation failed, sending full input",
			zap.String("tokenizer", t.Name()), zap.Error(err))
		return text
	}
	if len(out) < len(text) {
		logger.Warn("input truncated to token budget",
			zap.String("tokenizer", t.Name()),
			zap.Int("max_tokens", maxTokens),
			zap.Int("original_bytes", len(text)),
			zap.Int("kept_bytes", len(out)),
		)
	}
	return strings.TrimRight(out, "�")
}

// fallbackTokenizer 在 tiktoken 编码表不可用（离线）时退回估算器。
type fallbackTokenizer struct {
	primary  Tokenizer
	fallback Tokenizer
}

func (f *fallbackTokenizer) CountTokens(text string) (int, error) {
	n, err := f.primary.CountTokens(text)
	if err != nil {
		return f.fallback.CountTokens(text)
	}
	return n, nil
}

func (f *fallbackTokenizer) Truncate(text string, maxTokens int) (string, error) {
	out, err := f.primary.Truncate(text, maxTokens)
	if err != nil {
		return f.fallback.Truncate(text, maxTokens)
	}
	return out, nil
}

func (f *fallbackTokenizer) Name() string { return f.primary.Name() }
