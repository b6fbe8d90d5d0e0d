package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SummarySystemPrompt 小红书文案生成提示词，要求模型只输出 JSON
const SummarySystemPrompt = `你是一名擅长科技话题的小红书博主。用户会提供一篇英文技术文章的 Markdown 原文，
请阅读后用简体中文生成一篇小红书笔记。

要求：
1. 标题 1 到 3 个备选，每个不超过 20 个字，可以带 1 个 emoji，突出文章最吸引人的点。
2. 正文 300 到 600 字，口语化，分段清晰，关键结论放在前面，结尾给出 3 到 5 个话题标签（#开头）。
3. 不要编造原文没有的数据或结论。
4. 只输出一个 JSON 对象，不要输出任何解释或 Markdown 代码块，格式如下：
{"title": ["标题1", "标题2"], "content": "正文"}`

// Summary 模型输出的文案
type Summary struct {
	Title   []string `json:"title"`
	Content string   `json:"content"`
}

// ErrEmptyTitle 文案中没有可用标题
var ErrEmptyTitle = errors.New("summary has no title")

// ParseSummary 解析模型输出，容忍 ```json 代码块包裹与前后说明文字
func ParseSummary(raw string) (*Summary, error) {
	text := strings.TrimSpace(raw)
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}

	var s Summary
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, fmt.Errorf("parse summary json: %w", err)
	}
	if len(s.Title) == 0 || strings.TrimSpace(s.Title[0]) == "" {
		return nil, ErrEmptyTitle
	}
	s.Title[0] = strings.TrimSpace(s.Title[0])
	return &s, nil
}
