package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BaSui01/postflow/collector"
	"github.com/BaSui01/postflow/llm"
	"github.com/BaSui01/postflow/llm/tokenizer"
	"github.com/BaSui01/postflow/repository"
	"github.com/BaSui01/postflow/script"
	"github.com/BaSui01/postflow/workflow"
	"go.uber.org/zap"
)

// dirLayout 输出子目录按时间命名
const dirLayout = "20060102150405"

// =============================================================================
// 🔎 collector_agent
// =============================================================================

func (p *postAgent) collect(ctx context.Context, view workflow.StateView) (workflow.Update, error) {
	origin, ok := stringOf(view, KeyTargetOrigin)
	if !ok {
		origin = repository.DefaultTargetOrigin
	}
	if !strings.EqualFold(origin, repository.DefaultTargetOrigin) {
		return nil, workflow.Failf(workflow.FailureInvalidInput, "unsupported target origin %q", origin)
	}
	origin = repository.DefaultTargetOrigin
	taskID, _ := intOf(view, KeyTaskID)
	logger := p.logger.With(zap.String("node", NodeCollector), zap.Int64("task_id", taskID))

	ids, err := p.deps.Stories.TopStories(ctx)
	if err != nil {
		return nil, workflow.Fail(workflow.FailureExternal, err)
	}
	if len(ids) == 0 {
		return nil, workflow.Fail(workflow.FailureNotFound, errors.New("top story list is empty"))
	}
	if p.opts.ScanLimit > 0 && len(ids) > p.opts.ScanLimit {
		ids = ids[:p.opts.ScanLimit]
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.processed(ctx, origin, id, logger) {
			continue
		}

		item, err := p.deps.Stories.Item(ctx, id)
		if errors.Is(err, collector.ErrItemNotFound) {
			p.markSeen(ctx, origin, id, logger)
			continue
		}
		if err != nil {
			return nil, workflow.Fail(workflow.FailureExternal, err)
		}
		if item.URL == "" {
			// Ask HN 等站内帖子没有外链，无法下载
			logger.Debug("story has no url, skipping", zap.Int64("post_id", id))
			p.markSeen(ctx, origin, id, logger)
			continue
		}

		placeholder := &repository.PostTaskResult{
			TaskID:      taskID,
			DataID:      id,
			Status:      repository.StatusPending,
			Description: repository.ResultDescription(item.Title, item.URL),
		}
		if err := p.deps.Results.Create(ctx, placeholder); err != nil {
			// 并发运行已占用该帖子
			logger.Warn("claim story failed, trying next", zap.Int64("post_id", id), zap.Error(err))
			continue
		}
		p.markSeen(ctx, origin, id, logger)

		logger.Info("story collected",
			zap.Int64("post_id", id),
			zap.String("title", item.Title),
			zap.String("url", item.URL),
		)
		return workflow.Update{
			KeyCollectedURL:   workflow.String(item.URL),
			KeyCollectedTitle: workflow.String(item.Title),
			KeyPostID:         workflow.Int(id),
		}, nil
	}

	return nil, workflow.Failf(workflow.FailureNotFound, "no unprocessed story among %d candidates", len(ids))
}

// processed 先查缓存，再查 task_results
func (p *postAgent) processed(ctx context.Context, origin string, id int64, logger *zap.Logger) bool {
	if p.deps.Seen != nil {
		seen, err := p.deps.Seen.Seen(ctx, origin, id)
		if err != nil {
			logger.Warn("seen cache lookup failed", zap.Int64("post_id", id), zap.Error(err))
		} else if seen {
			return true
		}
	}

	exists, err := p.deps.Results.ExistsByDataID(ctx, id)
	if err != nil {
		logger.Warn("result lookup failed, skipping story", zap.Int64("post_id", id), zap.Error(err))
		return true
	}
	if exists {
		p.markSeen(ctx, origin, id, logger)
	}
	return exists
}

func (p *postAgent) markSeen(ctx context.Context, origin string, id int64, logger *zap.Logger) {
	if p.deps.Seen == nil {
		return
	}
	if err := p.deps.Seen.MarkSeen(ctx, origin, id); err != nil {
		logger.Warn("seen cache update failed", zap.Int64("post_id", id), zap.Error(err))
	}
}

// =============================================================================
// 📥 download_agent
// =============================================================================

func (p *postAgent) download(ctx context.Context, view workflow.StateView) (workflow.Update, error) {
	url, ok := stringOf(view, KeyCollectedURL)
	if !ok {
		return nil, workflow.Failf(workflow.FailureInvalidInput, "%s is absent", KeyCollectedURL)
	}

	dir, err := p.makeOutputDir()
	if err != nil {
		return nil, workflow.Fail(workflow.FailureIO, err)
	}

	_, err = p.deps.Scripts.Run(ctx, script.Request{
		Script: p.opts.DownloadScript,
		Input:  url,
		Args:   []string{"-o", dir},
		LogDir: dir,
	})
	if err != nil {
		if errors.Is(err, script.ErrScriptNotFound) {
			return nil, workflow.Fail(workflow.FailureNotFound, err)
		}
		return nil, workflow.Fail(workflow.FailureExternal, err)
	}

	p.logger.Info("markdown downloaded", zap.String("node", NodeDownload), zap.String("dir", dir))
	return workflow.Update{KeyOutputDirectory: workflow.String(dir)}, nil
}

// makeOutputDir 创建 <OutputDir>/<yyyyMMddHHmmss>，同一秒内重复时追加序号
func (p *postAgent) makeOutputDir() (string, error) {
	if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	base := filepath.Join(p.opts.OutputDir, p.deps.Now().Format(dirLayout))
	dir := base
	for i := 1; ; i++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) || i > 100 {
			return "", fmt.Errorf("create run dir: %w", err)
		}
		dir = base + "-" + strconv.Itoa(i)
	}
}

// =============================================================================
// ✍️ summarize_agent
// =============================================================================

func (p *postAgent) summarize(ctx context.Context, view workflow.StateView) (workflow.Update, error) {
	dir, ok := stringOf(view, KeyOutputDirectory)
	if !ok {
		return nil, workflow.Failf(workflow.FailureInvalidInput, "%s is absent", KeyOutputDirectory)
	}

	texts, err := readMarkdown(dir)
	if err != nil {
		return nil, workflow.Fail(workflow.FailureIO, err)
	}
	if len(texts) == 0 {
		return nil, workflow.Failf(workflow.FailureInvalidInput, "no markdown files in %s", dir)
	}

	// 上游每次只下载一个 URL，取第一个文件
	input := tokenizer.FitInput(p.deps.Tokenizer, texts[0], p.opts.MaxInputTokens, p.logger)

	resp, err := p.deps.LLM.Completion(ctx, &llm.ChatRequest{
		Model:       p.opts.Model,
		Temperature: p.opts.Temperature,
		MaxTokens:   p.opts.MaxTokens,
		Messages: []llm.Message{
			llm.NewSystemMessage(SummarySystemPrompt),
			llm.NewUserMessage(input),
		},
	})
	if err != nil {
		return nil, workflow.Fail(workflow.FailureExternal, err)
	}
	content, err := resp.FirstContent()
	if err != nil {
		return nil, workflow.Fail(workflow.FailureExternal, err)
	}

	p.logger.Info("summary generated",
		zap.String("node", NodeSummarize),
		zap.Int("chars", len([]rune(content))),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return workflow.Update{KeySummaryContent: workflow.String(content)}, nil
}

// readMarkdown 按文件名顺序读取目录下的 .md 文件
func readMarkdown(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	texts := make([]string, 0, len(names))
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		texts = append(texts, string(b))
	}
	return texts, nil
}

// =============================================================================
// 🖼️ transform_agent
// =============================================================================

func (p *postAgent) transform(ctx context.Context, view workflow.StateView) (workflow.Update, error) {
	raw, ok := stringOf(view, KeySummaryContent)
	if !ok {
		return nil, workflow.Failf(workflow.FailureInvalidInput, "%s is absent", KeySummaryContent)
	}
	title, ok := stringOf(view, KeyCollectedTitle)
	if !ok {
		return nil, workflow.Failf(workflow.FailureInvalidInput, "%s is absent", KeyCollectedTitle)
	}
	dir, ok := stringOf(view, KeyOutputDirectory)
	if !ok {
		return nil, workflow.Failf(workflow.FailureInvalidInput, "%s is absent", KeyOutputDirectory)
	}

	summary, err := ParseSummary(raw)
	if err != nil {
		return nil, workflow.Fail(workflow.FailureInvalidInput, err)
	}

	_, err = p.deps.Scripts.Run(ctx, script.Request{
		Script: p.opts.TransformScript,
		Args:   []string{"--title", summary.Title[0], "--name", title, "--out", dir},
		LogDir: dir,
	})
	if err != nil {
		return nil, workflow.Fail(workflow.FailureExternal, err)
	}

	p.logger.Info("cover rendered", zap.String("node", NodeTransform), zap.String("dir", dir))
	return workflow.Update{KeyStatus: workflow.String(StatusTransformed)}, nil
}
