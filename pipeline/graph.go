package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/postflow/collector"
	"github.com/BaSui01/postflow/config"
	"github.com/BaSui01/postflow/internal/cache"
	"github.com/BaSui01/postflow/llm"
	"github.com/BaSui01/postflow/llm/tokenizer"
	"github.com/BaSui01/postflow/repository"
	"github.com/BaSui01/postflow/script"
	"github.com/BaSui01/postflow/workflow"
	"go.uber.org/zap"
)

// StorySource 热门帖子数据源
type StorySource interface {
	TopStories(ctx context.Context) ([]int64, error)
	Item(ctx context.Context, id int64) (*collector.Item, error)
}

// ResultStore 帖子处理记录，data_id 唯一
type ResultStore interface {
	ExistsByDataID(ctx context.Context, dataID int64) (bool, error)
	Create(ctx context.Context, result *repository.PostTaskResult) error
}

// ScriptRunner 外部脚本执行器
type ScriptRunner interface {
	Run(ctx context.Context, req script.Request) (string, error)
}

// Deps post-agent 节点依赖的外部组件
type Deps struct {
	Stories StorySource
	Results ResultStore
	// Seen 可选，为空时仅依赖 task_results 去重
	Seen      cache.SeenSet
	Scripts   ScriptRunner
	LLM       llm.Provider
	Tokenizer tokenizer.Tokenizer
	Now       func() time.Time
	Logger    *zap.Logger
}

// Options post-agent 运行参数
type Options struct {
	OutputDir       string
	DownloadScript  string
	TransformScript string

	Model          string
	Temperature    float32
	MaxTokens      int
	MaxInputTokens int

	ScanLimit     int
	MaxIterations int
	Observer      workflow.Observer
}

// OptionsFrom 从全局配置构造运行参数
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		OutputDir:       cfg.Workflow.OutputDir,
		DownloadScript:  cfg.Script.DownloadScript,
		TransformScript: cfg.Script.TransformScript,
		Model:           cfg.LLM.Model,
		Temperature:     float32(cfg.LLM.Temperature),
		MaxTokens:       cfg.LLM.MaxTokens,
		MaxInputTokens:  cfg.LLM.MaxInputTokens,
		ScanLimit:       cfg.Collector.ScanLimit,
		MaxIterations:   cfg.Workflow.MaxIterations,
	}
}

type postAgent struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

func (d *Deps) validate() error {
	var errs []error
	if d.Stories == nil {
		errs = append(errs, errors.New("story source is required"))
	}
	if d.Results == nil {
		errs = append(errs, errors.New("result store is required"))
	}
	if d.Scripts == nil {
		errs = append(errs, errors.New("script runner is required"))
	}
	if d.LLM == nil {
		errs = append(errs, errors.New("llm provider is required"))
	}
	return errors.Join(errs...)
}

// Build 组装并编译 post-agent 图：
//
//	START → collector_agent → download_agent ─ok→ summarize_agent → transform_agent → END
//	                                         └fail→ END
func Build(deps Deps, opts Options) (*workflow.CompiledGraph, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Tokenizer == nil {
		deps.Tokenizer = tokenizer.ForModel(opts.Model)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "output"
	}

	agent := &postAgent{
		deps:   deps,
		opts:   opts,
		logger: deps.Logger.With(zap.String("graph", GraphName)),
	}

	g := workflow.NewStateGraph(GraphName).WithLogger(deps.Logger)
	for _, key := range allKeys {
		g.SetKeyStrategy(key, workflow.MergeReplace)
	}

	nodes := []struct {
		name   string
		action workflow.NodeAction
	}{
		{NodeCollector, agent.collect},
		{NodeDownload, agent.download},
		{NodeSummarize, agent.summarize},
		{NodeTransform, agent.transform},
	}
	for _, n := range nodes {
		if err := g.AddNode(n.name, n.action); err != nil {
			return nil, err
		}
	}

	edges := [][2]string{
		{workflow.START, NodeCollector},
		{NodeCollector, NodeDownload},
		{NodeSummarize, NodeTransform},
		{NodeTransform, workflow.END},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, err
		}
	}
	// 下载失败直接结束，由调用方根据 output_directory 判定任务状态
	if err := g.AddConditionalEdge(NodeDownload,
		workflow.OnOutcome(NodeSummarize, workflow.END),
		map[string]string{NodeSummarize: NodeSummarize, workflow.END: workflow.END},
	); err != nil {
		return nil, err
	}

	compileOpts := []workflow.CompileOption{}
	if opts.MaxIterations > 0 {
		compileOpts = append(compileOpts, workflow.WithMaxIterations(opts.MaxIterations))
	}
	if opts.Observer != nil {
		compileOpts = append(compileOpts, workflow.WithObserver(opts.Observer))
	}
	return g.Compile(compileOpts...)
}
