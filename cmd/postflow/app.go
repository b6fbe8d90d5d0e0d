package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/BaSui01/postflow/api/handlers"
	"github.com/BaSui01/postflow/collector"
	"github.com/BaSui01/postflow/config"
	"github.com/BaSui01/postflow/internal/cache"
	"github.com/BaSui01/postflow/internal/database"
	"github.com/BaSui01/postflow/internal/metrics"
	"github.com/BaSui01/postflow/internal/telemetry"
	"github.com/BaSui01/postflow/llm"
	"github.com/BaSui01/postflow/llm/providers/openaicompat"
	"github.com/BaSui01/postflow/llm/retry"
	"github.com/BaSui01/postflow/pipeline"
	"github.com/BaSui01/postflow/repository"
	"github.com/BaSui01/postflow/script"
	"github.com/BaSui01/postflow/service"
	"github.com/BaSui01/postflow/workflow"
	"go.uber.org/zap"
)

// =============================================================================
// 🧩 组件装配
// =============================================================================

// App 持有一次进程生命周期内的全部组件
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	metrics *metrics.Collector
	otel    *telemetry.Providers
	pool    *database.PoolManager
	// Redis 未启用时为 nil
	cache *cache.Manager

	hub   *service.EventHub
	graph *workflow.CompiledGraph
	tasks *service.TaskService

	closers []func() error
}

// NewApp 按依赖顺序初始化组件，任一步失败时释放已创建的资源
func NewApp(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (app *App, err error) {
	app = &App{cfg: cfg, logger: logger, metrics: collector}
	defer func() {
		if err != nil {
			_ = app.Close()
			app = nil
		}
	}()

	app.otel, err = telemetry.Init(cfg.Telemetry, Version, logger)
	if err != nil {
		// 遥测不可用不影响主流程
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		app.otel = nil
		err = nil
	} else {
		app.closers = append(app.closers, func() error { return app.otel.Shutdown(context.Background()) })
	}

	if err = app.openDatabase(); err != nil {
		return
	}
	if err = app.openCache(); err != nil {
		return
	}

	app.hub = service.NewEventHub(service.DefaultSubscriberBuffer, logger)
	if app.graph, err = app.buildGraph(); err != nil {
		return
	}

	db := app.pool.DB()
	app.tasks = service.NewTaskService(
		repository.NewTaskRepository(db),
		repository.NewResultRepository(db),
		app.graph,
		cache.NewLocker(app.cache),
		logger,
		service.WithEventHub(app.hub),
		service.WithRecorder(collector),
		service.WithExecuteTimeout(cfg.Workflow.ExecuteTimeout),
	)
	return app, nil
}

func (a *App) openDatabase() error {
	db, err := database.Open(a.cfg.Database, a.logger,
		database.WithQueryRecorder(a.cfg.Database.Driver, a.metrics))
	if err != nil {
		return err
	}
	if a.cfg.Database.AutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}
	pool, err := database.NewPoolManager(db, database.PoolConfigFrom(a.cfg.Database), a.logger,
		database.WithStatsRecorder(a.cfg.Database.Driver, a.metrics))
	if err != nil {
		return err
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)
	return nil
}

func (a *App) openCache() error {
	if !a.cfg.Redis.Enabled {
		return nil
	}
	m, err := cache.NewManager(cache.ConfigFrom(a.cfg.Redis), a.logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.cache = m
	a.closers = append(a.closers, m.Close)
	return nil
}

func (a *App) buildGraph() (*workflow.CompiledGraph, error) {
	cfg := a.cfg

	provider := openaicompat.New(openaicompat.Config{
		ProviderName: cfg.LLM.Provider,
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		DefaultModel: cfg.LLM.Model,
		Timeout:      cfg.LLM.Timeout,
	}, a.logger)
	llmClient := llm.NewInstrumentedProvider(provider, a.logger,
		llm.WithRetryPolicy(retry.PolicyWithRetries(cfg.LLM.MaxRetries)),
		llm.WithUsageRecorder(a.metrics),
	)

	opts := pipeline.OptionsFrom(cfg)
	opts.Observer = workflow.MultiObserver{
		metrics.NewWorkflowObserver(a.metrics),
		telemetry.NewTracingObserver(a.logger),
	}

	return pipeline.Build(pipeline.Deps{
		Stories: collector.NewClient(collector.Config{
			BaseURL:    cfg.Collector.BaseURL,
			Timeout:    cfg.Collector.Timeout,
			MaxRetries: cfg.Collector.MaxRetries,
		}, a.logger),
		Results: repository.NewResultRepository(a.pool.DB()),
		Seen:    cache.NewSeenSet(a.cache, cfg.Redis.SeenTTL, a.metrics, a.logger),
		Scripts: script.NewRunner(script.Config{
			Interpreter: cfg.Script.Interpreter,
			Dir:         cfg.Script.Dir,
			Timeout:     cfg.Script.Timeout,
		}, a.metrics, a.logger),
		LLM:    llmClient,
		Logger: a.logger,
	}, opts)
}

// Handler 组装路由与中间件链
func (a *App) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	health := handlers.NewHealthHandler(a.logger).WithVersion(Version)
	health.RegisterCheck(handlers.NewPingCheck("database", a.pool.Ping))
	if a.cache != nil {
		health.RegisterCheck(handlers.NewPingCheck("redis", a.cache.Ping))
	}
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealthz)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /readyz", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))

	handlers.NewTaskHandler(a.tasks, a.hub, a.logger).
		WithOriginPatterns(a.cfg.Server.CORSAllowedOrigins).
		Register(mux)
	mux.HandleFunc("GET /api/v1/workflow/graph", handlers.NewGraphHandler(a.graph).HandleGraph)

	skipAuth := []string{"/health", "/healthz", "/ready", "/readyz", "/version"}
	middlewares := []Middleware{
		Recovery(a.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		MetricsMiddleware(a.metrics),
		RequestLogger(a.logger),
		CORS(a.cfg.Server.CORSAllowedOrigins),
	}
	if a.cfg.Server.RateLimitRPS > 0 {
		middlewares = append(middlewares, RateLimiter(ctx, a.cfg.Server.RateLimitRPS, a.cfg.Server.RateLimitBurst, a.logger))
	}
	if len(a.cfg.Server.APIKeys) > 0 {
		middlewares = append(middlewares, APIKeyAuth(a.cfg.Server.APIKeys, skipAuth, a.logger))
	} else {
		a.logger.Warn("no API keys configured, authentication disabled")
	}
	return Chain(mux, middlewares...)
}

// Close 逆序释放资源
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
