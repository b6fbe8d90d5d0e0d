package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/BaSui01/postflow/config"
	"github.com/BaSui01/postflow/internal/metrics"
	"github.com/BaSui01/postflow/internal/scheduler"
	"github.com/BaSui01/postflow/internal/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting PostFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	app, err := NewApp(cfg, metrics.NewCollector(metricsNamespace, logger), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("error releasing resources", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := startScheduler(ctx, cfg.Workflow, app, logger); err != nil {
		return err
	}

	managers := []*server.Manager{
		server.NewManager("http", app.Handler(ctx), serverConfig(cfg.Server, cfg.Server.HTTPPort), logger),
	}
	if cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		managers = append(managers,
			server.NewManager("metrics", mux, serverConfig(cfg.Server, cfg.Server.MetricsPort), logger))
	}

	err = server.RunAll(ctx, managers...)
	logger.Info("PostFlow stopped")
	return err
}

func serverConfig(cfg config.ServerConfig, port int) server.Config {
	sc := server.DefaultConfig()
	sc.Addr = fmt.Sprintf(":%d", port)
	if cfg.ReadTimeout > 0 {
		sc.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		sc.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.ShutdownTimeout > 0 {
		sc.ShutdownTimeout = cfg.ShutdownTimeout
	}
	return sc
}

// startScheduler 配置了 schedule 时按 cron 执行全部待处理任务
func startScheduler(ctx context.Context, cfg config.WorkflowConfig, app *App, logger *zap.Logger) error {
	if cfg.Schedule == "" {
		return nil
	}
	trigger, err := scheduler.NewTrigger(cfg.Schedule,
		scheduler.RunFunc(app.tasks.ExecutePending), logger,
		scheduler.WithRunTimeout(cfg.ExecuteTimeout))
	if err != nil {
		return fmt.Errorf("invalid workflow.schedule: %w", err)
	}
	trigger.Start(ctx)
	logger.Info("scheduler started", zap.String("schedule", cfg.Schedule), zap.Time("next_run", trigger.NextRun()))
	return nil
}
