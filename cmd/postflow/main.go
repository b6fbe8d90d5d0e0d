// =============================================================================
// PostFlow 主入口
// =============================================================================
// 服务入口点，包含 HTTP API、定时调度、健康检查、Prometheus 指标
//
// 使用方法:
//
//	postflow serve                       # 启动服务
//	postflow serve --config config.yaml  # 指定配置文件
//	postflow run --task 1                # 同步执行一个任务后退出
//	postflow graph                       # 输出 post-agent 的 Mermaid 流程图
//	postflow version                     # 显示版本信息
//	postflow health                      # 健康检查
//	postflow migrate up                  # 运行数据库迁移
//	postflow migrate status              # 查看迁移状态
// =============================================================================

// @title PostFlow API
// @version 1.0.0
// @description PostFlow runs the post-agent workflow: collect a Hacker News story,
// @description download it as markdown, summarize it with an LLM and render it with a script.
// @description
// @description ## Features
// @description - Task management and synchronous execution
// @description - Run events over websocket
// @description - Workflow graph export (Mermaid)
// @description - Health monitoring and metrics

// @contact.name PostFlow Team
// @contact.url https://github.com/BaSui01/postflow

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/postflow/config"
	"github.com/BaSui01/postflow/internal/metrics"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// metricsNamespace Prometheus 指标命名空间
const metricsNamespace = "postflow"

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "run":
		err = runTask(os.Args[2:])
	case "graph":
		err = runGraph(os.Args[2:])
	case "migrate":
		err = runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		err = runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig 加载并校验配置，path 为空时只使用默认值与环境变量
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// 🚀 run 命令
// =============================================================================

func runTask(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	taskID := fs.Int64("task", 0, "ID of the task to execute")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *taskID <= 0 {
		return fmt.Errorf("--task must be a positive task id")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	app, err := NewApp(cfg, metrics.NewCollector(metricsNamespace, logger), logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := app.tasks.ExecuteTask(ctx, *taskID)
	if result != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	}
	return runErr
}

// =============================================================================
// 🗺️ graph 命令
// =============================================================================

func runGraph(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	// 只需要图结构，不连接业务库与 Redis
	cfg.Database = config.DatabaseConfig{Driver: "sqlite", Name: "file::memory:"}
	cfg.Redis.Enabled = false
	cfg.Telemetry.Enabled = false

	app, err := NewApp(cfg, metrics.NewCollector(metricsNamespace, zap.NewNop()), zap.NewNop())
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Print(app.graph.Mermaid())
	return nil
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}

	fmt.Println("OK")
	return nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("PostFlow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`PostFlow - Hacker News to Xiaohongshu post workflow

Usage:
  postflow <command> [options]

Commands:
  serve     Start the PostFlow server
  run       Execute one task and exit
  graph     Print the post-agent workflow as Mermaid
  migrate   Database migration commands
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve', 'run' and 'graph':
  --config <path>   Path to configuration file (YAML)

Options for 'run':
  --task <id>       Task to execute

Migration subcommands:
  migrate up        Apply all pending migrations
  migrate down      Rollback the last migration
  migrate status    Show migration status
  migrate version   Show current migration version
  migrate info      Show migration details
  migrate goto <v>  Migrate to a specific version
  migrate force <v> Force set migration version
  migrate reset     Rollback all migrations

Examples:
  postflow serve
  postflow serve --config /etc/postflow/config.yaml
  postflow run --task 3
  postflow graph > post-agent.mmd
  postflow migrate up
  postflow health --addr http://localhost:8080
  postflow version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}
