// =============================================================================
// 📦 PostFlow 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		LLM:       DefaultLLMConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Workflow:  DefaultWorkflowConfig(),
		Collector: DefaultCollectorConfig(),
		Script:    DefaultScriptConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    10 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		SeenTTL:      7 * 24 * time.Hour,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "postflow",
		Name:            "postflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置（DashScope OpenAI 兼容模式）
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:       "qwen",
		BaseURL:        "https://dashscope.aliyuncs.com/compatible-mode",
		Model:          "qwen3-max",
		Temperature:    0.6,
		MaxTokens:      30000,
		MaxInputTokens: 24000,
		Timeout:        3 * time.Minute,
		MaxRetries:     3,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "postflow",
		SampleRate:   0.1,
	}
}

// DefaultWorkflowConfig 返回默认工作流配置
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		MaxIterations:  100,
		OutputDir:      "out",
		ExecuteTimeout: 30 * time.Minute,
	}
}

// DefaultCollectorConfig 返回默认采集配置
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		BaseURL:    "https://hacker-news.firebaseio.com/v0",
		Timeout:    15 * time.Second,
		MaxRetries: 3,
		ScanLimit:  100,
	}
}

// DefaultScriptConfig 返回默认脚本配置
func DefaultScriptConfig() ScriptConfig {
	return ScriptConfig{
		Interpreter:     "python3",
		Dir:             "scripts",
		DownloadScript:  "downloadToMarkdown.py",
		TransformScript: "textTransformToPng.py",
		Timeout:         10 * time.Minute,
	}
}
