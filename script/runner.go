package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LogFileName 每个输出目录下的脚本日志
const LogFileName = "result.log"

// failureMarker 脚本输出中出现即视为失败
const failureMarker = "Error"

// ErrScriptNotFound 脚本文件不存在
var ErrScriptNotFound = errors.New("script not found")

// ExecutionError 脚本退出码非零或输出包含失败标记
type ExecutionError struct {
	Script   string
	ExitCode int
	Output   string
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("script %s failed (exit %d): %v: %s", e.Script, e.ExitCode, e.Err, e.Output)
	}
	return fmt.Sprintf("script %s failed: %s", e.Script, e.Output)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Request 单次执行请求
type Request struct {
	Script string
	// Input 非空时作为第一个位置参数
	Input string
	Args  []string
	// LogDir 非空时把输出追加到 LogDir/result.log
	LogDir string
}

// Recorder 记录脚本执行结果
type Recorder interface {
	RecordScriptRun(script, status string, duration time.Duration)
}

// Config 运行器配置
type Config struct {
	Interpreter string
	Dir         string
	// Timeout 单次执行超时，0 表示只受 ctx 约束
	Timeout time.Duration
}

// Runner 执行外部脚本，可并发使用
type Runner struct {
	cfg      Config
	recorder Recorder
	logger   *zap.Logger
}

// NewRunner 创建运行器
func NewRunner(cfg Config, recorder Recorder, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interpreter == "" {
		cfg.Interpreter = "python3"
	}
	return &Runner{
		cfg:      cfg,
		recorder: recorder,
		logger:   logger.With(zap.String("component", "script")),
	}
}

// Path 返回脚本的完整路径
func (r *Runner) Path(name string) string {
	return filepath.Join(r.cfg.Dir, name)
}

// Run 执行脚本并返回合并后的输出
func (r *Runner) Run(ctx context.Context, req Request) (string, error) {
	path := r.Path(req.Script)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrScriptNotFound, path)
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	args := make([]string, 0, len(req.Args)+2)
	args = append(args, path)
	if req.Input != "" {
		args = append(args, req.Input)
	}
	args = append(args, req.Args...)

	cmd := exec.CommandContext(ctx, r.cfg.Interpreter, args...)
	cmd.Dir = r.cfg.Dir
	// 子进程被杀后不再等待其残留的输出管道
	cmd.WaitDelay = time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	r.logger.Info("running script", zap.String("script", req.Script), zap.Strings("args", args[1:]))
	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)
	output := strings.TrimRight(out.String(), "\n")

	if req.LogDir != "" {
		if err := appendLog(req.LogDir, output); err != nil {
			r.logger.Warn("write script log failed", zap.String("dir", req.LogDir), zap.Error(err))
		}
	}

	var execErr *ExecutionError
	switch {
	case runErr != nil:
		exitCode := -1
		var ee *exec.ExitError
		if errors.As(runErr, &ee) {
			exitCode = ee.ExitCode()
		}
		if ctx.Err() != nil {
			runErr = fmt.Errorf("%w: %w", ctx.Err(), runErr)
		}
		execErr = &ExecutionError{Script: req.Script, ExitCode: exitCode, Output: output, Err: runErr}
	case strings.Contains(output, failureMarker):
		execErr = &ExecutionError{Script: req.Script, Output: output}
	}

	status := "success"
	if execErr != nil {
		status = "error"
	}
	if r.recorder != nil {
		r.recorder.RecordScriptRun(req.Script, status, duration)
	}
	if execErr != nil {
		r.logger.Warn("script failed", zap.String("script", req.Script), zap.Duration("duration", duration), zap.Error(execErr))
		return output, execErr
	}

	r.logger.Info("script completed", zap.String("script", req.Script), zap.Duration("duration", duration))
	return output, nil
}

func appendLog(dir, output string) error {
	f, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(output + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
