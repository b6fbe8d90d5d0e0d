// Package telemetry 封装 OpenTelemetry SDK 初始化，并提供把工作流运行映射为
// trace span 的 TracingObserver。遥测禁用时使用 noop 实现，不连接任何外部服务。
package telemetry
