// Package config 提供 PostFlow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（POSTFLOW_ 前缀）的顺序叠加，
// 涵盖 HTTP 服务、数据库、Redis、LLM、日志、遥测、工作流引擎、
// 数据采集与外部脚本等分区。
package config
