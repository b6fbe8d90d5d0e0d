// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

// Package scheduler 按 cron 表达式周期性触发任务执行（默认执行全部 PENDING 任务）。
//
// 表达式支持可选的秒字段（6 段）以及 @every、@hourly 等描述符；
// 上一次触发尚未结束时，新的触发会被跳过。
package scheduler
