// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

/*
包 script 以子进程方式执行外部脚本（默认 python3），用于把网页下载为
Markdown 以及把文案渲染为图片。

命令行形如 `<interpreter> <dir>/<script> [input] args...`，工作目录为脚本目录，
stderr 合并进 stdout。输出会追加到 <LogDir>/result.log；输出中包含字面量
"Error" 时视为执行失败并返回 *ExecutionError。
*/
package script
