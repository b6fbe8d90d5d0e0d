// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

/*
Package workflow 提供基于状态图的工作流编排与执行引擎。

# 概述

图由具名节点、START/END 哨兵、静态边与条件边组成。StateGraph 在构建期
按名称登记节点与边，Compile 做全局校验并把名称解析为整数下标，得到不可变、
可并发复用的 CompiledGraph。每次 Run 拥有独立的 State 与迭代计数。

# 核心类型

  - Value / Option：字符串、整数、记录、列表的标签联合，以及显式缺省
  - State / StateView：按键合并策略（Replace / Append）的状态容器
  - StateGraph：构建器，提供 AddNode / AddEdge / AddConditionalEdge
  - CompiledGraph：执行器，提供 Run / Execute / Mermaid
  - Outcome / Failure：节点结果与由节点自行决定的失败类别
  - Dispatcher：条件边的标签选择函数（OnOutcome / ByCategory）
  - Observer：运行与节点生命周期钩子（指标、链路追踪）

# 执行语义

  - 节点成功：输出原子合并进状态，再按边选择下一个节点
  - 节点失败：输出丢弃；有条件边则交给 Dispatcher，否则以 NodeExecutionError 终止
  - 标签不在路由表中：UnroutableStateError
  - 达到迭代上限：IterationLimitExceeded（默认 100）
  - 取消只在节点边界生效，引擎不会打断正在运行的节点
*/
package workflow
