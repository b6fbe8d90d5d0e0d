// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

/*
Package service 实现 post_task 的业务流程：创建、分页查询与执行。

执行一个任务时，TaskService 先取得按任务 ID 的运行锁（Redis 或进程内），
把任务标记为 RUNNING，然后以 {task_id, target_origin} 作为初始状态运行
post-agent 图。运行结束后根据最终状态更新任务状态，并把处理结果写入
task_results。

图执行期间产生的 workflow.StreamEvent 通过 EventHub 按任务 ID 扇出给订阅者，
HTTP 层据此提供 websocket 事件流。

所有对外错误均为 *types.Error：

  - NOT_FOUND            任务不存在
  - TASK_ALREADY_RUNNING 同一任务正在执行
  - WORKFLOW_FAILED      图运行中止，Cause 为引擎错误
  - INTERNAL_ERROR       存储失败
*/
package service
