// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

/*
包 repository 提供任务与任务结果的 GORM 持久化。

  - PostTask（post_tasks）：待执行的发帖任务，状态 PENDING → RUNNING →
    SUCCESS/FAILED。
  - PostTaskResult（task_results）：每个已处理的 HackerNews 帖子一行，
    data_id 唯一，既是执行结果也是"已处理"去重依据。

表结构由 internal/migration 管理；AutoMigrate 仅用于开发与测试。
*/
package repository
