// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

/*
包 migration 管理 post_tasks 与 task_results 两张表的 Schema 迁移，
支持 PostgreSQL、MySQL 与 SQLite，基于 golang-migrate 实现。

# 概述

各方言的 SQL 文件通过 embed.FS 内嵌在 migrations/<dialect>/ 下，
文件名形如 000001_init_schema.up.sql。SQLite 连接使用纯 Go 的
glebarez 驱动，与 internal/database 的 gorm 方言保持一致，无需 cgo。

# 核心类型

  - Migrator / DefaultMigrator：Up、Down、DownAll、Goto、Force、
    Version、Status、Info、Close。
  - Config：方言、连接串、版本表名、锁超时与 zap 日志。
  - CLI：`postflow migrate` 子命令的分发与表格输出。

# 工厂函数

NewMigratorFromConfig / NewMigratorFromDatabaseConfig 直接复用
config.DatabaseConfig；NewMigratorFromURL 用于显式连接串。
*/
package migration
