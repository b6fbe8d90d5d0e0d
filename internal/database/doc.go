// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

/*
包 database 提供基于 GORM 的数据库接入：按驱动打开连接、zap 日志适配、
连接池管理、健康检查与事务重试。

# 核心类型

  - Open / Dialector：按 config.DatabaseConfig.Driver 选择 postgres、mysql
    或 sqlite（glebarez 纯 Go 实现）方言。
  - GormLogger：GORM 日志转 zap，慢查询 Warn，错误 Error。
  - PoolManager：连接池管理器，提供 DB()、Ping()、Stats()、Close()，
    后台健康检查并通过 StatsRecorder 上报连接数。
  - PoolConfig：连接池配置，PoolConfigFrom 由数据库配置生成，sqlite 固定单连接。

# 事务

WithTransaction 执行单次事务；WithTransactionRetry 对死锁、序列化失败、
sqlite 写锁竞争等错误做指数退避重试。
*/
package database
