// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

/*
包 cache 提供基于 Redis 的缓存能力，未配置 Redis 时退回进程内实现。

# 核心类型

  - Manager：Redis 客户端封装，所有键带 "postflow:" 前缀，
    提供 Get/Set/SetNX/DeleteIfValue/Exists 与后台健康检查。
  - SeenSet：采集条目去重集合（RedisSeenSet / MemorySeenSet），
    命中与未命中通过 HitRecorder 上报。
  - Locker：任务运行锁（RedisLocker 使用 SET NX PX 加比较删除脚本，
    LocalLocker 为进程内实现）。
*/
package cache
