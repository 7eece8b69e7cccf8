// 版权所有 2024 MediaFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的键值存储，用于在多个进程之间共享生成服务令牌。

# 核心类型

  - Manager：持有 Redis 客户端，提供 Get/Set/Delete 与 Close。
  - Config：地址、密码、数据库编号、连接池大小与连接超时。

# 错误语义

  - ErrCacheMiss 哨兵错误与 IsCacheMiss 判断函数。
  - Set 要求正的 TTL，令牌过期后自动淘汰。
*/
package cache
