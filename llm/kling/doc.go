// 版权所有 2024 MediaFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 kling 封装可灵（Kling）开放平台的异步生成接口。

# 核心类型

  - Provisioner：用 Access Key / Secret Key 签发 HS256 JWT，有效期内复用，
    可通过 TokenStore（文件或 Redis）在多个进程之间交接。
  - Client：提交图片生成与图生视频任务、查询任务状态，带限流与链路追踪。
  - Downloader：把结果 URL 保存到本地下载目录。

# 任务状态

查询结果映射为 pending / succeeded / failed 三种状态。submitted、processing
以及未知状态均视为 pending；succeed 但结果数组为空同样视为 pending。

# 错误语义

所有失败都以 types.Error 返回：网络与 HTTP 状态错误为 TRANSPORT，业务码非零
为 UPSTREAM_ERROR，响应体无法解析或缺少任务 ID 为 PARSE，密钥缺失为 CONFIGURATION。
*/
package kling
