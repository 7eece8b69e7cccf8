// 版权所有 2024 MediaFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 chat 提供 OpenAI 兼容的多模态对话客户端。

消息内容由文本与图片片段组成，图片可以是 URL 或由 ImageDataURI 生成的
data URI。网络与 HTTP 状态错误返回 TRANSPORT，响应体无法解析或没有候选
返回 PARSE，响应中携带的业务错误返回 UPSTREAM_ERROR。
*/
package chat
