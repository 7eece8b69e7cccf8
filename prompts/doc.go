// Package prompts 收集一次生成任务所需的提示词.
//
// 支持四种来源: 手工列表、文本文件（每行一条）、由对话模型围绕关键词生成、
// 以及由视觉模型描述参考图片得到. 模型生成的提示词会按日期与关键词追加到
// 提示词日志文件中.
package prompts
