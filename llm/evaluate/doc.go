// 版权所有 2024 MediaFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 evaluate 实现多候选图评选：用视觉模型按固定维度（提示词符合度、美学质量、
清晰度）为每张候选图打 0-100 分，并选出最佳候选。

评分响应先按 JSON 解析，失败再用正则提取 score 之后的第一个整数。无法得到
分数的候选不参与评选但不会让整批失败。评选从左到右扫描、只有严格更高的分数
才会替换当前最佳，所以同分时最先出现的候选胜出。
*/
package evaluate
