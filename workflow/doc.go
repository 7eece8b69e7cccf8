/*
包 workflow 编排一次完整的生成流程.

# 概述

Orchestrator.Run 按固定顺序推进:

	凭证 → 收集提示词 → 每个提示词 N 个图片任务（有界并发，逐个等待）
	     → [评选最佳] → [图生视频并等待] → [下载产物] → [分类整理]

可选阶段由 Options 决定，交互式输入不属于本包，由 CLI 收集后填入 Options.

# 失败策略

只有凭证不可用与没有任何提示词会终止整个运行（CONFIGURATION / NO_PROMPTS）.
单个任务的提交失败、超时、失败状态，以及评选、下载、分类的失败都只影响
所属的提示词或文件: 记录到 Report 后继续处理下一项. ctx 取消会立即结束运行，
已得到的结果仍在 Report 中.

# 报告

Report 记录运行 ID、每个提示词的结果以及所有已提交任务. 任务进入终态
（succeeded / failed / timed_out）后不会再改变.
*/
package workflow
