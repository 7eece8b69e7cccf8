/*
包 metrics 提供基于 Prometheus 的生成流程指标采集能力.

# 概述

Collector 通过 promauto.With 注册到调用方给出的 Registerer（为 nil 时使用默认
注册表），所有指标按 namespace 隔离. nil 的 *Collector 可以安全调用，
未启用指标时调用方无需判断.

# 主要能力

  - 上游 HTTP 指标：请求总数、耗时，按 provider/method/route/status 分组，
    状态码归类为 2xx/3xx/4xx/5xx，429 单独列出，无响应记为 error.
  - 生成任务指标：提交次数（accepted/rejected）、终态次数与等待耗时，
    按 kind/state 分组.
  - 评估指标：候选评分分布与无法评分的候选数.
  - 分类指标：按 kind/category 统计归类的文件.
  - 主流程指标：收集的提示词数、运行次数与运行耗时.
*/
package metrics
