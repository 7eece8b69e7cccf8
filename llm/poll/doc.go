// 版权所有 2024 MediaFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 poll 实现异步生成任务的等待循环。

Waiter 按 Policy 先睡眠再查询：间隔固定（或按倍数增长），总时长受 Timeout
限制，最后一次睡眠会被截断到剩余预算，因此一次等待最多在 Timeout 加一个查询
耗时之后结束。查询出错视为 pending；failed 立即结束并返回 TASK_FAILED；
截止时间之后才观察到的成功也按 TIMEOUT 处理。Clock 可替换，测试中使用
testutil.FakeClock 即可在不睡眠的情况下验证时序。
*/
package poll
