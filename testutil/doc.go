/*
Package testutil 提供 MediaFlow 测试的共享工具和辅助函数。

# 概述

testutil 包为各包的单元测试提供统一的辅助能力，避免重复实现相似的
测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertErrorCode / AssertJSONEqual
  - 文件工具: WriteFiles / ListFiles，在临时目录中构造与检查文件树
  - 数据工具: MustJSON / MustParseJSON
  - 时钟: FakeClock，让等待循环在测试中立即推进虚拟时间

# 子包

  - testutil/mocks: MockGenerator（生成任务提交与脚本化状态）、
    MockScorer（候选评分）、MockAnalyzer（文件命名与分类），
    均支持 Builder 模式与错误注入
  - testutil/fixtures: 与线上格式一致的 Kling 响应体

# 使用示例

	clock := testutil.NewFakeClock(time.Now())
	gen := mocks.NewMockGenerator().AlwaysPending()
	waiter := poll.NewWaiter(poll.DefaultPolicy(), nil, poll.WithClock(clock))
*/
package testutil
