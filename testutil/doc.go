// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 upgradeforge 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试与基准测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。所有测试应优先使用此包
中的工具函数和 Mock 实现。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertJSONEqual / AssertNoError / AssertError /
    AssertContains 等
  - 异步断言: AssertEventuallyTrue / AssertEventuallyEqual，
    支持超时轮询等待条件满足
  - 数据工具: MustJSON / MustParseJSON，
    简化测试数据构造
  - 流式辅助: CollectStreamChunks / CollectStreamContent /
    SendChunksToChannel，用于 llmprovider 流式响应测试

# 子包

  - testutil/mocks: Mock 实现，目前提供 MockProvider（实现
    llmprovider.Provider），支持 Builder 模式与错误/延迟/限流注入，
    供 contract、agents、orchestrator 包的测试复用

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithResponse("hello")
	res, err := provider.Generate(ctx, llmprovider.GenerateRequest{Prompt: "hi"})
	testutil.AssertNoError(t, err)
*/
package testutil
