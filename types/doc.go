// Copyright (c) MediaFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 mediaflow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 llm、media、prompts、
workflow 等上层模块提供统一的错误体系与上下文键。

# 核心类型

  - Error / ErrorCode：结构化错误，含 HTTP 状态码、Retryable、Provider 标记
  - ErrConfiguration / ErrNoPrompts：终止整次运行的错误码
  - ErrTransport / ErrUpstreamError / ErrParse / ErrTimeout：单项失败，记录后跳过

# 主要能力

  - Context 传播：WithRunID / WithTaskID
  - 错误判定：GetErrorCode / IsCode / IsFatal（均基于 errors.As，支持包装链）
*/
package types
