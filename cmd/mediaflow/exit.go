package main

import (
	"context"
	"errors"

	"github.com/BaSui01/mediaflow/types"
)

// 进程退出码
const (
	ExitSuccess       = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitNoPrompts     = 3
	ExitUpstream      = 4
	ExitTimeout       = 5
	ExitTaskFailed    = 6
	ExitInvalidInput  = 7
	ExitInterrupted   = 130
)

// exitCode 把错误映射为退出码
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	switch types.GetErrorCode(err) {
	case types.ErrConfiguration:
		return ExitConfiguration
	case types.ErrNoPrompts:
		return ExitNoPrompts
	case types.ErrTransport, types.ErrUpstreamError, types.ErrParse:
		return ExitUpstream
	case types.ErrTimeout:
		return ExitTimeout
	case types.ErrTaskFailed:
		return ExitTaskFailed
	case types.ErrInvalidInput:
		return ExitInvalidInput
	default:
		return ExitFailure
	}
}
