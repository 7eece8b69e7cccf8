package poll

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/llm/kling"
	"github.com/BaSui01/mediaflow/types"
	"go.uber.org/zap"
)

// Policy 定义等待策略
// 先睡眠再查询；间隔按 Multiplier 增长并被 MaxInterval 截断；
// 总时长不超过 Timeout，MaxAttempts > 0 时同时限制查询次数。
type Policy struct {
	Interval    time.Duration // 初始查询间隔
	Timeout     time.Duration // 最长等待时间
	Multiplier  float64       // 间隔倍增因子（1 表示固定间隔）
	MaxInterval time.Duration // 最大查询间隔
	MaxAttempts int           // 最大查询次数（0 表示只受 Timeout 限制）
}

// DefaultPolicy 返回默认策略: 每 10 秒一次，最多 300 秒
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.DefaultPollConfig())
}

// PolicyFromConfig 从配置构造策略
func PolicyFromConfig(cfg config.PollConfig) Policy {
	return Policy{
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		Multiplier:  cfg.Multiplier,
		MaxInterval: cfg.MaxInterval,
	}
}

// normalize 填充非法字段
func (p Policy) normalize() Policy {
	if p.Interval <= 0 {
		p.Interval = 10 * time.Second
	}
	if p.Timeout <= 0 {
		p.Timeout = 300 * time.Second
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 1.0
	}
	if p.MaxInterval < p.Interval {
		p.MaxInterval = p.Interval
	}
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
	return p
}

// Delay 返回第 attempt 次查询前的睡眠时长（attempt 从 0 开始）
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalize()
	if p.Multiplier == 1.0 {
		return p.Interval
	}
	d := float64(p.Interval) * math.Pow(p.Multiplier, float64(attempt))
	if d > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	return time.Duration(d)
}

// Clock 抽象时间，便于测试替换
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// PollFunc 执行一次状态查询
type PollFunc func(ctx context.Context) (*kling.TaskStatus, error)

// Querier 查询任务状态，由 kling.Client 实现
type Querier interface {
	Query(ctx context.Context, kind kling.TaskKind, taskID string) (*kling.TaskStatus, error)
}

// Result 等待成功的结果
type Result struct {
	URL      string
	Status   *kling.TaskStatus
	Attempts int
	Elapsed  time.Duration
}

// Waiter 按策略轮询直到成功、失败、超时或 ctx 取消
type Waiter struct {
	policy Policy
	clock  Clock
	logger *zap.Logger
}

// Option 配置 Waiter
type Option func(*Waiter)

// WithClock 替换时钟
func WithClock(c Clock) Option {
	return func(w *Waiter) { w.clock = c }
}

// NewWaiter 创建等待器
func NewWaiter(policy Policy, logger *zap.Logger, opts ...Option) *Waiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Waiter{
		policy: policy.normalize(),
		clock:  realClock{},
		logger: logger.With(zap.String("component", "wait_loop")),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Policy 返回生效的策略
func (w *Waiter) Policy() Policy { return w.policy }

// WaitTask 等待一个 Kling 任务
func (w *Waiter) WaitTask(ctx context.Context, q Querier, kind kling.TaskKind, taskID string) (*Result, error) {
	ctx = types.WithTaskID(ctx, taskID)
	return w.Wait(ctx, func(ctx context.Context) (*kling.TaskStatus, error) {
		return q.Query(ctx, kind, taskID)
	})
}

// Wait 先睡眠再查询，直到:
//   - succeeded: 返回结果（若已过截止时间则按超时处理）
//   - failed: 返回 TASK_FAILED
//   - 超出 Timeout 或 MaxAttempts: 返回 TIMEOUT
//   - 单次查询超过 deadline + Interval: 取消查询并返回 TIMEOUT
//   - ctx 取消: 返回 ctx.Err()
//
// 查询出错视为 pending，记录日志后继续.
func (w *Waiter) Wait(ctx context.Context, poll PollFunc) (*Result, error) {
	start := w.clock.Now()
	deadline := start.Add(w.policy.Timeout)
	taskID, _ := types.TaskID(ctx)
	logger := w.logger.With(zap.String("task_id", taskID))

	for attempt := 0; ; attempt++ {
		if w.policy.MaxAttempts > 0 && attempt >= w.policy.MaxAttempts {
			return nil, w.timeout(attempt, w.clock.Now().Sub(start))
		}

		remaining := deadline.Sub(w.clock.Now())
		if remaining <= 0 {
			return nil, w.timeout(attempt, w.clock.Now().Sub(start))
		}
		delay := w.policy.Delay(attempt)
		if delay > remaining {
			delay = remaining
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-w.clock.After(delay):
		}

		// 单次查询最多持续到 deadline + Interval
		pctx, cancel := context.WithTimeout(ctx, deadline.Add(w.policy.Interval).Sub(w.clock.Now()))
		status, err := poll(pctx)
		cancel()
		now := w.clock.Now()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(pctx.Err(), context.DeadlineExceeded) {
				return nil, w.timeout(attempt+1, now.Sub(start))
			}
			logger.Warn("status query failed, treating as pending",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		if status == nil {
			continue
		}

		logger.Debug("task polled",
			zap.Int("attempt", attempt+1),
			zap.String("state", string(status.State)),
			zap.Duration("elapsed", now.Sub(start)))

		switch status.State {
		case kling.TaskSucceeded:
			if now.After(deadline) {
				return nil, w.timeout(attempt+1, now.Sub(start))
			}
			return &Result{
				URL:      status.URL,
				Status:   status,
				Attempts: attempt + 1,
				Elapsed:  now.Sub(start),
			}, nil
		case kling.TaskFailed:
			msg := status.Message
			if msg == "" {
				msg = "no reason given"
			}
			return nil, types.Errorf(types.ErrTaskFailed, "task %s failed: %s", status.TaskID, msg)
		}
	}
}

func (w *Waiter) timeout(attempts int, elapsed time.Duration) error {
	return types.Errorf(types.ErrTimeout, "task not finished after %d polls in %s (budget %s)",
		attempts, elapsed, w.policy.Timeout)
}
