package testutil

import (
	"sync"
	"time"
)

// FakeClock 是确定性的时钟. After 立即推进时间并触发，
// 因此等待循环在测试中不会真正睡眠.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewFakeClock 创建从 start 开始的时钟
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now 返回当前假时间
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After 推进 d 并返回已就绪的通道
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	c.sleeps = append(c.sleeps, d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Advance 手动推进时间
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps 返回所有 After 调用的时长
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// Elapsed 返回自 start 以来推进的总时长
func (c *FakeClock) Elapsed(start time.Time) time.Duration {
	return c.Now().Sub(start)
}
