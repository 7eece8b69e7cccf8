package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/mediaflow/llm/kling"
	"github.com/BaSui01/mediaflow/testutil"
	"github.com/BaSui01/mediaflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var start = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func pending() *kling.TaskStatus { return &kling.TaskStatus{TaskID: "t", State: kling.TaskPending} }

func succeeded(url string) *kling.TaskStatus {
	return &kling.TaskStatus{TaskID: "t", State: kling.TaskSucceeded, URL: url}
}

// scripted 依次返回给定响应，用完后保持最后一个
func scripted(responses ...*kling.TaskStatus) (PollFunc, *int) {
	calls := 0
	return func(context.Context) (*kling.TaskStatus, error) {
		i := calls
		calls++
		if i >= len(responses) {
			i = len(responses) - 1
		}
		return responses[i], nil
	}, &calls
}

func TestWaiter_PendingTwiceThenSucceed(t *testing.T) {
	clock := testutil.NewFakeClock(start)
	w := NewWaiter(DefaultPolicy(), nil, WithClock(clock))
	poll, calls := scripted(pending(), pending(), succeeded("https://cdn/fox.png"))

	res, err := w.Wait(context.Background(), poll)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/fox.png", res.URL)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, *calls)
	assert.LessOrEqual(t, res.Elapsed, 3*10*time.Second)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second, 10 * time.Second}, clock.Sleeps())
}

func TestWaiter_AlwaysPendingTimesOut(t *testing.T) {
	clock := testutil.NewFakeClock(start)
	w := NewWaiter(DefaultPolicy(), nil, WithClock(clock))
	poll, calls := scripted(pending())

	res, err := w.Wait(context.Background(), poll)
	require.Error(t, err)
	assert.Nil(t, res)
	testutil.AssertErrorCode(t, err, types.ErrTimeout)
	assert.Equal(t, 300*time.Second, clock.Elapsed(start))
	assert.Equal(t, 30, *calls)
}

func TestWaiter_LastSleepClampedToBudget(t *testing.T) {
	clock := testutil.NewFakeClock(start)
	w := NewWaiter(Policy{Interval: 7 * time.Second, Timeout: 20 * time.Second}, nil, WithClock(clock))
	poll, _ := scripted(pending())

	_, err := w.Wait(context.Background(), poll)
	testutil.AssertErrorCode(t, err, types.ErrTimeout)
	assert.Equal(t, []time.Duration{7 * time.Second, 7 * time.Second, 6 * time.Second}, clock.Sleeps())
	assert.Equal(t, 20*time.Second, clock.Elapsed(start))
}

func TestWaiter_FailedIsTerminal(t *testing.T) {
	clock := testutil.NewFakeClock(start)
	w := NewWaiter(DefaultPolicy(), nil, WithClock(clock))
	poll, calls := scripted(pending(), &kling.TaskStatus{TaskID: "t", State: kling.TaskFailed, Message: "content risk"})

	_, err := w.Wait(context.Background(), poll)
	testutil.AssertErrorCode(t, err, types.ErrTaskFailed)
	assert.Contains(t, err.Error(), "content risk")
	assert.Equal(t, 2, *calls)
}

func TestWaiter_PollErrorsArePending(t *testing.T) {
	clock := testutil.NewFakeClock(start)
	w := NewWaiter(DefaultPolicy(), nil, WithClock(clock))

	calls := 0
	poll := func(context.Context) (*kling.TaskStatus, error) {
		calls++
		if calls < 3 {
			return nil, types.NewError(types.ErrTransport, "connection reset")
		}
		return succeeded("https://cdn/ok.png"), nil
	}

	res, err := w.Wait(context.Background(), poll)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/ok.png", res.URL)
	assert.Equal(t, 3, calls)
}

func TestWaiter_SuccessAfterDeadlineIsTimeout(t *testing.T) {
	clock := testutil.NewFakeClock(start)
	w := NewWaiter(Policy{Interval: 10 * time.Second, Timeout: 10 * time.Second}, nil, WithClock(clock))

	poll := func(context.Context) (*kling.TaskStatus, error) {
		clock.Advance(2 * time.Second) // 慢查询
		return succeeded("https://cdn/late.png"), nil
	}

	_, err := w.Wait(context.Background(), poll)
	testutil.AssertErrorCode(t, err, types.ErrTimeout)
}

func TestWaiter_MaxAttempts(t *testing.T) {
	clock := testutil.NewFakeClock(start)
	w := NewWaiter(Policy{Interval: time.Second, Timeout: time.Hour, MaxAttempts: 4}, nil, WithClock(clock))
	poll, calls := scripted(pending())

	_, err := w.Wait(context.Background(), poll)
	testutil.AssertErrorCode(t, err, types.ErrTimeout)
	assert.Equal(t, 4, *calls)
}

func TestWaiter_Cancelled(t *testing.T) {
	w := NewWaiter(Policy{Interval: time.Hour, Timeout: 2 * time.Hour}, nil)
	poll, calls := scripted(pending())

	_, err := w.Wait(testutil.CancelledContext(), poll)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, *calls)
}

func TestWaiter_WaitTask(t *testing.T) {
	clock := testutil.NewFakeClock(start)
	w := NewWaiter(DefaultPolicy(), nil, WithClock(clock))
	q := &fakeQuerier{statuses: []*kling.TaskStatus{pending(), succeeded("https://cdn/v.mp4")}}

	res, err := w.WaitTask(context.Background(), q, kling.TaskKindVideo, "vid-9")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/v.mp4", res.URL)
	assert.Equal(t, []string{"video/vid-9", "video/vid-9"}, q.seen)
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{Interval: time.Second, Timeout: time.Minute, Multiplier: 2, MaxInterval: 5 * time.Second}
	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 5*time.Second, p.Delay(3))

	fixed := DefaultPolicy()
	assert.Equal(t, 10*time.Second, fixed.Delay(0))
	assert.Equal(t, 10*time.Second, fixed.Delay(50))
}

// 任意响应序列下: 最多在 timeout + interval 内结束；成功只发生在截止时间之前.
func TestWaiter_TerminationProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		interval := time.Duration(rapid.IntRange(1, 30).Draw(rt, "interval")) * time.Second
		timeout := time.Duration(rapid.IntRange(1, 600).Draw(rt, "timeout")) * time.Second
		states := rapid.SliceOfN(rapid.IntRange(0, 3), 1, 80).Draw(rt, "states")
		latencies := rapid.SliceOfN(rapid.IntRange(0, 3*int(interval/time.Millisecond)), 1, 80).Draw(rt, "latencies")

		clock := testutil.NewFakeClock(start)
		w := NewWaiter(Policy{Interval: interval, Timeout: timeout}, nil, WithClock(clock))

		i := 0
		poll := func(ctx context.Context) (*kling.TaskStatus, error) {
			latency := time.Duration(latencies[i%len(latencies)]) * time.Millisecond
			if done, err := slowQuery(ctx, clock, latency); done {
				i++
				return nil, err
			}
			s := states[i%len(states)]
			i++
			switch s {
			case 0:
				return succeeded("https://cdn/x.png"), nil
			case 1:
				return &kling.TaskStatus{TaskID: "t", State: kling.TaskFailed}, nil
			case 2:
				return nil, errors.New("boom")
			default:
				return pending(), nil
			}
		}

		res, err := w.Wait(context.Background(), poll)
		elapsed := clock.Elapsed(start)
		if elapsed > timeout+interval {
			rt.Fatalf("elapsed %s exceeds timeout %s + interval %s", elapsed, timeout, interval)
		}
		if err == nil {
			if res.Elapsed > timeout {
				rt.Fatalf("success reported %s after start, past budget %s", res.Elapsed, timeout)
			}
			return
		}
		code := types.GetErrorCode(err)
		if code != types.ErrTimeout && code != types.ErrTaskFailed {
			rt.Fatalf("unexpected error %v", err)
		}
	})
}

// slowQuery 在假时钟上模拟耗时 latency 的查询；超出 ctx 截止时间时只推进到截止时间并返回超时
func slowQuery(ctx context.Context, clock *testutil.FakeClock, latency time.Duration) (bool, error) {
	dl, ok := ctx.Deadline()
	if !ok {
		return true, errors.New("status query has no deadline")
	}
	if budget := time.Until(dl); latency > budget {
		if budget > 0 {
			clock.Advance(budget)
		}
		return true, context.DeadlineExceeded
	}
	clock.Advance(latency)
	return false, nil
}

func TestWaiter_SlowQueriesBoundedByDeadline(t *testing.T) {
	clock := testutil.NewFakeClock(start)
	w := NewWaiter(DefaultPolicy(), nil, WithClock(clock))

	calls := 0
	poll := func(ctx context.Context) (*kling.TaskStatus, error) {
		calls++
		if done, err := slowQuery(ctx, clock, 45*time.Second); done {
			return nil, err
		}
		return pending(), nil
	}

	_, err := w.Wait(context.Background(), poll)
	testutil.AssertErrorCode(t, err, types.ErrTimeout)
	assert.LessOrEqual(t, clock.Elapsed(start), 300*time.Second+10*time.Second)
	assert.Equal(t, 6, calls)
}

func TestWaiter_HungQueryTimesOut(t *testing.T) {
	w := NewWaiter(Policy{Interval: 10 * time.Millisecond, Timeout: 30 * time.Millisecond}, nil)

	begin := time.Now()
	_, err := w.Wait(context.Background(), func(ctx context.Context) (*kling.TaskStatus, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	testutil.AssertErrorCode(t, err, types.ErrTimeout)
	assert.Less(t, time.Since(begin), 2*time.Second)
}

func TestWaiter_PolicyNormalized(t *testing.T) {
	w := NewWaiter(Policy{Multiplier: 0.5, MaxAttempts: -1}, nil)
	p := w.Policy()
	assert.Equal(t, 10*time.Second, p.Interval)
	assert.Equal(t, 300*time.Second, p.Timeout)
	assert.Equal(t, 1.0, p.Multiplier)
	assert.Equal(t, p.Interval, p.MaxInterval)
	assert.Zero(t, p.MaxAttempts)
}

type fakeQuerier struct {
	statuses []*kling.TaskStatus
	seen     []string
}

func (f *fakeQuerier) Query(_ context.Context, kind kling.TaskKind, taskID string) (*kling.TaskStatus, error) {
	f.seen = append(f.seen, string(kind)+"/"+taskID)
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}
