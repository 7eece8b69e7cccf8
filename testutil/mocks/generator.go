// MockGenerator 的生成服务测试模拟实现。
//
// 支持按任务脚本化查询状态、提交错误注入与调用记录。
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/BaSui01/mediaflow/llm/kling"
)

// MockGenerator 模拟 Kling 的提交与查询接口
type MockGenerator struct {
	mu sync.Mutex

	// 状态脚本: 任务 ID -> 依次返回的状态，最后一个会一直重复
	scripts map[string][]kling.TaskStatus
	// 未配置脚本的任务默认的状态序列
	defaultScript func(kind kling.TaskKind, taskID string) []kling.TaskStatus

	imageErrs []error // 按提交顺序注入的错误，nil 表示成功
	videoErr  error

	// 调用记录
	imageRequests []kling.ImageRequest
	videoRequests []kling.VideoRequest
	queries       map[string]int
	seq           int
}

// NewMockGenerator 创建 MockGenerator. 默认所有任务第一次查询即成功，
// URL 为 https://cdn.test/<task-id>.png（视频为 .mp4）.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		scripts: make(map[string][]kling.TaskStatus),
		queries: make(map[string]int),
		defaultScript: func(kind kling.TaskKind, taskID string) []kling.TaskStatus {
			return []kling.TaskStatus{Succeeded(kind, taskID, DefaultURL(kind, taskID))}
		},
	}
}

// DefaultURL 返回默认脚本使用的产物 URL
func DefaultURL(kind kling.TaskKind, taskID string) string {
	if kind == kling.TaskKindVideo {
		return "https://cdn.test/" + taskID + ".mp4"
	}
	return "https://cdn.test/" + taskID + ".png"
}

// Pending 构造 pending 状态
func Pending(kind kling.TaskKind, taskID string) kling.TaskStatus {
	return kling.TaskStatus{TaskID: taskID, Kind: kind, State: kling.TaskPending, RawStatus: "processing"}
}

// Succeeded 构造成功状态
func Succeeded(kind kling.TaskKind, taskID, url string) kling.TaskStatus {
	return kling.TaskStatus{TaskID: taskID, Kind: kind, State: kling.TaskSucceeded, URL: url, RawStatus: "succeed"}
}

// Failed 构造失败状态
func Failed(kind kling.TaskKind, taskID, msg string) kling.TaskStatus {
	return kling.TaskStatus{TaskID: taskID, Kind: kind, State: kling.TaskFailed, Message: msg, RawStatus: "failed"}
}

// --- Builder 方法 ---

// WithScript 为任务设置状态序列
func (m *MockGenerator) WithScript(taskID string, statuses ...kling.TaskStatus) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[taskID] = statuses
	return m
}

// WithDefaultScript 设置未配置脚本任务的状态序列
func (m *MockGenerator) WithDefaultScript(fn func(kind kling.TaskKind, taskID string) []kling.TaskStatus) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultScript = fn
	return m
}

// AlwaysPending 让所有未配置脚本的任务一直处于 pending
func (m *MockGenerator) AlwaysPending() *MockGenerator {
	return m.WithDefaultScript(func(kind kling.TaskKind, taskID string) []kling.TaskStatus {
		return []kling.TaskStatus{Pending(kind, taskID)}
	})
}

// WithImageErrors 按提交顺序注入图片提交错误
func (m *MockGenerator) WithImageErrors(errs ...error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imageErrs = errs
	return m
}

// WithVideoError 设置视频提交错误
func (m *MockGenerator) WithVideoError(err error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videoErr = err
	return m
}

// --- Generator 接口实现 ---

// SubmitImage 记录请求并返回 img-<n>
func (m *MockGenerator) SubmitImage(ctx context.Context, req kling.ImageRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.imageRequests)
	m.imageRequests = append(m.imageRequests, req)
	if idx < len(m.imageErrs) && m.imageErrs[idx] != nil {
		return "", m.imageErrs[idx]
	}
	m.seq++
	return fmt.Sprintf("img-%d", m.seq), nil
}

// SubmitVideo 记录请求并返回 vid-<n>
func (m *MockGenerator) SubmitVideo(ctx context.Context, req kling.VideoRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.videoRequests = append(m.videoRequests, req)
	if m.videoErr != nil {
		return "", m.videoErr
	}
	m.seq++
	return fmt.Sprintf("vid-%d", m.seq), nil
}

// Query 按脚本返回下一个状态
func (m *MockGenerator) Query(ctx context.Context, kind kling.TaskKind, taskID string) (*kling.TaskStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	script, ok := m.scripts[taskID]
	if !ok {
		script = m.defaultScript(kind, taskID)
	}
	if len(script) == 0 {
		return nil, fmt.Errorf("mock generator: no script for task %s", taskID)
	}
	n := m.queries[taskID]
	m.queries[taskID] = n + 1
	if n >= len(script) {
		n = len(script) - 1
	}
	status := script[n]
	return &status, nil
}

// --- 调用记录 ---

// ImageRequests 返回所有图片提交请求
func (m *MockGenerator) ImageRequests() []kling.ImageRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kling.ImageRequest(nil), m.imageRequests...)
}

// VideoRequests 返回所有视频提交请求
func (m *MockGenerator) VideoRequests() []kling.VideoRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kling.VideoRequest(nil), m.videoRequests...)
}

// QueryCount 返回某任务被查询的次数
func (m *MockGenerator) QueryCount(taskID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries[taskID]
}
