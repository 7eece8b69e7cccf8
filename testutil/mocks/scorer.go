package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/BaSui01/mediaflow/llm/evaluate"
)

// MockScorer 按 URL 返回预设分数
type MockScorer struct {
	mu     sync.Mutex
	scores map[string]int
	errs   map[string]error
	calls  []string
}

// NewMockScorer 创建 MockScorer
func NewMockScorer() *MockScorer {
	return &MockScorer{
		scores: make(map[string]int),
		errs:   make(map[string]error),
	}
}

// WithScore 设置 URL 的分数
func (m *MockScorer) WithScore(url string, score int) *MockScorer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[url] = score
	return m
}

// WithError 设置 URL 的评分错误
func (m *MockScorer) WithError(url string, err error) *MockScorer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[url] = err
	return m
}

// Score 实现 evaluate.Scorer. 未配置的 URL 返回错误.
func (m *MockScorer) Score(ctx context.Context, prompt, url string) (*evaluate.Judgement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, url)
	if err, ok := m.errs[url]; ok {
		return nil, err
	}
	score, ok := m.scores[url]
	if !ok {
		return nil, fmt.Errorf("mock scorer: no score for %s", url)
	}
	return &evaluate.Judgement{Score: score, Reason: "mock"}, nil
}

// Calls 返回评分过的 URL
func (m *MockScorer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
