package mocks

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
)

// MockAnalyzer 实现 classify.Analyzer. 图片按文件名、文本按内容查表，
// 未命中时返回空串（由调用方回退）.
type MockAnalyzer struct {
	mu         sync.Mutex
	names      map[string]string
	categories map[string]string
	err        error
	calls      int
}

// NewMockAnalyzer 创建 MockAnalyzer
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{
		names:      make(map[string]string),
		categories: make(map[string]string),
	}
}

// WithResult 为文件名（图片）或文本内容（文本）设置名称与分类
func (m *MockAnalyzer) WithResult(key, name, category string) *MockAnalyzer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[key] = name
	m.categories[key] = category
	return m
}

// WithError 让所有调用失败
func (m *MockAnalyzer) WithError(err error) *MockAnalyzer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

func (m *MockAnalyzer) lookup(table map[string]string, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return table[key], nil
}

// DescribeImage 实现 classify.Analyzer
func (m *MockAnalyzer) DescribeImage(_ context.Context, path string) (string, error) {
	return m.lookup(m.names, filepath.Base(path))
}

// CategorizeImage 实现 classify.Analyzer
func (m *MockAnalyzer) CategorizeImage(_ context.Context, path string) (string, error) {
	return m.lookup(m.categories, filepath.Base(path))
}

// DescribeText 实现 classify.Analyzer
func (m *MockAnalyzer) DescribeText(_ context.Context, content string) (string, error) {
	return m.lookup(m.names, strings.TrimSpace(content))
}

// CategorizeText 实现 classify.Analyzer
func (m *MockAnalyzer) CategorizeText(_ context.Context, content string) (string, error) {
	return m.lookup(m.categories, strings.TrimSpace(content))
}

// Calls 返回调用次数
func (m *MockAnalyzer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
