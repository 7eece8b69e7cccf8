// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器. nil 的 *Collector 上调用任何 Record 方法都是空操作.
type Collector struct {
	// 上游 HTTP 指标
	upstreamRequestsTotal   *prometheus.CounterVec
	upstreamRequestDuration *prometheus.HistogramVec

	// 生成任务指标
	tasksSubmittedTotal *prometheus.CounterVec
	tasksTerminalTotal  *prometheus.CounterVec
	taskWaitDuration    *prometheus.HistogramVec

	// 评估指标
	candidateScores    prometheus.Histogram
	candidatesUnscored prometheus.Counter

	// 分类指标
	filesClassifiedTotal *prometheus.CounterVec

	// 主流程指标
	promptsCollectedTotal *prometheus.CounterVec
	runsTotal             *prometheus.CounterVec
	runDuration           prometheus.Histogram

	logger *zap.Logger
}

// NewCollector 创建指标收集器并注册到 reg. reg 为 nil 时使用默认注册表.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 上游 HTTP 指标
	c.upstreamRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of upstream HTTP requests",
		},
		[]string{"provider", "method", "route", "status"},
	)

	c.upstreamRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "route"},
	)

	// 生成任务指标
	c.tasksSubmittedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Total number of generation task submissions",
		},
		[]string{"kind", "status"}, // status: accepted, rejected
	)

	c.tasksTerminalTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_terminal_total",
			Help:      "Total number of generation tasks that reached a terminal state",
		},
		[]string{"kind", "state"},
	)

	c.taskWaitDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_wait_duration_seconds",
			Help:      "Time from submission to terminal state in seconds",
			Buckets:   []float64{10, 20, 30, 60, 90, 120, 180, 240, 300, 600},
		},
		[]string{"kind", "state"},
	)

	// 评估指标
	c.candidateScores = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidate_score",
			Help:      "Quality scores assigned to candidate images",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		},
	)

	c.candidatesUnscored = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_unscored_total",
			Help:      "Total number of candidates whose score could not be determined",
		},
	)

	// 分类指标
	c.filesClassifiedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_classified_total",
			Help:      "Total number of files moved into a category folder",
		},
		[]string{"kind", "category"},
	)

	// 主流程指标
	c.promptsCollectedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompts_collected_total",
			Help:      "Total number of prompts collected",
		},
		[]string{"source"},
	)

	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Total number of workflow runs",
		},
		[]string{"status"}, // status: completed, failed
	)

	c.runDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_run_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 上游 HTTP 指标记录
// =============================================================================

// RecordUpstreamRequest 记录一次上游 HTTP 往返. status 为 0 表示没有响应.
func (c *Collector) RecordUpstreamRequest(provider, method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.upstreamRequestsTotal.WithLabelValues(provider, method, route, statusCode(status)).Inc()
	c.upstreamRequestDuration.WithLabelValues(provider, route).Observe(duration.Seconds())
}

// =============================================================================
// 🎬 生成任务指标记录
// =============================================================================

// RecordTaskSubmitted 记录一次任务提交
func (c *Collector) RecordTaskSubmitted(kind string, accepted bool) {
	if c == nil {
		return
	}
	status := "accepted"
	if !accepted {
		status = "rejected"
	}
	c.tasksSubmittedTotal.WithLabelValues(kind, status).Inc()
}

// RecordTaskTerminal 记录任务到达终态及等待耗时
func (c *Collector) RecordTaskTerminal(kind, state string, waited time.Duration) {
	if c == nil {
		return
	}
	c.tasksTerminalTotal.WithLabelValues(kind, state).Inc()
	c.taskWaitDuration.WithLabelValues(kind, state).Observe(waited.Seconds())
}

// =============================================================================
// ⚖️ 评估指标记录
// =============================================================================

// RecordCandidateScore 记录候选评分，scored 为 false 时只计数
func (c *Collector) RecordCandidateScore(score int, scored bool) {
	if c == nil {
		return
	}
	if !scored {
		c.candidatesUnscored.Inc()
		return
	}
	c.candidateScores.Observe(float64(score))
}

// =============================================================================
// 🗂️ 分类指标记录
// =============================================================================

// RecordFileClassified 记录一个文件被归类
func (c *Collector) RecordFileClassified(kind, category string) {
	if c == nil {
		return
	}
	c.filesClassifiedTotal.WithLabelValues(kind, category).Inc()
}

// =============================================================================
// 🔁 主流程指标记录
// =============================================================================

// RecordPromptsCollected 记录收集到的提示词数量
func (c *Collector) RecordPromptsCollected(source string, n int) {
	if c == nil {
		return
	}
	c.promptsCollectedTotal.WithLabelValues(source).Add(float64(n))
}

// RecordRun 记录一次主流程运行
func (c *Collector) RecordRun(failed bool, duration time.Duration) {
	if c == nil {
		return
	}
	status := "completed"
	if failed {
		status = "failed"
	}
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.Observe(duration.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code == 0:
		return "error"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		if code == 429 {
			return "429"
		}
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
