package kling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/internal/telemetry"
	"github.com/BaSui01/mediaflow/internal/tlsutil"
	"github.com/BaSui01/mediaflow/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	instrumentationName = "github.com/BaSui01/mediaflow/llm/kling"
	maxResponseBytes    = 4 << 20
)

// Client 调用 Kling 生成接口: 提交图片/视频任务，查询任务状态.
// API 文件: https://docs.qingque.cn/d/home/eZQClW07IFGB0K8HXwLuzsTjF
type Client struct {
	cfg     config.KlingConfig
	tokens  TokenSource
	client  *http.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
	observe RequestObserver
	logger  *zap.Logger
}

// RequestObserver 在每次 HTTP 往返结束后被调用. status 为 0 表示请求未得到响应.
type RequestObserver func(method, route string, status int, duration time.Duration)

// ClientOption 配置 Client.
type ClientOption func(*Client)

// WithHTTPClient 替换 HTTP 客户端.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.client = hc }
}

// WithRequestObserver 设置请求观察者（用于指标）.
func WithRequestObserver(fn RequestObserver) ClientOption {
	return func(c *Client) { c.observe = fn }
}

// NewClient 创建 Kling 客户端.
func NewClient(cfg config.KlingConfig, tokens TokenSource, logger *zap.Logger, opts ...ClientOption) *Client {
	defaults := config.DefaultKlingConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = defaults.AspectRatio
	}
	if cfg.VideoMode == "" {
		cfg.VideoMode = defaults.VideoMode
	}
	if cfg.VideoDuration == "" {
		cfg.VideoDuration = defaults.VideoDuration
	}
	if cfg.VideoCFGScale <= 0 {
		cfg.VideoCFGScale = defaults.VideoCFGScale
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:    cfg,
		tokens: tokens,
		tracer: otel.Tracer(instrumentationName),
		logger: logger.With(zap.String("component", "kling")),
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = tlsutil.NewHTTPClient(tlsutil.ClientOptions{Timeout: cfg.Timeout})
	}
	return c
}

// NewImageRequest 用配置默认值构造图片请求.
func (c *Client) NewImageRequest(prompt string) ImageRequest {
	return ImageRequest{
		Model:         c.cfg.Model,
		Prompt:        prompt,
		ImageFidelity: 0.5,
		HumanFidelity: 0.45,
		N:             1,
		AspectRatio:   c.cfg.AspectRatio,
	}
}

// NewVideoRequest 用配置默认值构造图生视频请求.
func (c *Client) NewVideoRequest(imageURL, prompt string) VideoRequest {
	return VideoRequest{
		Model:    c.cfg.Model,
		Mode:     c.cfg.VideoMode,
		Duration: c.cfg.VideoDuration,
		Image:    imageURL,
		Prompt:   prompt,
		CFGScale: c.cfg.VideoCFGScale,
	}
}

// SubmitImage 提交图片生成任务，返回任务 ID.
// 终点: POST /v1/images/generations
func (c *Client) SubmitImage(ctx context.Context, req ImageRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", types.NewError(types.ErrInvalidInput, "image prompt is empty").WithProvider(providerName)
	}
	if req.Model == "" {
		req.Model = c.cfg.Model
	}
	if req.N <= 0 {
		req.N = 1
	}
	if req.AspectRatio == "" {
		req.AspectRatio = c.cfg.AspectRatio
	}
	return c.submit(ctx, TaskKindImage, req)
}

// SubmitVideo 提交图生视频任务，返回任务 ID.
// 终点: POST /v1/videos/image2video
func (c *Client) SubmitVideo(ctx context.Context, req VideoRequest) (string, error) {
	if strings.TrimSpace(req.Image) == "" {
		return "", types.NewError(types.ErrInvalidInput, "video source image is empty").WithProvider(providerName)
	}
	if req.Model == "" {
		req.Model = c.cfg.Model
	}
	if req.Mode == "" {
		req.Mode = c.cfg.VideoMode
	}
	if req.Duration == "" {
		req.Duration = c.cfg.VideoDuration
	}
	if req.CFGScale <= 0 {
		req.CFGScale = c.cfg.VideoCFGScale
	}
	return c.submit(ctx, TaskKindVideo, req)
}

func (c *Client) submit(ctx context.Context, kind TaskKind, body any) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, c.tracer, "kling.submit", attribute.String("kling.kind", string(kind)))
	defer span.End()

	var env envelope
	if err := c.do(ctx, http.MethodPost, kind.endpoint(), kind.endpoint(), body, &env); err != nil {
		telemetry.RecordError(span, err)
		return "", err
	}
	if env.Code != 0 {
		err := types.Errorf(types.ErrUpstreamError, "submit %s: code=%d message=%s", kind, env.Code, env.Message).
			WithProvider(providerName)
		telemetry.RecordError(span, err)
		return "", err
	}
	if env.Data == nil || env.Data.TaskID == "" {
		err := types.Errorf(types.ErrParse, "submit %s: response has no task id", kind).WithProvider(providerName)
		telemetry.RecordError(span, err)
		return "", err
	}

	span.SetAttributes(attribute.String("kling.task_id", env.Data.TaskID))
	c.logger.Info("task submitted",
		zap.String("kind", string(kind)),
		zap.String("task_id", env.Data.TaskID),
		zap.String("request_id", env.RequestID))
	return env.Data.TaskID, nil
}

// Query 查询一次任务状态.
// submitted/processing/未知状态视为 pending; succeed 但结果为空同样视为 pending.
func (c *Client) Query(ctx context.Context, kind TaskKind, taskID string) (*TaskStatus, error) {
	if !kind.Valid() {
		return nil, types.Errorf(types.ErrInvalidInput, "unknown task kind %q", kind).WithProvider(providerName)
	}
	if strings.TrimSpace(taskID) == "" {
		return nil, types.NewError(types.ErrInvalidInput, "task id is empty").WithProvider(providerName)
	}

	ctx, span := telemetry.StartSpan(ctx, c.tracer, "kling.query",
		attribute.String("kling.kind", string(kind)),
		attribute.String("kling.task_id", taskID))
	defer span.End()

	var env envelope
	if err := c.do(ctx, http.MethodGet, kind.endpoint()+"/"+url.PathEscape(taskID), kind.endpoint()+"/{id}", nil, &env); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if env.Code != 0 {
		err := types.Errorf(types.ErrUpstreamError, "query %s %s: code=%d message=%s", kind, taskID, env.Code, env.Message).
			WithProvider(providerName)
		telemetry.RecordError(span, err)
		return nil, err
	}
	if env.Data == nil {
		err := types.Errorf(types.ErrParse, "query %s %s: response has no data", kind, taskID).WithProvider(providerName)
		telemetry.RecordError(span, err)
		return nil, err
	}

	status := statusFromData(kind, taskID, env.Data)
	span.SetAttributes(attribute.String("kling.state", string(status.State)))
	c.logger.Debug("task status",
		zap.String("kind", string(kind)),
		zap.String("task_id", taskID),
		zap.String("raw_status", status.RawStatus),
		zap.String("state", string(status.State)))
	return status, nil
}

func statusFromData(kind TaskKind, taskID string, d *taskData) *TaskStatus {
	status := &TaskStatus{
		TaskID:    taskID,
		Kind:      kind,
		State:     TaskPending,
		Message:   d.TaskStatusMsg,
		RawStatus: d.TaskStatus,
	}
	switch d.TaskStatus {
	case "succeed":
		if u := firstResultURL(kind, d.TaskResult); u != "" {
			status.State = TaskSucceeded
			status.URL = u
		}
	case "failed":
		status.State = TaskFailed
	}
	return status
}

func firstResultURL(kind TaskKind, r *taskResult) string {
	if r == nil {
		return ""
	}
	items := r.Images
	if kind == TaskKindVideo {
		items = r.Videos
	}
	if len(items) == 0 {
		return ""
	}
	return items[0].URL
}

// do 发送一次请求. route 是不含任务 ID 的路径模板，用作观察者标签.
func (c *Client) do(ctx context.Context, method, path, route string, body any, out *envelope) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return types.NewError(types.ErrTransport, "rate limiter wait").WithCause(err).WithProvider(providerName)
		}
	}

	cred, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return types.NewError(types.ErrInvalidInput, "encode request").WithCause(err).WithProvider(providerName)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return types.NewError(types.ErrTransport, "create request").WithCause(err).WithProvider(providerName)
	}
	httpReq.Header.Set("Authorization", "Bearer "+cred.Token)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.record(method, route, 0, start)
		return types.Errorf(types.ErrTransport, "%s %s", method, path).
			WithCause(err).WithRetryable(true).WithProvider(providerName)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.record(method, route, resp.StatusCode, start)
	if err != nil {
		return types.Errorf(types.ErrTransport, "read %s response", path).
			WithCause(err).WithRetryable(true).WithProvider(providerName)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := truncate(string(data), 256)
		var env envelope
		if json.Unmarshal(data, &env) == nil && env.Message != "" {
			msg = fmt.Sprintf("code=%d message=%s", env.Code, env.Message)
		}
		return types.Errorf(types.ErrTransport, "%s %s: status=%d %s", method, path, resp.StatusCode, msg).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError).
			WithProvider(providerName)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return types.Errorf(types.ErrParse, "decode %s response", path).WithCause(err).WithProvider(providerName)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func (c *Client) record(method, route string, status int, start time.Time) {
	if c.observe != nil {
		c.observe(method, route, status, time.Since(start))
	}
}
