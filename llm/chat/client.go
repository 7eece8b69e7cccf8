// =============================================================================
// MediaFlow OpenAI-Compatible Chat Client
// =============================================================================
// Minimal multimodal chat-completions client used for image scoring, prompt
// generation and file classification. Any endpoint speaking the OpenAI
// chat-completions dialect works (DashScope compatible mode by default).
// =============================================================================

package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/internal/tlsutil"
	"github.com/BaSui01/mediaflow/types"
	"go.uber.org/zap"
)

// Config holds the configuration for a chat client.
type Config struct {
	// ProviderName labels errors and logs (e.g., "dashscope").
	ProviderName string

	// APIKey is the bearer key for the endpoint.
	APIKey string

	// BaseURL is the base URL of the API (e.g., "https://dashscope.aliyuncs.com").
	BaseURL string

	// EndpointPath is the chat completions path. Defaults to "/v1/chat/completions".
	EndpointPath string

	// DefaultModel is used when a request leaves Model empty.
	DefaultModel string

	// Timeout is the HTTP client timeout. Defaults to 60s if zero.
	Timeout time.Duration
}

// ConfigFromAnalysis builds a chat config from the analysis section and a key.
func ConfigFromAnalysis(cfg config.AnalysisConfig, apiKey string) Config {
	return Config{
		ProviderName: "dashscope",
		APIKey:       apiKey,
		BaseURL:      cfg.BaseURL,
		EndpointPath: cfg.EndpointPath,
		DefaultModel: cfg.TextModel,
		Timeout:      cfg.Timeout,
	}
}

// Client sends chat completion requests.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a chat client. An empty API key is a configuration error.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, types.NewError(types.ErrConfiguration, "chat api key is empty").WithProvider(cfg.ProviderName)
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "openai-compatible"
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		client: tlsutil.NewHTTPClient(tlsutil.ClientOptions{Timeout: cfg.Timeout}),
		logger: logger.With(zap.String("component", "chat"), zap.String("provider", cfg.ProviderName)),
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string { return c.cfg.ProviderName }

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) { c.client = hc }

func (c *Client) endpoint() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.EndpointPath
}

// Complete sends the request and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if req.Model == "" {
		req.Model = c.cfg.DefaultModel
	}
	if len(req.Messages) == 0 {
		return "", types.NewError(types.ErrInvalidInput, "chat request has no messages").WithProvider(c.Name())
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", types.NewError(types.ErrInvalidInput, "encode chat request").WithCause(err).WithProvider(c.Name())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", types.NewError(types.ErrTransport, "create chat request").WithCause(err).WithProvider(c.Name())
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", types.NewError(types.ErrTransport, "chat request failed").
			WithCause(err).WithRetryable(true).WithProvider(c.Name())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", types.NewError(types.ErrTransport, "read chat response").WithCause(err).WithProvider(c.Name())
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return "", types.Errorf(types.ErrTransport, "chat status=%d msg=%s", resp.StatusCode, errorMessage(body)).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError).
			WithProvider(c.Name())
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return "", types.NewError(types.ErrParse, "decode chat response").WithCause(err).WithProvider(c.Name())
	}
	if out.Error != nil && out.Error.Message != "" {
		return "", types.Errorf(types.ErrUpstreamError, "chat error: %s", out.Error.Message).WithProvider(c.Name())
	}
	if len(out.Choices) == 0 {
		return "", types.NewError(types.ErrParse, "chat response has no choices").WithProvider(c.Name())
	}

	c.logger.Debug("chat completion",
		zap.String("model", req.Model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("total_tokens", out.Usage.TotalTokens))

	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// Ask is a one-shot helper: optional system prompt plus one user message.
func (c *Client) Ask(ctx context.Context, model, system string, parts ...Part) (string, error) {
	var msgs []Message
	if system != "" {
		msgs = append(msgs, SystemMessage(system))
	}
	msgs = append(msgs, UserMessage(parts...))
	return c.Complete(ctx, Request{Model: model, Messages: msgs})
}

// errorMessage extracts a readable message from an error body.
func errorMessage(body []byte) string {
	var e struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != nil && e.Error.Message != "" {
			return e.Error.Message
		}
		if e.Message != "" {
			return e.Message
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256]
	}
	return fmt.Sprintf("%q", s)
}
