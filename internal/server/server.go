package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 🌐 指标端点
// =============================================================================

// Config 指标端点配置
type Config struct {
	// 监听地址，为空时不启动
	Addr string `yaml:"addr" json:"addr"`

	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ReadTimeout:     10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server 暴露 /metrics 的 HTTP 服务
type Server struct {
	server   *http.Server
	listener net.Listener
	errCh    chan error
	config   Config
	logger   *zap.Logger
	mu       sync.Mutex
	closed   bool
}

// New 创建指标端点. gatherer 为 nil 时使用默认注册表.
func New(gatherer prometheus.Gatherer, config Config, logger *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: config.ReadTimeout,
		},
		errCh:  make(chan error, 1),
		config: config,
		logger: logger.With(zap.String("component", "metrics_server")),
	}
}

// Start 开始监听（非阻塞）. Addr 为空时什么也不做.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Addr == "" {
		return nil
	}
	if s.closed {
		return errors.New("metrics server is closed")
	}
	if s.listener != nil {
		return errors.New("metrics server already started")
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = listener
	s.logger.Info("serving metrics", zap.String("addr", listener.Addr().String()))

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", zap.Error(err))
			select {
			case s.errCh <- err:
			default:
			}
		}
	}()
	return nil
}

// Shutdown 优雅关闭. 未启动或重复调用时返回 nil.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.listener == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("metrics server shutdown failed", zap.Error(err))
		return err
	}
	s.listener = nil
	return nil
}

// Errors 返回异步服务错误
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Addr 返回实际监听地址；未启动时返回配置地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}
