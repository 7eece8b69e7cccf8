package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow"
	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/internal/cache"
	"github.com/BaSui01/mediaflow/internal/metrics"
	"github.com/BaSui01/mediaflow/internal/telemetry"
	"github.com/BaSui01/mediaflow/llm/chat"
	"github.com/BaSui01/mediaflow/llm/kling"
	"github.com/BaSui01/mediaflow/llm/poll"
	"github.com/BaSui01/mediaflow/types"
)

// ConfigLoader 按配置文件与 .env 路径加载配置
type ConfigLoader func(path, envFile string) (*config.Config, error)

// AppOption 定制 App 依赖
type AppOption func(*App)

// App 持有命令行状态与运行期依赖
type App struct {
	root *cobra.Command

	loadConfig ConfigLoader
	httpClient *http.Client
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer

	cfgFile    string
	envFile    string
	jsonOutput bool
	verbose    bool

	cfg       *config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Collector
	providers *telemetry.Providers
	closers   []func(context.Context) error
}

// WithConfigLoader 注入配置加载函数
func WithConfigLoader(loader ConfigLoader) AppOption {
	return func(a *App) {
		if loader != nil {
			a.loadConfig = loader
		}
	}
}

// WithHTTPClient 注入所有上游调用共用的 HTTP 客户端
func WithHTTPClient(hc *http.Client) AppOption {
	return func(a *App) { a.httpClient = hc }
}

// WithIO 注入进程 I/O
func WithIO(stdin io.Reader, stdout, stderr io.Writer) AppOption {
	return func(a *App) {
		if stdin != nil {
			a.stdin = stdin
		}
		if stdout != nil {
			a.stdout = stdout
		}
		if stderr != nil {
			a.stderr = stderr
		}
	}
}

// NewApp 用默认依赖创建命令行应用
func NewApp(opts ...AppOption) *App {
	a := &App{
		loadConfig: loadConfig,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.root = a.newRootCommand()
	return a
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "mediaflow",
		Short: "MediaFlow - image and video generation workflow",
		Long: `MediaFlow drives Kling image and image-to-video generation.

It collects prompts, submits generation tasks, polls them to completion,
picks the best image with a vision model, and organizes downloaded media.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", ".env file (ignored when missing)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "emit JSON output")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug logging")

	root.AddCommand(a.newRunCommand())
	root.AddCommand(a.newTokenCommand())
	root.AddCommand(a.newQueryCommand())
	root.AddCommand(a.newWaitCommand())
	root.AddCommand(a.newClassifyCommand())
	root.AddCommand(a.newVersionCommand())

	return root
}

// Execute 运行根命令. SIGINT/SIGTERM 取消正在进行的操作.
func (a *App) Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.ExecuteContext(ctx)
}

// ExecuteContext 用给定 ctx 运行根命令，结束后释放运行期资源
func (a *App) ExecuteContext(ctx context.Context) error {
	err := a.root.ExecuteContext(ctx)
	a.close()
	return err
}

// SetArgs 设置命令行参数（测试用）
func (a *App) SetArgs(args []string) {
	a.root.SetArgs(args)
}

func loadConfig(path, envFile string) (*config.Config, error) {
	cfg, err := config.NewLoader().
		WithConfigPath(path).
		WithDotEnv(envFile).
		WithValidator(func(c *config.Config) error { return c.Validate() }).
		Load()
	if err != nil {
		return nil, types.NewError(types.ErrConfiguration, "load config").WithCause(err)
	}
	return cfg, nil
}

// initConfig 加载配置并初始化日志、指标与遥测
func (a *App) initConfig() error {
	cfg, err := a.loadConfig(a.cfgFile, a.envFile)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg

	a.logger = initLogger(cfg.Log)
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.NewCollector(cfg.Metrics.Namespace, a.registry, a.logger)

	providers, err := telemetry.Init(cfg.Telemetry, a.logger)
	if err != nil {
		a.logger.Warn("telemetry disabled", zap.Error(err))
	} else {
		a.providers = providers
	}
	return nil
}

// close 按注册的相反顺序释放资源
func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && a.logger != nil {
			a.logger.Warn("release resource failed", zap.Error(err))
		}
	}
	a.closers = nil

	if a.providers != nil {
		if err := a.providers.Shutdown(ctx); err != nil {
			a.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
		a.providers = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// =============================================================================
// 🔧 依赖构建
// =============================================================================

// tokenStore 按 credential.store 构建令牌存储，none 时返回 nil
func (a *App) tokenStore() (kling.TokenStore, error) {
	cc := a.cfg.Credential
	switch cc.Store {
	case "file":
		store := kling.NewFileTokenStore(cc.TokenFile)
		a.logger.Debug("using file token store", zap.String("path", store.Path()))
		return store, nil
	case "redis":
		rc := a.cfg.Redis
		cacheCfg := cache.DefaultConfig()
		cacheCfg.Addr = rc.Addr
		cacheCfg.Password = rc.Password
		cacheCfg.DB = rc.DB
		if rc.PoolSize > 0 {
			cacheCfg.PoolSize = rc.PoolSize
		}
		mgr, err := cache.NewManager(cacheCfg, a.logger)
		if err != nil {
			return nil, types.NewError(types.ErrConfiguration, "connect token cache").WithCause(err)
		}
		a.onClose(func(context.Context) error { return mgr.Close() })
		return kling.NewCacheTokenStore(mgr, cc.CacheKey), nil
	default:
		return nil, nil
	}
}

// provisioner 构建令牌签发器
func (a *App) provisioner() (*kling.Provisioner, error) {
	opts := []kling.ProvisionerOption{kling.WithLogger(a.logger)}
	store, err := a.tokenStore()
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, kling.WithStore(store))
	}
	return kling.NewProvisioner(a.cfg.Kling.AccessKey, a.cfg.Kling.SecretKey, a.cfg.Credential, opts...)
}

// klingClient 构建生成服务客户端，每次往返都记入指标
func (a *App) klingClient(tokens kling.TokenSource) *kling.Client {
	return mediaflow.NewKlingClient(a.cfg.Kling, tokens, a.logger, a.metrics, a.httpClient)
}

// chatClient 构建多模态分析客户端. 缺少 API key 是配置错误.
func (a *App) chatClient() (*chat.Client, error) {
	return mediaflow.NewChatClient(a.cfg.Analysis, a.logger, a.httpClient)
}

// waiter 按轮询配置构建等待器
func (a *App) waiter(timeout time.Duration) *poll.Waiter {
	policy := poll.PolicyFromConfig(a.cfg.Poll)
	if timeout > 0 {
		policy.Timeout = timeout
	}
	return poll.NewWaiter(policy, a.logger)
}
