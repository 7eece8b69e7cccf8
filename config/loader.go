// =============================================================================
// 📦 MediaFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + .env 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("mediaflow.yaml").
//	    WithDotEnv(".env").
//	    WithEnvPrefix("MEDIAFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → .env 文件 → 环境变量
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 MediaFlow 的完整配置结构
type Config struct {
	// Kling 生成服务配置
	Kling KlingConfig `yaml:"kling" env:"KLING"`

	// Credential 令牌签发与缓存配置
	Credential CredentialConfig `yaml:"credential" env:"CREDENTIAL"`

	// Poll 任务轮询配置
	Poll PollConfig `yaml:"poll" env:"POLL"`

	// Analysis 多模态分析服务配置
	Analysis AnalysisConfig `yaml:"analysis" env:"ANALYSIS"`

	// Workflow 主流程配置
	Workflow WorkflowConfig `yaml:"workflow" env:"WORKFLOW"`

	// Redis 令牌共享缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics Prometheus 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// KlingConfig 生成服务配置
type KlingConfig struct {
	// Access Key（JWT iss）
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	// Secret Key（HS256 签名密钥）
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	// API 基础地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 单次 HTTP 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 每秒请求数上限（0 表示不限）
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发请求数
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// 图片默认宽高比
	AspectRatio string `yaml:"aspect_ratio" env:"ASPECT_RATIO"`
	// 视频模式: std, pro
	VideoMode string `yaml:"video_mode" env:"VIDEO_MODE"`
	// 视频时长（秒）
	VideoDuration string `yaml:"video_duration" env:"VIDEO_DURATION"`
	// 视频 cfg_scale
	VideoCFGScale float64 `yaml:"video_cfg_scale" env:"VIDEO_CFG_SCALE"`
}

// CredentialConfig 令牌配置
type CredentialConfig struct {
	// 有效期
	Lifetime time.Duration `yaml:"lifetime" env:"LIFETIME"`
	// 生效时间提前量（容忍时钟漂移）
	Skew time.Duration `yaml:"skew" env:"SKEW"`
	// 提前刷新余量
	RefreshMargin time.Duration `yaml:"refresh_margin" env:"REFRESH_MARGIN"`
	// 存储: none, file, redis
	Store string `yaml:"store" env:"STORE"`
	// file 存储路径
	TokenFile string `yaml:"token_file" env:"TOKEN_FILE"`
	// redis 存储键
	CacheKey string `yaml:"cache_key" env:"CACHE_KEY"`
}

// PollConfig 轮询配置
type PollConfig struct {
	// 轮询间隔
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
	// 最长等待时间
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 间隔倍增因子（1 表示固定间隔）
	Multiplier float64 `yaml:"multiplier" env:"MULTIPLIER"`
	// 最大间隔
	MaxInterval time.Duration `yaml:"max_interval" env:"MAX_INTERVAL"`
}

// AnalysisConfig 多模态分析配置
type AnalysisConfig struct {
	// OpenAI 兼容接口基础地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 兼容接口路径
	EndpointPath string `yaml:"endpoint_path" env:"ENDPOINT_PATH"`
	// 视觉模型（图片评分、分类、命名）
	VisionModel string `yaml:"vision_model" env:"VISION_MODEL"`
	// 文本模型（提示词生成、文本分类）
	TextModel string `yaml:"text_model" env:"TEXT_MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// API Key JSON 文件
	KeysFile string `yaml:"keys_file" env:"KEYS_FILE"`
}

// WorkflowConfig 主流程配置
type WorkflowConfig struct {
	// 每个提示词的候选图片数
	Candidates int `yaml:"candidates" env:"CANDIDATES"`
	// 并发上限
	Concurrency int `yaml:"concurrency" env:"CONCURRENCY"`
	// 是否评选最佳候选
	SelectBest bool `yaml:"select_best" env:"SELECT_BEST"`
	// 是否生成视频
	GenerateVideo bool `yaml:"generate_video" env:"GENERATE_VIDEO"`
	// 是否下载产物
	Download bool `yaml:"download" env:"DOWNLOAD"`
	// 是否分类整理下载产物
	Classify bool `yaml:"classify" env:"CLASSIFY"`
	// 下载目录
	DownloadDir string `yaml:"download_dir" env:"DOWNLOAD_DIR"`
	// 提示词日志目录
	PromptLogDir string `yaml:"prompt_log_dir" env:"PROMPT_LOG_DIR"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	// 监听地址（为空则不暴露 /metrics）
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	dotEnvPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "MEDIAFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithDotEnv 设置 .env 文件路径（文件不存在时忽略）
func (l *Loader) WithDotEnv(path string) *Loader {
	l.dotEnvPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → .env 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 读取 .env（不修改进程环境变量）
	dotEnv, err := l.readDotEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	// 4. 从环境变量覆盖
	lookup := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return dotEnv[key]
	}
	if err := setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix, lookup); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 5. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) readDotEnv() (map[string]string, error) {
	if l.dotEnvPath == "" {
		return nil, nil
	}
	values, err := godotenv.Read(l.dotEnvPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return values, nil
}

// setFieldsFromEnv 递归设置结构体字段
func setFieldsFromEnv(v reflect.Value, prefix string, lookup func(string) string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, envKey, lookup); err != nil {
				return err
			}
			continue
		}

		envValue := lookup(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Poll.Interval <= 0 {
		errs = append(errs, "poll.interval must be positive")
	}
	if c.Poll.Timeout < c.Poll.Interval {
		errs = append(errs, "poll.timeout must be at least poll.interval")
	}
	if c.Poll.Multiplier != 0 && c.Poll.Multiplier < 1 {
		errs = append(errs, "poll.multiplier must be >= 1")
	}
	if c.Credential.Lifetime <= 0 {
		errs = append(errs, "credential.lifetime must be positive")
	}
	if c.Credential.Skew < 0 {
		errs = append(errs, "credential.skew must not be negative")
	}
	switch c.Credential.Store {
	case "", "none", "file", "redis":
	default:
		errs = append(errs, fmt.Sprintf("unknown credential.store %q", c.Credential.Store))
	}
	if c.Workflow.Candidates < 1 {
		errs = append(errs, "workflow.candidates must be at least 1")
	}
	if c.Workflow.Concurrency < 1 {
		errs = append(errs, "workflow.concurrency must be at least 1")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("unknown log.format %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
