// =============================================================================
// 📦 MediaFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Kling:      DefaultKlingConfig(),
		Credential: DefaultCredentialConfig(),
		Poll:       DefaultPollConfig(),
		Analysis:   DefaultAnalysisConfig(),
		Workflow:   DefaultWorkflowConfig(),
		Redis:      DefaultRedisConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
		Metrics:    DefaultMetricsConfig(),
	}
}

// DefaultKlingConfig 返回默认生成服务配置
func DefaultKlingConfig() KlingConfig {
	return KlingConfig{
		BaseURL:        "https://api-beijing.klingai.com",
		Model:          "kling-v1",
		Timeout:        60 * time.Second,
		RateLimitRPS:   2,
		RateLimitBurst: 4,
		AspectRatio:    "16:9",
		VideoMode:      "pro",
		VideoDuration:  "5",
		VideoCFGScale:  0.5,
	}
}

// DefaultCredentialConfig 返回默认令牌配置（12 小时有效，提前 5 秒生效）
func DefaultCredentialConfig() CredentialConfig {
	return CredentialConfig{
		Lifetime:      12 * time.Hour,
		Skew:          5 * time.Second,
		RefreshMargin: time.Minute,
		Store:         "file",
		TokenFile:     "api_token.txt",
		CacheKey:      "mediaflow:kling:token",
	}
}

// DefaultPollConfig 返回默认轮询配置（每 10 秒一次，最多 300 秒）
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:    10 * time.Second,
		Timeout:     300 * time.Second,
		Multiplier:  1.0,
		MaxInterval: 30 * time.Second,
	}
}

// DefaultAnalysisConfig 返回默认多模态分析配置
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		BaseURL:      "https://dashscope.aliyuncs.com",
		EndpointPath: "/compatible-mode/v1/chat/completions",
		VisionModel:  "qwen-vl-plus",
		TextModel:    "qwen-turbo",
		Timeout:      60 * time.Second,
		KeysFile:     "config.json",
	}
}

// DefaultWorkflowConfig 返回默认主流程配置
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		Candidates:    1,
		Concurrency:   1,
		SelectBest:    true,
		GenerateVideo: true,
		Download:      false,
		Classify:      false,
		DownloadDir:   "downloads",
		PromptLogDir:  ".",
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
		PoolSize: 4,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{"stderr"},
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "mediaflow",
		SampleRate:   1.0,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "mediaflow",
	}
}
