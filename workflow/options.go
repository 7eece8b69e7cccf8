package workflow

import (
	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/llm/kling"
	"github.com/BaSui01/mediaflow/prompts"
	"github.com/BaSui01/mediaflow/types"
)

// Options 一次运行的全部选择，在运行开始前给定
type Options struct {
	// Prompts 提示词来源
	Prompts prompts.Spec `json:"prompts"`
	// Candidates 每个提示词生成的候选图片数，< 1 时为 1
	Candidates int `json:"candidates"`
	// SelectBest 候选多于一张时评选最佳；关闭时取第一张成功的图片
	SelectBest bool `json:"select_best"`
	// GenerateVideo 用最佳图片生成视频
	GenerateVideo bool `json:"generate_video"`
	// Download 下载最佳图片与视频
	Download bool `json:"download"`
	// Classify 分类整理下载的文件，隐含 Download
	Classify bool `json:"classify"`
	// Concurrency 同一提示词的图片任务并发上限，< 1 时为 1
	Concurrency int `json:"concurrency"`
	// Image 图片请求模板，Prompt 字段会被替换
	Image kling.ImageRequest `json:"image"`
	// Video 视频请求模板，Image 字段会被替换；Prompt 为空时使用图片提示词
	Video kling.VideoRequest `json:"video"`
}

// OptionsFromConfig 用配置文件的主流程设置构造 Options
func OptionsFromConfig(cfg config.WorkflowConfig, spec prompts.Spec) Options {
	return Options{
		Prompts:       spec,
		Candidates:    cfg.Candidates,
		SelectBest:    cfg.SelectBest,
		GenerateVideo: cfg.GenerateVideo,
		Download:      cfg.Download,
		Classify:      cfg.Classify,
		Concurrency:   cfg.Concurrency,
	}
}

// normalize 填充默认值
func (o Options) normalize() Options {
	if o.Candidates < 1 {
		o.Candidates = 1
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.Concurrency > o.Candidates {
		o.Concurrency = o.Candidates
	}
	if o.Classify {
		o.Download = true
	}
	return o
}

// needsEvaluation 报告是否会调用评选器
func (o Options) needsEvaluation() bool {
	return o.SelectBest && o.Candidates > 1
}

// validate 检查 Options 所需的依赖是否齐全
func (o Options) validate(d Dependencies) error {
	if o.needsEvaluation() && d.Evaluator == nil {
		return types.NewError(types.ErrConfiguration, "best-of-n selection requires an evaluator")
	}
	if o.Download && d.Downloader == nil {
		return types.NewError(types.ErrConfiguration, "download requires a downloader")
	}
	if o.Classify && d.Classifier == nil {
		return types.NewError(types.ErrConfiguration, "classification requires a classifier")
	}
	return nil
}
