// Package mediaflow provides a top-level entry point that assembles the full
// generation workflow from a loaded configuration.
//
// Usage:
//
//	cfg, err := config.NewLoader().WithConfigPath("mediaflow.yaml").Load()
//	opts := workflow.OptionsFromConfig(cfg.Workflow, prompts.Spec{Manual: []string{"a red fox"}})
//	r, err := mediaflow.New(cfg, opts, mediaflow.WithLogger(logger))
//	report, err := r.Run(ctx)
//
// The analysis client is only built when the options need it (generated or
// image-derived prompts, best-of-N selection, classification), so a plain
// prompt to image to video run needs nothing beyond the Kling key pair.
package mediaflow

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/internal/metrics"
	"github.com/BaSui01/mediaflow/llm/chat"
	"github.com/BaSui01/mediaflow/llm/evaluate"
	"github.com/BaSui01/mediaflow/llm/kling"
	"github.com/BaSui01/mediaflow/llm/poll"
	"github.com/BaSui01/mediaflow/media/classify"
	"github.com/BaSui01/mediaflow/prompts"
	"github.com/BaSui01/mediaflow/workflow"
)

// Option configures [New].
type Option func(*builder)

type builder struct {
	logger     *zap.Logger
	httpClient *http.Client
	metrics    *metrics.Collector
	tokens     kling.TokenSource
	store      kling.TokenStore
	downloads  string
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *zap.Logger) Option {
	return func(b *builder) { b.logger = logger }
}

// WithHTTPClient replaces the HTTP client used for Kling, analysis and downloads.
func WithHTTPClient(hc *http.Client) Option {
	return func(b *builder) { b.httpClient = hc }
}

// WithMetrics records upstream requests and workflow outcomes.
func WithMetrics(c *metrics.Collector) Option {
	return func(b *builder) { b.metrics = c }
}

// WithCredentials uses an existing token source instead of building a provisioner.
func WithCredentials(tokens kling.TokenSource) Option {
	return func(b *builder) { b.tokens = tokens }
}

// WithTokenStore hands tokens to other processes through store.
func WithTokenStore(store kling.TokenStore) Option {
	return func(b *builder) { b.store = store }
}

// WithDownloadDir overrides workflow.download_dir.
func WithDownloadDir(dir string) Option {
	return func(b *builder) { b.downloads = dir }
}

// Runner is a workflow wired to its collaborators and ready to run.
type Runner struct {
	orch *workflow.Orchestrator
	opts workflow.Options
}

// New builds the Kling client, the wait loop, the prompt collector and, when
// opts needs them, the evaluator, downloader and classifier.
func New(cfg *config.Config, opts workflow.Options, options ...Option) (*Runner, error) {
	b := &builder{downloads: cfg.Workflow.DownloadDir}
	for _, opt := range options {
		opt(b)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}

	tokens := b.tokens
	if tokens == nil {
		popts := []kling.ProvisionerOption{kling.WithLogger(b.logger)}
		if b.store != nil {
			popts = append(popts, kling.WithStore(b.store))
		}
		p, err := kling.NewProvisioner(cfg.Kling.AccessKey, cfg.Kling.SecretKey, cfg.Credential, popts...)
		if err != nil {
			return nil, err
		}
		tokens = p
	}

	client := NewKlingClient(cfg.Kling, tokens, b.logger, b.metrics, b.httpClient)
	opts.Image = mergeImage(client.NewImageRequest(""), opts.Image)
	opts.Video = mergeVideo(client.NewVideoRequest("", ""), opts.Video)

	deps := workflow.Dependencies{
		Credentials: tokens,
		Generator:   client,
		Waiter:      poll.NewWaiter(poll.PolicyFromConfig(cfg.Poll), b.logger),
		Metrics:     b.metrics,
	}

	var asker *chat.Client
	if NeedsAnalysis(opts) {
		var err error
		if asker, err = NewChatClient(cfg.Analysis, b.logger, b.httpClient); err != nil {
			return nil, err
		}
	}

	collectorOpts := []prompts.Option{prompts.WithLogDir(cfg.Workflow.PromptLogDir)}
	if asker != nil {
		collectorOpts = append(collectorOpts,
			prompts.WithAsker(asker, cfg.Analysis.TextModel, cfg.Analysis.VisionModel))
		scorer := evaluate.NewChatScorer(asker, cfg.Analysis.VisionModel, "", b.logger)
		deps.Evaluator = evaluate.NewEvaluator(scorer, opts.Candidates, b.logger)
	}
	deps.Prompts = prompts.NewCollector(b.logger, collectorOpts...)

	if opts.Download || opts.Classify {
		downloader := kling.NewDownloader(b.downloads, b.httpClient, b.logger)
		deps.Downloader = downloader
		b.logger.Info("downloads enabled", zap.String("dir", downloader.Dir()))
	}
	if opts.Classify && asker != nil {
		analyzer := classify.NewChatAnalyzer(asker, cfg.Analysis.VisionModel, cfg.Analysis.TextModel)
		deps.Classifier = classify.NewOrganizer(b.downloads, analyzer, classify.ModeRenameClassify, b.logger)
	}

	orch, err := workflow.NewOrchestrator(deps, b.logger)
	if err != nil {
		return nil, err
	}
	return &Runner{orch: orch, opts: opts}, nil
}

// Options returns the options the runner was built with, request templates filled in.
func (r *Runner) Options() workflow.Options { return r.opts }

// Run executes the workflow once.
func (r *Runner) Run(ctx context.Context) (*workflow.Report, error) {
	return r.orch.Run(ctx, r.opts)
}

// NeedsAnalysis reports whether opts calls the multimodal analysis service.
func NeedsAnalysis(opts workflow.Options) bool {
	switch opts.Prompts.Source {
	case prompts.SourceGenerated, prompts.SourceImage:
		return true
	}
	if opts.SelectBest && opts.Candidates > 1 {
		return true
	}
	return opts.Classify
}

// NewKlingClient builds a Kling client. A non-nil collector records every round trip.
func NewKlingClient(cfg config.KlingConfig, tokens kling.TokenSource, logger *zap.Logger, m *metrics.Collector, hc *http.Client) *kling.Client {
	var opts []kling.ClientOption
	if m != nil {
		opts = append(opts, kling.WithRequestObserver(func(method, route string, status int, d time.Duration) {
			m.RecordUpstreamRequest("kling", method, route, status, d)
		}))
	}
	if hc != nil {
		opts = append(opts, kling.WithHTTPClient(hc))
	}
	return kling.NewClient(cfg, tokens, logger, opts...)
}

// NewChatClient reads the keys file and builds the analysis client.
// A missing or empty keys file is a configuration error.
func NewChatClient(cfg config.AnalysisConfig, logger *zap.Logger, hc *http.Client) (*chat.Client, error) {
	keys, err := config.LoadAPIKeys(cfg.KeysFile)
	if err != nil {
		return nil, err
	}
	key, err := keys.AnalysisKey()
	if err != nil {
		return nil, err
	}
	c, err := chat.New(chat.ConfigFromAnalysis(cfg, key), logger)
	if err != nil {
		return nil, err
	}
	if hc != nil {
		c.SetHTTPClient(hc)
	}
	return c, nil
}

// mergeImage fills the zero fields of override from base.
func mergeImage(base, override kling.ImageRequest) kling.ImageRequest {
	if override.Model == "" {
		override.Model = base.Model
	}
	if override.ImageFidelity == 0 {
		override.ImageFidelity = base.ImageFidelity
	}
	if override.HumanFidelity == 0 {
		override.HumanFidelity = base.HumanFidelity
	}
	if override.N == 0 {
		override.N = base.N
	}
	if override.AspectRatio == "" {
		override.AspectRatio = base.AspectRatio
	}
	return override
}

// mergeVideo fills the zero fields of override from base.
func mergeVideo(base, override kling.VideoRequest) kling.VideoRequest {
	if override.Model == "" {
		override.Model = base.Model
	}
	if override.Mode == "" {
		override.Mode = base.Mode
	}
	if override.Duration == "" {
		override.Duration = base.Duration
	}
	if override.CFGScale == 0 {
		override.CFGScale = base.CFGScale
	}
	return override
}
