package workflow

import (
	"context"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BaSui01/mediaflow/internal/metrics"
	"github.com/BaSui01/mediaflow/internal/telemetry"
	"github.com/BaSui01/mediaflow/llm/evaluate"
	"github.com/BaSui01/mediaflow/llm/kling"
	"github.com/BaSui01/mediaflow/llm/poll"
	"github.com/BaSui01/mediaflow/media/classify"
	"github.com/BaSui01/mediaflow/prompts"
	"github.com/BaSui01/mediaflow/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/BaSui01/mediaflow/workflow"

// =============================================================================
// 依赖
// =============================================================================

// Generator 提交并查询生成任务，由 *kling.Client 实现
type Generator interface {
	SubmitImage(ctx context.Context, req kling.ImageRequest) (string, error)
	SubmitVideo(ctx context.Context, req kling.VideoRequest) (string, error)
	Query(ctx context.Context, kind kling.TaskKind, taskID string) (*kling.TaskStatus, error)
}

// PromptCollector 收集提示词，由 *prompts.Collector 实现
type PromptCollector interface {
	Collect(ctx context.Context, spec prompts.Spec) ([]string, error)
}

// Evaluator 评选候选图片，由 *evaluate.Evaluator 实现
type Evaluator interface {
	Evaluate(ctx context.Context, prompt string, urls []string) (*evaluate.Evaluation, error)
}

// Downloader 下载产物，由 *kling.Downloader 实现
type Downloader interface {
	Download(ctx context.Context, url string) (string, error)
}

// Classifier 分类整理单个文件，由 *classify.Organizer 实现
type Classifier interface {
	Organize(ctx context.Context, path string) (*classify.Assignment, error)
}

// Dependencies Orchestrator 的协作者. Credentials、Generator、Prompts、Waiter 必填，
// 其余只在 Options 打开对应阶段时需要.
type Dependencies struct {
	Credentials kling.TokenSource
	Generator   Generator
	Prompts     PromptCollector
	Waiter      *poll.Waiter
	Evaluator   Evaluator
	Downloader  Downloader
	Classifier  Classifier
	Metrics     *metrics.Collector
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator 编排凭证、提示词、图片、评选、视频、下载与分类各阶段
type Orchestrator struct {
	deps   Dependencies
	now    func() time.Time
	tracer trace.Tracer
	logger *zap.Logger
}

// Option 配置 Orchestrator
type Option func(*Orchestrator)

// WithClock 替换记录任务时间所用的时钟
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator 创建编排器. 缺少必填依赖时返回 CONFIGURATION.
func NewOrchestrator(deps Dependencies, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Credentials == nil:
		return nil, types.NewError(types.ErrConfiguration, "credential source is required")
	case deps.Generator == nil:
		return nil, types.NewError(types.ErrConfiguration, "generator is required")
	case deps.Prompts == nil:
		return nil, types.NewError(types.ErrConfiguration, "prompt collector is required")
	case deps.Waiter == nil:
		return nil, types.NewError(types.ErrConfiguration, "waiter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		deps:   deps,
		now:    time.Now,
		tracer: otel.Tracer(instrumentationName),
		logger: logger.With(zap.String("component", "orchestrator")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run 执行一次完整流程. 返回的 Report 总是非 nil；
// 只有致命错误（凭证、提示词、依赖缺失）与 ctx 取消会返回 error.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (report *Report, err error) {
	opts = opts.normalize()
	report = &Report{RunID: uuid.NewString(), StartedAt: o.now()}

	ctx = types.WithRunID(ctx, report.RunID)
	ctx, span := telemetry.StartSpan(ctx, o.tracer, "workflow.run",
		attribute.Int("workflow.candidates", opts.Candidates),
		attribute.Bool("workflow.select_best", opts.SelectBest),
		attribute.Bool("workflow.generate_video", opts.GenerateVideo))
	logger := o.logger.With(zap.String("run_id", report.RunID))

	defer func() {
		report.FinishedAt = o.now()
		if err != nil {
			report.Code = types.GetErrorCode(err)
			report.Error = err.Error()
			telemetry.RecordError(span, err)
			logger.Error("workflow aborted", zap.Error(err))
		} else {
			s := report.Summary()
			logger.Info("workflow finished",
				zap.Int("prompts", s.Prompts),
				zap.Int("submitted", s.Submitted),
				zap.Int("succeeded", s.Succeeded),
				zap.Int("timed_out", s.TimedOut),
				zap.Int("videos", s.Videos),
				zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
		}
		o.deps.Metrics.RecordRun(err != nil, report.FinishedAt.Sub(report.StartedAt))
		span.End()
	}()

	if err := opts.validate(o.deps); err != nil {
		return report, err
	}

	// 步骤1: 凭证
	logger.Info("provisioning credential")
	if _, err := o.deps.Credentials.Token(ctx); err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if !types.IsCode(err, types.ErrConfiguration) {
			err = types.NewError(types.ErrConfiguration, "credential unavailable").WithCause(err)
		}
		return report, err
	}

	// 步骤2: 提示词
	list, err := o.deps.Prompts.Collect(ctx, opts.Prompts)
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if !types.IsFatal(err) {
			err = types.NewError(types.ErrNoPrompts, "no prompts collected").WithCause(err)
		}
		return report, err
	}
	if len(list) == 0 {
		return report, types.NewError(types.ErrNoPrompts, "no prompts collected")
	}
	source := opts.Prompts.Source
	if source == "" {
		source = prompts.SourceManual
	}
	o.deps.Metrics.RecordPromptsCollected(string(source), len(list))
	logger.Info("prompts ready", zap.Int("count", len(list)))

	// 步骤3+: 每个提示词
	for i, prompt := range list {
		res := &PromptResult{Prompt: prompt}
		report.Results = append(report.Results, res)

		logger.Info("processing prompt",
			zap.Int("index", i+1),
			zap.Int("total", len(list)),
			zap.String("prompt", prompt))
		if err := o.runPrompt(ctx, opts, report, res, logger); err != nil {
			return report, err
		}
	}
	return report, nil
}

// runPrompt 处理一个提示词. 只有 ctx 取消会返回 error.
func (o *Orchestrator) runPrompt(ctx context.Context, opts Options, report *Report, res *PromptResult, logger *zap.Logger) error {
	ctx, span := telemetry.StartSpan(ctx, o.tracer, "workflow.prompt")
	defer span.End()

	// 图片任务
	images, err := o.generateImages(ctx, opts, report, res)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		logger.Warn("no image produced, skipping remaining stages", zap.String("prompt", res.Prompt))
		return nil
	}

	// 评选
	best, err := o.selectBest(ctx, opts, res, images, logger)
	if err != nil {
		return err
	}
	if best == nil {
		return nil
	}
	res.Best = best

	// 视频
	if opts.GenerateVideo {
		if err := o.generateVideo(ctx, opts, report, res); err != nil {
			return err
		}
	}

	// 下载与分类
	if opts.Download {
		if err := o.collectFiles(ctx, opts, res, logger); err != nil {
			return err
		}
	}
	return nil
}

// generateImages 提交 Candidates 个图片任务并等待，返回成功任务的 URL（按提交顺序）
func (o *Orchestrator) generateImages(ctx context.Context, opts Options, report *Report, res *PromptResult) ([]string, error) {
	records := make([]*TaskRecord, opts.Candidates)
	errs := make([]error, opts.Candidates)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := range records {
		g.Go(func() error {
			req := opts.Image
			req.Prompt = res.Prompt
			rec, err := o.runTask(gctx, report, kling.TaskKindImage, res.Prompt, func(ctx context.Context) (string, error) {
				return o.deps.Generator.SubmitImage(ctx, req)
			})
			records[i], errs[i] = rec, err
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	err := g.Wait()
	o.appendImages(res, records)
	if err != nil {
		return nil, err
	}

	var urls []string
	for i, rec := range records {
		if errs[i] != nil {
			res.addIssue(StageImage, imageTarget(rec, i), errs[i])
		}
		if rec != nil && rec.State == kling.TaskSucceeded {
			urls = append(urls, rec.URL)
		}
	}
	return urls, nil
}

func (o *Orchestrator) appendImages(res *PromptResult, records []*TaskRecord) {
	for _, rec := range records {
		if rec != nil {
			res.Images = append(res.Images, rec)
		}
	}
}

func imageTarget(rec *TaskRecord, i int) string {
	if rec != nil {
		return rec.ID
	}
	return "candidate-" + strconv.Itoa(i)
}

// runTask 提交一个任务并等待其终态. 提交失败时不产生任务记录.
func (o *Orchestrator) runTask(ctx context.Context, report *Report, kind kling.TaskKind, prompt string, submit func(context.Context) (string, error)) (*TaskRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, o.tracer, "workflow."+string(kind)+"_task")
	defer span.End()

	taskID, err := submit(ctx)
	o.deps.Metrics.RecordTaskSubmitted(string(kind), err == nil)
	if err != nil {
		telemetry.RecordError(span, err)
		o.logger.Warn("task submission failed",
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil, err
	}

	rec := &TaskRecord{
		Task:  kling.Task{ID: taskID, Kind: kind, Prompt: prompt, SubmittedAt: o.now()},
		State: kling.TaskPending,
	}
	report.addTask(rec)
	span.SetAttributes(telemetry.AttrTaskID.String(taskID))

	result, err := o.deps.Waiter.WaitTask(ctx, o.deps.Generator, kind, taskID)
	if err != nil && ctx.Err() != nil {
		return rec, ctx.Err()
	}

	var (
		state    kling.TaskState
		url      string
		attempts int
	)
	switch {
	case err == nil:
		state, url, attempts = kling.TaskSucceeded, result.URL, result.Attempts
	case types.IsCode(err, types.ErrTimeout):
		state = kling.TaskTimedOut
	default:
		state = kling.TaskFailed
	}
	rec.settle(state, url, attempts, err, o.now())
	o.deps.Metrics.RecordTaskTerminal(string(kind), string(state), rec.FinishedAt.Sub(rec.SubmittedAt))

	if err != nil {
		telemetry.RecordError(span, err)
		o.logger.Warn("task did not succeed",
			zap.String("kind", string(kind)),
			zap.String("task_id", taskID),
			zap.String("state", string(state)),
			zap.Error(err))
		return rec, err
	}
	o.logger.Info("task succeeded",
		zap.String("kind", string(kind)),
		zap.String("task_id", taskID),
		zap.String("url", url))
	return rec, nil
}

// selectBest 返回胜出的候选. 返回 nil 表示后续阶段跳过.
func (o *Orchestrator) selectBest(ctx context.Context, opts Options, res *PromptResult, urls []string, logger *zap.Logger) (*evaluate.Candidate, error) {
	if !opts.SelectBest || len(urls) == 1 {
		return &evaluate.Candidate{Index: 0, URL: urls[0]}, nil
	}

	ctx, span := telemetry.StartSpan(ctx, o.tracer, "workflow.evaluate", attribute.Int("workflow.candidates", len(urls)))
	defer span.End()

	eval, err := o.deps.Evaluator.Evaluate(ctx, res.Prompt, urls)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if eval != nil {
		res.Evaluation = eval
		for _, c := range eval.Candidates {
			o.deps.Metrics.RecordCandidateScore(c.Score, c.Scored)
		}
	}
	if err != nil {
		telemetry.RecordError(span, err)
		res.addIssue(StageEvaluate, res.Prompt, err)
		logger.Warn("no best candidate, skipping video", zap.Error(err))
		return nil, nil
	}

	best := eval.BestCandidate()
	if best == nil {
		return nil, nil
	}
	chosen := *best
	span.SetAttributes(attribute.Int("workflow.best_index", chosen.Index), attribute.Int("workflow.best_score", chosen.Score))
	return &chosen, nil
}

// generateVideo 用最佳图片提交视频任务并等待
func (o *Orchestrator) generateVideo(ctx context.Context, opts Options, report *Report, res *PromptResult) error {
	req := opts.Video
	req.Image = res.Best.URL
	if req.Prompt == "" {
		req.Prompt = res.Prompt
	}

	rec, err := o.runTask(ctx, report, kling.TaskKindVideo, res.Prompt, func(ctx context.Context) (string, error) {
		return o.deps.Generator.SubmitVideo(ctx, req)
	})
	res.Video = rec
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		target := res.Best.URL
		if rec != nil {
			target = rec.ID
		}
		res.addIssue(StageVideo, target, err)
	}
	return nil
}

// collectFiles 下载最佳图片与视频，按需分类整理
func (o *Orchestrator) collectFiles(ctx context.Context, opts Options, res *PromptResult, logger *zap.Logger) error {
	urls := []string{res.Best.URL}
	if v := res.VideoURL(); v != "" {
		urls = append(urls, v)
	}

	for _, u := range urls {
		path, err := o.deps.Downloader.Download(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res.addIssue(StageDownload, u, err)
			logger.Warn("download failed", zap.String("url", u), zap.Error(err))
			continue
		}
		if u == res.Best.URL {
			res.Best.LocalPath = path
		}
		res.Files = append(res.Files, path)
	}

	if !opts.Classify {
		return nil
	}
	for i, path := range res.Files {
		if classify.KindOf(path) == classify.KindUnsupported {
			continue
		}
		a, err := o.deps.Classifier.Organize(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res.addIssue(StageClassify, filepath.Base(path), err)
			continue
		}
		res.Classified = append(res.Classified, *a)
		res.Files[i] = a.Destination
		if res.Best.LocalPath == path {
			res.Best.LocalPath = a.Destination
		}
		o.deps.Metrics.RecordFileClassified(string(a.Kind), a.Category)
	}
	return nil
}
