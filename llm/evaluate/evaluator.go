package evaluate

import (
	"context"
	"fmt"

	"github.com/BaSui01/mediaflow/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Candidate 一张候选图及其评分
// Scored 为 false 表示未能得到分数，不参与评选.
type Candidate struct {
	Index     int    `json:"index"`
	URL       string `json:"url"`
	LocalPath string `json:"local_path,omitempty"`
	Score     int    `json:"score"`
	Scored    bool   `json:"scored"`
	Reason    string `json:"reason,omitempty"`
	Err       error  `json:"-"`
}

// Evaluation 一次评选的结果，Best 为 -1 表示没有可用候选
type Evaluation struct {
	Prompt     string      `json:"prompt"`
	Candidates []Candidate `json:"candidates"`
	Best       int         `json:"best"`
}

// BestCandidate 返回胜出的候选，没有时返回 nil
func (e *Evaluation) BestCandidate() *Candidate {
	if e == nil || e.Best < 0 || e.Best >= len(e.Candidates) {
		return nil
	}
	return &e.Candidates[e.Best]
}

// SelectBest 从左到右扫描，只有严格更高的分数才替换当前最佳，
// 因此同分时保留最先出现的候选.
func SelectBest(candidates []Candidate) (int, bool) {
	best := -1
	for i := range candidates {
		if !candidates[i].Scored {
			continue
		}
		if best == -1 || candidates[i].Score > candidates[best].Score {
			best = i
		}
	}
	return best, best >= 0
}

// ScoreObserver 接收每个候选的评分结果（指标上报用），可能被并发调用
type ScoreObserver func(c Candidate)

// Evaluator 对多张候选图并发评分并选出最佳
type Evaluator struct {
	scorer      Scorer
	concurrency int
	observe     ScoreObserver
	logger      *zap.Logger
}

// NewEvaluator 创建评选器. concurrency < 1 时按 1 处理.
func NewEvaluator(scorer Scorer, concurrency int, logger *zap.Logger) *Evaluator {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		scorer:      scorer,
		concurrency: concurrency,
		logger:      logger.With(zap.String("component", "evaluator")),
	}
}

// OnScore 设置评分回调
func (e *Evaluator) OnScore(fn ScoreObserver) { e.observe = fn }

// Evaluate 为每个 URL 评分并选出最佳. 单个候选评分失败不影响其它候选；
// 没有任何候选得到分数时返回 NO_CANDIDATE，同时返回含全部候选的 Evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, prompt string, urls []string) (*Evaluation, error) {
	if len(urls) == 0 {
		return nil, types.NewError(types.ErrInvalidInput, "no candidates to evaluate")
	}

	candidates := make([]Candidate, len(urls))
	for i, u := range urls {
		candidates[i] = Candidate{Index: i, URL: u}
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range candidates {
		g.Go(func() error {
			c := &candidates[i]
			j, err := e.scorer.Score(ctx, prompt, c.URL)
			if err != nil {
				c.Err = err
				e.logger.Warn("candidate unscored",
					zap.Int("index", c.Index),
					zap.String("url", c.URL),
					zap.Error(err))
			} else {
				c.Score = j.Score
				c.Reason = j.Reason
				c.Scored = true
				e.logger.Info("candidate scored",
					zap.Int("index", c.Index),
					zap.Int("score", c.Score))
			}
			if e.observe != nil {
				e.observe(*c)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	eval := &Evaluation{Prompt: prompt, Candidates: candidates, Best: -1}
	best, ok := SelectBest(candidates)
	if !ok {
		return eval, types.Errorf(types.ErrNoCandidate, "none of %d candidates could be scored", len(candidates))
	}
	eval.Best = best

	e.logger.Info("best candidate selected",
		zap.Int("index", best),
		zap.Int("score", candidates[best].Score),
		zap.String("url", candidates[best].URL))
	return eval, nil
}

// String 便于日志输出
func (c Candidate) String() string {
	if !c.Scored {
		return fmt.Sprintf("#%d unscored", c.Index)
	}
	return fmt.Sprintf("#%d score=%d", c.Index, c.Score)
}
