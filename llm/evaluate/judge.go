package evaluate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/BaSui01/mediaflow/llm/chat"
	"github.com/BaSui01/mediaflow/types"
	"go.uber.org/zap"
)

// Judgement 单张候选图的评分结果
type Judgement struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// Scorer 为一张候选图打分（0-100）
type Scorer interface {
	Score(ctx context.Context, prompt, imageURL string) (*Judgement, error)
}

// Asker 发送一次多模态对话，由 chat.Client 实现
type Asker interface {
	Ask(ctx context.Context, model, system string, parts ...chat.Part) (string, error)
}

// DefaultRubric 评分提示词模板，%s 为原始提示词
const DefaultRubric = `你是一名严格的图像质量评审。请根据以下原始提示词评估这张图片：

原始提示词：%s

评分维度：
1. 提示词符合度：画面内容是否准确表达了提示词
2. 美学质量：构图、色彩、光影是否协调
3. 清晰度：细节是否清晰，有无明显瑕疵或畸变

请给出 0-100 的整数总分，并只返回如下 JSON：
{"score": <0-100 的整数>, "reason": "<简短理由>"}`

// ChatScorer 使用视觉模型评分
type ChatScorer struct {
	asker  Asker
	model  string
	rubric string
	logger *zap.Logger
}

// NewChatScorer 创建视觉模型评分器. rubric 为空时使用 DefaultRubric.
func NewChatScorer(asker Asker, model, rubric string, logger *zap.Logger) *ChatScorer {
	if rubric == "" {
		rubric = DefaultRubric
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatScorer{
		asker:  asker,
		model:  model,
		rubric: rubric,
		logger: logger.With(zap.String("component", "chat_scorer")),
	}
}

// Score 实现 Scorer
func (s *ChatScorer) Score(ctx context.Context, prompt, imageURL string) (*Judgement, error) {
	content, err := s.asker.Ask(ctx, s.model, "",
		chat.TextPart(fmt.Sprintf(s.rubric, prompt)),
		chat.ImagePart(imageURL))
	if err != nil {
		return nil, err
	}

	j, err := ParseJudgement(content)
	if err != nil {
		s.logger.Debug("unparseable judgement", zap.String("content", content))
		return nil, err
	}
	return j, nil
}

var scorePattern = regexp.MustCompile(`(?i)score[^\d\-]{0,12}(-?\d+)`)

// ParseJudgement 解析评分响应: 先按 JSON 对象解析，失败再用正则提取
// score 之后的第一个整数. 分数被截断到 0..100.
func ParseJudgement(content string) (*Judgement, error) {
	if raw := extractJSON(content); raw != "" {
		var parsed struct {
			Score  any    `json:"score"`
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			if score, ok := toScore(parsed.Score); ok {
				return &Judgement{Score: score, Reason: strings.TrimSpace(parsed.Reason)}, nil
			}
		}
	}

	if m := scorePattern.FindStringSubmatch(content); m != nil {
		if n, ok := atoiScore(m[1]); ok {
			return &Judgement{Score: n, Reason: strings.TrimSpace(content)}, nil
		}
	}

	return nil, types.NewError(types.ErrParse, "judgement has no score")
}

func toScore(v any) (int, bool) {
	switch s := v.(type) {
	case float64:
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return 0, false
		}
		return int(math.Round(math.Max(0, math.Min(100, s)))), true
	case string:
		return atoiScore(strings.TrimSpace(s))
	default:
		return 0, false
	}
}

// atoiScore 解析整数分数，超出 int 范围的按符号截断
func atoiScore(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			if strings.HasPrefix(s, "-") {
				return 0, true
			}
			return 100, true
		}
		return 0, false
	}
	return clamp(n), true
}

// extractJSON 截取第一个 { 与最后一个 } 之间的内容
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start == -1 || end == -1 || end <= start {
		return ""
	}

	return s[start : end+1]
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
