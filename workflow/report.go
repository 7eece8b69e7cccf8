package workflow

import (
	"sync"
	"time"

	"github.com/BaSui01/mediaflow/llm/evaluate"
	"github.com/BaSui01/mediaflow/llm/kling"
	"github.com/BaSui01/mediaflow/media/classify"
	"github.com/BaSui01/mediaflow/types"
)

// TaskRecord 一个已提交任务的生命周期. 进入终态后不再改变.
type TaskRecord struct {
	kling.Task
	State      kling.TaskState `json:"state"`
	URL        string          `json:"url,omitempty"`
	Attempts   int             `json:"attempts,omitempty"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
	Code       types.ErrorCode `json:"code,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// settle 把任务推进到终态. 已是终态时返回 false 且不做任何修改.
func (t *TaskRecord) settle(state kling.TaskState, url string, attempts int, err error, at time.Time) bool {
	if t.State.Terminal() || !state.Terminal() {
		return false
	}
	t.State = state
	t.URL = url
	t.Attempts = attempts
	t.FinishedAt = at
	if err != nil {
		t.Code = types.GetErrorCode(err)
		t.Error = err.Error()
	}
	return true
}

// Stage 主流程的阶段名
type Stage string

const (
	StageCredential Stage = "credential"
	StagePrompts    Stage = "prompts"
	StageImage      Stage = "image"
	StageEvaluate   Stage = "evaluate"
	StageVideo      Stage = "video"
	StageDownload   Stage = "download"
	StageClassify   Stage = "classify"
)

// Issue 一次非致命失败
type Issue struct {
	Stage  Stage           `json:"stage"`
	Target string          `json:"target,omitempty"`
	Code   types.ErrorCode `json:"code,omitempty"`
	Error  string          `json:"error"`
}

// PromptResult 一个提示词的全部产出
type PromptResult struct {
	Prompt     string                `json:"prompt"`
	Images     []*TaskRecord         `json:"images"`
	Evaluation *evaluate.Evaluation  `json:"evaluation,omitempty"`
	Best       *evaluate.Candidate   `json:"best,omitempty"`
	Video      *TaskRecord           `json:"video,omitempty"`
	Files      []string              `json:"files,omitempty"`
	Classified []classify.Assignment `json:"classified,omitempty"`
	Issues     []Issue               `json:"issues,omitempty"`
}

// VideoURL 返回成功视频的地址
func (p *PromptResult) VideoURL() string {
	if p.Video == nil || p.Video.State != kling.TaskSucceeded {
		return ""
	}
	return p.Video.URL
}

func (p *PromptResult) addIssue(stage Stage, target string, err error) {
	p.Issues = append(p.Issues, Issue{
		Stage:  stage,
		Target: target,
		Code:   types.GetErrorCode(err),
		Error:  err.Error(),
	})
}

// Report 一次运行的结果
type Report struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Results    []*PromptResult `json:"results"`
	Tasks      []*TaskRecord   `json:"tasks"`
	Code       types.ErrorCode `json:"code,omitempty"`
	Error      string          `json:"error,omitempty"`

	mu sync.Mutex
}

// addTask 登记一个新提交的任务，可被并发调用
func (r *Report) addTask(t *TaskRecord) {
	r.mu.Lock()
	r.Tasks = append(r.Tasks, t)
	r.mu.Unlock()
}

// Summary 按类型与状态统计任务
type Summary struct {
	Prompts   int `json:"prompts"`
	Submitted int `json:"submitted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	TimedOut  int `json:"timed_out"`
	Videos    int `json:"videos"`
}

// Summary 返回任务统计
func (r *Report) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{Prompts: len(r.Results), Submitted: len(r.Tasks)}
	for _, t := range r.Tasks {
		switch t.State {
		case kling.TaskSucceeded:
			s.Succeeded++
			if t.Kind == kling.TaskKindVideo {
				s.Videos++
			}
		case kling.TaskFailed:
			s.Failed++
		case kling.TaskTimedOut:
			s.TimedOut++
		}
	}
	return s
}
