package kling

import "time"

const providerName = "kling"

// TaskKind 任务类型.
type TaskKind string

const (
	TaskKindImage TaskKind = "image"
	TaskKindVideo TaskKind = "video"
)

// endpoint 返回提交/查询路径.
func (k TaskKind) endpoint() string {
	if k == TaskKindVideo {
		return "/v1/videos/image2video"
	}
	return "/v1/images/generations"
}

// Valid 报告类型是否受支持.
func (k TaskKind) Valid() bool {
	return k == TaskKindImage || k == TaskKindVideo
}

// TaskState 任务状态. 终态不会再变化.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
	TaskTimedOut  TaskState = "timed_out"
)

// Terminal 报告状态是否为终态.
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed || s == TaskTimedOut
}

// TaskStatus 是一次查询的结果.
type TaskStatus struct {
	TaskID    string    `json:"task_id"`
	Kind      TaskKind  `json:"kind"`
	State     TaskState `json:"state"`
	URL       string    `json:"url,omitempty"`
	Message   string    `json:"message,omitempty"`
	RawStatus string    `json:"raw_status,omitempty"`
}

// =============================================================================
// 请求体
// =============================================================================

// ImageRequest 文生图/图生图请求.
type ImageRequest struct {
	Model          string  `json:"model_name"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Image          string  `json:"image"`           // Base64 或 URL
	ImageReference string  `json:"image_reference"` // subject, face
	ImageFidelity  float64 `json:"image_fidelity"`
	HumanFidelity  float64 `json:"human_fidelity"`
	N              int     `json:"n"`
	AspectRatio    string  `json:"aspect_ratio"`
	CallbackURL    string  `json:"callback_url"`
}

// Trajectory 运动轨迹点.
type Trajectory struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DynamicMask 动态笔刷区域及其轨迹.
type DynamicMask struct {
	Mask         string       `json:"mask"`
	Trajectories []Trajectory `json:"trajectories"`
}

// VideoRequest 图生视频请求.
type VideoRequest struct {
	Model        string        `json:"model_name"`
	Mode         string        `json:"mode"`     // std, pro
	Duration     string        `json:"duration"` // "5", "10"
	Image        string        `json:"image"`
	Prompt       string        `json:"prompt"`
	CFGScale     float64       `json:"cfg_scale"`
	StaticMask   string        `json:"static_mask,omitempty"`
	DynamicMasks []DynamicMask `json:"dynamic_masks,omitempty"`
}

// =============================================================================
// 响应体
// =============================================================================

type envelope struct {
	Code      int       `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Data      *taskData `json:"data"`
}

type taskData struct {
	TaskID        string      `json:"task_id"`
	TaskStatus    string      `json:"task_status"`
	TaskStatusMsg string      `json:"task_status_msg"`
	TaskResult    *taskResult `json:"task_result"`
	CreatedAt     int64       `json:"created_at"`
	UpdatedAt     int64       `json:"updated_at"`
}

type taskResult struct {
	Images []resultItem `json:"images"`
	Videos []resultItem `json:"videos"`
}

type resultItem struct {
	URL      string `json:"url"`
	Duration string `json:"duration,omitempty"`
}

// Task 是一个已提交的生成任务.
type Task struct {
	ID          string    `json:"id"`
	Kind        TaskKind  `json:"kind"`
	Prompt      string    `json:"prompt"`
	SubmittedAt time.Time `json:"submitted_at"`
}
