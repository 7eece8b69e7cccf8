package prompts

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BaSui01/mediaflow/llm/chat"
	"github.com/BaSui01/mediaflow/media/classify"
	"github.com/BaSui01/mediaflow/types"
	"go.uber.org/zap"
)

// Source 提示词来源
type Source string

const (
	SourceManual    Source = "manual"
	SourceFile      Source = "file"
	SourceGenerated Source = "generated"
	SourceImage     Source = "image"
)

// ParseSource 解析来源字符串，空串为 manual
func ParseSource(s string) (Source, error) {
	switch src := Source(strings.ToLower(strings.TrimSpace(s))); src {
	case "":
		return SourceManual, nil
	case SourceManual, SourceFile, SourceGenerated, SourceImage:
		return src, nil
	default:
		return "", types.Errorf(types.ErrInvalidInput, "unknown prompt source %q", s)
	}
}

// Spec 描述从哪里取得提示词
type Spec struct {
	Source Source `json:"source" yaml:"source"`
	// Manual 手工给出的提示词（SourceManual）
	Manual []string `json:"manual,omitempty" yaml:"manual"`
	// File 提示词文件路径（SourceFile）
	File string `json:"file,omitempty" yaml:"file"`
	// Keyword 生成主题（SourceGenerated），同时用于日志文件名
	Keyword string `json:"keyword,omitempty" yaml:"keyword"`
	// Count 生成数量（SourceGenerated），<= 0 时为 1
	Count int `json:"count,omitempty" yaml:"count"`
	// Image 参考图片的本地路径或 URL（SourceImage）
	Image string `json:"image,omitempty" yaml:"image"`
}

// Asker 发送一次多模态对话，由 chat.Client 实现
type Asker interface {
	Ask(ctx context.Context, model, system string, parts ...chat.Part) (string, error)
}

const (
	generateSystemPrompt = `You write prompts for a text-to-image model. Each prompt is a single vivid sentence describing subject, setting, lighting and style.`

	generateUserPrompt = `Write %d distinct image generation prompts about "%s".
Respond with one prompt per line, no numbering, no quotes, no additional text.`

	describeReferencePrompt = `Describe this image as a detailed prompt for a text-to-image model: main subject, composition, setting, lighting, colors and style.
Respond with only the prompt in a single paragraph, no additional text.`
)

// Collector 按 Spec 收集提示词
type Collector struct {
	asker       Asker
	textModel   string
	visionModel string
	logDir      string
	now         func() time.Time
	logger      *zap.Logger
}

// Option 配置 Collector
type Option func(*Collector)

// WithAsker 设置生成与图片描述所用的对话客户端
func WithAsker(asker Asker, textModel, visionModel string) Option {
	return func(c *Collector) {
		c.asker = asker
		c.textModel = textModel
		c.visionModel = visionModel
	}
}

// WithLogDir 设置提示词日志目录，空串表示不记录
func WithLogDir(dir string) Option {
	return func(c *Collector) { c.logDir = dir }
}

// WithClock 替换日志文件名使用的时钟
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// NewCollector 创建提示词收集器
func NewCollector(logger *zap.Logger, opts ...Option) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		now:    time.Now,
		logger: logger.With(zap.String("component", "prompts")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect 返回非空的提示词列表. 没有任何提示词时返回 NO_PROMPTS.
func (c *Collector) Collect(ctx context.Context, spec Spec) ([]string, error) {
	source := spec.Source
	if source == "" {
		source = SourceManual
	}

	var (
		list []string
		err  error
	)
	switch source {
	case SourceManual:
		list = cleanLines(spec.Manual)
	case SourceFile:
		list, err = ReadFile(spec.File)
	case SourceGenerated:
		list, err = c.generate(ctx, spec.Keyword, spec.Count)
	case SourceImage:
		list, err = c.describe(ctx, spec.Image)
	default:
		return nil, types.Errorf(types.ErrInvalidInput, "unknown prompt source %q", source)
	}
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, types.Errorf(types.ErrNoPrompts, "no prompts from %s source", source)
	}

	c.logger.Info("prompts collected", zap.String("source", string(source)), zap.Int("count", len(list)))
	return list, nil
}

// ReadFile 读取提示词文件，每行一条，跳过空行与 # 开头的注释行
func ReadFile(path string) ([]string, error) {
	if path == "" {
		return nil, types.NewError(types.ErrInvalidInput, "prompt file path is empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, types.Errorf(types.ErrInvalidInput, "open prompt file %s", path).WithCause(err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read prompt file %s: %w", path, err)
	}
	return lines, nil
}

func (c *Collector) generate(ctx context.Context, keyword string, count int) ([]string, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, types.NewError(types.ErrInvalidInput, "keyword is required for generated prompts")
	}
	if c.asker == nil {
		return nil, types.NewError(types.ErrConfiguration, "prompt generation requires an analysis client")
	}
	if count <= 0 {
		count = 1
	}

	reply, err := c.asker.Ask(ctx, c.textModel, generateSystemPrompt,
		chat.TextPart(fmt.Sprintf(generateUserPrompt, count, keyword)))
	if err != nil {
		return nil, fmt.Errorf("generate prompts: %w", err)
	}

	list := ParseList(reply)
	if len(list) > count {
		list = list[:count]
	}
	if len(list) > 0 {
		if err := c.appendLog(keyword, list); err != nil {
			c.logger.Warn("prompt log not written", zap.Error(err))
		}
	}
	return list, nil
}

func (c *Collector) describe(ctx context.Context, image string) ([]string, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return nil, types.NewError(types.ErrInvalidInput, "reference image is required for image prompts")
	}
	if c.asker == nil {
		return nil, types.NewError(types.ErrConfiguration, "image prompts require an analysis client")
	}

	ref := image
	if !strings.HasPrefix(image, "http://") && !strings.HasPrefix(image, "https://") {
		uri, err := chat.ImageDataURI(image)
		if err != nil {
			return nil, types.Errorf(types.ErrInvalidInput, "read reference image %s", image).WithCause(err)
		}
		ref = uri
	}

	reply, err := c.asker.Ask(ctx, c.visionModel, "", chat.ImagePart(ref), chat.TextPart(describeReferencePrompt))
	if err != nil {
		return nil, fmt.Errorf("describe reference image: %w", err)
	}
	prompt := strings.Join(strings.Fields(reply), " ")
	if prompt == "" {
		return nil, nil
	}
	return []string{prompt}, nil
}

// LogPath 返回 <dir>/<YYYY-MM-DD>-<keyword>.txt
func LogPath(dir string, day time.Time, keyword string) string {
	name := classify.SanitizeName(keyword)
	if name == "" {
		name = "prompts"
	}
	return filepath.Join(dir, day.Format("2006-01-02")+"-"+name+".txt")
}

func (c *Collector) appendLog(keyword string, list []string) error {
	if c.logDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.logDir, 0o755); err != nil {
		return err
	}
	path := LogPath(c.logDir, c.now(), keyword)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, p := range list {
		w.WriteString(p)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return err
	}
	c.logger.Debug("prompts logged", zap.String("path", path), zap.Int("count", len(list)))
	return nil
}

var listMarker = regexp.MustCompile(`^(\d+\s*[.)、:：]|[-*•])\s*`)

// ParseList 把模型回复拆成提示词: 每行一条，去掉编号、项目符号与包裹的引号
func ParseList(reply string) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = listMarker.ReplaceAllString(line, "")
		line = strings.Trim(line, "\"'“”` ")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func cleanLines(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
