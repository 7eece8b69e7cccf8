package classify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/BaSui01/mediaflow/types"
	"go.uber.org/zap"
)

// Mode 整理模式
type Mode string

const (
	ModeRenameClassify Mode = "rename-classify"
	ModeClassifyOnly   Mode = "classify-only"
)

// ParseMode 解析模式字符串，空串为 rename-classify
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.TrimSpace(s)) {
	case "", ModeRenameClassify:
		return ModeRenameClassify, nil
	case ModeClassifyOnly:
		return ModeClassifyOnly, nil
	default:
		return "", types.Errorf(types.ErrInvalidInput, "unknown classify mode %q", s)
	}
}

// Assignment 一个文件的分类结果及其最终位置
type Assignment struct {
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Kind        MediaKind `json:"kind"`
	Category    string    `json:"category"`
	Name        string    `json:"name"`
	Renamed     bool      `json:"renamed"`
}

// FailedFile 处理失败的文件
type FailedFile struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Summary 一次目录整理的汇总
type Summary struct {
	Found      int            `json:"found"`
	Moved      []Assignment   `json:"moved"`
	Failed     []FailedFile   `json:"failed,omitempty"`
	Categories map[string]int `json:"categories"`
}

// Organizer 把文件重命名并移动到 <root>/<category>/ 下.
// 所有模型调用都是尽力而为: 失败时分类回退为 misc，名称回退为原文件名.
type Organizer struct {
	root     string
	analyzer Analyzer
	mode     Mode
	observe  func(Assignment)
	logger   *zap.Logger
}

// NewOrganizer 创建整理器
func NewOrganizer(root string, analyzer Analyzer, mode Mode, logger *zap.Logger) *Organizer {
	if mode == "" {
		mode = ModeRenameClassify
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Organizer{
		root:     root,
		analyzer: analyzer,
		mode:     mode,
		logger:   logger.With(zap.String("component", "classifier"), zap.String("mode", string(mode))),
	}
}

// OnMoved 设置每个文件移动后的回调
func (o *Organizer) OnMoved(fn func(Assignment)) { o.observe = fn }

// Root 返回整理根目录
func (o *Organizer) Root() string { return o.root }

// Organize 处理单个文件
func (o *Organizer) Organize(ctx context.Context, path string) (*Assignment, error) {
	kind := KindOf(path)
	if kind == KindUnsupported {
		return nil, types.Errorf(types.ErrInvalidInput, "unsupported file type: %s", filepath.Base(path))
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	logger := o.logger.With(zap.String("file", filepath.Base(path)))

	var category, name string
	switch kind {
	case KindImage:
		category, name = o.analyzeImage(ctx, path, logger)
	case KindText:
		category, name = o.analyzeText(ctx, path, logger)
	}
	if name == "" {
		name = stem
	}

	dir := filepath.Join(o.root, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create category dir %s: %w", category, err)
	}

	dst := UniquePath(dir, name, ext)
	if err := os.Rename(path, dst); err != nil {
		return nil, fmt.Errorf("move %s: %w", filepath.Base(path), err)
	}

	a := Assignment{
		Source:      path,
		Destination: dst,
		Kind:        kind,
		Category:    category,
		Name:        strings.TrimSuffix(filepath.Base(dst), ext),
		Renamed:     filepath.Base(dst) != filepath.Base(path),
	}
	logger.Info("file organized",
		zap.String("category", category),
		zap.String("destination", filepath.Join(category, filepath.Base(dst))))
	if o.observe != nil {
		o.observe(a)
	}
	return &a, nil
}

func (o *Organizer) analyzeImage(ctx context.Context, path string, logger *zap.Logger) (category, name string) {
	category = DefaultCategory
	if raw, err := o.analyzer.CategorizeImage(ctx, path); err != nil {
		logger.Warn("image category unavailable, using misc", zap.Error(err))
	} else {
		category = SanitizeCategory(raw)
	}

	if o.mode == ModeRenameClassify {
		if raw, err := o.analyzer.DescribeImage(ctx, path); err != nil {
			logger.Warn("image name unavailable, keeping original", zap.Error(err))
		} else {
			name = SanitizeName(raw)
		}
	}
	return category, name
}

func (o *Organizer) analyzeText(ctx context.Context, path string, logger *zap.Logger) (category, name string) {
	category = DefaultCategory
	content, err := readText(path)
	if err != nil || strings.TrimSpace(content) == "" {
		logger.Warn("text content unavailable, using misc", zap.Error(err))
		return category, ""
	}

	if raw, err := o.analyzer.CategorizeText(ctx, content); err != nil {
		logger.Warn("text category unavailable, using misc", zap.Error(err))
	} else {
		category = NormalizeTextCategory(raw)
	}

	if o.mode == ModeRenameClassify {
		if raw, err := o.analyzer.DescribeText(ctx, content); err != nil {
			logger.Warn("text name unavailable, keeping original", zap.Error(err))
		} else {
			name = SanitizeName(raw)
		}
	}
	return category, name
}

// OrganizeDir 处理根目录下（不含子目录）的所有图片与文本文件.
// 单个文件失败只记录在 Summary.Failed 中.
func (o *Organizer) OrganizeDir(ctx context.Context) (*Summary, error) {
	files, err := o.scan()
	if err != nil {
		return nil, err
	}

	summary := &Summary{Found: len(files), Categories: make(map[string]int)}
	if len(files) == 0 {
		o.logger.Info("no media files found", zap.String("root", o.root))
		return summary, nil
	}
	o.logger.Info("organizing media files", zap.String("root", o.root), zap.Int("count", len(files)))

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		a, err := o.Organize(ctx, path)
		if err != nil {
			o.logger.Warn("file skipped", zap.String("file", path), zap.Error(err))
			summary.Failed = append(summary.Failed, FailedFile{Path: path, Error: err.Error()})
			continue
		}
		summary.Moved = append(summary.Moved, *a)
		summary.Categories[a.Category]++
	}

	for _, category := range sortedKeys(summary.Categories) {
		o.logger.Info("category summary",
			zap.String("category", category),
			zap.Int("files", summary.Categories[category]))
	}
	return summary, nil
}

// scan 列出根目录下受支持的文件（按名称排序）
func (o *Organizer) scan() ([]string, error) {
	entries, err := os.ReadDir(o.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, types.Errorf(types.ErrInvalidInput, "media root %s does not exist", o.root)
	}
	if err != nil {
		return nil, fmt.Errorf("read media root: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if KindOf(e.Name()) == KindUnsupported {
			continue
		}
		files = append(files, filepath.Join(o.root, e.Name()))
	}
	return files, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), ""), nil
	}
	return string(data), nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
