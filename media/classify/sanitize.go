package classify

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// MaxNameLength 文件名（不含扩展名）的最大字符数
const MaxNameLength = 50

// DefaultCategory AI 不可用或返回为空时使用的分类
const DefaultCategory = "misc"

// TextCategories 文本文件允许的分类
var TextCategories = []string{"documents", "notes", "code", "creative", "data", "communication", "misc"}

var (
	separatorPattern  = regexp.MustCompile(`[\s\p{Z}\-.]+`)
	disallowedPattern = regexp.MustCompile(`[^\p{L}\p{N}_]`)
	underscoreRun     = regexp.MustCompile(`_+`)
	nonCategoryChars  = regexp.MustCompile(`[^a-z0-9_]`)
)

// SanitizeName 把模型给出的描述转换为安全的文件名主体:
// 小写；空白、连字符、点号折叠为下划线；去掉其余非字母数字字符；
// 合并连续下划线；去掉首尾下划线；最长 50 个字符.
// 结果可能为空，由调用方决定回退值. 对结果再次调用不会改变它.
func SanitizeName(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = separatorPattern.ReplaceAllString(s, "_")
	s = disallowedPattern.ReplaceAllString(s, "")
	s = underscoreRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")

	if r := []rune(s); len(r) > MaxNameLength {
		s = strings.TrimRight(string(r[:MaxNameLength]), "_")
	}
	return s
}

// SanitizeCategory 规范化图片分类标签，结果为空时返回 misc.
func SanitizeCategory(raw string) string {
	s := nonCategoryChars.ReplaceAllString(SanitizeName(raw), "")
	s = strings.Trim(underscoreRun.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return DefaultCategory
	}
	return s
}

// NormalizeTextCategory 把文本分类限制在 TextCategories 内，其余一律为 misc.
func NormalizeTextCategory(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = nonCategoryChars.ReplaceAllString(s, "")
	s = strings.Trim(underscoreRun.ReplaceAllString(s, "_"), "_")
	for _, c := range TextCategories {
		if s == c {
			return c
		}
	}
	return DefaultCategory
}

// UniquePath 返回 dir 下第一个不存在的 <stem><ext>、<stem>_1<ext>、<stem>_2<ext>…
func UniquePath(dir, stem, ext string) string {
	candidate := filepath.Join(dir, stem+ext)
	for n := 1; exists(candidate); n++ {
		candidate = filepath.Join(dir, stem+"_"+strconv.Itoa(n)+ext)
	}
	return candidate
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
