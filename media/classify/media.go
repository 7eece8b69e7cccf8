package classify

import (
	"path/filepath"
	"strings"
)

// MediaKind 文件类型
type MediaKind string

const (
	KindImage       MediaKind = "image"
	KindText        MediaKind = "text"
	KindUnsupported MediaKind = ""
)

var (
	imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true}
	textExtensions  = map[string]bool{".txt": true, ".md": true}
)

// KindOf 按扩展名（不区分大小写）判断文件类型
func KindOf(path string) MediaKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExtensions[ext]:
		return KindImage
	case textExtensions[ext]:
		return KindText
	default:
		return KindUnsupported
	}
}
