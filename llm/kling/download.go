package kling

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/BaSui01/mediaflow/internal/tlsutil"
	"github.com/BaSui01/mediaflow/types"
	"go.uber.org/zap"
)

// Downloader 把生成结果保存到本地下载目录.
// 同名文件直接覆盖，去重交给分类整理.
type Downloader struct {
	dir    string
	client *http.Client
	logger *zap.Logger
}

// NewDownloader 创建下载器. client 为空时使用加固的默认客户端.
func NewDownloader(dir string, client *http.Client, logger *zap.Logger) *Downloader {
	if client == nil {
		client = tlsutil.NewHTTPClient(tlsutil.ClientOptions{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		dir:    dir,
		client: client,
		logger: logger.With(zap.String("component", "downloader")),
	}
}

// Dir 返回下载目录.
func (d *Downloader) Dir() string { return d.dir }

// Download 下载 rawURL，返回本地路径.
func (d *Downloader) Download(ctx context.Context, rawURL string) (string, error) {
	name := FileNameFromURL(rawURL)
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", types.NewError(types.ErrConfiguration, "create download dir").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", types.NewError(types.ErrInvalidInput, "create download request").WithCause(err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", types.Errorf(types.ErrTransport, "download %s", rawURL).WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", types.Errorf(types.ErrTransport, "download %s: status=%d", rawURL, resp.StatusCode).
			WithHTTPStatus(resp.StatusCode)
	}

	tmp, err := os.CreateTemp(d.dir, ".download-*")
	if err != nil {
		return "", types.NewError(types.ErrTransport, "create temp file").WithCause(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", types.Errorf(types.ErrTransport, "write %s", name).WithCause(err).WithRetryable(true)
	}
	if err := tmp.Close(); err != nil {
		return "", types.Errorf(types.ErrTransport, "close %s", name).WithCause(err)
	}

	dst := filepath.Join(d.dir, name)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", types.Errorf(types.ErrTransport, "move %s", name).WithCause(err)
	}

	d.logger.Info("artifact downloaded", zap.String("url", rawURL), zap.String("path", dst))
	return dst, nil
}

// FileNameFromURL 取 URL 路径的最后一段并去掉查询串.
// 路径为空时按 URL 的哈希命名.
func FileNameFromURL(rawURL string) string {
	var base string
	if u, err := url.Parse(rawURL); err == nil {
		base = path.Base(u.Path)
	}
	if base == "" || base == "." || base == "/" {
		sum := sha1.Sum([]byte(rawURL))
		return fmt.Sprintf("artifact-%s.bin", hex.EncodeToString(sum[:6]))
	}
	return base
}
