package kling

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BaSui01/mediaflow/internal/cache"
	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken 表示存储中没有令牌.
var ErrNoToken = errors.New("kling: no stored token")

// TokenStore 持久化令牌，供其它进程复用.
type TokenStore interface {
	Load(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, cred *Credential) error
}

// ParseCredential 不校验签名地解析令牌声明，恢复 iss/nbf/exp.
func ParseCredential(token string) (*Credential, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoToken
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("parse stored token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return nil, errors.New("parse stored token: missing exp claim")
	}

	cred := &Credential{
		Token:     token,
		Issuer:    claims.Issuer,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.NotBefore != nil {
		cred.NotBefore = claims.NotBefore.Time
	}
	return cred, nil
}

// =============================================================================
// 文件存储
// =============================================================================

// FileTokenStore 把令牌写入单个文本文件（如 api_token.txt）.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore 创建文件存储.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Path 返回文件路径.
func (s *FileTokenStore) Path() string { return s.path }

// Load 读取并解析令牌文件. 文件不存在时返回 ErrNoToken.
func (s *FileTokenStore) Load(_ context.Context) (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("read token file %s: %w", s.path, err)
	}
	return ParseCredential(string(data))
}

// Save 覆盖写入令牌文件.
func (s *FileTokenStore) Save(_ context.Context, cred *Credential) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, []byte(cred.Token), 0o600); err != nil {
		return fmt.Errorf("write token file %s: %w", s.path, err)
	}
	return nil
}

// =============================================================================
// Redis 存储
// =============================================================================

// KeyValue 是 CacheTokenStore 需要的最小键值接口，由 cache.Manager 实现.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// CacheTokenStore 把令牌放进共享缓存，TTL 等于剩余有效期.
type CacheTokenStore struct {
	kv  KeyValue
	key string
	now func() time.Time
}

// NewCacheTokenStore 创建缓存存储.
func NewCacheTokenStore(kv KeyValue, key string) *CacheTokenStore {
	return &CacheTokenStore{kv: kv, key: key, now: time.Now}
}

// Load 读取令牌. 未命中时返回 ErrNoToken.
func (s *CacheTokenStore) Load(ctx context.Context) (*Credential, error) {
	val, err := s.kv.Get(ctx, s.key)
	if cache.IsCacheMiss(err) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, err
	}
	return ParseCredential(val)
}

// Save 写入令牌. 已过期的令牌不写入.
func (s *CacheTokenStore) Save(ctx context.Context, cred *Credential) error {
	ttl := cred.Remaining(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.kv.Set(ctx, s.key, cred.Token, ttl)
}
