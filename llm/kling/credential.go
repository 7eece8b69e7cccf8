package kling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/types"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Credential 是一次签发的 Bearer 令牌及其有效窗口.
// 从存储加载的令牌 IssuedAt 为零值.
type Credential struct {
	Token     string    `json:"token"`
	Issuer    string    `json:"issuer"`
	IssuedAt  time.Time `json:"issued_at"`
	NotBefore time.Time `json:"not_before"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidAt 报告令牌在 t 时刻是否可用: NotBefore <= t < ExpiresAt.
func (c *Credential) ValidAt(t time.Time) bool {
	if c == nil || c.Token == "" {
		return false
	}
	return !t.Before(c.NotBefore) && t.Before(c.ExpiresAt)
}

// Expired 报告令牌在 t+margin 时刻是否已过期.
func (c *Credential) Expired(t time.Time, margin time.Duration) bool {
	if c == nil || c.Token == "" {
		return true
	}
	return !t.Add(margin).Before(c.ExpiresAt)
}

// Remaining 返回距过期的剩余时间.
func (c *Credential) Remaining(t time.Time) time.Duration {
	if c == nil {
		return 0
	}
	if d := c.ExpiresAt.Sub(t); d > 0 {
		return d
	}
	return 0
}

// TokenSource 为请求提供当前可用的令牌.
type TokenSource interface {
	Token(ctx context.Context) (*Credential, error)
}

// Provisioner 用 Access Key / Secret Key 签发 HS256 令牌并在有效期内复用.
// 并发安全.
type Provisioner struct {
	accessKey string
	secretKey []byte
	lifetime  time.Duration
	skew      time.Duration
	margin    time.Duration

	now    func() time.Time
	store  TokenStore
	logger *zap.Logger

	mu      sync.Mutex
	current *Credential
}

// ProvisionerOption 配置 Provisioner.
type ProvisionerOption func(*Provisioner)

// WithClock 替换时间来源.
func WithClock(now func() time.Time) ProvisionerOption {
	return func(p *Provisioner) { p.now = now }
}

// WithStore 设置令牌存储，用于多进程交接.
func WithStore(store TokenStore) ProvisionerOption {
	return func(p *Provisioner) { p.store = store }
}

// WithLogger 设置日志记录器.
func WithLogger(logger *zap.Logger) ProvisionerOption {
	return func(p *Provisioner) { p.logger = logger }
}

// NewProvisioner 创建令牌签发器. 任一密钥为空时返回 CONFIGURATION 错误.
func NewProvisioner(accessKey, secretKey string, cfg config.CredentialConfig, opts ...ProvisionerOption) (*Provisioner, error) {
	if accessKey == "" || secretKey == "" {
		return nil, types.NewError(types.ErrConfiguration, "kling access key and secret key are required").
			WithProvider(providerName)
	}

	defaults := config.DefaultCredentialConfig()
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaults.Lifetime
	}
	if cfg.Skew <= 0 {
		cfg.Skew = defaults.Skew
	}
	if cfg.RefreshMargin < 0 || cfg.RefreshMargin >= cfg.Lifetime {
		cfg.RefreshMargin = 0
	}

	p := &Provisioner{
		accessKey: accessKey,
		secretKey: []byte(secretKey),
		lifetime:  cfg.Lifetime,
		skew:      cfg.Skew,
		margin:    cfg.RefreshMargin,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	p.logger = p.logger.With(zap.String("component", "kling_credential"))
	return p, nil
}

// Issue 签发新令牌，不读写缓存.
// 声明: iss = access key, exp = now + lifetime, nbf = now - skew.
func (p *Provisioner) Issue() (*Credential, error) {
	now := p.now().Truncate(time.Second)
	cred := &Credential{
		Issuer:    p.accessKey,
		IssuedAt:  now,
		NotBefore: now.Add(-p.skew),
		ExpiresAt: now.Add(p.lifetime),
	}

	claims := jwt.RegisteredClaims{
		Issuer:    cred.Issuer,
		ExpiresAt: jwt.NewNumericDate(cred.ExpiresAt),
		NotBefore: jwt.NewNumericDate(cred.NotBefore),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secretKey)
	if err != nil {
		return nil, types.NewError(types.ErrConfiguration, "sign kling token").WithCause(err).WithProvider(providerName)
	}
	cred.Token = signed
	return cred, nil
}

// Token 返回可用令牌: 内存 → 存储 → 新签发（并写回存储）.
func (p *Provisioner) Token(ctx context.Context) (*Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.usable(p.current, now) {
		return p.current, nil
	}

	if p.store != nil {
		stored, err := p.store.Load(ctx)
		switch {
		case err == nil && stored.Issuer == p.accessKey && p.usable(stored, now):
			p.logger.Debug("reusing stored token", zap.Time("expires_at", stored.ExpiresAt))
			p.current = stored
			return stored, nil
		case err != nil && !errors.Is(err, ErrNoToken):
			p.logger.Warn("load stored token failed", zap.Error(err))
		}
	}

	cred, err := p.Issue()
	if err != nil {
		return nil, err
	}
	p.current = cred
	p.logger.Info("issued token", zap.Time("expires_at", cred.ExpiresAt))

	if p.store != nil {
		if err := p.store.Save(ctx, cred); err != nil {
			p.logger.Warn("save token failed", zap.Error(err))
		}
	}
	return cred, nil
}

func (p *Provisioner) usable(c *Credential, now time.Time) bool {
	return c.ValidAt(now) && !c.Expired(now, p.margin)
}
