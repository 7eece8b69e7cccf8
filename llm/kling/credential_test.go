package kling

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var testNow = time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time          { return c.t }
func (c *manualClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testCredentialConfig() config.CredentialConfig {
	return config.CredentialConfig{
		Lifetime:      12 * time.Hour,
		Skew:          5 * time.Second,
		RefreshMargin: time.Minute,
	}
}

func TestNewProvisioner_MissingKeys(t *testing.T) {
	tests := []struct {
		name string
		ak   string
		sk   string
	}{
		{name: "missing access key", ak: "", sk: "secret"},
		{name: "missing secret key", ak: "access", sk: ""},
		{name: "missing both", ak: "", sk: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvisioner(tt.ak, tt.sk, testCredentialConfig())
			require.Error(t, err)
			assert.Nil(t, p)
			assert.True(t, types.IsCode(err, types.ErrConfiguration))
		})
	}
}

func TestProvisioner_IssueClaims(t *testing.T) {
	p, err := NewProvisioner("ak-123", "sk-456", testCredentialConfig(),
		WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)

	cred, err := p.Issue()
	require.NoError(t, err)

	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(cred.Token, &claims,
		func(*jwt.Token) (any, error) { return []byte("sk-456"), nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	assert.True(t, tok.Valid)
	assert.Equal(t, "JWT", tok.Header["typ"])

	assert.Equal(t, "ak-123", claims.Issuer)
	assert.Equal(t, testNow.Add(12*time.Hour), claims.ExpiresAt.Time.UTC())
	assert.Equal(t, testNow.Add(-5*time.Second), claims.NotBefore.Time.UTC())
	assert.Nil(t, claims.IssuedAt)

	assert.True(t, cred.ValidAt(testNow))
	assert.False(t, cred.ValidAt(testNow.Add(-6*time.Second)))
	assert.False(t, cred.ValidAt(testNow.Add(12*time.Hour)))
}

func TestProvisioner_IssueWindowProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ak := rapid.StringMatching(`[A-Za-z0-9]{1,32}`).Draw(t, "ak")
		sk := rapid.StringMatching(`[A-Za-z0-9]{1,64}`).Draw(t, "sk")
		now := time.Unix(rapid.Int64Range(1_000_000_000, 4_000_000_000).Draw(t, "now"), 0)
		lifetime := time.Duration(rapid.IntRange(60, 86400).Draw(t, "lifetime")) * time.Second

		cfg := testCredentialConfig()
		cfg.Lifetime = lifetime
		p, err := NewProvisioner(ak, sk, cfg, WithClock(func() time.Time { return now }))
		if err != nil {
			t.Fatalf("new provisioner: %v", err)
		}
		cred, err := p.Issue()
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if !cred.NotBefore.Before(now) {
			t.Fatalf("not-before %v is not earlier than now %v", cred.NotBefore, now)
		}
		if got := cred.ExpiresAt.Sub(now); got != lifetime {
			t.Fatalf("expiry is %v after now, want %v", got, lifetime)
		}
	})
}

func TestProvisioner_IssueTruncatesSubSecond(t *testing.T) {
	now := testNow.Add(750 * time.Millisecond)
	p, err := NewProvisioner("ak", "sk", testCredentialConfig(), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	cred, err := p.Issue()
	require.NoError(t, err)
	assert.True(t, cred.NotBefore.Before(now))
	assert.Equal(t, testNow, cred.IssuedAt)
	assert.Equal(t, 12*time.Hour, cred.ExpiresAt.Sub(cred.IssuedAt))
}

func TestProvisioner_TokenReuseAndRefresh(t *testing.T) {
	clock := &manualClock{t: testNow}
	p, err := NewProvisioner("ak", "sk", testCredentialConfig(), WithClock(clock.Now))
	require.NoError(t, err)

	ctx := context.Background()
	first, err := p.Token(ctx)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	again, err := p.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Token, again.Token)

	// 进入刷新余量后重新签发
	clock.Advance(11*time.Hour - 30*time.Second)
	refreshed, err := p.Token(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, refreshed.Token)
	assert.Equal(t, clock.Now().Truncate(time.Second).Add(12*time.Hour), refreshed.ExpiresAt)
}

func TestProvisioner_TokenFileHandoff(t *testing.T) {
	path := t.TempDir() + "/api_token.txt"
	clock := &manualClock{t: testNow}
	ctx := context.Background()

	writer, err := NewProvisioner("ak", "sk", testCredentialConfig(),
		WithClock(clock.Now), WithStore(NewFileTokenStore(path)))
	require.NoError(t, err)
	issued, err := writer.Token(ctx)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	reader, err := NewProvisioner("ak", "sk", testCredentialConfig(),
		WithClock(clock.Now), WithStore(NewFileTokenStore(path)))
	require.NoError(t, err)
	loaded, err := reader.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, issued.Token, loaded.Token)
	assert.True(t, loaded.IssuedAt.IsZero())

	// 不同 access key 不复用
	other, err := NewProvisioner("other-ak", "sk", testCredentialConfig(),
		WithClock(clock.Now), WithStore(NewFileTokenStore(path)))
	require.NoError(t, err)
	fresh, err := other.Token(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, issued.Token, fresh.Token)
	assert.Equal(t, "other-ak", fresh.Issuer)
}

func TestCredential_Expired(t *testing.T) {
	cred := &Credential{Token: "x", NotBefore: testNow, ExpiresAt: testNow.Add(time.Hour)}

	assert.False(t, cred.Expired(testNow, time.Minute))
	assert.True(t, cred.Expired(testNow.Add(59*time.Minute+30*time.Second), time.Minute))
	assert.True(t, cred.Expired(testNow.Add(time.Hour), 0))
	assert.True(t, (*Credential)(nil).Expired(testNow, 0))
	assert.Equal(t, time.Hour, cred.Remaining(testNow))
	assert.Zero(t, cred.Remaining(testNow.Add(2*time.Hour)))
}
