package mediaflow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/internal/metrics"
	"github.com/BaSui01/mediaflow/llm/kling"
	"github.com/BaSui01/mediaflow/prompts"
	"github.com/BaSui01/mediaflow/testutil"
	"github.com/BaSui01/mediaflow/testutil/fixtures"
	"github.com/BaSui01/mediaflow/types"
	"github.com/BaSui01/mediaflow/workflow"
)

// klingAPI 所有任务第一次查询即成功，记录视频请求体
type klingAPI struct {
	mu     sync.Mutex
	videos []kling.VideoRequest
	auth   []string
}

func (k *klingAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.auth = append(k.auth, r.Header.Get("Authorization"))

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/images/generations":
		_, _ = io.WriteString(w, fixtures.Submitted("img-1"))
	case r.Method == http.MethodPost && r.URL.Path == "/v1/videos/image2video":
		var req kling.VideoRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		k.videos = append(k.videos, req)
		_, _ = io.WriteString(w, fixtures.Submitted("vid-1"))
	case r.URL.Path == "/v1/images/generations/img-1":
		_, _ = io.WriteString(w, fixtures.ImageSucceeded("img-1", "https://cdn.test/img-1.png"))
	case r.URL.Path == "/v1/videos/image2video/vid-1":
		_, _ = io.WriteString(w, fixtures.VideoSucceeded("vid-1", "https://cdn.test/vid-1.mp4"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Kling.BaseURL = baseURL
	cfg.Kling.AccessKey = "ak"
	cfg.Kling.SecretKey = "sk"
	cfg.Kling.RateLimitRPS = 0
	cfg.Poll.Interval = 5 * time.Millisecond
	cfg.Poll.MaxInterval = 5 * time.Millisecond
	cfg.Poll.Timeout = 2 * time.Second
	cfg.Analysis.KeysFile = filepath.Join(t.TempDir(), "absent.json")
	return cfg
}

func manual(p ...string) prompts.Spec {
	return prompts.Spec{Source: prompts.SourceManual, Manual: p}
}

func TestRunner_EndToEnd(t *testing.T) {
	api := &klingAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("mf", reg, nil)

	cfg := testConfig(t, srv.URL)
	opts := workflow.Options{Prompts: manual("a lantern festival"), GenerateVideo: true}
	r, err := New(cfg, opts, WithMetrics(collector), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	report, err := r.Run(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/vid-1.mp4", report.Results[0].VideoURL())

	require.Len(t, api.videos, 1)
	assert.Equal(t, "https://cdn.test/img-1.png", api.videos[0].Image)
	assert.Equal(t, "a lantern festival", api.videos[0].Prompt)
	assert.Equal(t, "pro", api.videos[0].Mode)
	for _, h := range api.auth {
		assert.True(t, strings.HasPrefix(h, "Bearer "), h)
	}

	// submit and query routes for both kinds
	n, err := promtest.GatherAndCount(reg, "mf_upstream_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestNew_FillsRequestTemplates(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	opts := workflow.Options{
		Prompts: manual("x"),
		Image:   kling.ImageRequest{AspectRatio: "1:1"},
		Video:   kling.VideoRequest{Duration: "10"},
	}
	r, err := New(cfg, opts, WithCredentials(staticTokens{}))
	require.NoError(t, err)

	got := r.Options()
	assert.Equal(t, "kling-v1", got.Image.Model)
	assert.Equal(t, "1:1", got.Image.AspectRatio)
	assert.Equal(t, 1, got.Image.N)
	assert.Equal(t, "kling-v1", got.Video.Model)
	assert.Equal(t, "10", got.Video.Duration)
	assert.Equal(t, "pro", got.Video.Mode)
}

func TestNew_MissingKlingKeys(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Kling.AccessKey = ""

	_, err := New(cfg, workflow.Options{Prompts: manual("x")})
	testutil.AssertErrorCode(t, err, types.ErrConfiguration)
}

func TestNew_AnalysisKeysRequiredOnlyWhenUsed(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")

	_, err := New(cfg, workflow.Options{Prompts: manual("x"), Candidates: 1, SelectBest: true})
	require.NoError(t, err)

	_, err = New(cfg, workflow.Options{Prompts: manual("x"), Candidates: 3, SelectBest: true})
	testutil.AssertErrorCode(t, err, types.ErrConfiguration)

	keys := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(keys, []byte(`{"dashscope_api_key":"dk"}`), 0o600))
	cfg.Analysis.KeysFile = keys
	_, err = New(cfg, workflow.Options{Prompts: manual("x"), Candidates: 3, SelectBest: true, Classify: true})
	require.NoError(t, err)
}

func TestNeedsAnalysis(t *testing.T) {
	tests := []struct {
		name string
		opts workflow.Options
		want bool
	}{
		{"manual single", workflow.Options{Prompts: manual("x"), Candidates: 1, SelectBest: true}, false},
		{"best of n", workflow.Options{Candidates: 2, SelectBest: true}, true},
		{"first success", workflow.Options{Candidates: 4}, false},
		{"generated", workflow.Options{Prompts: prompts.Spec{Source: prompts.SourceGenerated}}, true},
		{"image", workflow.Options{Prompts: prompts.Spec{Source: prompts.SourceImage}}, true},
		{"file", workflow.Options{Prompts: prompts.Spec{Source: prompts.SourceFile}}, false},
		{"classify", workflow.Options{Classify: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsAnalysis(tt.opts))
		})
	}
}

type staticTokens struct{}

func (staticTokens) Token(context.Context) (*kling.Credential, error) {
	now := time.Now()
	return &kling.Credential{Token: "t", NotBefore: now.Add(-time.Second), ExpiresAt: now.Add(time.Hour)}, nil
}
