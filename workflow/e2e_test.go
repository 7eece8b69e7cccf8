package workflow

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/llm/kling"
	"github.com/BaSui01/mediaflow/llm/poll"
	"github.com/BaSui01/mediaflow/prompts"
	"github.com/BaSui01/mediaflow/testutil"
	"github.com/BaSui01/mediaflow/testutil/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeKling 模拟 Kling 接口: 每个任务先返回若干次 processing，然后成功
type fakeKling struct {
	mu          sync.Mutex
	pendingFor  int
	queries     map[string]int
	videoBodies []string
	imageTasks  int
}

func (f *fakeKling) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/images/generations":
		f.imageTasks++
		_, _ = io.WriteString(w, fixtures.Submitted("img-e2e"))
	case r.Method == http.MethodPost && r.URL.Path == "/v1/videos/image2video":
		body, _ := io.ReadAll(r.Body)
		f.videoBodies = append(f.videoBodies, string(body))
		_, _ = io.WriteString(w, fixtures.Submitted("vid-e2e"))
	case r.Method == http.MethodGet && r.URL.Path == "/v1/images/generations/img-e2e":
		f.reply(w, "img-e2e", fixtures.ImageSucceeded("img-e2e", "https://cdn.test/e2e.png"))
	case r.Method == http.MethodGet && r.URL.Path == "/v1/videos/image2video/vid-e2e":
		f.reply(w, "vid-e2e", fixtures.VideoSucceeded("vid-e2e", "https://cdn.test/e2e.mp4"))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, fixtures.Rejected(1203, "not found"))
	}
}

func (f *fakeKling) reply(w http.ResponseWriter, id, done string) {
	n := f.queries[id]
	f.queries[id] = n + 1
	if n < f.pendingFor {
		_, _ = io.WriteString(w, fixtures.Processing(id))
		return
	}
	_, _ = io.WriteString(w, done)
}

func TestEndToEnd_KlingHTTP(t *testing.T) {
	api := &fakeKling{pendingFor: 2, queries: make(map[string]int)}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := config.DefaultKlingConfig()
	cfg.BaseURL = srv.URL
	cfg.RateLimitRPS = 0
	client := kling.NewClient(cfg, staticTokens{}, zap.NewNop(), kling.WithHTTPClient(srv.Client()))

	clock := testutil.NewFakeClock(start)
	o, err := NewOrchestrator(Dependencies{
		Credentials: staticTokens{},
		Generator:   client,
		Prompts:     prompts.NewCollector(nil),
		Waiter:      poll.NewWaiter(poll.DefaultPolicy(), nil, poll.WithClock(clock)),
	}, nil, WithClock(clock.Now))
	require.NoError(t, err)

	opts := Options{
		Prompts:       manual("a paper boat on a rainy street"),
		GenerateVideo: true,
		Image:         client.NewImageRequest(""),
		Video:         client.NewVideoRequest("", ""),
	}
	report, err := o.Run(context.Background(), opts)
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, "https://cdn.test/e2e.png", res.Best.URL)
	assert.Equal(t, "https://cdn.test/e2e.mp4", res.VideoURL())
	assert.Equal(t, 3, res.Images[0].Attempts)
	assert.Equal(t, 3, res.Video.Attempts)
	assert.Equal(t, 1, api.imageTasks)

	require.Len(t, api.videoBodies, 1)
	video := testutil.MustParseJSON[map[string]any](api.videoBodies[0])
	assert.Equal(t, "https://cdn.test/e2e.png", video["image"])
	assert.Equal(t, "a paper boat on a rainy street", video["prompt"])
	assert.Equal(t, "kling-v1", video["model_name"])
	assert.Equal(t, "pro", video["mode"])

	assert.Equal(t, Summary{Prompts: 1, Submitted: 2, Succeeded: 2, Videos: 1}, report.Summary())
}
