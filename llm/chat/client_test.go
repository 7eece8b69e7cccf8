package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := ConfigFromAnalysis(config.DefaultAnalysisConfig(), "test-key")
	cfg.BaseURL = srv.URL
	c, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	c.SetHTTPClient(srv.Client())
	return c
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{BaseURL: "http://x"}, nil)
	assert.True(t, types.IsCode(err, types.ErrConfiguration))
}

func TestClient_Ask(t *testing.T) {
	var got Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/compatible-mode/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":"  sunset_beach \n"}}],"usage":{"total_tokens":12}}`)
	})

	out, err := c.Ask(context.Background(), "qwen-vl-plus", "be brief",
		TextPart("name this"), ImagePart("https://cdn/a.png"))
	require.NoError(t, err)
	assert.Equal(t, "sunset_beach", out)

	assert.Equal(t, "qwen-vl-plus", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	require.Len(t, got.Messages[1].Content, 2)
	assert.Equal(t, "image_url", got.Messages[1].Content[1].Type)
	assert.Equal(t, "https://cdn/a.png", got.Messages[1].Content[1].ImageURL.URL)
}

func TestClient_DefaultModel(t *testing.T) {
	var got Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	})

	_, err := c.Ask(context.Background(), "", "", TextPart("hi"))
	require.NoError(t, err)
	assert.Equal(t, "qwen-turbo", got.Model)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode types.ErrorCode
	}{
		{name: "http status", status: 401, body: `{"error":{"message":"invalid key"}}`, wantCode: types.ErrTransport},
		{name: "bad json", status: 200, body: `not json`, wantCode: types.ErrParse},
		{name: "no choices", status: 200, body: `{"choices":[]}`, wantCode: types.ErrParse},
		{name: "error in body", status: 200, body: `{"error":{"message":"quota exceeded"}}`, wantCode: types.ErrUpstreamError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Ask(context.Background(), "m", "", TextPart("x"))
			assert.Equal(t, tt.wantCode, types.GetErrorCode(err))
		})
	}
}

func TestClient_EmptyMessages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.Complete(context.Background(), Request{Model: "m"})
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
}

func TestImageDataURI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.JPG")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xd8, 0xff}, 0o644))

	uri, err := ImageDataURI(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"), uri)
	assert.True(t, strings.HasSuffix(uri, "/9j/"))

	_, err = ImageDataURI(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}
