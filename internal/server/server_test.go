package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.Addr)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestServer_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_hits_total", Help: "hits"})
	reg.MustRegister(counter)
	counter.Add(3)

	s := New(reg, Config{Addr: "127.0.0.1:0"}, zap.NewNop())
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "test_hits_total 3")

	require.NoError(t, s.Shutdown(context.Background()))
	require.NoError(t, s.Shutdown(context.Background()))
}

func TestServer_EmptyAddrIsNoop(t *testing.T) {
	s := New(nil, Config{}, nil)
	require.NoError(t, s.Start())
	assert.Empty(t, s.Addr())
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestServer_DoubleStart(t *testing.T) {
	s := New(prometheus.NewRegistry(), Config{Addr: "127.0.0.1:0"}, zap.NewNop())
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestServer_StartAfterShutdown(t *testing.T) {
	s := New(prometheus.NewRegistry(), Config{Addr: "127.0.0.1:0"}, zap.NewNop())
	require.NoError(t, s.Shutdown(context.Background()))
	assert.Error(t, s.Start())
}

func TestServer_InvalidAddr(t *testing.T) {
	s := New(prometheus.NewRegistry(), Config{Addr: "256.0.0.1:bad"}, zap.NewNop())
	assert.Error(t, s.Start())
}
