package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/resistance/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	var c config.Config
	c.Log.Format = "text"
	c.Log.Level = "info"
	c.HTTP.Addr = "127.0.0.1:0"
	c.HTTP.ShutdownTimeout = time.Second
	c.Game.ReconnectGrace = time.Minute
	c.Game.SendBuffer = 8
	c.Archive.QueueSize = 8
	return c
}

func TestNew_WithoutBackends(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	cases := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/api/rooms/ABCDE", http.StatusServiceUnavailable},
		{"/api/stats", http.StatusServiceUnavailable},
		{"/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		a.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.want, rec.Code, tc.path)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
