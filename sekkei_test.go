package sekkei

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	t.Setenv("SEKKEI_RATE_LIMIT_ENABLED", "false")
	app, err := New(append([]Option{WithLogger(discard), WithVersion("test")}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app
}

func TestNew_ConfigErrors(t *testing.T) {
	t.Run("invalid env", func(t *testing.T) {
		t.Setenv("SEKKEI_PORT", "eighty")
		_, err := New(WithLogger(discard))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load config")
	})

	t.Run("unknown id strategy", func(t *testing.T) {
		_, err := New(WithLogger(discard), WithIDStrategy("sequence"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SEKKEI_ID_STRATEGY")
	})
}

func TestApp_Handler(t *testing.T) {
	app := newTestApp(t, WithMiddleware(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Embedded", "yes")
			next.ServeHTTP(w, r)
		})
	}))

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-Embedded"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body struct {
		Data struct {
			Status  string `json:"status"`
			Version string `json:"version"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Data.Status)
	assert.Equal(t, "test", body.Data.Version)
}

func TestApp_UUIDStrategy(t *testing.T) {
	app := newTestApp(t, WithIDStrategy("uuid"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/explore", strings.NewReader(`{"initial_system": "car_running"}`))
	req.Header.Set("Content-Type", "application/json")
	app.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data struct {
			Graph struct {
				Nodes []map[string]any `json:"nodes"`
			} `json:"graph"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.Graph.Nodes)
	id, _ := body.Data.Graph.Nodes[0]["id"].(string)
	assert.True(t, strings.HasPrefix(id, "SI_"), "id %q keeps the kind prefix", id)
	assert.Greater(t, len(id), len("SI_")+30, "id %q carries a uuid", id)
}

func TestApp_RunAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	app := newTestApp(t, WithListener(ln))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	client := &http.Client{Timeout: 5 * time.Second}
	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := client.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	client.CloseIdleConnections()

	_, err = client.Get(url)
	assert.Error(t, err, "server stopped accepting connections")
}

func TestApp_RunEndsOpenEventStreams(t *testing.T) {
	t.Setenv("SEKKEI_SHUTDOWN_TIMEOUT", "5s")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	app := newTestApp(t, WithListener(ln))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	base := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + "/api/interactive/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	start := time.Now()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Less(t, time.Since(start), 3*time.Second, "shutdown waited on the event stream")
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, err = io.ReadAll(resp.Body)
	assert.NoError(t, err, "stream ends cleanly")
}
