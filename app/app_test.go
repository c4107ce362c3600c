package app

import (
	"bufio"
	"context"
	"io"
	"net"
	nethttp "net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/searchktools/tiny-server/config"
	"github.com/searchktools/tiny-server/core/http"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = zapcore.WarnLevel

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	cfg.Env = "production"
	cfg.LogLevel = zapcore.DebugLevel
	logger, err = NewLogger(cfg)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestAppRunContext(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = freePort(t)

	a, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	a.Engine().GET("/hello/:name", func(req *http.Request) (*http.Response, error) {
		return http.Text(200, "hello "+req.Param("name")), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.RunContext(ctx) }()

	var conn net.Conn
	require.Eventually(t, func() bool {
		conn, err = net.Dial("tcp", cfg.Addr())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	defer conn.Close()

	br := bufio.NewReader(conn)
	get := func(path string) (*nethttp.Response, string) {
		_, err := conn.Write([]byte("GET " + path + " HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)
		resp, err := nethttp.ReadResponse(br, nil)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(body)
	}

	resp, body := get("/hello/gopher")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "hello gopher", body)
	assert.Len(t, resp.Header.Get("X-Request-Id"), 36)

	resp, body = get("/metrics")
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, strings.Contains(body, "tiny_server_requests_total"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("RunContext did not return after cancel")
	}
}

func TestAppRunContextListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = ln.Addr().(*net.TCPAddr).Port

	a, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Error(t, a.RunContext(context.Background()))
}
