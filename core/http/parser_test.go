package http

import (
	"bufio"
	"io"
	"os"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeString(t *testing.T, raw string, limits Limits) (*Request, error) {
	t.Helper()
	return Decode(bufio.NewReader(strings.NewReader(raw)), limits)
}

func TestDecodeRequest(t *testing.T) {
	raw := "POST /users/42?q=go%20lang&page=2&flag HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"content-type: application/json\r\n" +
		"X-Trace: a\r\n" +
		"X-Trace: b\r\n" +
		"Content-Length: 13\r\n" +
		"\r\n" +
		`{"name":"al"}`

	req, err := decodeString(t, raw, DefaultLimits)
	require.NoError(t, err)
	defer ReleaseRequest(req)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/users/42", req.Path)
	assert.Equal(t, "q=go%20lang&page=2&flag", req.RawQuery)
	assert.Equal(t, "HTTP/1.1", req.Proto)
	assert.Equal(t, "go lang", req.QueryValue("q"))
	assert.Equal(t, "2", req.QueryValue("page"))
	assert.Contains(t, req.Query, "flag")
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "a, b", req.Header.Get("x-trace"))
	assert.Equal(t, `{"name":"al"}`, string(req.Body))
	assert.True(t, req.KeepAlive)
}

func TestDecodeLeavesNextRequestBuffered(t *testing.T) {
	raw := "GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\nConnection: close\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))

	first, err := Decode(r, DefaultLimits)
	require.NoError(t, err)
	assert.Equal(t, "/a", first.Path)
	assert.True(t, first.KeepAlive)

	second, err := Decode(r, DefaultLimits)
	require.NoError(t, err)
	assert.Equal(t, "/b", second.Path)
	assert.False(t, second.KeepAlive)

	_, err = Decode(r, DefaultLimits)
	require.True(t, errors.Is(err, ErrNoRequest))
	require.ErrorIs(t, err, io.EOF)
}

func TestDecodeKeepAlive(t *testing.T) {
	tests := []struct {
		name       string
		proto      string
		connection string
		want       bool
	}{
		{"http11 default", "HTTP/1.1", "", true},
		{"http11 close", "HTTP/1.1", "close", false},
		{"http11 close mixed case", "HTTP/1.1", "Upgrade, Close", false},
		{"http10 default", "HTTP/1.0", "", false},
		{"http10 keep-alive", "HTTP/1.0", "Keep-Alive", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := "GET / " + tt.proto + "\r\n"
			if tt.connection != "" {
				raw += "Connection: " + tt.connection + "\r\n"
			}
			raw += "\r\n"

			req, err := decodeString(t, raw, DefaultLimits)
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.KeepAlive)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		limits Limits
		code   int
	}{
		{"malformed request line", "GARBAGE\r\n\r\n", DefaultLimits, 400},
		{"unknown method", "BREW /pot HTTP/1.1\r\n\r\n", DefaultLimits, 405},
		{"unsupported protocol", "GET / HTTP/2.0\r\n\r\n", DefaultLimits, 505},
		{"not http", "GET / SPDY\r\n\r\n", DefaultLimits, 400},
		{"relative target", "GET users HTTP/1.1\r\n\r\n", DefaultLimits, 400},
		{"malformed header", "GET / HTTP/1.1\r\nno-colon\r\n\r\n", DefaultLimits, 400},
		{"space in header name", "GET / HTTP/1.1\r\nBad Name: x\r\n\r\n", DefaultLimits, 400},
		{"bad content length", "POST / HTTP/1.1\r\nContent-Length: ten\r\n\r\n", DefaultLimits, 400},
		{"truncated body", "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc", DefaultLimits, 400},
		{"truncated headers", "GET / HTTP/1.1\r\nHost: x", DefaultLimits, 400},
		{"chunked", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n", DefaultLimits, 501},
		{"body too large", "POST / HTTP/1.1\r\nContent-Length: 100\r\n\r\n", Limits{MaxBodyBytes: 10}, 413},
		{"huge body without limit", "POST / HTTP/1.1\r\nContent-Length: 9223372036854775807\r\n\r\nab", Limits{}, 413},
		{"declared body never sent", "POST / HTTP/1.1\r\nContent-Length: 8000000\r\n\r\nab", DefaultLimits, 400},
		{"header too large", "GET / HTTP/1.1\r\nX-Big: " + strings.Repeat("x", 100) + "\r\n\r\n", Limits{MaxHeaderBytes: 64}, 431},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeString(t, tt.raw, tt.limits)
			require.Error(t, err)

			derr, ok := AsDecodeError(err)
			require.True(t, ok, "expected a decode error, got %v", err)
			assert.Equal(t, tt.code, derr.Code)
		})
	}
}

func TestDecodeBodyArrivesInPieces(t *testing.T) {
	body := strings.Repeat("0123456789", 500)
	raw := "POST /upload HTTP/1.1\r\nContent-Length: 5000\r\n\r\n" + body

	r := bufio.NewReader(iotest.OneByteReader(strings.NewReader(raw)))
	req, err := Decode(r, Limits{})
	require.NoError(t, err)
	defer ReleaseRequest(req)
	assert.Equal(t, body, string(req.Body))
}

func TestLimitsBodyCap(t *testing.T) {
	assert.Equal(t, HardMaxBodyBytes, Limits{}.maxBody())
	assert.Equal(t, HardMaxBodyBytes, Limits{MaxBodyBytes: HardMaxBodyBytes + 1}.maxBody())
	assert.Equal(t, int64(10), Limits{MaxBodyBytes: 10}.maxBody())
}

func TestDecodeReadFailures(t *testing.T) {
	boom := errors.New("boom")
	head := "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\n"

	r := bufio.NewReader(io.MultiReader(strings.NewReader(head), iotest.ErrReader(boom)))
	_, err := Decode(r, DefaultLimits)
	derr, ok := AsDecodeError(err)
	require.True(t, ok)
	assert.Equal(t, 500, derr.Code)
	assert.ErrorIs(t, err, boom)

	r = bufio.NewReader(io.MultiReader(strings.NewReader(head), iotest.ErrReader(os.ErrDeadlineExceeded)))
	_, err = Decode(r, DefaultLimits)
	derr, ok = AsDecodeError(err)
	require.True(t, ok)
	assert.Equal(t, 408, derr.Code)
}

func TestDecodeEmptyStream(t *testing.T) {
	_, err := decodeString(t, "", DefaultLimits)
	require.True(t, errors.Is(err, ErrNoRequest))

	_, ok := AsDecodeError(err)
	assert.False(t, ok)
}

func TestRequestReset(t *testing.T) {
	req, err := decodeString(t, "GET /x?a=1 HTTP/1.1\r\nHost: h\r\n\r\n", DefaultLimits)
	require.NoError(t, err)
	req.Params = map[string]string{"id": "1"}

	req.Reset()

	assert.Empty(t, req.Method)
	assert.Empty(t, req.Path)
	assert.Empty(t, req.Header)
	assert.Empty(t, req.Query)
	assert.Empty(t, req.Body)
	assert.Nil(t, req.Params)
	assert.False(t, req.KeepAlive)
}
