package http

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func encodeString(t *testing.T, req *Request, resp *Response) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(bufio.NewWriter(&buf), req, resp))
	return buf.String()
}

func TestEncodeKeepAlive(t *testing.T) {
	req := &Request{Method: "GET", Proto: "HTTP/1.1", KeepAlive: true}
	resp := HTML(404, "<h1>404</h1>")

	got := encodeString(t, req, resp)
	assert.Equal(t, "HTTP/1.1 404 Not Found\r\n"+
		"Content-Type: text/html;charset=utf-8\r\n"+
		"Content-Length: 12\r\n"+
		"\r\n"+
		"<h1>404</h1>", got)
}

func TestEncodeWithoutRequestCloses(t *testing.T) {
	resp := &Response{StatusCode: 405}

	got := encodeString(t, nil, resp)
	assert.Equal(t, "HTTP/1.1 405 Method Not Allowed\r\n"+
		"Content-Length: 0\r\n"+
		"Connection: close\r\n"+
		"\r\n", got)
}

func TestEncodeHTTP10KeepAlive(t *testing.T) {
	req := &Request{Method: "GET", Proto: "HTTP/1.0", KeepAlive: true}

	got := encodeString(t, req, Text(200, "ok"))
	assert.Contains(t, got, "HTTP/1.0 200 OK\r\n")
	assert.Contains(t, got, "Connection: keep-alive\r\n")
}

func TestEncodeOwnsFramingHeaders(t *testing.T) {
	req := &Request{Method: "GET", Proto: "HTTP/1.1", KeepAlive: false}
	resp := Text(200, "hello")
	resp.Header.Set("Content-Length", "999")
	resp.Header.Set("Connection", "keep-alive")

	got := encodeString(t, req, resp)
	assert.Contains(t, got, "Content-Length: 5\r\n")
	assert.Contains(t, got, "Connection: close\r\n")
	assert.NotContains(t, got, "999")
	assert.NotContains(t, got, "keep-alive")
}

func TestEncodeBodilessResponses(t *testing.T) {
	head := &Request{Method: "HEAD", Proto: "HTTP/1.1", KeepAlive: true}
	got := encodeString(t, head, Text(200, "hello"))
	assert.Contains(t, got, "Content-Length: 5\r\n")
	assert.NotContains(t, got, "hello")

	get := &Request{Method: "GET", Proto: "HTTP/1.1", KeepAlive: true}
	got = encodeString(t, get, NewResponse(204, []byte("ignored")))
	assert.Equal(t, "HTTP/1.1 204 No Content\r\n\r\n", got)
}

func TestEncodeStripsHeaderNewlines(t *testing.T) {
	req := &Request{Method: "GET", Proto: "HTTP/1.1", KeepAlive: true}
	resp := Text(200, "ok")
	resp.Header.Set("X-Request-Id", "abc\r\nSet-Cookie: session=evil")
	resp.Header.Set("X-Trace", "one\ntwo\rthree")

	got := encodeString(t, req, resp)
	assert.Contains(t, got, "X-Request-Id: abc Set-Cookie: session=evil\r\n")
	assert.Contains(t, got, "X-Trace: one two three\r\n")
	assert.NotContains(t, got, "\r\nSet-Cookie:")

	head, _, ok := strings.Cut(got, "\r\n\r\n")
	require.True(t, ok)
	assert.Len(t, strings.Split(head, "\r\n"), 5, "status line and four headers")
}

func TestEncodeUnknownStatus(t *testing.T) {
	req := &Request{Method: "GET", Proto: "HTTP/1.1", KeepAlive: true}
	got := encodeString(t, req, NewResponse(599, nil))
	assert.Contains(t, got, "HTTP/1.1 599 Unknown\r\n")
}

func TestProtobufResponse(t *testing.T) {
	resp, err := Protobuf(200, wrapperspb.String("hello"))
	require.NoError(t, err)
	assert.Equal(t, ContentTypeProtobuf, resp.Header.Get("Content-Type"))

	decoded := &wrapperspb.StringValue{}
	require.NoError(t, proto.Unmarshal(resp.Body, decoded))
	assert.Equal(t, "hello", decoded.GetValue())
}

func TestHeaderCaseInsensitive(t *testing.T) {
	h := Header{}
	h.Set("x-request-id", "abc")

	assert.Equal(t, "abc", h.Get("X-Request-Id"))
	assert.True(t, h.Has("X-REQUEST-ID"))

	clone := h.Clone()
	h.Del("X-Request-Id")
	assert.False(t, h.Has("x-request-id"))
	assert.Equal(t, "abc", clone.Get("x-request-id"))
}
