package http

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Request is a decoded HTTP request. A Request belongs to the connection that
// decoded it and is recycled once its response has been sent, so handlers
// must not retain it (or its Body) after returning.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Proto    string

	Header Header

	// Query parameters
	Query map[string]string

	// Request body
	Body []byte

	// Params holds the placeholder values captured by the matched route.
	Params map[string]string

	// KeepAlive reports whether the client asked to reuse the connection.
	KeepAlive bool

	RemoteAddr string
	ReceivedAt time.Time

	ctx context.Context
}

var requestPool = sync.Pool{
	New: func() any {
		return &Request{
			Header: make(Header, 8),
			Body:   make([]byte, 0, 1024),
		}
	},
}

func AcquireRequest() *Request {
	return requestPool.Get().(*Request)
}

// Reset resets the request for reuse (memory not freed, just reset)
func (r *Request) Reset() {
	r.Method = ""
	r.Path = ""
	r.RawQuery = ""
	r.Proto = ""
	r.KeepAlive = false
	r.RemoteAddr = ""
	r.ReceivedAt = time.Time{}
	r.ctx = nil
	r.Params = nil

	// Clear maps without freeing memory
	for k := range r.Header {
		delete(r.Header, k)
	}
	for k := range r.Query {
		delete(r.Query, k)
	}

	// Keep slice capacity, just reset length
	r.Body = r.Body[:0]
}

func ReleaseRequest(req *Request) {
	if req == nil {
		return
	}
	req.Reset()
	requestPool.Put(req)
}

// Context returns the request's context, never nil.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// SetContext replaces the request's context.
func (r *Request) SetContext(ctx context.Context) {
	r.ctx = ctx
}

// Param returns the value captured for the named route placeholder.
func (r *Request) Param(key string) string {
	return r.Params[key]
}

// QueryValue returns a query string parameter.
func (r *Request) QueryValue(key string) string {
	return r.Query[key]
}

// wantsKeepAlive applies the HTTP/1.x persistence rules: HTTP/1.1 persists
// unless the client sent "Connection: close", HTTP/1.0 only when it sent
// "Connection: keep-alive".
func wantsKeepAlive(proto, connection string) bool {
	tokens := strings.Split(strings.ToLower(connection), ",")
	has := func(want string) bool {
		for _, t := range tokens {
			if strings.TrimSpace(t) == want {
				return true
			}
		}
		return false
	}

	if proto == "HTTP/1.0" {
		return has("keep-alive")
	}
	return !has("close")
}
