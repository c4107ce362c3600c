package http

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Limits bounds the size of what Decode accepts. A zero MaxHeaderBytes
// disables the header limit; a zero MaxBodyBytes falls back to
// HardMaxBodyBytes.
type Limits struct {
	MaxHeaderBytes int
	MaxBodyBytes   int64
}

// HardMaxBodyBytes caps request bodies when no body limit is configured.
const HardMaxBodyBytes int64 = 1 << 30

func (l Limits) maxBody() int64 {
	if l.MaxBodyBytes <= 0 || l.MaxBodyBytes > HardMaxBodyBytes {
		return HardMaxBodyBytes
	}
	return l.MaxBodyBytes
}

// DefaultLimits are used when the server is not configured otherwise.
var DefaultLimits = Limits{
	MaxHeaderBytes: 64 << 10,
	MaxBodyBytes:   10 << 20,
}

var knownMethods = map[string]struct{}{
	"GET":     {},
	"HEAD":    {},
	"POST":    {},
	"PUT":     {},
	"DELETE":  {},
	"PATCH":   {},
	"OPTIONS": {},
	"CONNECT": {},
	"TRACE":   {},
}

// Decode reads exactly one request off r. It returns ErrNoRequest (marked
// on the underlying I/O error) when nothing arrives, and a *DecodeError for
// anything that started as a request but could not be parsed. Bytes beyond
// the declared body stay buffered in r.
func Decode(r *bufio.Reader, limits Limits) (*Request, error) {
	if _, err := r.Peek(1); err != nil {
		return nil, errors.Mark(err, ErrNoRequest)
	}

	lr := &lineReader{r: r, budget: limits.MaxHeaderBytes, limited: limits.MaxHeaderBytes > 0}

	// Parse METHOD PATH PROTO
	line, err := lr.next()
	if err != nil {
		return nil, err
	}
	method, rest, ok1 := strings.Cut(string(line), " ")
	target, proto, ok2 := strings.Cut(rest, " ")
	if !ok1 || !ok2 || method == "" || target == "" {
		return nil, NewDecodeError(400, "malformed request line", nil)
	}
	if _, ok := knownMethods[method]; !ok {
		return nil, NewDecodeError(405, "unsupported method "+strconv.Quote(method), nil)
	}
	if proto != "HTTP/1.1" && proto != "HTTP/1.0" {
		if strings.HasPrefix(proto, "HTTP/") {
			return nil, NewDecodeError(505, "unsupported protocol "+proto, nil)
		}
		return nil, NewDecodeError(400, "malformed protocol", nil)
	}
	if target[0] != '/' && (method != "OPTIONS" || target != "*") {
		return nil, NewDecodeError(400, "request target must be an absolute path", nil)
	}

	req := AcquireRequest()
	req.Method = method
	req.Proto = proto

	// Parse query parameters
	path := target
	if idx := strings.IndexByte(target, '?'); idx != -1 {
		path = target[:idx]
		req.RawQuery = target[idx+1:]
		parseQuery(req, req.RawQuery)
	}
	if req.Path, err = url.PathUnescape(path); err != nil {
		ReleaseRequest(req)
		return nil, NewDecodeError(400, "malformed path escape", err)
	}

	if err := parseHeaders(req, lr); err != nil {
		ReleaseRequest(req)
		return nil, err
	}

	if err := readBody(req, r, limits); err != nil {
		ReleaseRequest(req)
		return nil, err
	}

	req.KeepAlive = wantsKeepAlive(proto, req.Header.Get("Connection"))
	return req, nil
}

// lineReader reads CRLF (or bare LF) terminated lines while charging them
// against the header byte budget.
type lineReader struct {
	r       *bufio.Reader
	budget  int
	limited bool
}

func (lr *lineReader) next() ([]byte, error) {
	var line []byte
	for {
		frag, err := lr.r.ReadSlice('\n')
		if lr.limited {
			lr.budget -= len(frag)
			if lr.budget < 0 {
				return nil, NewDecodeError(431, "request header too large", nil)
			}
		}
		line = append(line, frag...)
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return nil, readFailure(err)
	}

	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, nil
}

// parseHeaders parses HTTP headers up to the blank line
func parseHeaders(req *Request, lr *lineReader) error {
	for {
		line, err := lr.next()
		if err != nil {
			return err
		}
		if len(line) == 0 {
			return nil
		}

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return NewDecodeError(400, "malformed header line", nil)
		}
		key := line[:colon]
		if bytes.ContainsAny(key, " \t") {
			return NewDecodeError(400, "malformed header name", nil)
		}
		req.Header.Add(string(key), string(bytes.TrimSpace(line[colon+1:])))
	}
}

// readBody reads a Content-Length delimited body. Chunked transfer coding is
// not supported.
func readBody(req *Request, r *bufio.Reader, limits Limits) error {
	if te := req.Header.Get("Transfer-Encoding"); te != "" && !strings.EqualFold(te, "identity") {
		return NewDecodeError(501, "transfer encoding "+strconv.Quote(te)+" not supported", nil)
	}

	cl := req.Header.Get("Content-Length")
	if cl == "" {
		return nil
	}
	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || n < 0 {
		return NewDecodeError(400, "invalid content length", err)
	}
	if n > limits.maxBody() {
		return NewDecodeError(413, "request body too large", nil)
	}
	if n == 0 {
		return nil
	}

	// Grow with the bytes that actually arrive, not the declared length.
	body := bytes.NewBuffer(req.Body[:0])
	if _, err := io.CopyN(body, r, n); err != nil {
		return readFailure(err)
	}
	req.Body = body.Bytes()
	return nil
}

// readFailure classifies an I/O error hit in the middle of a request.
func readFailure(err error) *DecodeError {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return NewDecodeError(408, "request timed out", err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return NewDecodeError(400, "truncated request", err)
	default:
		return NewDecodeError(500, "failed to read request", err)
	}
}

// parseQuery parses query parameters
func parseQuery(req *Request, query string) {
	if req.Query == nil {
		req.Query = make(map[string]string)
	}

	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		req.Query[key] = value
	}
}
