package core

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/searchktools/tiny-server/core/http"
)

// connState is a step of the per-connection request cycle.
type connState int

// Connection states
const (
	stateAwaitRequest connState = iota
	stateDecoded
	statePreHooked
	stateShortCircuited
	stateRouted
	stateHandled
	statePostHooked
	stateSent
	stateClosed
)

var connStateNames = [...]string{
	stateAwaitRequest:   "AwaitRequest",
	stateDecoded:        "Decoded",
	statePreHooked:      "PreHooked",
	stateShortCircuited: "ShortCircuited",
	stateRouted:         "Routed",
	stateHandled:        "Handled",
	statePostHooked:     "PostHooked",
	stateSent:           "Sent",
	stateClosed:         "Closed",
}

func (s connState) String() string {
	if s >= 0 && int(s) < len(connStateNames) {
		return connStateNames[s]
	}
	return "connState(" + strconv.Itoa(int(s)) + ")"
}

// conn drives one accepted connection through the request cycle. It is
// owned by a single goroutine.
type conn struct {
	snap   *snapshot
	logger *zap.Logger
	nc     net.Conn
	br     *bufio.Reader
	bw     *bufio.Writer
	remote string

	state  connState
	served int
	req    *http.Request
	resp   *http.Response

	// idle is set while waiting for the first byte of a request; only idle
	// connections are woken on shutdown.
	idleMu sync.Mutex
	idle   bool

	// onServed is called once per response written.
	onServed func()
}

// serve runs the state machine until the connection is done.
func (c *conn) serve(ctx context.Context) {
	defer func() { http.ReleaseRequest(c.req) }()

	for c.state != stateClosed {
		next := c.step(ctx)
		if ce := c.logger.Check(zapcore.DebugLevel, "state transition"); ce != nil {
			ce.Write(zap.Stringer("from", c.state), zap.Stringer("to", next))
		}
		c.state = next
	}
}

func (c *conn) step(ctx context.Context) connState {
	switch c.state {
	case stateAwaitRequest:
		return c.awaitRequest(ctx)

	case stateDecoded:
		c.resp = c.snap.chain.PreRequest(c.req)
		return statePreHooked

	case statePreHooked:
		if c.resp != nil {
			return stateShortCircuited
		}
		c.resp = c.route()
		return stateRouted

	case stateShortCircuited, stateRouted:
		return stateHandled

	case stateHandled:
		c.snap.chain.PostResponse(c.req, c.resp)
		return statePostHooked

	case statePostHooked:
		if ctx.Err() != nil {
			c.req.KeepAlive = false
		}
		if err := c.write(c.req, c.resp); err != nil {
			c.logger.Debug("write failed", zap.Error(err))
			return stateClosed
		}
		c.served++
		if c.onServed != nil {
			c.onServed()
		}
		return stateSent

	case stateSent:
		keepAlive := c.req.KeepAlive
		http.ReleaseRequest(c.req)
		c.req, c.resp = nil, nil
		if !keepAlive {
			return stateClosed
		}
		return stateAwaitRequest
	}

	return stateClosed
}

// awaitRequest waits for the next request and decodes it. The first request
// of a connection gets ReadTimeout to start, later ones IdleTimeout.
func (c *conn) awaitRequest(ctx context.Context) connState {
	cfg := c.snap.cfg

	wait := cfg.IdleTimeout
	if c.served == 0 || wait == 0 {
		wait = cfg.ReadTimeout
	}
	c.setIdle(true, deadline(wait))

	// Checked after becoming idle so a shutdown that already ran its
	// wake-up is not missed.
	if ctx.Err() != nil {
		return stateClosed
	}

	if _, err := c.br.Peek(1); err != nil {
		c.logger.Debug("connection idle close", zap.Error(err))
		return stateClosed
	}
	c.setIdle(false, deadline(cfg.ReadTimeout))

	req, err := http.Decode(c.br, c.snap.limits)
	if err != nil {
		c.decodeFailed(err)
		return stateClosed
	}

	req.RemoteAddr = c.remote
	req.ReceivedAt = time.Now()
	req.SetContext(ctx)
	c.req = req
	return stateDecoded
}

// route matches the request and invokes its handler. Handler failures are
// mapped to responses here and never end the connection.
func (c *conn) route() *http.Response {
	handler, params, ok := c.snap.matcher.Match(c.req.Method, c.req.Path)
	if !ok {
		return notFound()
	}
	c.req.Params = params

	resp, err := invoke(handler, c.req)
	if err == nil {
		return resp
	}

	if rerr, ok := http.AsResponseError(err); !ok || rerr.Response == nil {
		c.logger.Error("handler failed",
			zap.String("method", c.req.Method),
			zap.String("path", c.req.Path),
			zap.Error(err),
		)
	}
	return handlerErrorResponse(err)
}

// invoke calls h, turning a panic or a nil response into an opaque error.
func invoke(h http.HandlerFunc, req *http.Request) (resp *http.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, errors.Newf("handler panic: %v", r)
		}
	}()

	resp, err = h(req)
	if err == nil && resp == nil {
		err = ErrNilResponse
	}
	return resp, err
}

// decodeFailed answers a request that could not be decoded, when its error
// maps to a response.
func (c *conn) decodeFailed(err error) {
	if errors.Is(err, http.ErrNoRequest) {
		return
	}

	derr, ok := http.AsDecodeError(err)
	if !ok {
		derr = http.NewDecodeError(500, "decode failed", err)
	}
	c.logger.Debug("decode failed", zap.Int("code", derr.Code), zap.Error(derr))

	resp := decodeErrorResponse(derr, c.snap.cfg.LegacyDecodeClose)
	if resp == nil {
		return
	}
	if err := c.write(nil, resp); err != nil {
		c.logger.Debug("write failed", zap.Error(err))
	}
}

func (c *conn) write(req *http.Request, resp *http.Response) error {
	c.nc.SetWriteDeadline(deadline(c.snap.cfg.WriteTimeout))
	return http.Encode(c.bw, req, resp)
}

// setIdle marks the connection idle or busy and arms its read deadline.
func (c *conn) setIdle(idle bool, t time.Time) {
	c.idleMu.Lock()
	defer c.idleMu.Unlock()
	c.idle = idle
	c.nc.SetReadDeadline(t)
}

// wake expires the read deadline of an idle connection. A connection in the
// middle of a request is left alone.
func (c *conn) wake(now time.Time) {
	c.idleMu.Lock()
	defer c.idleMu.Unlock()
	if c.idle {
		c.nc.SetReadDeadline(now)
	}
}

// deadline converts a timeout to an absolute deadline, zero meaning none.
func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
