package core

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/searchktools/tiny-server/config"
	"github.com/searchktools/tiny-server/core/http"
	"github.com/searchktools/tiny-server/core/listener"
	"github.com/searchktools/tiny-server/core/middleware"
	"github.com/searchktools/tiny-server/core/pools"
	"github.com/searchktools/tiny-server/core/router"
)

// HandlerFunc defines the handler function type
type HandlerFunc = http.HandlerFunc

// snapshot is everything a connection reads while serving. It is built once
// and never mutated, so connections share it without locking.
type snapshot struct {
	matcher *router.Matcher
	chain   *middleware.Chain
	cfg     *config.Config
	limits  http.Limits
}

// Engine accepts connections and serves each one on its own goroutine.
// Routes and plugins are registered first; the first call to Build or Serve
// freezes them.
type Engine struct {
	cfg     *config.Config
	logger  *zap.Logger
	buffers *pools.BufferPool

	mu    sync.Mutex
	table *router.Table
	chain *middleware.Chain
	snap  atomic.Pointer[snapshot]

	connMu sync.Mutex
	conns  map[*conn]struct{}
	wg     sync.WaitGroup

	active atomic.Int64
	served atomic.Uint64
}

// Option configures an Engine
type Option func(*Engine)

// WithConfig sets the server configuration
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a new engine instance
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		table: router.NewTable(),
		chain: middleware.NewChain(),
		conns: make(map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg == nil {
		e.cfg = config.Default()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.buffers = pools.NewBufferPool(0, 0)
	return e
}

// GET registers a GET route
func (e *Engine) GET(pattern string, handler HandlerFunc) {
	e.Handle("GET", pattern, handler)
}

// POST registers a POST route
func (e *Engine) POST(pattern string, handler HandlerFunc) {
	e.Handle("POST", pattern, handler)
}

// Handle registers a route for method. It panics with ErrRegistrationClosed
// once the engine is built.
func (e *Engine) Handle(method, pattern string, handler HandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap.Load() != nil {
		panic(errors.Wrapf(ErrRegistrationClosed, "%s %s", method, pattern))
	}
	e.table.Handle(method, pattern, handler)
}

// Use appends a plugin to the middleware chain. It panics with
// ErrRegistrationClosed once the engine is built.
func (e *Engine) Use(plugins ...middleware.Plugin) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap.Load() != nil {
		panic(ErrRegistrationClosed)
	}
	for _, p := range plugins {
		e.chain.Use(p)
	}
}

// Routes returns the registered routes in registration order.
func (e *Engine) Routes() []router.Route {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.Routes()
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *zap.Logger {
	return e.logger
}

// Build compiles the routes and freezes the plugin chain. An invalid route
// pattern is returned as an error and the engine stays open for
// registration. Calling Build again is a no-op.
func (e *Engine) Build() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap.Load() != nil {
		return nil
	}

	matcher, err := router.Compile(e.table)
	if err != nil {
		return errors.Wrap(err, "failed to compile routes")
	}

	e.snap.Store(&snapshot{
		matcher: matcher,
		chain:   e.chain.Freeze(),
		cfg:     e.cfg,
		limits:  e.cfg.Limits(),
	})
	e.logger.Info("engine built",
		zap.Int("routes", e.table.Len()),
		zap.Int("plugins", e.chain.Len()),
		zap.Strings("methods", matcher.Methods()),
	)
	return nil
}

// Run listens on addr and serves until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, addr string) error {
	if err := e.Build(); err != nil {
		return err
	}

	ln, err := listener.Listen(addr, listener.Options{
		MaxConnections:  e.cfg.MaxConnections,
		KeepAlivePeriod: e.cfg.KeepAlivePeriod,
	})
	if err != nil {
		return err
	}
	e.logger.Info("server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("max_connections", e.cfg.MaxConnections),
	)
	return e.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled, then closes ln,
// wakes connections waiting for a request and lets requests already
// arriving finish. It returns nil after a shutdown and the accept error
// otherwise.
func (e *Engine) Serve(ctx context.Context, ln net.Listener) error {
	if err := e.Build(); err != nil {
		return err
	}
	snap := e.snap.Load()

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		e.wakeConns()
	})
	defer stop()

	var backoff time.Duration
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				e.wg.Wait()
				return errors.Wrap(err, "listener closed")
			}

			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(backoff*2, maxAcceptBackoff)
			}
			e.logger.Warn("accept failed, retrying",
				zap.Error(err),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
			}
			break
		}
		backoff = 0

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.serveConn(ctx, snap, nc)
		}()
	}

	e.logger.Info("shutting down, waiting for open connections", zap.Int64("active", e.active.Load()))
	e.wg.Wait()
	return nil
}

// serveConn serves nc until it closes. A panic raised while serving (by a
// plugin, say) ends this connection only.
func (e *Engine) serveConn(ctx context.Context, snap *snapshot, nc net.Conn) {
	remote := ""
	if addr := nc.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	logger := e.logger.Named("conn").With(zap.String("remote", remote))

	br := e.buffers.GetReader(nc)
	bw := e.buffers.GetWriter(nc)
	c := &conn{
		snap:     snap,
		logger:   logger,
		nc:       nc,
		br:       br,
		bw:       bw,
		remote:   remote,
		onServed: func() { e.served.Add(1) },
	}

	e.track(c, true)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while serving connection",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
		nc.Close()
		e.buffers.PutReader(br)
		e.buffers.PutWriter(bw)
		e.track(c, false)
	}()

	c.serve(ctx)
}

func (e *Engine) track(c *conn, add bool) {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	if add {
		e.conns[c] = struct{}{}
		e.active.Add(1)
	} else {
		delete(e.conns, c)
		e.active.Add(-1)
	}
}

// wakeConns expires the read deadline of every connection waiting for a
// request so it notices the shutdown.
func (e *Engine) wakeConns() {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	now := time.Now()
	for c := range e.conns {
		c.wake(now)
	}
}
