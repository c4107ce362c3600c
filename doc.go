/*
Package tinyserver is a minimal HTTP/1.x server built directly on net.Conn.

Each accepted connection is served by its own goroutine, which walks an
explicit state machine for every request: decode, middleware pre-request
hooks, routing (or a middleware short-circuit), the handler, middleware
post-response hooks, encode, then keep-alive or close.

Features

  - Regex route patterns: "/user/:id", "/user/:id(\d+)", "/static/*path"
  - First registered route wins, per method
  - Middleware plugins with pre-request and post-response hooks
  - Handler errors mapped to responses without dropping the connection
  - Keep-alive for HTTP/1.0 and HTTP/1.1, read/write/idle deadlines
  - Graceful shutdown on context cancellation
  - Built-in plugins: request ids, CORS, zap access log, Prometheus metrics
  - Configuration from TINY_* environment variables and flags

Quick Start

	package main

	import (
	    "github.com/searchktools/tiny-server/app"
	    "github.com/searchktools/tiny-server/config"
	    "github.com/searchktools/tiny-server/core/http"
	)

	func main() {
	    cfg := config.New()
	    logger, _ := app.NewLogger(cfg)
	    application, _ := app.New(cfg, logger)

	    engine := application.Engine()
	    engine.GET("/hello/:name", func(req *http.Request) (*http.Response, error) {
	        return http.Text(200, "Hello, "+req.Param("name")), nil
	    })

	    application.Run()
	}

Packages

  - app: logger construction, signal handling, lifecycle
  - config: configuration loading
  - core: Engine and the per-connection state machine
  - core/http: Request, Response, Decode and Encode
  - core/router: route table and regex path matcher
  - core/middleware: plugin chain and built-in plugins
  - core/listener: TCP listener with connection limit
  - core/pools: pooled bufio readers and writers
*/
package tinyserver
