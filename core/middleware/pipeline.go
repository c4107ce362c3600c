package middleware

import (
	"github.com/searchktools/tiny-server/core/http"
)

// Plugin intercepts requests before routing and responses before they are
// sent. Plugins are shared by every connection; any state a plugin keeps must
// be safe for concurrent use.
type Plugin interface {
	// PreRequest runs before routing. Returning a non-nil response
	// short-circuits the request: routing and the handler are skipped and
	// the returned response is sent instead.
	PreRequest(req *http.Request) *http.Response

	// PostResponse runs for every response, including short-circuited and
	// error responses, and may mutate it in place.
	PostResponse(req *http.Request, resp *http.Response)
}

// Funcs adapts a pair of optional functions to the Plugin interface.
type Funcs struct {
	Pre  func(req *http.Request) *http.Response
	Post func(req *http.Request, resp *http.Response)
}

func (f Funcs) PreRequest(req *http.Request) *http.Response {
	if f.Pre == nil {
		return nil
	}
	return f.Pre(req)
}

func (f Funcs) PostResponse(req *http.Request, resp *http.Response) {
	if f.Post != nil {
		f.Post(req, resp)
	}
}

// Chain is an ordered list of plugins. It is built before serving starts and
// only read afterwards.
type Chain struct {
	plugins []Plugin
	frozen  bool
}

// NewChain creates a chain holding plugins in the given order
func NewChain(plugins ...Plugin) *Chain {
	c := &Chain{plugins: make([]Plugin, 0, 16)}
	for _, p := range plugins {
		c.Use(p)
	}
	return c
}

// Use appends a plugin. It panics once the chain has been frozen.
func (c *Chain) Use(p Plugin) *Chain {
	if c.frozen {
		panic("middleware: Use called after the chain was frozen")
	}
	c.plugins = append(c.plugins, p)
	return c
}

// Freeze trims the plugin list to its exact size and rejects further Use
// calls.
func (c *Chain) Freeze() *Chain {
	if c.frozen {
		return c
	}
	compiled := make([]Plugin, len(c.plugins))
	copy(compiled, c.plugins)
	c.plugins = compiled
	c.frozen = true
	return c
}

// Len returns the number of plugins.
func (c *Chain) Len() int {
	return len(c.plugins)
}

// PreRequest runs the pre-request hooks in order and returns the first
// response a plugin supplies, or nil if none does.
func (c *Chain) PreRequest(req *http.Request) *http.Response {
	for _, p := range c.plugins {
		if resp := p.PreRequest(req); resp != nil {
			return resp
		}
	}
	return nil
}

// PostResponse runs every post-response hook in order.
func (c *Chain) PostResponse(req *http.Request, resp *http.Response) {
	for _, p := range c.plugins {
		p.PostResponse(req, resp)
	}
}
