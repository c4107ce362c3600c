package router

import (
	"github.com/searchktools/tiny-server/core/http"
)

// Route is a single registration: method, raw pattern and handler.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// Table accumulates route registrations in order, per method. It performs no
// validation; patterns are checked when the table is compiled.
type Table struct {
	byMethod map[string][]Route
	all      []Route
}

// NewTable creates an empty route table
func NewTable() *Table {
	return &Table{byMethod: make(map[string][]Route)}
}

// GET registers a GET route
func (t *Table) GET(pattern string, handler http.HandlerFunc) {
	t.Handle("GET", pattern, handler)
}

// POST registers a POST route
func (t *Table) POST(pattern string, handler http.HandlerFunc) {
	t.Handle("POST", pattern, handler)
}

// Handle registers a route for an arbitrary method.
func (t *Table) Handle(method, pattern string, handler http.HandlerFunc) {
	route := Route{Method: method, Pattern: pattern, Handler: handler}
	t.byMethod[method] = append(t.byMethod[method], route)
	t.all = append(t.all, route)
}

// Routes returns every registration in registration order.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.all))
	copy(out, t.all)
	return out
}

// Len returns the number of registered routes.
func (t *Table) Len() int {
	return len(t.all)
}
