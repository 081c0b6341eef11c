// Package router defines the app's static route table and mounts it on a
// chi-style mux.
package router

import (
	"fmt"
	"net/http"
	"sort"
)

type RouteType int

const (
	RouteTypePage RouteType = iota
	RouteTypeAction
	RouteTypeAPI
	// RouteTypeStream is a long-lived connection such as a websocket.
	RouteTypeStream
)

func (t RouteType) String() string {
	switch t {
	case RouteTypeAction:
		return "action"
	case RouteTypeAPI:
		return "api"
	case RouteTypeStream:
		return "stream"
	default:
		return "page"
	}
}

type Route struct {
	Method  string
	Pattern string
	Name    string
	Type    RouteType
	Handler http.HandlerFunc
}

// Table is the fixed set of routes, defined once at startup.
type Table struct {
	routes []*Route
	index  map[string]*Route
}

func New() *Table {
	return &Table{index: make(map[string]*Route)}
}

func key(method, pattern string) string {
	return method + " " + pattern
}

// Add registers a route. Registering the same method and pattern twice is an
// error.
func (t *Table) Add(method, pattern, name string, typ RouteType, h http.HandlerFunc) error {
	k := key(method, pattern)
	if _, exists := t.index[k]; exists {
		return fmt.Errorf("route %s already registered", k)
	}
	r := &Route{Method: method, Pattern: pattern, Name: name, Type: typ, Handler: h}
	t.routes = append(t.routes, r)
	t.index[k] = r
	return nil
}

// Lookup finds the route registered for method and pattern.
func (t *Table) Lookup(method, pattern string) (*Route, bool) {
	r, ok := t.index[key(method, pattern)]
	return r, ok
}

// Routes returns the routes sorted by pattern, then method.
func (t *Table) Routes() []*Route {
	out := make([]*Route, len(t.routes))
	copy(out, t.routes)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Pages returns the page routes, the ones a person navigates to.
func (t *Table) Pages() []*Route {
	var pages []*Route
	for _, r := range t.Routes() {
		if r.Type == RouteTypePage {
			pages = append(pages, r)
		}
	}
	return pages
}

// Mount registers the routes with a handler on mux. With types given, only
// routes of those types are mounted.
func (t *Table) Mount(mux interface {
	Method(method, pattern string, handler http.Handler)
}, types ...RouteType) {
	for _, r := range t.routes {
		if r.Handler == nil || !matches(r.Type, types) {
			continue
		}
		mux.Method(r.Method, r.Pattern, r.Handler)
	}
}

func matches(typ RouteType, types []RouteType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if typ == want {
			return true
		}
	}
	return false
}
