// Package router wraps chi with named routes and prefix groups.
//
//	r := router.New()
//	r.Match([]string{"GET", "POST"}, "/cart", "cart.show", h.Cart)
//	admin := r.Group("", middleware.RequireAdmin(...))
//	admin.Get("/orders", "admin.orders", h.Orders)
//
//	path, _ := r.URL("admin.edit", map[string]string{"id": "7"}) // "/edit/7"
package router

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

type Middleware func(http.Handler) http.Handler

// Route describes one registered endpoint.
type Route struct {
	Name    string
	Methods []string
	Path    string
}

type Router struct {
	mux    chi.Router
	mu     sync.RWMutex
	routes map[string]Route
	order  []string
}

type Group struct {
	router      *Router
	prefix      string
	middlewares []Middleware
}

func New() *Router {
	return &Router{
		mux:    chi.NewRouter(),
		routes: make(map[string]Route),
	}
}

func (r *Router) Handler() http.Handler { return r.mux }

// Use appends global middleware. chi requires it before any route.
func (r *Router) Use(middlewares ...Middleware) {
	for _, mw := range middlewares {
		r.mux.Use(mw)
	}
}

func (r *Router) NotFound(h http.HandlerFunc)         { r.mux.NotFound(h) }
func (r *Router) MethodNotAllowed(h http.HandlerFunc) { r.mux.MethodNotAllowed(h) }

func (r *Router) Group(prefix string, middlewares ...Middleware) *Group {
	return &Group{
		router:      r,
		prefix:      normalizePath(prefix),
		middlewares: append([]Middleware(nil), middlewares...),
	}
}

func (r *Router) Get(path, name string, h http.HandlerFunc, mws ...Middleware) {
	r.add([]string{http.MethodGet}, path, name, h, mws)
}

func (r *Router) Post(path, name string, h http.HandlerFunc, mws ...Middleware) {
	r.add([]string{http.MethodPost}, path, name, h, mws)
}

// Match registers h for several methods under one name.
func (r *Router) Match(methods []string, path, name string, h http.HandlerFunc, mws ...Middleware) {
	r.add(methods, path, name, h, mws)
}

// Mount attaches a handler for every path under prefix, e.g. a file server.
func (r *Router) Mount(prefix string, h http.Handler) {
	r.mux.Mount(normalizePath(prefix), h)
}

func (r *Router) add(methods []string, path, name string, h http.Handler, mws []Middleware) {
	full := normalizePath(path)
	wrapped := chain(h, mws...)
	for _, m := range methods {
		r.mux.Method(m, full, wrapped)
	}
	r.register(Route{Name: name, Methods: methods, Path: full})
}

func (r *Router) register(rt Route) {
	if rt.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.routes[rt.Name]; dup {
		panic(fmt.Sprintf("router: duplicate route name %q", rt.Name))
	}
	r.routes[rt.Name] = rt
	r.order = append(r.order, rt.Name)
}

// Path returns the pattern registered under name.
func (r *Router) Path(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.routes[name]
	return rt.Path, ok
}

// URL fills the {param} placeholders of a named route.
func (r *Router) URL(name string, params map[string]string) (string, error) {
	path, ok := r.Path(name)
	if !ok {
		return "", fmt.Errorf("route %q not found", name)
	}
	for k, v := range params {
		path = strings.ReplaceAll(path, "{"+k+"}", v)
	}
	if strings.Contains(path, "{") {
		return "", fmt.Errorf("missing parameters for route %q", name)
	}
	return path, nil
}

// Routes lists named routes in registration order, or sorted by path when
// byPath is set.
func (r *Router) Routes(byPath bool) []Route {
	r.mu.RLock()
	out := make([]Route, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.routes[n])
	}
	r.mu.RUnlock()

	if byPath {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	}
	return out
}

func (g *Group) Group(prefix string, middlewares ...Middleware) *Group {
	return &Group{
		router:      g.router,
		prefix:      joinPath(g.prefix, prefix),
		middlewares: append(append([]Middleware(nil), g.middlewares...), middlewares...),
	}
}

func (g *Group) Get(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.Match([]string{http.MethodGet}, path, name, h, mws...)
}

func (g *Group) Post(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.Match([]string{http.MethodPost}, path, name, h, mws...)
}

func (g *Group) Match(methods []string, path, name string, h http.HandlerFunc, mws ...Middleware) {
	combined := append(append([]Middleware(nil), g.middlewares...), mws...)
	g.router.add(methods, joinPath(g.prefix, path), name, h, combined)
}

func chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func joinPath(parts ...string) string {
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.Trim(part, "/"); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	if len(segments) == 0 {
		return "/"
	}
	return "/" + strings.Join(segments, "/")
}

func normalizePath(path string) string {
	return joinPath(path)
}
