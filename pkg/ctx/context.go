// Package ctx wraps a request/response pair for page handlers.
//
//	func (sc *ShopController) Index(c *ctx.Context) {
//	    c.Render(http.StatusOK, "index", map[string]any{"Items": items})
//	}
//
//	router.Match(both, "/", "shop.index", ctx.Wrap(sc.Index))
//
// Everything that writes a response saves the session first, so flashes and
// logins survive redirects.
package ctx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/farmshop/storefront/pkg/auth"
	"github.com/farmshop/storefront/pkg/bind"
	"github.com/farmshop/storefront/pkg/logger"
	"github.com/farmshop/storefront/pkg/session"
	"github.com/go-chi/chi/v5"
)

// HandlerFunc is the context-aware handler signature.
type HandlerFunc func(c *Context)

// Renderer executes a named page template.
type Renderer interface {
	Render(w io.Writer, name string, data map[string]any) error
}

var (
	rendererMu sync.RWMutex
	renderer   Renderer
)

// SetRenderer installs the page renderer. Call once at boot.
func SetRenderer(r Renderer) {
	rendererMu.Lock()
	renderer = r
	rendererMu.Unlock()
}

func currentRenderer() Renderer {
	rendererMu.RLock()
	defer rendererMu.RUnlock()
	return renderer
}

// Wrap converts a HandlerFunc to a standard http.HandlerFunc.
func Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := acquire(w, r)
		defer release(c)
		h(c)
	}
}

// Context wraps a request/response pair.
type Context struct {
	W      http.ResponseWriter
	R      *http.Request
	status int
}

var pool = sync.Pool{
	New: func() any { return &Context{} },
}

func acquire(w http.ResponseWriter, r *http.Request) *Context {
	c := pool.Get().(*Context)
	c.W = w
	c.R = r
	c.status = 0
	return c
}

func release(c *Context) {
	c.W = nil
	c.R = nil
	pool.Put(c)
}

// ─── Request helpers ──────────────────────────────────────────────────────────

// Param returns a URL path parameter.
func (c *Context) Param(key string) string {
	return chi.URLParam(c.R, key)
}

// ParamUint parses a positive integer path parameter.
func (c *Context) ParamUint(key string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(key), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

func (c *Context) Query(key string) string {
	return c.R.URL.Query().Get(key)
}

func (c *Context) Method() string { return c.R.Method }

func (c *Context) IsPost() bool { return c.R.Method == http.MethodPost }

func (c *Context) Context() context.Context { return c.R.Context() }

// ClientIP returns the caller address, honouring X-Forwarded-For.
func (c *Context) ClientIP() string { return ClientIP(c.R) }

// ClientIP returns the first X-Forwarded-For hop, then X-Real-Ip, then the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if real := r.Header.Get("X-Real-Ip"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// BindForm fills dest from the posted form and validates it. Field errors
// come back in the map; err is set only for unreadable bodies.
func (c *Context) BindForm(dest any) (map[string]string, error) {
	return bind.Form(c.R, dest)
}

// ─── Session & identity ───────────────────────────────────────────────────────

func (c *Context) Session() *session.Session { return session.FromCtx(c.R) }

// User returns the logged-in principal or nil.
func (c *Context) User() *auth.Principal { return auth.FromContext(c.R.Context()) }

func (c *Context) IsAdmin() bool {
	u := c.User()
	return u != nil && u.Admin
}

// Flash queues a message for the next rendered page.
func (c *Context) Flash(message string) {
	c.Session().Flash(message)
}

func (c *Context) saveSession() {
	if err := c.Session().Save(c.W); err != nil {
		logger.WithCtx(c.Context()).Error("ctx: session save failed", "error", err)
	}
}

// ─── Responses ────────────────────────────────────────────────────────────────

// Render executes the named page with data plus the layout values every page
// needs: User, IsAdmin, Flashes and CSRFToken.
func (c *Context) Render(status int, name string, data map[string]any) {
	r := currentRenderer()
	if r == nil {
		c.String(http.StatusInternalServerError, "no view renderer configured")
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	sess := c.Session()
	data["User"] = c.User()
	data["IsAdmin"] = c.IsAdmin()
	data["Flashes"] = sess.Flashes()
	data["CSRFToken"] = sess.CSRFToken()

	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		logger.WithCtx(c.Context()).Error("ctx: render failed", "view", name, "error", err)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}

	c.saveSession()
	c.W.Header().Set("Content-Type", "text/html; charset=utf-8")
	c.W.WriteHeader(status)
	c.status = status
	_, _ = c.W.Write(buf.Bytes())
}

// Redirect saves the session and redirects.
func (c *Context) Redirect(code int, url string) {
	c.saveSession()
	c.status = code
	http.Redirect(c.W, c.R, url, code)
}

// ErrorPage renders the shared error view.
func (c *Context) ErrorPage(status int) {
	c.Render(status, "error", map[string]any{
		"Status":  status,
		"Message": http.StatusText(status),
	})
}

func (c *Context) NotFound()  { c.ErrorPage(http.StatusNotFound) }
func (c *Context) Forbidden() { c.ErrorPage(http.StatusForbidden) }

// ServerError logs err and renders the 500 page.
func (c *Context) ServerError(err error) {
	logger.WithCtx(c.Context()).Error("request failed",
		"method", c.R.Method, "path", c.R.URL.Path, "error", err)
	c.ErrorPage(http.StatusInternalServerError)
}

// String writes a plain-text response.
func (c *Context) String(code int, format string, args ...any) {
	c.W.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.W.WriteHeader(code)
	c.status = code
	fmt.Fprintf(c.W, format, args...)
}

// JSON writes v as a JSON response.
func (c *Context) JSON(code int, v any) {
	c.W.Header().Set("Content-Type", "application/json")
	c.W.WriteHeader(code)
	c.status = code
	json.NewEncoder(c.W).Encode(v) //nolint:errcheck
}

// WrittenStatus returns the status written so far, or 0.
func (c *Context) WrittenStatus() int { return c.status }
