package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/farmshop/storefront/pkg/ctx"
	"github.com/farmshop/storefront/pkg/logger"
)

// Recovery turns a handler panic into a logged stack trace and the 500
// page. http.ErrAbortHandler is re-raised so net/http can drop the
// connection quietly.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.WithCtx(r.Context()).Error("panic recovered",
				"error", fmt.Sprintf("%v", rec),
				"stack", string(debug.Stack()),
				"method", r.Method,
				"path", r.URL.Path,
			)
			ctx.Wrap(func(c *ctx.Context) {
				c.ErrorPage(http.StatusInternalServerError)
			})(w, r)
		}()
		next.ServeHTTP(w, r)
	})
}
