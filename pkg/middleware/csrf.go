package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/farmshop/storefront/pkg/ctx"
	"github.com/farmshop/storefront/pkg/logger"
	"github.com/farmshop/storefront/pkg/session"
)

const (
	CSRFField  = "csrf_token"
	CSRFHeader = "X-CSRF-Token"
)

// CSRF rejects state-changing requests whose csrf_token form field (or
// X-CSRF-Token header) does not match the session token. Paths starting with
// one of exempt are skipped; they authenticate by other means.
// Mount it after the session middleware.
func CSRF(exempt ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if safeMethod(r.Method) || isExempt(r.URL.Path, exempt) {
				next.ServeHTTP(w, r)
				return
			}

			sent := r.Header.Get(CSRFHeader)
			if sent == "" {
				sent = r.PostFormValue(CSRFField)
			}
			want := session.FromCtx(r).CSRFToken()
			if sent == "" || subtle.ConstantTimeCompare([]byte(sent), []byte(want)) != 1 {
				logger.WithCtx(r.Context()).Warn("csrf: token mismatch", "path", r.URL.Path)
				ctx.Wrap(func(c *ctx.Context) { c.ErrorPage(http.StatusForbidden) })(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func safeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func isExempt(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
