package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/farmshop/storefront/pkg/auth"
	"github.com/farmshop/storefront/pkg/ctx"
	"github.com/farmshop/storefront/pkg/logger"
	"github.com/farmshop/storefront/pkg/session"
)

// SessionUserKey is the session key holding the logged-in user id.
const SessionUserKey = "uid"

// ErrUnknownPrincipal tells Authenticate the session points at a user that
// no longer exists.
var ErrUnknownPrincipal = errors.New("middleware: unknown principal")

// PrincipalLoader resolves a user id from the session.
type PrincipalLoader func(ctx context.Context, id uint) (*auth.Principal, error)

// Authenticate attaches the logged-in principal to the request context.
// A stale id is dropped from the session; lookup failures leave the
// request anonymous.
func Authenticate(load PrincipalLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := session.FromCtx(r)
			uid, ok := sess.GetUint(SessionUserKey)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			p, err := load(r.Context(), uid)
			switch {
			case errors.Is(err, ErrUnknownPrincipal):
				sess.Delete(SessionUserKey)
			case err != nil:
				logger.WithCtx(r.Context()).Error("auth: load principal", "user_id", uid, "error", err)
			default:
				r = r.WithContext(auth.WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin answers 403 to anonymous visitors and non-admins.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := auth.FromContext(r.Context()); p == nil || !p.Admin {
			ctx.Wrap(func(c *ctx.Context) { c.Forbidden() })(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
