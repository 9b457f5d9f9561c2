package auth

import (
	"context"
	"slices"
)

// Principal is the authenticated visitor attached to a request.
type Principal struct {
	ID    uint
	Email string
	Admin bool
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the request's principal, or nil for anonymous visitors.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// IsAdmin reports whether id is on the admin allow-list.
func IsAdmin(id uint, admins []uint) bool {
	return id != 0 && slices.Contains(admins, id)
}
