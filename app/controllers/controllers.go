// Package controllers holds the page handlers.
package controllers

import (
	"errors"
	"net/http"

	"github.com/farmshop/storefront/app/repositories"
	"github.com/farmshop/storefront/app/services"
	"github.com/farmshop/storefront/pkg/ctx"
)

// fail maps a service error onto a response.
func fail(c *ctx.Context, err error) {
	var perr *services.ProcessorError
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		c.NotFound()
	case errors.As(err, &perr):
		c.String(http.StatusBadGateway, "%s", perr.Error())
	default:
		c.ServerError(err)
	}
}

// firstError returns one message from a field error map, in a stable order.
func firstError(errs map[string]string, order ...string) string {
	for _, k := range order {
		if msg, ok := errs[k]; ok {
			return msg
		}
	}
	for _, msg := range errs {
		return msg
	}
	return ""
}
