// Package routes declares every named endpoint of the storefront.
package routes

import (
	"net/http"

	"github.com/farmshop/storefront/app/controllers"
	"github.com/farmshop/storefront/pkg/ctx"
	"github.com/farmshop/storefront/pkg/middleware"
	"github.com/farmshop/storefront/pkg/router"
)

var getPost = []string{http.MethodGet, http.MethodPost}

// Handlers bundles the controllers the routes point at. Nil controllers are
// fine when the router is only built to list routes.
type Handlers struct {
	Shop     *controllers.ShopController
	Cart     *controllers.CartController
	Checkout *controllers.CheckoutController
	Admin    *controllers.AdminController
	Auth     *controllers.AuthController
	API      *controllers.APIController
	Storage  http.Handler
}

type Options struct {
	// CheckoutKey is the path segment of the payment success callback.
	CheckoutKey string
	CORSOrigins []string
}

// Register adds the web and API routes.
func Register(r *router.Router, h Handlers, opts Options) {
	RegisterWeb(r, h, opts)
	RegisterAPI(r, h, opts)
}

// RegisterWeb adds the HTML pages.
func RegisterWeb(r *router.Router, h Handlers, opts Options) {
	r.Match(getPost, "/", "shop.index", ctx.Wrap(h.Shop.Index))

	r.Match(getPost, "/cart", "cart.show", ctx.Wrap(h.Cart.Show))
	r.Match(getPost, "/cart_delete/{id}", "cart.delete", ctx.Wrap(h.Cart.Delete))

	r.Post("/create-checkout-session", "checkout.create", ctx.Wrap(h.Checkout.Create))
	r.Get("/"+opts.CheckoutKey, "checkout.paid", ctx.Wrap(h.Checkout.Paid))
	r.Get("/success", "checkout.success", ctx.Wrap(h.Checkout.Success))
	r.Get("/cancel", "checkout.cancel", ctx.Wrap(h.Checkout.Cancel))

	admin := r.Group("", middleware.RequireAdmin)
	admin.Match(getPost, "/manager", "admin.manager", ctx.Wrap(h.Admin.Manager))
	admin.Match(getPost, "/edit/{id}", "admin.edit", ctx.Wrap(h.Admin.Edit))
	admin.Match(getPost, "/add", "admin.add", ctx.Wrap(h.Admin.Add))
	admin.Match(getPost, "/orders", "admin.orders", ctx.Wrap(h.Admin.Orders))
	admin.Match(getPost, "/order_finished/{id}", "admin.finish", ctx.Wrap(h.Admin.Finish))
	admin.Get("/ws/orders", "admin.live", h.Admin.Live)

	r.Match(getPost, "/register", "auth.register", ctx.Wrap(h.Auth.Register))
	r.Match(getPost, "/login", "auth.login", ctx.Wrap(h.Auth.Login))
	r.Get("/logout", "auth.logout", ctx.Wrap(h.Auth.Logout))
}
