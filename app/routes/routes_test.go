package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/farmshop/storefront/app/routes"
	"github.com/farmshop/storefront/app/views"
	"github.com/farmshop/storefront/pkg/ctx"
	"github.com/farmshop/storefront/pkg/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) *router.Router {
	t.Helper()
	r := router.New()
	routes.Register(r, routes.Handlers{}, routes.Options{CheckoutKey: "paid-xyz"})
	v, err := views.New(r.URL)
	require.NoError(t, err)
	ctx.SetRenderer(v)
	return r
}

func TestRegister_NamedRoutes(t *testing.T) {
	r := newRouter(t)

	want := map[string]string{
		"shop.index":       "/",
		"cart.show":        "/cart",
		"cart.delete":      "/cart_delete/{id}",
		"checkout.create":  "/create-checkout-session",
		"checkout.paid":    "/paid-xyz",
		"checkout.success": "/success",
		"checkout.cancel":  "/cancel",
		"checkout.webhook": "/webhooks/stripe",
		"admin.manager":    "/manager",
		"admin.edit":       "/edit/{id}",
		"admin.add":        "/add",
		"admin.orders":     "/orders",
		"admin.finish":     "/order_finished/{id}",
		"admin.live":       "/ws/orders",
		"auth.register":    "/register",
		"auth.login":       "/login",
		"auth.logout":      "/logout",
		"api.graphql":      "/graphql",
		"api.health":       "/healthz",
		"api.metrics":      "/metrics",
	}
	for name, path := range want {
		got, ok := r.Path(name)
		if assert.True(t, ok, name) {
			assert.Equal(t, path, got, name)
		}
	}
	assert.Len(t, r.Routes(false), len(want))

	u, err := r.URL("admin.finish", map[string]string{"id": "7"})
	require.NoError(t, err)
	assert.Equal(t, "/order_finished/7", u)
}

func TestRegister_AdminGroupIsGuarded(t *testing.T) {
	r := newRouter(t)

	for _, path := range []string{"/manager", "/edit/1", "/add", "/orders", "/order_finished/1", "/ws/orders"} {
		rec := httptest.NewRecorder()
		r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestCSRFExempt(t *testing.T) {
	assert.Contains(t, routes.CSRFExempt, routes.WebhookPrefix)
	assert.Contains(t, routes.CSRFExempt, "/graphql")
}
