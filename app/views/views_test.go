package views

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/farmshop/storefront/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func urlFor(name string, params map[string]string) (string, error) {
	switch name {
	case "cart.delete":
		return "/cart_delete/" + params["id"], nil
	case "admin.edit":
		return "/edit/" + params["id"], nil
	case "admin.finish":
		return "/order_finished/" + params["id"], nil
	case "missing":
		return "", fmt.Errorf("route %q not found", name)
	}
	return "/" + name, nil
}

func render(t *testing.T, v *Views, page string, data map[string]any) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, v.Render(&buf, page, data))
	return buf.String()
}

func TestNew_ParsesEveryPage(t *testing.T) {
	v, err := New(urlFor)
	require.NoError(t, err)

	for _, page := range []string{"index", "cart", "login", "register", "manager", "admin_form", "orders", "success", "cancel", "error"} {
		assert.True(t, v.Has(page), page)
	}
	assert.False(t, v.Has("layout"))
	assert.False(t, v.Has("partials"))

	var buf bytes.Buffer
	assert.Error(t, v.Render(&buf, "nope", nil))
}

func TestRender_Cart(t *testing.T) {
	v, err := New(urlFor)
	require.NoError(t, err)
	user := map[string]any{"Email": "ann@farm.lt"}

	out := render(t, v, "cart", map[string]any{
		"User":      user,
		"LoggedIn":  true,
		"CSRFToken": "tok",
		"Lines": []models.CartLine{
			{ID: 4, ItemID: 1, Quantity: 3, TotalSum: 15, Item: models.Goods{Name: "Eggs", Price: 5, Units: "dozen"}},
		},
		"ToPay": 15.0,
	})
	assert.Contains(t, out, `<strong id="to-pay">15.00</strong>`)
	assert.Contains(t, out, `<form method="post" action="/cart_delete/4">`)
	assert.NotContains(t, out, `href="/cart_delete/4"`)
	assert.Contains(t, out, `name="csrf_token" value="tok"`)
	assert.Contains(t, out, "/auth.logout")

	out = render(t, v, "cart", map[string]any{"User": user, "LoggedIn": true, "Empty": true})
	assert.Contains(t, out, `id="cart-empty"`)

	out = render(t, v, "cart", map[string]any{"LoggedIn": false})
	assert.Contains(t, out, "/auth.login")
	assert.NotContains(t, out, "/auth.logout")
}

func TestRender_IndexEscapesAndShowsAdminLinks(t *testing.T) {
	v, err := New(urlFor)
	require.NoError(t, err)

	out := render(t, v, "index", map[string]any{
		"User":         map[string]any{"Email": "admin@farm.lt"},
		"IsAdmin":      true,
		"CartCount":    2,
		"ActiveOrders": 1,
		"Flashes":      []string{"Saved <ok>"},
		"Items":        []models.Goods{{ID: 1, Name: "Eggs & milk", Price: 3.2, Units: "dozen"}},
	})
	assert.Contains(t, out, "/admin.manager")
	assert.Contains(t, out, `<span id="active-orders">1</span>`)
	assert.Contains(t, out, "Saved &lt;ok&gt;")
	assert.Contains(t, out, "Eggs &amp; milk")
	assert.Contains(t, out, "3.20")
}

func TestRender_Orders(t *testing.T) {
	v, err := New(urlFor)
	require.NoError(t, err)

	out := render(t, v, "orders", map[string]any{
		"Orders": []models.Order{{
			ID:       9,
			Date:     time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
			OrderSum: 20,
			User:     models.User{Email: "ann@farm.lt"},
			Lines:    []models.CartLine{{Quantity: 2, TotalSum: 20, Item: models.Goods{Name: "Honey"}}},
		}},
		"CSRFToken": "tok",
	})
	assert.Contains(t, out, "ann@farm.lt")
	assert.Contains(t, out, "2024-05-01 10:30")
	assert.Contains(t, out, `<form method="post" action="/order_finished/9">`)
	assert.NotContains(t, out, `href="/order_finished/9"`)
	assert.Contains(t, out, `name="csrf_token" value="tok"`)
	assert.Contains(t, out, "Total: 20.00")
}

func TestURLFuncFallsBackOnUnknownRoute(t *testing.T) {
	f := funcs(urlFor)["url"].(func(string, ...any) string)
	assert.Equal(t, "#", f("missing"))
	assert.Equal(t, "/edit/7", f("admin.edit", "id", 7))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "20.00", Money(20))
	assert.Equal(t, "0.10", Money(0.1))
	assert.Equal(t, "3.33", Money(10.0/3))
}
