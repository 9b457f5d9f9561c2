package controllers

import (
	"errors"
	"net/http"

	"github.com/farmshop/storefront/app/services"
	"github.com/farmshop/storefront/pkg/ctx"
)

type CartController struct {
	cart *services.CartService
}

func NewCartController(cart *services.CartService) *CartController {
	return &CartController{cart: cart}
}

type editCartForm struct {
	ID       uint `form:"id" validate:"required"`
	Quantity int  `form:"quantity" validate:"required,gte=1"`
}

// Show renders the open order. A POST changes one line's quantity first.
func (cc *CartController) Show(c *ctx.Context) {
	user := c.User()
	if user == nil {
		c.Render(http.StatusOK, "cart", map[string]any{"LoggedIn": false})
		return
	}

	if c.IsPost() {
		var in editCartForm
		errs, err := c.BindForm(&in)
		if err != nil {
			c.ErrorPage(http.StatusBadRequest)
			return
		}
		if errs != nil {
			c.Flash(firstError(errs, "quantity", "id"))
		} else if err := cc.cart.Update(c.Context(), user.ID, in.ID, in.Quantity); err != nil {
			if errors.Is(err, services.ErrNoOpenOrder) {
				renderEmptyCart(c)
				return
			}
			fail(c, err)
			return
		}
	}

	view, err := cc.cart.View(c.Context(), user.ID)
	if errors.Is(err, services.ErrNoOpenOrder) {
		renderEmptyCart(c)
		return
	}
	if err != nil {
		c.ServerError(err)
		return
	}
	c.Render(http.StatusOK, "cart", map[string]any{
		"LoggedIn": true,
		"Empty":    len(view.Lines) == 0,
		"Order":    view.Order,
		"Lines":    view.Lines,
		"ToPay":    view.ToPay,
	})
}

// Delete removes one line from the open order.
func (cc *CartController) Delete(c *ctx.Context) {
	user := c.User()
	if user == nil {
		c.Render(http.StatusOK, "cart", map[string]any{"LoggedIn": false})
		return
	}
	id, ok := c.ParamUint("id")
	if !ok {
		c.NotFound()
		return
	}
	if err := cc.cart.Remove(c.Context(), user.ID, id); err != nil {
		if errors.Is(err, services.ErrNoOpenOrder) {
			c.NotFound()
			return
		}
		fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/cart")
}

func renderEmptyCart(c *ctx.Context) {
	c.Render(http.StatusOK, "cart", map[string]any{"LoggedIn": true, "Empty": true})
}
