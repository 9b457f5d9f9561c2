package controllers

import (
	"errors"
	"net/http"

	"github.com/farmshop/storefront/app/services"
	"github.com/farmshop/storefront/pkg/ctx"
)

type ShopController struct {
	catalog *services.CatalogService
	cart    *services.CartService
}

func NewShopController(catalog *services.CatalogService, cart *services.CartService) *ShopController {
	return &ShopController{catalog: catalog, cart: cart}
}

type addToCartForm struct {
	ItemID   uint `form:"item_id" validate:"required"`
	Quantity int  `form:"quantity" validate:"required,gte=1"`
}

// Index lists the catalog. A POST adds one line to the user's open order.
func (sc *ShopController) Index(c *ctx.Context) {
	user := c.User()
	if c.IsPost() {
		if user == nil {
			c.Flash("Please log in to add items to your cart.")
			c.Redirect(http.StatusFound, "/login")
			return
		}

		var in addToCartForm
		errs, err := c.BindForm(&in)
		if err != nil {
			c.ErrorPage(http.StatusBadRequest)
			return
		}
		if errs != nil {
			c.Flash(firstError(errs, "item_id", "quantity"))
		} else {
			_, err := sc.cart.Add(c.Context(), user.ID, in.ItemID, in.Quantity)
			switch {
			case errors.Is(err, services.ErrInvalidQuantity):
				c.Flash(err.Error())
			case err != nil:
				fail(c, err)
				return
			default:
				c.Redirect(http.StatusFound, "/")
				return
			}
		}
	}

	items, err := sc.catalog.Storefront(c.Context())
	if err != nil {
		c.ServerError(err)
		return
	}
	data := map[string]any{"Items": items}
	if user != nil {
		count, err := sc.catalog.CartCount(c.Context(), user.ID)
		if err != nil {
			c.ServerError(err)
			return
		}
		data["CartCount"] = count
		if user.Admin {
			active, err := sc.catalog.ActiveOrders(c.Context())
			if err != nil {
				c.ServerError(err)
				return
			}
			data["ActiveOrders"] = active
		}
	}
	c.Render(http.StatusOK, "index", data)
}
