package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/farmshop/storefront/app/models"
	"github.com/farmshop/storefront/app/services"
	"github.com/farmshop/storefront/pkg/ctx"
	"github.com/farmshop/storefront/pkg/storage"
	"github.com/farmshop/storefront/pkg/ws"
)

type AdminController struct {
	catalog *services.CatalogService
	orders  *services.OrderAdminService
	hub     *ws.Hub
}

func NewAdminController(catalog *services.CatalogService, orders *services.OrderAdminService, hub *ws.Hub) *AdminController {
	return &AdminController{catalog: catalog, orders: orders, hub: hub}
}

type goodsForm struct {
	Name          string  `form:"name" validate:"required,min=4,max=250"`
	Description   string  `form:"description" validate:"required,min=4,max=1000"`
	PictureLink   string  `form:"picture_link" validate:"nullable,url,min=4,max=1000"`
	Price         float64 `form:"price" validate:"required,gt=0"`
	Units         string  `form:"units" validate:"required,max=250"`
	InStockAmount int     `form:"in_stock_amount" validate:"gte=0"`
	Available     bool    `form:"available"`
}

func formFromGoods(g *models.Goods) goodsForm {
	return goodsForm{
		Name:          g.Name,
		Description:   g.Description,
		PictureLink:   g.PictureLink,
		Price:         g.Price,
		Units:         g.Units,
		InStockAmount: g.InStockAmount,
		Available:     g.Available,
	}
}

func (f goodsForm) apply(g *models.Goods) {
	g.Name = f.Name
	g.Description = f.Description
	g.PictureLink = f.PictureLink
	g.Price = f.Price
	g.Units = f.Units
	g.InStockAmount = f.InStockAmount
	g.Available = f.Available
}

// Manager lists every catalog item.
func (ac *AdminController) Manager(c *ctx.Context) {
	items, err := ac.catalog.All(c.Context())
	if err != nil {
		c.ServerError(err)
		return
	}
	c.Render(http.StatusOK, "manager", map[string]any{"Items": items})
}

func (ac *AdminController) Add(c *ctx.Context) {
	ac.saveGoods(c, &models.Goods{}, "/add")
}

func (ac *AdminController) Edit(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		c.NotFound()
		return
	}
	g, err := ac.catalog.Find(c.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ac.saveGoods(c, g, c.R.URL.Path)
}

// saveGoods shows the goods form on GET and stores it on a valid POST.
func (ac *AdminController) saveGoods(c *ctx.Context, g *models.Goods, action string) {
	data := map[string]any{"New": g.ID == 0, "Action": action}
	if !c.IsPost() {
		data["Form"] = formFromGoods(g)
		c.Render(http.StatusOK, "admin_form", data)
		return
	}

	var in goodsForm
	errs, err := c.BindForm(&in)
	if err != nil {
		c.ErrorPage(http.StatusBadRequest)
		return
	}
	picture := uploadedFile(c.R, "picture")
	if errs == nil && in.PictureLink == "" && picture == nil {
		errs = map[string]string{"picture_link": "Add a picture link or upload a picture."}
	}
	if errs == nil {
		in.apply(g)
		err := ac.catalog.Save(c.Context(), g, picture)
		switch {
		case errors.Is(err, storage.ErrNotAnImage):
			errs = map[string]string{"picture": "The picture must be a JPEG, PNG, GIF or WebP image up to 5 MB."}
		case err != nil:
			c.ServerError(err)
			return
		default:
			c.Redirect(http.StatusFound, "/manager")
			return
		}
	}

	data["Form"] = in
	data["Errors"] = errs
	c.Render(http.StatusOK, "admin_form", data)
}

func uploadedFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 || files[0].Size == 0 {
		return nil
	}
	return files[0]
}

// Orders lists paid orders waiting to be finished.
func (ac *AdminController) Orders(c *ctx.Context) {
	orders, err := ac.orders.Active(c.Context())
	if err != nil {
		c.ServerError(err)
		return
	}
	c.Render(http.StatusOK, "orders", map[string]any{"Orders": orders})
}

func (ac *AdminController) Finish(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		c.NotFound()
		return
	}
	if err := ac.orders.Finish(c.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/orders")
}

// Live streams order events to the orders page.
func (ac *AdminController) Live(w http.ResponseWriter, r *http.Request) {
	ws.Upgrade(w, r, ac.hub)
}
