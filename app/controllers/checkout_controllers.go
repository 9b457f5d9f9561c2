package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/farmshop/storefront/app/services"
	"github.com/farmshop/storefront/pkg/ctx"
	"github.com/farmshop/storefront/pkg/logger"
	"github.com/farmshop/storefront/pkg/response"
)

const maxWebhookBytes = 64 << 10

type CheckoutController struct {
	checkout *services.CheckoutService
}

func NewCheckoutController(checkout *services.CheckoutService) *CheckoutController {
	return &CheckoutController{checkout: checkout}
}

// Create starts a hosted checkout for the open order and sends the shopper
// to the processor.
func (cc *CheckoutController) Create(c *ctx.Context) {
	user := c.User()
	if user == nil {
		c.Render(http.StatusOK, "cart", map[string]any{"LoggedIn": false})
		return
	}
	url, err := cc.checkout.Start(c.Context(), user)
	switch {
	case errors.Is(err, services.ErrNoOpenOrder), errors.Is(err, services.ErrEmptyCart):
		renderEmptyCart(c)
	case err != nil:
		fail(c, err)
	default:
		c.Redirect(http.StatusSeeOther, url)
	}
}

// Paid is the processor's success redirect.
func (cc *CheckoutController) Paid(c *ctx.Context) {
	user := c.User()
	if user == nil {
		c.Redirect(http.StatusFound, "/cart")
		return
	}
	err := cc.checkout.ConfirmReturn(c.Context(), user.ID, c.Query("session_id"), c.Query("state"))
	switch {
	case errors.Is(err, services.ErrNoOpenOrder):
		renderEmptyCart(c)
	case errors.Is(err, services.ErrPaymentNotConfirmed):
		c.Flash("Payment has not been confirmed yet.")
		c.Redirect(http.StatusFound, "/cart")
	case errors.Is(err, services.ErrCartChanged):
		c.Flash("Your cart changed after checkout started. Please check out again.")
		c.Redirect(http.StatusFound, "/cart")
	case err != nil:
		c.ServerError(err)
	default:
		c.Redirect(http.StatusFound, "/success")
	}
}

func (cc *CheckoutController) Success(c *ctx.Context) {
	if c.User() == nil {
		c.Redirect(http.StatusFound, "/cart")
		return
	}
	c.Render(http.StatusOK, "success", nil)
}

func (cc *CheckoutController) Cancel(c *ctx.Context) {
	if c.User() == nil {
		c.Redirect(http.StatusFound, "/cart")
		return
	}
	c.Render(http.StatusOK, "cancel", nil)
}

// Webhook receives signed processor events.
func (cc *CheckoutController) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		response.BadRequest(w, "unreadable body")
		return
	}
	err = cc.checkout.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, services.ErrInvalidWebhook):
		response.BadRequest(w, err.Error())
	case err != nil:
		logger.WithCtx(r.Context()).Error("webhook: handling failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "webhook handling failed")
	default:
		response.Success(w, map[string]bool{"received": true})
	}
}
