// Package payment wraps stripe-go for hosted checkout.
//
//	c := payment.FromConfig()
//	prod, err := c.CreateProduct(ctx, "Order #12")
//	price, err := c.CreatePrice(ctx, prod.ID, payment.Cents(20))
//	sess, err := c.CreateCheckoutSession(ctx, payment.CheckoutParams{...})
//
// Calls go through the shared outgoing HTTP client, so tests can fake the
// processor with testkit.MockTransport.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/farmshop/storefront/config"
	shophttp "github.com/farmshop/storefront/pkg/http"
	"github.com/farmshop/storefront/pkg/logger"
)

// ErrNotConfigured is returned when STRIPE_KEY is empty.
var ErrNotConfigured = errors.New("payment: STRIPE_KEY is not configured")

// Error is an error reported by the processor. Its text is what the API
// said, unchanged.
type Error struct {
	Status  int
	Type    string
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("payment processor returned status %d", e.Status)
}

type Product struct {
	ID   string
	Name string
}

type Price struct {
	ID         string
	UnitAmount int64
	Currency   string
}

// CheckoutSession is the subset of a Stripe checkout session the shop uses.
// AmountTotal is in the smallest currency unit.
type CheckoutSession struct {
	ID                string
	URL               string
	Status            string
	PaymentStatus     string
	ClientReferenceID string
	AmountTotal       int64
}

// Paid reports whether the processor has captured the money.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid)
}

func sessionFrom(s *stripe.CheckoutSession) *CheckoutSession {
	return &CheckoutSession{
		ID:                s.ID,
		URL:               s.URL,
		Status:            string(s.Status),
		PaymentStatus:     string(s.PaymentStatus),
		ClientReferenceID: s.ClientReferenceID,
		AmountTotal:       s.AmountTotal,
	}
}

// CheckoutParams describes a one-line payment session.
type CheckoutParams struct {
	PriceID           string
	ClientReferenceID string
	CustomerEmail     string
	SuccessURL        string
	CancelURL         string
}

// Client is a Stripe API client bound to one key and currency.
type Client struct {
	api      *client.API
	key      string
	currency string
}

// New builds a client for key. An empty base uses Stripe's public API.
// POSTs are retried with idempotency keys, which stripe-go adds itself.
func New(key, base, currency string) *Client {
	cfg := &stripe.BackendConfig{
		HTTPClient:        shophttp.DefaultClient,
		MaxNetworkRetries: stripe.Int64(2),
		EnableTelemetry:   stripe.Bool(false),
		LeveledLogger:     slogLogger{},
	}
	if base != "" {
		cfg.URL = stripe.String(base)
	}
	api := &client.API{}
	api.Init(key, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	})
	return &Client{api: api, key: key, currency: currency}
}

// FromConfig reads STRIPE_KEY, STRIPE_API_BASE and CHECKOUT_CURRENCY.
func FromConfig() *Client {
	return New(config.StripeKey(), config.StripeAPIBase(), config.CheckoutCurrency())
}

func (c *Client) Configured() bool { return c.key != "" }

// Cents converts a 2-dp amount to the smallest currency unit.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (c *Client) CreateProduct(ctx context.Context, name string) (*Product, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.ProductParams{Name: stripe.String(name)}
	params.Context = ctx
	p, err := c.api.Products.New(params)
	if err != nil {
		return nil, wrap("create product", err)
	}
	return &Product{ID: p.ID, Name: p.Name}, nil
}

func (c *Client) CreatePrice(ctx context.Context, productID string, unitAmount int64) (*Price, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.PriceParams{
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(unitAmount),
		Currency:   stripe.String(c.currency),
	}
	params.Context = ctx
	p, err := c.api.Prices.New(params)
	if err != nil {
		return nil, wrap("create price", err)
	}
	return &Price{ID: p.ID, UnitAmount: p.UnitAmount, Currency: string(p.Currency)}, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	if p.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(p.ClientReferenceID)
	}
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	params.Context = ctx
	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrap("create checkout session", err)
	}
	return sessionFrom(s), nil
}

func (c *Client) RetrieveCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := c.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, wrap("retrieve session", err)
	}
	return sessionFrom(s), nil
}

// wrap turns a stripe-go API error into *Error so callers see the
// processor's message rather than stripe-go's JSON rendering of it.
func wrap(op string, err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		e := &Error{Status: serr.HTTPStatusCode, Type: string(serr.Type), Code: string(serr.Code), Message: serr.Msg}
		if e.Message == "" && e.Status != 0 {
			e.Message = http.StatusText(e.Status)
		}
		return e
	}
	return fmt.Errorf("payment: %s: %w", op, err)
}

// slogLogger routes stripe-go's own log lines into the application log.
type slogLogger struct{}

func (slogLogger) Debugf(format string, v ...interface{}) {
	logger.Debug("stripe: " + fmt.Sprintf(format, v...))
}

func (slogLogger) Infof(format string, v ...interface{}) {
	logger.Debug("stripe: " + fmt.Sprintf(format, v...))
}

func (slogLogger) Warnf(format string, v ...interface{}) {
	logger.Warn("stripe: " + fmt.Sprintf(format, v...))
}

func (slogLogger) Errorf(format string, v ...interface{}) {
	logger.Error("stripe: " + fmt.Sprintf(format, v...))
}
