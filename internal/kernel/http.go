// Package kernel assembles the storefront's HTTP handler: repositories,
// services, controllers, views and the global middleware stack.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/farmshop/storefront/app/controllers"
	"github.com/farmshop/storefront/app/jobs"
	"github.com/farmshop/storefront/app/repositories"
	"github.com/farmshop/storefront/app/routes"
	"github.com/farmshop/storefront/app/services"
	"github.com/farmshop/storefront/app/views"
	"github.com/farmshop/storefront/pkg/auth"
	"github.com/farmshop/storefront/pkg/cache"
	"github.com/farmshop/storefront/pkg/crypt"
	appctx "github.com/farmshop/storefront/pkg/ctx"
	"github.com/farmshop/storefront/pkg/event"
	"github.com/farmshop/storefront/pkg/logger"
	"github.com/farmshop/storefront/pkg/mail"
	"github.com/farmshop/storefront/pkg/metrics"
	"github.com/farmshop/storefront/pkg/middleware"
	"github.com/farmshop/storefront/pkg/payment"
	"github.com/farmshop/storefront/pkg/queue"
	"github.com/farmshop/storefront/pkg/recaptcha"
	"github.com/farmshop/storefront/pkg/reqid"
	"github.com/farmshop/storefront/pkg/router"
	"github.com/farmshop/storefront/pkg/session"
	"github.com/farmshop/storefront/pkg/storage"
	"github.com/farmshop/storefront/pkg/workerpool"
	"github.com/farmshop/storefront/pkg/ws"
	"gorm.io/gorm"
)

// Config holds the settings the handler needs.
type Config struct {
	AppURL          string
	CheckoutKey     string
	WebhookSecret   string
	RecaptchaKey    string
	Admins          []uint
	HideUnavailable bool
	CSRF            bool
	SecureCookies   bool
	SessionTTL      time.Duration
	RatePerMinute   int
	RateBurst       int
	CORSOrigins     []string
}

// Deps are the collaborators built from configuration by the caller.
type Deps struct {
	DB       *gorm.DB
	Sessions cache.Store
	Box      *crypt.Box
	Disk     storage.Disk
	Payments *payment.Client
	Captcha  *recaptcha.Verifier
	Queue    *queue.Manager
	Mailer   mail.Sender
}

// Kernel is the assembled application.
type Kernel struct {
	Router *router.Router
	Hub    *ws.Hub
	Bus    *event.Bus
	Admin  *services.OrderAdminService

	db      *gorm.DB
	pool    *workerpool.Pool
	handler http.Handler
}

// New wires everything and installs the page renderer.
func New(cfg Config, d Deps) (*Kernel, error) {
	if d.DB == nil {
		return nil, errors.New("kernel: database is required")
	}
	if d.Sessions == nil {
		d.Sessions = cache.NewMemory()
	}
	if d.Box == nil {
		d.Box = crypt.FromAppKey()
	}
	if d.Payments == nil {
		d.Payments = payment.New("", "", "eur")
	}
	if d.Captcha == nil {
		d.Captcha = recaptcha.New("")
	}
	if d.Mailer == nil {
		d.Mailer = mail.Default()
	}

	users := repositories.NewUserRepository(d.DB)
	goods := repositories.NewGoodsRepository(d.DB)
	orders := repositories.NewOrderRepository(d.DB)
	carts := repositories.NewCartRepository(d.DB)

	k := &Kernel{
		Router: router.New(),
		Hub:    ws.NewHub(),
		db:     d.DB,
		pool:   workerpool.New("events", 4),
	}
	k.Bus = event.NewBus(k.pool)

	authSvc := services.NewAuthService(users, cfg.Admins, d.Captcha)
	catalog := services.NewCatalogService(goods, orders, carts, d.Disk, cfg.HideUnavailable)
	cart := services.NewCartService(goods, orders, carts)
	checkout := services.NewCheckoutService(orders, carts, d.Payments, k.Bus, services.CheckoutConfig{
		AppURL:        cfg.AppURL,
		CheckoutKey:   cfg.CheckoutKey,
		WebhookSecret: cfg.WebhookSecret,
	})
	k.Admin = services.NewOrderAdminService(orders, k.Bus)

	if d.Queue != nil {
		jobs.Register(d.Queue, jobs.Deps{Orders: orders, Users: users, Mailer: d.Mailer})
	}
	k.listen(d.Queue)

	api, err := controllers.NewAPIController(catalog, k.Ping)
	if err != nil {
		return nil, fmt.Errorf("kernel: graphql schema: %w", err)
	}
	h := routes.Handlers{
		Shop:     controllers.NewShopController(catalog, cart),
		Cart:     controllers.NewCartController(cart),
		Checkout: controllers.NewCheckoutController(checkout),
		Admin:    controllers.NewAdminController(catalog, k.Admin, k.Hub),
		Auth:     controllers.NewAuthController(authSvc, cfg.RecaptchaKey),
		API:      api,
	}
	if local, ok := d.Disk.(*storage.Local); ok {
		h.Storage = local.Handler()
	}

	sessOpts := session.DefaultOptions()
	sessOpts.Secure = cfg.SecureCookies
	if cfg.SessionTTL > 0 {
		sessOpts.TTL = cfg.SessionTTL
	}
	sessions := session.NewManager(d.Sessions, d.Box, sessOpts)

	// outermost first
	r := k.Router
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.NewRateLimiter(cfg.RatePerMinute, cfg.RateBurst).Middleware)
	r.Use(sessions.Middleware)
	if cfg.CSRF {
		r.Use(middleware.CSRF(routes.CSRFExempt...))
	}
	r.Use(middleware.Authenticate(func(ctx context.Context, id uint) (*auth.Principal, error) {
		p, err := authSvc.Principal(ctx, id)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, middleware.ErrUnknownPrincipal
		}
		return p, err
	}))

	routes.Register(r, h, routes.Options{CheckoutKey: cfg.CheckoutKey, CORSOrigins: cfg.CORSOrigins})
	r.NotFound(appctx.Wrap(func(c *appctx.Context) { c.NotFound() }))
	r.MethodNotAllowed(appctx.Wrap(func(c *appctx.Context) { c.ErrorPage(http.StatusMethodNotAllowed) }))

	v, err := views.New(r.URL)
	if err != nil {
		return nil, err
	}
	appctx.SetRenderer(v)

	k.handler = r.Handler()
	return k, nil
}

// listen forwards order events to the live feed and, when a queue is
// configured, to the customer mail job.
func (k *Kernel) listen(q *queue.Manager) {
	for _, name := range []string{event.OrderPaid, event.OrderFinished} {
		k.Bus.Listen(name, func(_ context.Context, e event.Event) {
			k.Hub.Publish(e)
		})
		if q == nil {
			continue
		}
		k.Bus.Listen(name, func(ctx context.Context, e event.Event) {
			if err := q.Dispatch(ctx, &jobs.OrderMail{OrderID: e.OrderID, Event: e.Name}); err != nil {
				logger.WithCtx(ctx).Error("kernel: queue order mail", "order_id", e.OrderID, "error", err)
			}
		})
	}
}

func (k *Kernel) Handler() http.Handler { return k.handler }

// Ping checks the database connection.
func (k *Kernel) Ping(ctx context.Context) error {
	sqlDB, err := k.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Run drives the websocket hub until ctx is cancelled.
func (k *Kernel) Run(ctx context.Context) { k.Hub.Run(ctx) }

// Close drains the event pool.
func (k *Kernel) Close() { k.pool.Shutdown() }
