// Package app boots the storefront from configuration and runs its
// commands. cmd/shop is a thin cobra layer over it.
//
//	a, err := app.Boot(ctx)
//	if err != nil { ... }
//	defer a.Close()
//	return a.Serve(ctx)
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/farmshop/storefront/config"
	"github.com/farmshop/storefront/internal/kernel"
	"github.com/farmshop/storefront/pkg/cache"
	"github.com/farmshop/storefront/pkg/crypt"
	"github.com/farmshop/storefront/pkg/database"
	"github.com/farmshop/storefront/pkg/logger"
	"github.com/farmshop/storefront/pkg/mail"
	"github.com/farmshop/storefront/pkg/migration"
	"github.com/farmshop/storefront/pkg/payment"
	"github.com/farmshop/storefront/pkg/queue"
	"github.com/farmshop/storefront/pkg/recaptcha"
	"github.com/farmshop/storefront/pkg/storage"
	"gorm.io/gorm"

	// registers the schema migrations
	_ "github.com/farmshop/storefront/database/migrations"
)

// App is a booted storefront.
type App struct {
	DB     *gorm.DB
	Cache  cache.Store
	Queue  *queue.Manager
	Kernel *kernel.Kernel

	closers []func()
}

// Boot loads config, opens and migrates the database, and builds the
// kernel.
func Boot(ctx context.Context) (*App, error) {
	a, err := bootDB()
	if err != nil {
		return nil, err
	}
	if _, err := migration.New(a.DB, io.Discard).Run(); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a.Cache = cache.Connect(ctx)
	if c, ok := a.Cache.(*cache.Redis); ok {
		a.closers = append(a.closers, func() { _ = c.Close() })
	}

	disk, err := storage.Open(ctx, config.StorageDefault())
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Queue = queue.Default()
	a.Queue.UseDB(a.DB)
	if config.QueueDriver() == "redis" {
		r, ok := a.Cache.(*cache.Redis)
		if !ok {
			var err error
			if r, err = cache.DialRedis(ctx, config.RedisAddr(), config.RedisPassword()); err != nil {
				a.Close()
				return nil, fmt.Errorf("queue: %w", err)
			}
			a.closers = append(a.closers, func() { _ = r.Close() })
		}
		a.Queue.SetDriver(queue.NewRedisDriver(r.Client()))
	}

	a.Kernel, err = kernel.New(kernel.Config{
		AppURL:          config.AppURL(),
		CheckoutKey:     config.CheckoutKey(),
		WebhookSecret:   config.StripeWebhookSecret(),
		RecaptchaKey:    config.RecaptchaPublic(),
		Admins:          config.AdminIDs(),
		HideUnavailable: config.CatalogHideUnavailable(),
		CSRF:            config.CSRFEnabled(),
		SecureCookies:   config.IsProduction(),
		SessionTTL:      config.SessionTTL(),
		RatePerMinute:   config.RateLimitPerMinute(),
		RateBurst:       config.RateLimitBurst(),
		CORSOrigins:     config.CORSOrigins(),
	}, kernel.Deps{
		DB:       a.DB,
		Sessions: a.Cache,
		Box:      crypt.FromAppKey(),
		Disk:     disk,
		Payments: payment.FromConfig(),
		Captcha:  recaptcha.FromConfig(),
		Queue:    a.Queue,
		Mailer:   mail.Default(),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.Kernel.Close)
	return a, nil
}

// bootDB loads config, attaches log sinks and connects to the database.
func bootDB() (*App, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	a := &App{}
	closeLogs, err := logger.Setup()
	if err != nil {
		logger.Warn("logger: optional sink unavailable", "error", err)
	}
	a.closers = append(a.closers, closeLogs)

	if err := database.Connect(); err != nil {
		a.Close()
		return nil, err
	}
	a.DB = database.DB
	a.closers = append(a.closers, func() { _ = database.Close() })
	return a, nil
}

// Close releases everything Boot opened, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
