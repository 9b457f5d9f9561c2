package routes

import (
	"net/http"

	"github.com/farmshop/storefront/pkg/metrics"
	"github.com/farmshop/storefront/pkg/middleware"
	"github.com/farmshop/storefront/pkg/router"
)

const WebhookPrefix = "/webhooks/"

// CSRFExempt lists the path prefixes that take no form token.
var CSRFExempt = []string{WebhookPrefix, "/graphql"}

// RegisterAPI adds the machine-facing endpoints.
func RegisterAPI(r *router.Router, h Handlers, opts Options) {
	r.Match([]string{http.MethodPost, http.MethodOptions}, "/graphql", "api.graphql", h.API.GraphQL,
		middleware.CORS(middleware.DefaultCORSOptions(opts.CORSOrigins)))
	r.Get("/healthz", "api.health", h.API.Healthz)
	r.Get("/metrics", "api.metrics", metrics.Handler())
	r.Post(WebhookPrefix+"stripe", "checkout.webhook", h.Checkout.Webhook)

	if h.Storage != nil {
		r.Mount("/storage", http.StripPrefix("/storage", h.Storage))
	}
}
