// Package handlers contains HTTP handler building blocks used by the REST
// server: health checks, the billing provider webhook, and middleware.
//
// # Health Checks
//
// The HealthChecker interface aggregates named probes that run in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("postgres", handlers.NewDatabaseCheck(conn))
//	checker.AddCheck("redis", handlers.NewCacheCheck(cache))
//	checker.AddCheck("billing", handlers.NewBillingProviderCheck(client, billing.ErrProviderUnavailable))
//
//	status := checker.Check(ctx)
//
// # Billing Webhook
//
// BillingWebhookHandler receives charge outcomes from the payment provider.
// Each delivery is authenticated with an HMAC-SHA256 signature over the raw
// body, then mapped onto the billing command. The webhook and the nightly
// billing sweep feed the same command, so a cycle reported through both
// paths is applied exactly once:
//
//	webhook := handlers.NewBillingWebhookHandler(advanceBilling, cfg.WebhookSecret, logger)
//	mux.Handle("POST /webhooks/billing", webhook)
//
// # Middleware
//
//	auth := handlers.NewAPIKeyAuth("X-API-Key", cfg.APIKeys)
//	admin := handlers.ChainHandler(
//	    adminHandler,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.RequestSizeLimitMiddleware(1<<20),
//	    auth.Middleware,
//	)
package handlers
