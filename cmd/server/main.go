// Package main is the entry point of the tutoring API server.
//
// The server exposes the REST interface of the subsystem: subscription
// management, session booking, the per-subscription message channel,
// progress tracking, the resource catalogue, and the billing provider
// webhook. Background billing runs in the separate worker process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/reussite-hub/reussite-tutoring-hub/config"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/application/command"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/application/query"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	domainmsg "github.com/reussite-hub/reussite-tutoring-hub/internal/domain/messaging"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/infrastructure/external/billing"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/infrastructure/messaging"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/infrastructure/persistence/postgres"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/infrastructure/persistence/redis"
	httpapi "github.com/reussite-hub/reussite-tutoring-hub/internal/interface/http"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/interface/http/handlers"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting tutoring API server",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// PostgreSQL
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	migrator := postgres.NewMigrator(conn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// Redis (optional: the status cache and cross-process events need it,
	// correctness does not)
	// ─────────────────────────────────────────────────────────────────────────
	var cache *redis.Cache
	if !cfg.Redis.Disabled {
		redisCfg := redisConfigFrom(cfg)
		cache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("redis unavailable, running without cache", "error", err)
			cache = nil
		} else {
			defer cache.Close()
			log.Info("redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Event bus
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log

	bus, err := buildEventBus(cache, busConfig, log)
	if err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	defer func() { _ = bus.Close() }()

	// ─────────────────────────────────────────────────────────────────────────
	// Repositories & application handlers
	// ─────────────────────────────────────────────────────────────────────────
	encadrements := postgres.NewEncadrementRepository(conn)
	sessions := postgres.NewSessionRepository(conn)
	messages := postgres.NewMessageRepository(conn)
	progressions := postgres.NewProgressRepository(conn)
	resources := postgres.NewResourceRepository(conn)

	// Status-only authorization reads go through the cache when Redis is up;
	// lifecycle commands invalidate the same cache on every status change.
	var invalidator command.StatusCacheInvalidator
	statuses := encadrement.StatusReader(encadrements)
	if cache != nil {
		statusCache := redis.NewEncadrementStatusCache(cache, encadrements, log)
		invalidator = statusCache
		statuses = statusCache
	}

	billingPolicy := encadrement.BillingPolicy{
		AutoResume:  cfg.Features.IsEnabled(config.FeatureBillingAutoResume, nil),
		GracePeriod: cfg.Features.IsEnabled(config.FeatureBillingGracePeriod, nil),
	}

	createSubscription := command.NewCreateSubscriptionHandler(encadrements, bus, log)
	lifecycle := command.NewSubscriptionLifecycleHandler(encadrements, bus, invalidator, log)
	scheduleSession := command.NewScheduleSessionHandler(encadrements, sessions, bus, log)
	sessionTransition := command.NewSessionTransitionHandler(sessions, bus, log)
	sendMessage := command.NewSendMessageHandler(encadrements, messages, bus, log)
	markRead := command.NewMarkMessageReadHandler(messages, bus, log)
	updateProgress := command.NewUpdateProgressHandler(statuses, progressions, bus, log)
	attachResource := command.NewAttachResourceHandler(statuses, resources, bus, log)
	advanceBilling := command.NewAdvanceBillingHandler(encadrements, bus, invalidator, billingPolicy, log)

	// ─────────────────────────────────────────────────────────────────────────
	// Event dispatcher: live chat delivery
	// ─────────────────────────────────────────────────────────────────────────
	dispatcher := messaging.NewDispatcher(messaging.DefaultDispatcherConfig(bus))
	dispatcher.Use(messaging.RecoveryMiddleware(log))
	dispatcher.Use(messaging.LoggingMiddleware(log))

	// The Redis feed fans messages out to every process; the process-local
	// feed covers single-instance deployments without Redis.
	var deliver func(ctx context.Context, m *domainmsg.Message) error
	if cache != nil {
		feed := redis.NewMessageFeed(cache, log)
		deliver = feed.Publish
	} else {
		feed := messaging.NewLiveFeed()
		deliver = func(_ context.Context, m *domainmsg.Message) error {
			feed.Publish(m)
			return nil
		}
	}

	if err := dispatcher.Register(shared.EventMessageSent, "live_feed", func(event shared.Event) error {
		messageID, _ := event.Payload()["message_id"].(string)
		if messageID == "" {
			return nil
		}
		feedCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		msg, err := messages.GetByID(feedCtx, messageID)
		if err != nil {
			return err
		}
		return deliver(feedCtx, msg)
	}); err != nil {
		return fmt.Errorf("failed to register live feed handler: %w", err)
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	defer func() { _ = dispatcher.Stop() }()

	// ─────────────────────────────────────────────────────────────────────────
	// Billing provider client (health probe only; charging runs in the worker)
	// ─────────────────────────────────────────────────────────────────────────
	billingCfg := billing.DefaultClientConfig(cfg.Billing.BaseURL)
	billingCfg.APIKey = cfg.Billing.APIKey
	billingCfg.Timeout = cfg.Billing.RequestTimeout
	billingCfg.Logger = log
	billingClient := billing.NewClient(billingCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// Health checks
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("postgres", handlers.NewDatabaseCheck(conn))
	if cache != nil {
		health.AddCheck("redis", handlers.NewCacheCheck(cache))
	}
	if cfg.Billing.BaseURL != "" {
		health.AddCheck("billing", handlers.NewBillingProviderCheck(billingClient, billing.ErrProviderUnavailable))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	webhook := handlers.NewBillingWebhookHandler(advanceBilling, cfg.Billing.WebhookSecret, log)

	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.APIKeyHeader = cfg.HTTP.APIKeyHeader
	serverCfg.APIKeys = cfg.HTTP.APIKeys
	serverCfg.WebhookSecret = cfg.Billing.WebhookSecret

	server := httpapi.NewServer(serverCfg, httpapi.Dependencies{
		CreateSubscription:    createSubscription,
		SubscriptionLifecycle: lifecycle,
		ScheduleSession:       scheduleSession,
		SessionTransition:     sessionTransition,
		SendMessage:           sendMessage,
		MarkMessageRead:       markRead,
		UpdateProgress:        updateProgress,
		AttachResource:        attachResource,

		GetSubscription:   query.NewGetSubscriptionHandler(encadrements, sessions),
		ListSubscriptions: query.NewListSubscriptionsHandler(encadrements),
		ListSessions:      query.NewListSessionsHandler(sessions),
		TeacherAgenda:     query.NewTeacherAgendaHandler(sessions),
		ListMessages:      query.NewListMessagesHandler(messages),
		GetProgress:       query.NewGetProgressHandler(progressions),
		ListResources:     query.NewListResourcesHandler(resources),

		BillingWebhook: webhook,
		HealthChecker:  health,
		Logger:         log,
	})

	errCh := server.StartAsync()
	log.Info("tutoring API server is running", "address", server.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// eventBus is what the wiring needs from either bus implementation.
type eventBus interface {
	shared.EventBus
	Close() error
}

// buildEventBus wires the Redis-backed bus when a cache connection exists,
// falling back to the process-local bus.
func buildEventBus(cache *redis.Cache, local messaging.InMemoryEventBusConfig, log *slog.Logger) (eventBus, error) {
	if cache == nil {
		return messaging.NewInMemoryEventBus(local), nil
	}
	return messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         redis.NewBusTransport(cache),
		LocalBusConfig: local,
		Logger:         log,
	})
}

// redisConfigFrom maps the application Redis settings onto the cache
// configuration. REDIS_URL wins over component settings when both are set.
func redisConfigFrom(cfg *config.Config) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout

	if cfg.Redis.URL == "" {
		return rc
	}
	u, err := url.Parse(cfg.Redis.URL)
	if err != nil {
		return rc
	}
	if host := u.Hostname(); host != "" {
		rc.Host = host
	}
	if port, err := strconv.Atoi(u.Port()); err == nil {
		rc.Port = port
	}
	if password, ok := u.User.Password(); ok {
		rc.Password = password
	}
	if db, err := strconv.Atoi(strings.TrimPrefix(u.Path, "/")); err == nil {
		rc.DB = db
	}
	return rc
}

// setupLogger configures structured logging.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Observability.LogLevel)}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Observability.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
