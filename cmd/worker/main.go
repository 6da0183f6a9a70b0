// Package main is the entry point of the background worker.
//
// The worker runs the scheduled jobs of the subsystem: the nightly billing
// sweep that charges every subscription whose cycle has ended, and the
// reminder pass that announces confirmed sessions starting soon. It shares
// the database and event bus with the API server but serves no HTTP traffic.
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

	"github.com/joho/godotenv"

	"github.com/reussite-hub/reussite-tutoring-hub/config"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/application/command"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/infrastructure/external/billing"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/infrastructure/messaging"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/infrastructure/persistence/postgres"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/infrastructure/persistence/redis"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/infrastructure/scheduler"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/infrastructure/scheduler/jobs"
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
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting tutoring worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
	)

	if !cfg.Scheduler.Enabled {
		return fmt.Errorf("scheduler is disabled, nothing to run (set SCHEDULER_ENABLED=true)")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// PostgreSQL
	// ─────────────────────────────────────────────────────────────────────────
	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// The API server also migrates on boot; running it here too keeps the
	// worker usable on its own.
	migrator := postgres.NewMigrator(conn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Redis & event bus
	// ─────────────────────────────────────────────────────────────────────────
	var cache *redis.Cache
	if !cfg.Redis.Disabled {
		cache, err = redis.NewCache(redisConfigFrom(cfg))
		if err != nil {
			log.Warn("redis unavailable, events stay process-local", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log

	bus, err := buildEventBus(cache, busConfig, log)
	if err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	defer func() { _ = bus.Close() }()

	// ─────────────────────────────────────────────────────────────────────────
	// Billing pipeline
	// ─────────────────────────────────────────────────────────────────────────
	encadrements := postgres.NewEncadrementRepository(conn)
	sessions := postgres.NewSessionRepository(conn)

	var invalidator command.StatusCacheInvalidator
	if cache != nil {
		invalidator = redis.NewEncadrementStatusCache(cache, encadrements, log)
	}

	billingPolicy := encadrement.BillingPolicy{
		AutoResume:  cfg.Features.IsEnabled(config.FeatureBillingAutoResume, nil),
		GracePeriod: cfg.Features.IsEnabled(config.FeatureBillingGracePeriod, nil),
	}
	advanceBilling := command.NewAdvanceBillingHandler(encadrements, bus, invalidator, billingPolicy, log)

	billingCfg := billing.DefaultClientConfig(cfg.Billing.BaseURL)
	billingCfg.APIKey = cfg.Billing.APIKey
	billingCfg.Timeout = cfg.Billing.RequestTimeout
	billingCfg.Logger = log
	provider := billing.NewClient(billingCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// Scheduler
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	billingJob := jobs.NewBillingDueJob(encadrements, provider, advanceBilling, jobs.BillingDueConfig{
		BatchSize:     cfg.Scheduler.BillingBatchSize,
		Concurrency:   cfg.Scheduler.BillingConcurrency,
		ChargeTimeout: cfg.Scheduler.ChargeTimeout,
	}, log)

	billingSchedule, err := scheduler.ParseCronExpression(cfg.Scheduler.BillingSweepCron)
	if err != nil {
		return fmt.Errorf("invalid billing sweep cron %q: %w", cfg.Scheduler.BillingSweepCron, err)
	}
	if err := sched.Register(billingJob, billingSchedule); err != nil {
		return fmt.Errorf("failed to register billing job: %w", err)
	}

	reminderJob := jobs.NewSessionReminderJob(sessions, bus, jobs.SessionReminderConfig{
		LeadTime:     cfg.Scheduler.ReminderLeadTime,
		PassInterval: cfg.Scheduler.ReminderInterval,
	}, log)

	reminderSchedule, err := scheduler.ParseCronExpression(cfg.Scheduler.ReminderCron)
	if err != nil {
		return fmt.Errorf("invalid reminder cron %q: %w", cfg.Scheduler.ReminderCron, err)
	}
	if err := sched.Register(reminderJob, reminderSchedule); err != nil {
		return fmt.Errorf("failed to register reminder job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("worker is running",
		"billing_sweep", cfg.Scheduler.BillingSweepCron,
		"reminder_pass", cfg.Scheduler.ReminderCron,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	if err := sched.Stop(); err != nil {
		return fmt.Errorf("scheduler stop failed: %w", err)
	}

	log.Info("worker shutdown completed")
	return nil
}

// eventBus is what the wiring needs from either bus implementation.
type eventBus interface {
	shared.EventBus
	Close() error
}

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
