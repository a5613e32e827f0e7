// Package main is the entry point for the attendance service.
//
// The architecture follows Clean Architecture and DDD:
//   - Domain: session and roster models, no external dependencies
//   - Application: use case orchestration (Commands/Queries/Event handlers)
//   - Infrastructure: persistence, token issuance, roster client, messaging
//   - Interface: REST API
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/campus-hub/attendance-hub/config"
	"github.com/campus-hub/attendance-hub/internal/application/command"
	"github.com/campus-hub/attendance-hub/internal/application/eventhandler"
	"github.com/campus-hub/attendance-hub/internal/application/query"
	domainroster "github.com/campus-hub/attendance-hub/internal/domain/roster"
	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
	"github.com/campus-hub/attendance-hub/internal/infrastructure/external/roster"
	"github.com/campus-hub/attendance-hub/internal/infrastructure/messaging"
	"github.com/campus-hub/attendance-hub/internal/infrastructure/persistence/memory"
	"github.com/campus-hub/attendance-hub/internal/infrastructure/persistence/postgres"
	"github.com/campus-hub/attendance-hub/internal/infrastructure/persistence/redis"
	"github.com/campus-hub/attendance-hub/internal/infrastructure/scheduler"
	"github.com/campus-hub/attendance-hub/internal/infrastructure/scheduler/jobs"
	"github.com/campus-hub/attendance-hub/internal/infrastructure/tokens"
	httpserver "github.com/campus-hub/attendance-hub/internal/interface/http"
	"github.com/campus-hub/attendance-hub/internal/interface/http/handlers"
	"github.com/campus-hub/attendance-hub/pkg/logger"
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
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting attendance service",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. SESSION STORE (PostgreSQL, or in-memory for development)
	// ─────────────────────────────────────────────────────────────────────────
	var sessionRepo session.Repository
	var dbConn *postgres.Connection

	if cfg.Database.URL != "" {
		log.Info("connecting to database")
		dbConn, err = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer dbConn.Close()

		if err := dbConn.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}

		log.Info("running database migrations")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		sessionRepo = postgres.NewSessionRepository(dbConn)
		log.Info("using PostgreSQL session store")
	} else {
		sessionRepo = memory.NewSessionRepository()
		log.Warn("DATABASE_URL not set, using in-memory session store")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (roster cache + cross-instance events, optional)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, degrading to direct roster calls", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ROSTER PROVIDER
	// ─────────────────────────────────────────────────────────────────────────
	rosterConfig := roster.DefaultClientConfig(cfg.Roster.BaseURL)
	rosterConfig.APIKey = cfg.Roster.APIKey
	rosterConfig.Timeout = cfg.Roster.RequestTimeout
	rosterConfig.RateLimiterConfig.RequestsPerMinute = cfg.Roster.RateLimit
	rosterConfig.RateLimiterConfig.BurstSize = cfg.Roster.RateLimitBurst
	rosterConfig.Logger = slog.Default()
	rosterClient := roster.NewClient(rosterConfig)

	var rosterCache domainroster.Cache
	if redisCache != nil {
		rosterCache = redis.NewRosterCache(redisCache)
	}
	rosterProvider := roster.NewCachedProvider(rosterClient, rosterCache, slog.Default())

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS AND DISPATCHER
	// ─────────────────────────────────────────────────────────────────────────
	var eventBus shared.EventBus
	if redisCache != nil {
		bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client: redisCache.Client(),
			Logger: slog.Default(),
		})
		if err != nil {
			return fmt.Errorf("failed to create redis event bus: %w", err)
		}
		eventBus = bus
		log.Info("using Redis-backed event bus")
	} else {
		busConfig := messaging.DefaultInMemoryEventBusConfig()
		busConfig.Logger = slog.Default()
		eventBus = messaging.NewInMemoryEventBus(busConfig)
	}
	defer func() {
		log.Info("closing event bus")
		_ = eventBus.Close()
	}()

	dispatcher := messaging.NewDispatcher(messaging.DefaultDispatcherConfig(eventBus))
	dispatcher.Use(messaging.RecoveryMiddleware(slog.Default()))
	dispatcher.Use(messaging.LoggingMiddleware(slog.Default()))

	auditHandler := eventhandler.NewAuditLogHandler(slog.Default(), eventhandler.DefaultAuditLogConfig())
	for _, eventType := range []shared.EventType{
		shared.EventSessionCreated,
		shared.EventSessionDeleted,
		shared.EventScanAccepted,
		shared.EventScanRejected,
		shared.EventManualOverride,
		shared.EventIssuerStopped,
		shared.EventRosterRefreshed,
	} {
		if err := dispatcher.Register(eventType, "audit_log", auditHandler.Handle); err != nil {
			return fmt.Errorf("failed to register audit handler: %w", err)
		}
	}

	scanStats := eventhandler.NewOnScanAcceptedHandler(slog.Default())
	if err := dispatcher.Register(scanStats.EventType(), "scan_stats", scanStats.Handle); err != nil {
		return fmt.Errorf("failed to register scan stats handler: %w", err)
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	defer func() {
		log.Info("stopping dispatcher")
		_ = dispatcher.Stop()
	}()

	// Scan events can be switched off without touching the rest of the bus.
	scanEventBus := eventBus
	if !cfg.Features.IsEnabled(config.FeatureScanEvents) {
		scanEventBus = nil
		log.Info("scan events disabled by feature flag")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. TOKEN ISSUER
	// ─────────────────────────────────────────────────────────────────────────
	issuer := tokens.NewIssuer(tokens.Config{
		Period:     cfg.Attendance.TokenPeriod,
		WindowSize: cfg.Attendance.TokenWindow,
		Logger:     slog.Default(),
	})
	defer func() {
		log.Info("shutting down token issuer")
		issuer.Shutdown()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	createSession := command.NewCreateSessionHandler(sessionRepo, issuer, eventBus, slog.Default())
	validateScan := command.NewValidateScanHandler(sessionRepo, issuer, rosterProvider, scanEventBus, slog.Default())
	manualEdit := command.NewManualEditHandler(sessionRepo, rosterProvider, eventBus, slog.Default())
	deleteSession := command.NewDeleteSessionHandler(sessionRepo, issuer, eventBus, slog.Default())

	getSession := query.NewGetSessionHandler(sessionRepo)
	currentToken := query.NewCurrentTokenHandler(sessionRepo, issuer)
	recentSessions := query.NewRecentSessionsHandler(sessionRepo)
	dayListing := query.NewDayListingHandler(sessionRepo)
	identitySummary := query.NewIdentitySummaryHandler(sessionRepo, rosterProvider, slog.Default())
	cohortSummary := query.NewCohortSummaryHandler(sessionRepo, rosterProvider, slog.Default())

	// ─────────────────────────────────────────────────────────────────────────
	// 9. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{Logger: slog.Default()})

		reaper := jobs.NewCloseStaleIssuersJob(issuer, sessionRepo, eventBus, slog.Default())
		if err := sched.Register(reaper, scheduler.NewIntervalSchedule(cfg.Scheduler.CloseStaleIssuersInterval)); err != nil {
			return fmt.Errorf("failed to register reaper job: %w", err)
		}

		if cohorts := parseWarmCohorts(cfg.Scheduler.WarmCohorts, log); len(cohorts) > 0 {
			warmConfig := jobs.DefaultWarmRosterCacheConfig(cohorts)
			warmConfig.Timeout = cfg.Scheduler.JobTimeout
			warmer := jobs.NewWarmRosterCacheJob(rosterProvider, eventBus, slog.Default(), warmConfig)
			if err := sched.Register(warmer, scheduler.NewIntervalSchedule(cfg.Scheduler.WarmRosterCacheInterval)); err != nil {
				return fmt.Errorf("failed to register warm job: %w", err)
			}
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler")
			_ = sched.Stop()
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	if dbConn != nil {
		healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	}
	if redisCache != nil {
		healthChecker.AddCheck("cache", handlers.NewCacheCheck(redisCache))
	}
	healthChecker.AddCheck("roster", handlers.NewRosterCheck(rosterClient))

	// ─────────────────────────────────────────────────────────────────────────
	// 11. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpConfig.APIKeys = cfg.HTTP.APIKeys

	httpLogger := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

	server := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		CreateSessionHandler:  createSession,
		ValidateScanHandler:   validateScan,
		ManualEditHandler:     manualEdit,
		DeleteSessionHandler:  deleteSession,
		GetSessionHandler:     getSession,
		CurrentTokenHandler:   currentToken,
		RecentSessionsHandler: recentSessions,
		DayListingHandler:     dayListing,
		IdentitySummary:       identitySummary,
		CohortSummary:         cohortSummary,
		Features:              cfg.Features,
		ScanStats:             scanStats,
		Logger:                httpLogger,
		HealthChecker:         healthChecker,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	log.Info("attendance service is running",
		"http_address", server.Address(),
		"scheduler_enabled", cfg.Scheduler.Enabled,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 12. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Error("service error", "error", err)
		return err
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		return err
	}

	// Issuer, scheduler, dispatcher, bus, and stores close via defers.
	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger configures structured logging.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// parseWarmCohorts parses configured cohort labels, dropping invalid ones.
func parseWarmCohorts(labels []string, log *slog.Logger) []shared.Cohort {
	cohorts := make([]shared.Cohort, 0, len(labels))
	for _, label := range labels {
		cohort, err := shared.ParseCohort(label)
		if err != nil {
			log.Warn("skipping invalid warm cohort", "label", label)
			continue
		}
		cohorts = append(cohorts, cohort)
	}
	return cohorts
}
