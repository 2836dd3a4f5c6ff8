package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/store"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/store/mongostore"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/store/pgstore"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// Database (accounts, refresh tokens, system logs, and reports when
	// STORE_DRIVER=postgres)
	db, err := database.Connect(cfg)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.MigrateAccounts(db); err != nil {
		slog.Error("account migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(db)
	logging.AttachDB(pgLogHandler)

	cleanupDone := make(chan struct{})
	logging.StartCleanup(db, cfg.LogRetentionDays, cleanupDone)

	startupCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	reportStore, err := openStore(startupCtx, cfg, db)
	if err != nil {
		cancel()
		slog.Error("report store init failed", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	slog.Info("report store ready", "driver", cfg.StoreDriver)

	// Redis is optional; without it the feed is read straight from the store.
	var (
		rdb       *redis.Client
		feedCache services.FeedCache
		cachePing handlers.Pinger
	)
	if cfg.RedisAddr != "" {
		rdb, err = cache.Connect(startupCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			slog.Warn("redis unavailable, feed cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			fc := cache.NewFeedCache(rdb, cfg.FeedCacheTTL)
			feedCache, cachePing = fc, fc
			slog.Info("feed cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.FeedCacheTTL.String())
		}
	}
	cancel()

	// Services
	authService := services.NewAuthService(db, cfg)
	votingService := services.NewVotingService(reportStore)
	feedService := services.NewFeedService(reportStore, feedCache)
	reportService := services.NewReportService(reportStore, services.NewContentFilter())

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	healthHandler := handlers.NewHealthHandler(
		handlers.PingFunc(func(ctx context.Context) error { return database.Ping(ctx, db) }),
		reportStore,
		cachePing,
	)
	reportHandler := handlers.NewReportHandler(reportService, feedService)
	voteHandler := handlers.NewVoteHandler(votingService, feedService)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:requestid}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	routes.Setup(app, cfg, authService, authHandler, healthHandler, reportHandler, voteHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := reportStore.Close(shutdownCtx); err != nil {
		slog.Error("report store close error", "error", err)
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
	if err := database.Close(db); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}

// openStore builds the report/vote backend selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, db *gorm.DB) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		if err := database.MigrateReports(db); err != nil {
			return nil, fmt.Errorf("report migration: %w", err)
		}
		return pgstore.New(db), nil
	case config.StoreDriverMongo:
		return mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		if hub := sentryfiber.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
