package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/auditline-platform/auditline/internal/api"
	"github.com/auditline-platform/auditline/internal/auditevent"
	"github.com/auditline-platform/auditline/internal/auth"
	"github.com/auditline-platform/auditline/internal/authz"
	"github.com/auditline-platform/auditline/internal/config"
	"github.com/auditline-platform/auditline/internal/database"
	"github.com/auditline-platform/auditline/internal/directory"
	"github.com/auditline-platform/auditline/internal/ingest"
	"github.com/auditline-platform/auditline/internal/middleware"
	inats "github.com/auditline-platform/auditline/internal/nats"
	iredis "github.com/auditline-platform/auditline/internal/redis"
	"github.com/auditline-platform/auditline/internal/retention"
	"github.com/auditline-platform/auditline/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS / JetStream
	natsClient, err := inats.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Error("connecting to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	// Event store
	eventRepo := auditevent.NewRepository(pool, cfg.Audit.TablePrefix, cfg.Audit.TTLDays)
	eventSvc := auditevent.NewService(eventRepo, cfg.Audit)

	// Directory and authorization
	dir := directory.NewCache(directory.NewHTTPClient(cfg.Directory), redisClient, cfg.Directory.CacheTTL)
	gate := authz.NewGate(dir)

	// Auth
	jwtManager := auth.NewJWTManager(cfg.JWT.AccessSecret, cfg.JWT.AccessExpiry)

	eventHandler := auditevent.NewHandler(eventSvc, gate)

	// Ingest consumer
	consumerMgr := inats.NewConsumerManager(natsClient.JetStream())
	consumer := ingest.NewConsumer(eventRepo, consumerMgr)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("ingest consumer stopped", "error", err)
			cancel()
		}
	}()

	// Retention scheduler
	scheduler := retention.NewScheduler(eventRepo, cfg.Retention.Interval)
	go scheduler.Start(ctx)

	// Router
	routerCfg := api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	}
	if cfg.RateLimit.Enabled {
		rl := middleware.NewRateLimiter(redisClient, cfg.RateLimit.MaxReqs, cfg.RateLimit.WindowSec)
		routerCfg.ReadRateLimiter = rl.Middleware
	}

	router := api.NewRouter(pool, natsClient, routerCfg, api.HandlerSet{
		ListDomainEvents:   eventHandler.ListDomainEvents,
		ListUserEvents:     eventHandler.ListUserEvents,
		DeleteDomainEvents: eventHandler.DeleteDomainEvents,

		AuthMiddleware: auth.Middleware(jwtManager),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
