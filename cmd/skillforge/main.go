package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/skillforge/skillforge/internal/achievements"
	"github.com/skillforge/skillforge/internal/app"
	"github.com/skillforge/skillforge/internal/auth"
	"github.com/skillforge/skillforge/internal/entitlements"
	"github.com/skillforge/skillforge/internal/gate"
	"github.com/skillforge/skillforge/internal/notify"
	"github.com/skillforge/skillforge/internal/observability"
	"github.com/skillforge/skillforge/internal/platform/cache"
	"github.com/skillforge/skillforge/internal/platform/db"
	"github.com/skillforge/skillforge/internal/progression"
	"github.com/skillforge/skillforge/internal/shared"
	"github.com/skillforge/skillforge/internal/users"
	"github.com/skillforge/skillforge/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "skillforge_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	metrics := observability.NewMetrics()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	sink := notify.NewAsynqSink(asynqClient, logger)

	progressionRepo := progression.NewRepository(dbpool)
	boardCache := cache.NewVersioned(redisClient, "leaderboard", cfg.CacheTTL)
	progressionService := progression.NewService(progressionRepo, boardCache, sink, logger)
	progressionService.SetMetrics(metrics)

	achievementsRepo := achievements.NewRepository(dbpool)
	achievementsService := achievements.NewService(achievementsRepo, progressionService, sink, logger)
	achievementsService.SetMetrics(metrics)
	progressionService.SetEvaluator(achievementsService)

	entitlementsRepo := entitlements.NewRepository(dbpool)
	grantCache := cache.NewVersioned(redisClient, "entitlements", cfg.CacheTTL)
	entitlementsService := entitlements.NewService(entitlementsRepo, grantCache, achievementsService, sink, logger)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, progressionService, achievementsService, sink, logger)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, achievementsService, logger)

	gateMiddleware := gate.Middleware{Logger: logger, Denials: metrics}
	identity := auth.IdentityMiddleware{
		Users:        usersService,
		Entitlements: entitlementsService,
		Logger:       logger,
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		SessionManager:      sessionManager,
		Identity:            identity,
		AuthHandler:         auth.NewHandler(logger, authService, sessionManager),
		UsersHandler:        users.NewHandler(logger, usersService, gateMiddleware),
		ProgressionHandler:  progression.NewHandler(logger, progressionService, gateMiddleware),
		AchievementsHandler: achievements.NewHandler(logger, achievementsService, gateMiddleware),
		EntitlementsHandler: entitlements.NewHandler(logger, entitlementsService, gateMiddleware),
		JobHandler:          jobHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
