// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/auth-backend/internal/admin"
	"github.com/carterperez-dev/templates/auth-backend/internal/auth"
	"github.com/carterperez-dev/templates/auth-backend/internal/cache"
	"github.com/carterperez-dev/templates/auth-backend/internal/config"
	"github.com/carterperez-dev/templates/auth-backend/internal/core"
	"github.com/carterperez-dev/templates/auth-backend/internal/email"
	"github.com/carterperez-dev/templates/auth-backend/internal/health"
	"github.com/carterperez-dev/templates/auth-backend/internal/middleware"
	"github.com/carterperez-dev/templates/auth-backend/internal/migrations"
	"github.com/carterperez-dev/templates/auth-backend/internal/server"
	"github.com/carterperez-dev/templates/auth-backend/internal/session"
	"github.com/carterperez-dev/templates/auth-backend/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	telemetry, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		return err
	}
	if cfg.Otel.Enabled {
		logger.Info("OpenTelemetry tracer initialized",
			"endpoint", cfg.Otel.Endpoint,
		)
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		if err := migrations.Up(ctx, db.DB.DB, migrations.DialectPostgres); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	cacheMetrics, err := cache.NewRecorder(telemetry.Meter)
	if err != nil {
		return err
	}
	kv := cache.NewRedisStore(redis.Client)
	userCache := cache.New(kv, cacheMetrics, logger)

	users := user.NewDirectory(db.DB, userCache, cfg.Cache.UserTTL, logger)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	tokens := auth.NewTokenManager(db.DB, jwtManager, logger)
	logger.Info("token manager initialized",
		"algorithm", "HS256",
		"access_ttl", tokens.AccessTokenTTL(),
		"refresh_ttl", tokens.RefreshTokenTTL(),
	)

	sessions := session.NewManager(
		session.NewStore(kv, cfg.Session.TTL),
		cfg.Session.Secret,
		session.CookieConfig{
			Name:   cfg.Session.CookieName,
			Path:   cfg.Cookie.APIPath,
			Secure: cfg.Cookie.Secure,
		},
		logger,
	)

	notifier := email.NewNotifier(cfg.Email, email.NewSender(cfg.Email, logger))

	authSvc := auth.NewService(auth.Deps{
		DB:       db.DB,
		Users:    users,
		Tokens:   tokens,
		Sessions: sessions,
		Notifier: notifier,
		Logger:   logger,
	})
	authHandler := auth.NewHandler(
		authSvc,
		auth.NewCookieWriter(
			cfg.Cookie,
			tokens.AccessTokenTTL(),
			tokens.RefreshTokenTTL(),
		),
		sessions,
	)

	healthHandler := health.NewHandler(
		health.NamedChecker{Name: "database", Checker: db},
		health.NamedChecker{Name: "redis", Checker: redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		UsersByRole: func(ctx context.Context) (map[string]int, error) {
			return user.NewRepository(db.DB).CountByRole(ctx)
		},
		ActiveTokens: tokens.CountActive,
		CacheStats:   cacheMetrics.Snapshot,
		Promoter:     authSvc,
		Logger:       logger,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Tracing)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit:      middleware.LimitFromConfig(cfg.RateLimit),
			BypassFunc: middleware.BypassPaths("/healthz", "/livez", "/readyz"),
			FailOpen:   true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	authLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit:    middleware.LimitFromConfig(cfg.AuthRateLimit),
		KeyFunc:  middleware.KeyByIPScoped("auth"),
		FailOpen: true,
	}).Handler
	authenticator := middleware.Authenticator(authSvc)
	adminOnly := middleware.RequireAdmin
	verifiedAdmin := func(next http.Handler) http.Handler {
		return adminOnly(middleware.RequireVerifiedEmail(authSvc)(next))
	}

	router.Route(cfg.Cookie.APIPath, func(r chi.Router) {
		r.Use(sessions.Middleware)

		authHandler.RegisterRoutes(r, authLimiter, authenticator, adminOnly)
		adminHandler.RegisterRoutes(r, authenticator, verifiedAdmin)
	})

	if cfg.Janitor.Enabled {
		go auth.NewJanitor(authSvc, logger).Run(ctx)
		logger.Info("refresh token janitor scheduled")
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown error", "error", err)
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
