package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yearbook/picker-server-go/internal/config"
	"github.com/yearbook/picker-server-go/internal/database"
	"github.com/yearbook/picker-server-go/internal/handler"
	"github.com/yearbook/picker-server-go/internal/httputil"
	"github.com/yearbook/picker-server-go/internal/jobs"
	"github.com/yearbook/picker-server-go/internal/metrics"
	"github.com/yearbook/picker-server-go/internal/middleware"
	"github.com/yearbook/picker-server-go/internal/redis"
	"github.com/yearbook/picker-server-go/internal/repository"
	"github.com/yearbook/picker-server-go/internal/service"
	"github.com/yearbook/picker-server-go/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := cfg.IsProduction()
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if cfg.AutoMigrate {
		if err := db.CreateSchema(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to create schema")
		}
		log.Info().Msg("schema ready")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	studentRepo := repository.NewStudentRepository(db.DB)
	adminSessionRepo := repository.NewAdminSessionRepository(redisClient.Client)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	m := metrics.New()

	sessionService := service.NewSessionService(studentRepo, cfg.SessionSecret, cfg.SessionIdleTimeout(), m)
	selectionService := service.NewSelectionService(m, broker)
	adminService := service.NewAdminService(
		adminSessionRepo, studentRepo,
		cfg.AdminPasswordHash, cfg.SessionSecret, cfg.AdminSessionTTL(),
	)
	rateLimiter := service.NewRateLimiter(redisClient.Client)

	browserSessionMiddleware := middleware.NewBrowserSessionMiddleware(sessionService, isProduction)
	adminSessionMiddleware := middleware.NewAdminSessionMiddleware(adminService)
	codeRateLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		rateLimiter, m, cfg.CodeAttemptsPerMinute, config.CodeAttemptWindow, "code",
	)
	loginRateLimiter := middleware.NewLoginRateLimiter(config.AdminLoginAttemptsPerMin)
	csrfMiddleware := middleware.NewCSRFMiddleware(isProduction)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction, cfg.AssetHosts)

	selectionHandler := handler.NewSelectionHandler(
		selectionService, codeRateLimitMiddleware.Handler, browserSessionMiddleware.Ensure,
	)
	eventsHandler := handler.NewEventsHandler(broker, sse.TopicChoices)
	adminHandler := handler.NewAdminHandler(
		adminService, adminSessionMiddleware.Handler, loginRateLimiter.Handler,
		eventsHandler, cfg.AdminSessionTTL(), isProduction,
	)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		status := http.StatusOK
		if err := db.Ping(ctx); err != nil {
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unavailable"
			status = http.StatusServiceUnavailable
		}

		httputil.WriteJSON(w, status, map[string]any{
			"status":    http.StatusText(status),
			"checks":    checks,
			"sessions":  sessionService.Count(),
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Handle("/metrics", m.Handler())

	// SSE streams outlive the request timeout, so it only wraps short routes.
	timeout := chimiddleware.Timeout(config.ServerRequestTimeout)

	r.Route("/api", func(r chi.Router) {
		r.Use(timeout)
		r.Use(securityHeadersMiddleware.Handler)
		r.Use(csrfMiddleware.Handler)
		r.Use(browserSessionMiddleware.Handler)
		r.Mount("/", selectionHandler.Routes())
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(securityHeadersMiddleware.Handler)
		r.Use(csrfMiddleware.Handler)
		r.Mount("/", adminHandler.Routes())
		r.NotFound(handler.StaticFileServer(cfg.AdminStaticDir, "/admin").ServeHTTP)
	})

	r.NotFound(securityHeadersMiddleware.Handler(handler.StaticFileServer(cfg.StaticDir, "")).ServeHTTP)

	cleanupJob := jobs.NewCleanupJob(sessionService, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Addr()).
			Str("env", cfg.Environment).
			Bool("adminEnabled", adminService.Enabled()).
			Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
