package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ashirxD/Hospital-App-sub000/internal/config"
	"github.com/ashirxD/Hospital-App-sub000/internal/domain/chat"
	"github.com/ashirxD/Hospital-App-sub000/internal/domain/identity"
	"github.com/ashirxD/Hospital-App-sub000/internal/domain/notification"
	"github.com/ashirxD/Hospital-App-sub000/internal/domain/scheduling"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/auth"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/blobstore"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/health"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/mailer"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/middleware"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/realtime"
)

const (
	defaultBodyLimit = 1 << 20
	outboxBatchSize  = 100
	healthTimeout    = 5 * time.Second
)

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg.Env)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer st.close()

	// Realtime
	hub := realtime.NewHub(logger)
	checks := []health.Check{st.health}
	var limiter middleware.Limiter = middleware.NewMemoryLimiter(rateLimitConfig(cfg))
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()

		broker := realtime.NewRedisBroker(rdb, realtime.DefaultChannel, logger)
		hub.UseBroker(broker)
		checks = append(checks, broker.HealthCheck())
		go func() {
			err := broker.Run(ctx, func(room string, frame []byte) { hub.Deliver(room, frame) })
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("room broker stopped")
			}
		}()
		limiter = middleware.NewRedisLimiter(rdb, rateLimitConfig(cfg))
		logger.Info().Str("channel", realtime.DefaultChannel).Msg("cross-instance fan-out enabled")
	}

	// Services
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	identitySvc := identity.NewService(st.users, tokens)

	notificationSvc := notification.NewService(st.notifications, hub, cfg.NotificationPageSize, logger)
	dispatcher := notification.NewDispatcher(st.notifications, hub, notification.DispatcherConfig{
		Interval:    cfg.OutboxInterval,
		MaxAttempts: cfg.OutboxMaxAttempts,
		Lease:       cfg.OutboxLease,
		BatchSize:   outboxBatchSize,
	}, logger)
	notificationSvc.UseKicker(dispatcher)

	schedulingSvc := scheduling.NewService(st.appointments, st.reviews, identitySvc, notificationSvc, st.tx)
	dispatcher.UseMailer(newMailSender(cfg, logger), mailer.NewTemplateEngine(), schedulingSvc)

	blobs, err := blobstore.NewDiskStore(cfg.UploadDir, "/uploads", cfg.UploadMaxBytes)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("failed to prepare upload directory")
	}
	chatSvc := chat.NewService(st.groups, st.messages, identitySvc, blobs, hub, st.tx, logger)
	chatSvc.RegisterEvents(hub)

	if err := dispatcher.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start notification dispatcher")
	}
	defer dispatcher.Stop()

	// HTTP
	e := newEcho(cfg, logger, limiter)
	e.GET("/health/ready", health.Handler(healthTimeout, checks...))
	e.GET("/uploads/:name", blobstore.Handler(blobs))

	v1 := e.Group("/api/v1")
	identity.NewHandler(identitySvc).RegisterPublicRoutes(v1)

	api := v1.Group("", auth.JWTMiddleware(tokens))
	identity.NewHandler(identitySvc).RegisterRoutes(api)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(api)
	chat.NewHandler(chatSvc).RegisterRoutes(api)
	notification.NewHandler(notificationSvc).RegisterRoutes(api)

	realtime.NewHandler(hub, tokens, cfg.CORSOrigins, logger).RegisterRoutes(e.Group(""))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.StoreDriver).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	stop()
	logger.Info().Msg("server stopped")
	return nil
}

// newEcho builds the server with the global middleware chain and the
// liveness route.
func newEcho(cfg *config.Config, logger zerolog.Logger, limiter middleware.Limiter) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger, cfg.IsDev())

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	// Multipart bodies carry the attachment plus form overhead.
	e.Use(middleware.BodyLimit(defaultBodyLimit, cfg.UploadMaxBytes+defaultBodyLimit))
	e.Use(middleware.RateLimit(limiter, logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return e
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func newMailSender(cfg *config.Config, logger zerolog.Logger) mailer.EmailSender {
	if !cfg.MailEnabled() {
		logger.Info().Msg("SMTP not configured, appointment emails are logged only")
		return mailer.NewLogSender(logger)
	}
	return mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}
