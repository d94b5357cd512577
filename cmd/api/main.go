package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soldgrupsas/soldgrup-sub001/internal/attendance"
	"github.com/soldgrupsas/soldgrup-sub001/internal/auth"
	"github.com/soldgrupsas/soldgrup-sub001/internal/cloudinary"
	"github.com/soldgrupsas/soldgrup-sub001/internal/config"
	"github.com/soldgrupsas/soldgrup-sub001/internal/handler"
	"github.com/soldgrupsas/soldgrup-sub001/internal/httpmiddleware"
	"github.com/soldgrupsas/soldgrup-sub001/internal/queue"
	"github.com/soldgrupsas/soldgrup-sub001/internal/store"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.App) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Production() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg config.App, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cal, err := config.LoadCalendar(cfg.CalendarFile)
	if err != nil {
		return err
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	redisClient, err := store.NewRedis(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	var bus queue.Queue
	if cfg.EventsBackend == "memory" {
		bus = queue.NewInMemory(64)
	} else {
		bus = queue.NewRedisQueue(redisClient.Client, cfg.EventsChannel)
	}

	// Photo store (errors on every upload when Cloudinary is not configured)
	var photos attendance.PhotoStore = unconfiguredPhotos{}
	if cfg.CloudinaryConfigured() {
		photos = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		logger.Info("cloudinary configured", "cloud", cfg.CloudinaryCloudName, "folder", cfg.CloudinaryFolder)
	} else {
		logger.Warn("cloudinary not configured, captures will fail (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	repo := attendance.NewRepository(db.Client)
	svc := attendance.NewService(repo, photos, cal,
		attendance.WithLogger(logger),
		attendance.WithPublisher(bus),
		attendance.WithCaptureTimeout(cfg.CaptureTimeout),
	)
	if err := svc.Refresh(ctx); err != nil {
		return err
	}
	logger.Info("ledger loaded", "records", svc.Ledger().Len(), "zone", cal.Location.String())

	events, err := bus.Consume(ctx)
	if err != nil {
		logger.Warn("capture events unavailable, relying on periodic refresh", "error", err)
	} else {
		go svc.Follow(events)
	}
	go svc.RunRefresher(ctx, cfg.RefreshInterval)

	issuer := auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	var limiter httpmiddleware.Limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	if cfg.RateLimitStore == "redis" {
		limiter = httpmiddleware.NewRedisFixedWindow(redisClient.Client, cfg.RateLimitPerMin, "")
	}

	limit := httpmiddleware.RateLimit(limiter, cfg.RateLimitStore, logger)
	h := handler.New(svc, repo, issuer, handler.Config{
		RegistrationKey:  cfg.RegistrationKey,
		MaxPhotoBytes:    cfg.MaxPhotoBytes,
		Logger:           logger,
		DeviceMiddleware: []gin.HandlerFunc{limit},
		HealthChecks: map[string]handler.HealthCheck{
			"db": func(ctx context.Context) bool {
				ctx, cancel := context.WithTimeout(ctx, time.Second)
				defer cancel()
				return db.Client.PingContext(ctx) == nil
			},
			"redis": redisClient.Healthy,
		},
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Registration-Key"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: !containsWildcard(cfg.CORSOrigins),
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Routes(r, auth.DeviceAuth(issuer), limit)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.CaptureTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", "error", err)
	}
	logger.Info("server exited")
	return nil
}

type unconfiguredPhotos struct{}

func (unconfiguredPhotos) UploadEvidencePhoto(context.Context, []byte, string) (string, error) {
	return "", errors.New("image storage not configured")
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
