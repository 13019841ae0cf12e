package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"

	"docvault/internal/app"
	"docvault/internal/config"
	handlers "docvault/internal/http/handler"
	"docvault/internal/http/middleware"
	"docvault/internal/logging"
	"docvault/internal/otel"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.Location(), "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log.With("otel"))
	if err != nil {
		log.Error("startup_failed", logging.Fields{"step": "tracing", "error": err})
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		log.Error("startup_failed", logging.Fields{"step": "app", "error": err})
		os.Exit(1)
	}

	metrics, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Error("startup_failed", logging.Fields{"step": "metrics", "error": err})
		os.Exit(1)
	}

	// Upload size limits are runtime settings checked by the ingest path; fiber
	// only enforces the fixed ceiling.
	srv := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             cfg.BodyLimit(),
		DisableStartupMessage: true,
	})

	// Register global middleware
	srv.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	srv.Use(middleware.RequestID())
	srv.Use(middleware.Logger(log.With("http")))
	srv.Use(metrics.Handler())

	var pinger handlers.Pinger
	if a.DB != nil {
		pinger = a.DB
	}
	handlers.RegisterRoutes(srv, handlers.Services{
		DB:        pinger,
		Documents: a.Documents,
		Tags:      a.Tags,
		System:    a.System,
		Gatherer:  prometheus.DefaultGatherer,
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("server_listening", logging.Fields{"addr": addr})
		errCh <- srv.Listen(addr)
	}()

	select {
	case err := <-errCh:
		log.Error("server_failed", logging.Fields{"error": err})
	case <-ctx.Done():
		log.Info("server_stopping", nil)
	}

	if err := srv.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("server_shutdown_failed", logging.Fields{"error": err})
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.OCR.ShutdownTimeout)
	defer cancel()
	if err := a.Close(drainCtx); err != nil {
		log.Warn("app_close_failed", logging.Fields{"error": err})
	}
	if err := shutdownTracing(context.Background()); err != nil {
		log.Warn("tracing_shutdown_failed", logging.Fields{"error": err})
	}
	log.Info("server_stopped", nil)
}
