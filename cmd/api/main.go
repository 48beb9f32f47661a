package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"filedrop/docs"
	"filedrop/internal/config"
	"filedrop/internal/database"
	"filedrop/internal/database/migration"
	handlers "filedrop/internal/http/handler"
	"filedrop/internal/http/middleware"
	"filedrop/internal/logging"
	tracing "filedrop/internal/otel"
	"filedrop/internal/repository"
	"filedrop/internal/repository/postgres"
	"filedrop/internal/service"
	"filedrop/internal/storage"
)

// @title filedrop API
// @version 1.0
// @description Upload one file into the drop, download the most recent one.
// @BasePath /
func main() {
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format, cfg.Log.Location())
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize tracing")
	}

	// The upload journal is optional; without DB_HOST the drop runs on storage alone.
	var (
		pinger  handlers.Pinger
		journal repository.UploadJournal
	)
	if cfg.Database.Enabled() {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to database")
		}
		defer db.Close()

		if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
			log.WithError(err).Fatal("failed to migrate database")
		}
		pinger = db
		journal = postgres.NewJournalPostgres(db)
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize storage")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := service.NewMetrics(reg)
	if err != nil {
		log.WithError(err).Fatal("failed to register drop metrics")
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.WithError(err).Fatal("failed to register http metrics")
	}

	dropSvc := service.NewDropService(store, journal, log, metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             cfg.Server.BodyLimitBytes,
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		DisableStartupMessage: true,
	})

	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(promMiddleware.Handler())

	handlers.RegisterRoutes(app, cfg.Server.RouteBase, pinger, dropSvc)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	fields := map[string]any{
		"addr":       ":" + cfg.Server.Port,
		"route_base": cfg.Server.RouteBase,
		"backend":    cfg.Storage.Backend,
		"body_limit": humanize.IBytes(uint64(cfg.Server.BodyLimitBytes)),
		"journal":    cfg.Database.Enabled(),
	}
	if cfg.Storage.Backend == config.BackendLocal {
		fields["drop_dir"] = cfg.Storage.DropDir()
	}
	if cfg.Storage.MaxUploadBytes > 0 {
		fields["max_upload"] = humanize.Comma(cfg.Storage.MaxUploadBytes)
	}
	log.WithFields(fields).Info("server_starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("server stopped")
		}
	case <-ctx.Done():
		log.Info("shutdown_requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.WithError(err).Warn("http shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.WithError(err).Warn("tracer shutdown")
	}
	log.Info("server_stopped")
}
