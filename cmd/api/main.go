package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docvault/docs"
	"docvault/internal/config"
	"docvault/internal/database"
	"docvault/internal/database/migration"
	handlers "docvault/internal/http/handler"
	"docvault/internal/http/middleware"
	"docvault/internal/logging"
	"docvault/internal/otel"
	"docvault/internal/repository"
	"docvault/internal/repository/postgres"
	"docvault/internal/repository/sqlite"
	"docvault/internal/service"
	"docvault/internal/storage"
	"docvault/internal/worker/pruner"
	"docvault/web"
)

// @title DocVault API
// @version 1.0
// @BasePath /
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "docvault: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	loc := cfg.Location()
	logger := logging.NewJSON(os.Stdout, cfg.Log.Level, loc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Error(sctx, "tracing_shutdown_failed", "error", err.Error())
		}
	}()

	db, docRepo, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	blobStore, err := openBlobStore(cfg)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}

	docSvc := service.NewDocumentService(blobStore, docRepo, service.Options{
		MaxUploadBytes:     cfg.Storage.MaxUploadBytes,
		AllowedContentType: cfg.Storage.AllowedContentType,
		Logger:             logger,
	})

	if cfg.Pruner.Enabled {
		p, err := pruner.New(pruner.Config{
			Store:       blobStore,
			Catalog:     docRepo,
			Clock:       clock.WallClock,
			Logger:      logger.With("component", "pruner"),
			GracePeriod: cfg.Pruner.GracePeriod,
			MinInterval: cfg.Pruner.MinInterval,
			MaxInterval: cfg.Pruner.MaxInterval,
			Registerer:  prometheus.DefaultRegisterer,
		})
		if err != nil {
			return fmt.Errorf("start pruner: %w", err)
		}
		defer func() {
			if err := p.Stop(); err != nil {
				logger.Error(context.Background(), "pruner_stopped_with_error", "error", err.Error())
			}
		}()
	}

	promMiddleware, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		// multipart overhead on top of the largest accepted file
		BodyLimit: cfg.BodyLimitBytes,
	})

	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.LoggerWithWriter(os.Stdout, loc))
	app.Use(promMiddleware.Handler())
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSOrigins}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.RegisterRoutes(app, db, docSvc, logger)

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

	app.Use("/", web.Handler())

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info(ctx, "server_starting", "addr", addr, "db_driver", cfg.Database.Driver, "storage_backend", cfg.Storage.Backend)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "server_stopping")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error(context.Background(), "server_shutdown_failed", "error", err.Error())
	}
	return nil
}

// openCatalog connects the configured catalog database, makes sure the schema
// exists and returns the raw handle (for health checks) with its repository.
func openCatalog(ctx context.Context, cfg *config.AppConfig, logger logging.Logger) (*sql.DB, repository.DocumentRepository, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		gdb, db, err := database.NewSQLite(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect sqlite: %w", err)
		}
		if err := sqlite.AutoMigrate(ctx, gdb); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return db, sqlite.NewDocumentSQLite(gdb), nil

	default:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return db, postgres.NewDocumentPostgres(db), nil
	}
}

func openBlobStore(cfg *config.AppConfig) (storage.BlobStore, error) {
	if cfg.Storage.Backend == "minio" {
		return storage.NewMinIO(cfg.MinIO)
	}
	return storage.NewLocal(cfg.Storage.Dir)
}
