package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vaultapi/internal/config"
	"vaultapi/internal/crypto"
	"vaultapi/internal/database"
	"vaultapi/internal/database/migration"
	handlers "vaultapi/internal/http/handler"
	"vaultapi/internal/http/middleware"
	"vaultapi/internal/notify"
	"vaultapi/internal/otel"
	"vaultapi/internal/repository/postgres"
	"vaultapi/internal/service"
	"vaultapi/internal/storage"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// The encryption key must decode to exactly 32 raw bytes before anything
	// else starts; a vault with a bad key must not come up.
	key, err := crypto.ParseKey(cfg.Vault.EncryptionKeyHex)
	if err != nil {
		log.Fatalf("invalid encryption key: %v", err)
	}

	loc := time.UTC
	ctx := context.Background()

	// Distributed tracing (no-op when OTEL_SDK_DISABLED=true)
	shutdownTracing, err := otel.Init(ctx, loc)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, loc, cfg.Database.Host); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	notifier := notify.New(cfg.SMTP)

	// Repositories and services
	metaRepo := postgres.NewMetadataPostgres(db)
	auditRepo := postgres.NewAuditPostgres(db)
	adminRepo := postgres.NewAdminPostgres(db)

	vaultSvc := service.NewVaultService(objStore, metaRepo, notifier, key, cfg.Vault.MaxUploadBytes, cfg.Vault.OpTimeout)
	auditSvc := service.NewAuditService(auditRepo, cfg.Vault.OpTimeout)
	authSvc := service.NewAuthService(adminRepo, notifier, cfg.Auth, cfg.Vault.OpTimeout)

	// Admission control with a janitor evicting idle client buckets
	limiter := middleware.NewRateLimiter(middleware.DefaultLimits(), cfg.RateLimitsOff)
	janitorStop := make(chan struct{})
	defer close(janitorStop)
	limiter.StartJanitor(5*time.Minute, time.Hour, janitorStop)

	// Prometheus metrics registry
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMW, err := middleware.NewPrometheusMiddleware(promReg)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(cfg.Vault.MaxUploadBytes) + 1<<20,
	})

	// Global middleware: request id, JSON request logs, tracing, metrics, and
	// the general admission class on top of any per-route class.
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(loc))
	app.Use(otelfiber.Middleware())
	app.Use(promMW.Handler())

	// Registered ahead of the general limiter so scrapes are never throttled.
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))

	app.Use(limiter.Middleware(middleware.ClassGeneral))

	handlers.RegisterRoutes(app, handlers.RouteDeps{
		DB:                db,
		Vault:             vaultSvc,
		Audit:             auditSvc,
		Auth:              authSvc,
		Limiter:           limiter,
		RequireUploadAuth: cfg.Vault.RequireUploadAuth,
	})

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
