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

	"github.com/zmanup/invoicing-api/docs"
	"github.com/zmanup/invoicing-api/internal/app"
	"github.com/zmanup/invoicing-api/internal/auth"
	"github.com/zmanup/invoicing-api/internal/config"
	"github.com/zmanup/invoicing-api/internal/database"
	"github.com/zmanup/invoicing-api/internal/http/handler"
	"github.com/zmanup/invoicing-api/internal/http/middleware"
	"github.com/zmanup/invoicing-api/internal/http/router"
	"github.com/zmanup/invoicing-api/internal/jobs"
	"github.com/zmanup/invoicing-api/internal/logger"
	"go.uber.org/zap"
)

// @title Invoicing API
// @version 1.0
// @description Israeli invoicing: document numbering, VAT, credit notes and allocation numbers

// @contact.name API Support

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for operators and integrations; X-User-ID selects the business owner
// @Security BearerAuth
// @Security ApiKeyAuth

const jobTimeout = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)
	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)

	// In development secrets come from the environment, elsewhere from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	svc, err := app.NewServices(cfg, db, log)
	if err != nil {
		return err
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	tokens := auth.NewTokenService(&cfg.Auth)
	authMiddleware := auth.NewMiddleware(tokens, svc.UserRepo, cfg.Auth.APIKey, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	rt := router.NewRouter(cfg, log, authMiddleware, rateLimiter, router.Handlers{
		Health:     handler.NewHealthHandler(db, log),
		Document:   handler.NewDocumentHandler(svc.Documents, log),
		Allocation: handler.NewAllocationHandler(svc.Allocations, log),
		Client:     handler.NewClientHandler(svc.Clients, log),
		Service:    handler.NewServiceHandler(svc.Catalog, log),
		User:       handler.NewUserHandler(svc.Users, svc.Numbers, log),
		Audit:      handler.NewAuditHandler(svc.Audit, log),
		Report:     handler.NewReportHandler(svc.Reports, log),
	})

	scheduler := jobs.NewScheduler(log)
	if cfg.Jobs.OverdueEnabled {
		if err := jobs.RegisterOverdueJob(scheduler, svc.Documents, log, cfg.Jobs.OverdueCron, jobTimeout); err != nil {
			return fmt.Errorf("failed to register overdue job: %w", err)
		}
	}
	if err := jobs.RegisterAuditRetentionJob(scheduler, svc.Audit, log,
		cfg.Jobs.AuditRetentionCron, cfg.Jobs.AuditRetentionDays, jobTimeout); err != nil {
		return fmt.Errorf("failed to register audit retention job: %w", err)
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		<-scheduler.Stop().Done()
		log.Info("Scheduler stopped")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		log.Info("Server stopped gracefully")
	}

	return nil
}
