package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"workflow-registry/backend/internal/api"
	"workflow-registry/backend/internal/auth"
	"workflow-registry/backend/internal/config"
	"workflow-registry/backend/internal/logging"
	"workflow-registry/backend/internal/mcp"
	"workflow-registry/backend/internal/repository"
	"workflow-registry/backend/internal/services"
	"workflow-registry/backend/internal/tls"
)

func main() {
	root := &cobra.Command{
		Use:   "server",
		Short: "Workflow registry API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	if err := root.Execute(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func run(ctx context.Context) error {
	// Initialize logging
	logger := logging.NewLogger()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return err
	}
	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"engine_url", cfg.Engine.URL,
		"auth_issuer", cfg.Auth.Issuer,
	)

	logger.Info("Starting Workflow Registry Service")

	// Initialize database connection
	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return err
	}
	defer dbPool.Close()

	logger.Info("Database connected")

	// Initialize repository layer
	stepTemplateStore := repository.NewStepTemplateStore(dbPool, logger)
	workflowTemplateStore := repository.NewWorkflowTemplateStore(dbPool, logger)
	workflowStore := repository.NewWorkflowStore(dbPool, logger)
	draftStore := repository.NewPostgresDraftStore(dbPool)
	instanceStore := repository.NewPostgresInstanceStore(dbPool)
	auditStore := repository.NewPostgresAuditStore(dbPool)

	// Initialize service layer
	auditor := services.NewAuditor(auditStore, logger)
	stepTemplates := services.NewStepTemplateService(stepTemplateStore, auditor, logger)
	workflowTemplates := services.NewWorkflowTemplateService(workflowTemplateStore, stepTemplates, auditor, logger)
	workflows := services.NewWorkflowService(workflowStore, workflowTemplates, stepTemplates, auditor, logger)
	templateDrafts := services.NewTemplateDraftService(draftStore, workflowTemplates, auditor, logger)
	workflowDrafts := services.NewWorkflowDraftService(draftStore, workflows, workflowTemplates, auditor, logger)
	instances := services.NewInstanceService(instanceStore, workflows, auditor, logger)
	engineClient := services.NewHTTPEngineClient(cfg.Engine.URL)
	trigger := services.NewTriggerService(workflows, instances, engineClient, cfg.Engine.StateMachineID, auditor, logger)

	logger.Info("Service layer initialized")

	// Create Echo server
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("workflow-registry"))

	// Initialize authentication
	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize auth", "error", err)
		return err
	}

	// Mount REST API handlers behind bearer auth
	apiServer := api.NewServer(stepTemplates, workflowTemplates, workflows, templateDrafts, workflowDrafts, instances, trigger)
	apiGroup := e.Group("/api/v1")
	apiGroup.Use(echo.WrapMiddleware(authz.RequireAuth))
	apiServer.RegisterRoutes(apiGroup)

	e.GET("/health", apiServer.HandleHealth)

	logger.Info("REST API handlers mounted")

	// Mount MCP protocol handlers
	mcpServer := mcp.NewServer(workflows, instances, trigger)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))

	logger.Info("MCP protocol handlers mounted")

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	if cfg.TLS.Enable {
		addr = fmt.Sprintf(":%d", cfg.Server.TLSPort)
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
				logger.Error("TLS enabled but cert/key file not provided")
				serverErrors <- server.ListenAndServe()
				return
			}
			// generate if missing and hostnames provided
			if _, err := os.Stat(cfg.TLS.CertFile); os.IsNotExist(err) {
				if len(cfg.TLS.Hostnames) > 0 {
					if err := tls.GenerateSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
						logger.Error("failed to generate self-signed cert", "error", err)
					}
				}
			}
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			return err
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig.String())

		// Create shutdown context with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}

		logger.Info("Server stopped gracefully")
	}
	return nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
