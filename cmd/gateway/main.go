package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/assistenza/helpdesk-gateway/internal/api/http/handlers"
	"github.com/assistenza/helpdesk-gateway/internal/auth"
	"github.com/assistenza/helpdesk-gateway/internal/backend"
	"github.com/assistenza/helpdesk-gateway/internal/config"
	"github.com/assistenza/helpdesk-gateway/internal/directory"
	"github.com/assistenza/helpdesk-gateway/internal/events"
	"github.com/assistenza/helpdesk-gateway/internal/identity"
	"github.com/assistenza/helpdesk-gateway/internal/observability"
	"github.com/assistenza/helpdesk-gateway/internal/query"
	"github.com/assistenza/helpdesk-gateway/internal/service"
	"github.com/assistenza/helpdesk-gateway/internal/session"
	"github.com/assistenza/helpdesk-gateway/internal/workflow"

	httptransport "github.com/assistenza/helpdesk-gateway/internal/api/http"
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Ticket workflow gateway in front of the helpdesk backend",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", cfg.App.Name, cfg.App.Version)
		return nil
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog := backend.NewCatalog()
	if cfg.Backend.MessagesPath != "" {
		catalog, err = backend.LoadCatalog(cfg.Backend.MessagesPath)
		if err != nil {
			logger.Fatal("failed to load message catalog", zap.Error(err))
		}
		if cfg.Backend.WatchMessages {
			if err := catalog.Watch(ctx, cfg.Backend.MessagesPath, logger); err != nil {
				logger.Fatal("failed to watch message catalog", zap.Error(err))
			}
		}
	}

	client := backend.NewHTTPClient(cfg.Backend.BaseURL, cfg.Backend.Timeout(), catalog, logger)

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	dir, err := directory.New(client, redisClient, cfg.Autosave.DirectoryTTL(), logger)
	if err != nil {
		logger.Fatal("failed to init directory cache", zap.Error(err))
	}
	defer dir.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	activity := service.NewActivityService(dispatcher, logger, metrics)
	activity.RegisterHandlers()

	sessions := session.NewManager(session.Dependencies{
		Backend:     client,
		Resolver:    dir,
		Dispatcher:  dispatcher,
		Logger:      logger,
		QuietPeriod: cfg.Autosave.QuietPeriod(),
	})
	defer sessions.CloseAll()

	machine := workflow.NewStateMachine(client, dispatcher, logger)
	assignment := workflow.NewAssignmentWorkflow(machine, dir)
	queries := query.NewService(client, logger)

	tokens := identity.NewTokenManager(cfg.Auth.JWTSecret)
	authMiddleware := auth.NewMiddleware(tokens)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, redisClient, metrics),
		Sessions:       handlers.NewSessionsHandler(sessions, machine),
		Tickets:        handlers.NewTicketsHandler(client, machine, assignment, queries),
		Catalog:        handlers.NewCatalogHandler(dir),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	return app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
