package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/hostel-dispatch/internal/api/http"
	"github.com/spec-kit/hostel-dispatch/internal/api/http/handlers"
	"github.com/spec-kit/hostel-dispatch/internal/app"
	"github.com/spec-kit/hostel-dispatch/internal/auth"
	"github.com/spec-kit/hostel-dispatch/internal/config"
	"github.com/spec-kit/hostel-dispatch/internal/observability"
	"github.com/spec-kit/hostel-dispatch/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
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

	c, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}
	defer c.Close()

	worker.StartNotificationWorker(c.Notifications, logger)

	var scanner *worker.EscalationWorker
	if cfg.Escalation.ScanEnabled {
		scanner = worker.NewEscalationWorker(c.Escalations, cfg.Escalation.ScanInterval(), logger.Named("escalation_worker"))
		scanner.Start(ctx)
	}

	authMiddleware := auth.NewAuthMiddleware(c.Auth.TokenManager(), c.Staff)

	server := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(server, logger, c.Metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": c.Postgres,
			"redis":    c.Redis,
		}),
		Tickets:        handlers.NewTicketsHandler(c.Tickets, c.Assignments, c.Escalations),
		Escalations:    handlers.NewEscalationsHandler(c.Escalations, c.Tickets),
		Mappings:       handlers.NewMappingsHandler(c.Mappings),
		Staff:          handlers.NewStaffHandler(c.Directory, c.Assignments),
		AuthMiddleware: authMiddleware.Handle,
		Metrics:        c.Metrics,
	})

	go func() {
		if err := server.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if scanner != nil {
		scanner.Wait()
	}
	if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
