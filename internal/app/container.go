// Package app assembles the dependency graph shared by the API server and
// the ops CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/hostel-dispatch/internal/cache"
	"github.com/spec-kit/hostel-dispatch/internal/config"
	"github.com/spec-kit/hostel-dispatch/internal/events"
	"github.com/spec-kit/hostel-dispatch/internal/observability"
	"github.com/spec-kit/hostel-dispatch/internal/persistence"
	"github.com/spec-kit/hostel-dispatch/internal/repository"
	"github.com/spec-kit/hostel-dispatch/internal/service"
)

// Container holds connections and services built from one Config.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	Metrics    *observability.Metrics
	Dispatcher events.Dispatcher

	Staff         repository.StaffRepository
	Tickets       *service.TicketService
	Assignments   *service.AssignmentService
	Escalations   *service.EscalationService
	Mappings      *service.MappingService
	Directory     *service.StaffService
	Auth          *service.AuthService
	Notifications *service.NotificationService
}

// Build connects to Postgres and Redis, applies migrations when configured
// and wires every service. Close releases the connections.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, err
	}
	if pg.Pool == nil {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)

	pool := pg.Pool
	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	escalationRepo := repository.NewEscalationRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)
	mappingRepo := cache.NewMappingCache(
		repository.NewMappingRepository(pool),
		rdb.Client,
		cfg.Assignment.MappingCacheTTL(),
		logger.Named("mapping_cache"),
	)
	uow := repository.NewUnitOfWork(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger.Named("events"))

	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  ticketRepo,
		StaffRepo:   staffRepo,
		MappingRepo: mappingRepo,
		UnitOfWork:  uow,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger.Named("assignment"),
	})

	c := &Container{
		Config:      cfg,
		Logger:      logger,
		Postgres:    pg,
		Redis:       rdb,
		Metrics:     metrics,
		Dispatcher:  dispatcher,
		Staff:       staffRepo,
		Assignments: assignments,
		Tickets: service.NewTicketService(service.TicketDependencies{
			TicketRepo:  ticketRepo,
			HistoryRepo: historyRepo,
			UnitOfWork:  uow,
			Assigner:    assignments,
			Dispatcher:  dispatcher,
			Logger:      logger.Named("tickets"),
		}),
		Escalations: service.NewEscalationService(service.EscalationDependencies{
			TicketRepo:     ticketRepo,
			EscalationRepo: escalationRepo,
			StaffRepo:      staffRepo,
			UnitOfWork:     uow,
			Dispatcher:     dispatcher,
			Metrics:        metrics,
			Logger:         logger.Named("escalation"),
			Config:         cfg.Escalation,
		}),
		Mappings: service.NewMappingService(service.MappingDependencies{
			MappingRepo: mappingRepo,
			StaffRepo:   staffRepo,
			Logger:      logger.Named("mappings"),
		}),
		Directory: service.NewStaffService(service.StaffDependencies{StaffRepo: staffRepo}),
		Auth:      service.NewAuthService(*cfg, service.AuthDependencies{StaffRepo: staffRepo}),
	}

	if cfg.Notification.Enabled {
		c.Notifications = service.NewNotificationService(service.NotificationDependencies{
			Dispatcher: dispatcher,
			Sink:       service.NewRedisSink(rdb.Client, cfg.Notification.Channel),
			Directory:  staffRepo,
			Logger:     logger.Named("notifications"),
			Config:     cfg.Notification,
		})
	}
	return c, nil
}

// Close releases Redis and Postgres.
func (c *Container) Close() {
	c.Redis.Close()
	c.Postgres.Close()
}
