package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/agency-queue/internal/api/http"
	"github.com/spec-kit/agency-queue/internal/api/http/handlers"
	"github.com/spec-kit/agency-queue/internal/auth"
	"github.com/spec-kit/agency-queue/internal/config"
	"github.com/spec-kit/agency-queue/internal/events"
	"github.com/spec-kit/agency-queue/internal/observability"
	"github.com/spec-kit/agency-queue/internal/persistence"
	"github.com/spec-kit/agency-queue/internal/repository"
	"github.com/spec-kit/agency-queue/internal/service"
	"github.com/spec-kit/agency-queue/internal/worker"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	agencyRepo := repository.NewAgencyRepository(pool)
	counterRepo := repository.NewCounterRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	sequenceRepo := repository.NewSequenceRepository(pool)
	appointmentRepo := repository.NewAppointmentRepository(pool)
	slotRepo := repository.NewSlotRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()

	queueService := service.NewQueueService(service.QueueDependencies{
		TicketRepo:   ticketRepo,
		SequenceRepo: sequenceRepo,
		AgencyRepo:   agencyRepo,
		Dispatcher:   dispatcher,
	})
	assignmentService := service.NewAssignmentService(cfg.Queue, service.AssignmentDependencies{
		TicketRepo:  ticketRepo,
		CounterRepo: counterRepo,
		AgencyRepo:  agencyRepo,
		Dispatcher:  dispatcher,
	})
	bookingService := service.NewBookingService(service.BookingDependencies{
		AppointmentRepo: appointmentRepo,
		SlotRepo:        slotRepo,
		AgencyRepo:      agencyRepo,
		Queue:           queueService,
		Dispatcher:      dispatcher,
	})
	statsService := service.NewStatsService(ticketRepo, agencyRepo, redis.Client, cfg.Queue.StatsCacheTTL(), logger)
	authService := service.NewAuthService(*cfg, staffRepo)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)

	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), staffRepo)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(queueService),
		Counters:       handlers.NewCountersHandler(assignmentService),
		Appointments:   handlers.NewAppointmentsHandler(bookingService),
		Stats:          handlers.NewStatsHandler(statsService),
		Staff:          handlers.NewStaffHandler(authService),
		AuthMiddleware: authMiddleware,
	})

	sweeper := worker.NewSweeper(ticketRepo, cfg.Queue, logger)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	group.Go(func() error {
		return sweeper.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.Shutdown()
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", zap.Error(err))
	}
}
