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

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/worker"
)

type repositories struct {
	tickets       repository.TicketRepository
	archive       repository.ArchiveRepository
	notifications repository.NotificationRepository
	identities    repository.IdentityRepository
}

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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	repos := buildRepositories(pg)
	if err := seedIdentities(ctx, cfg.Seed, repos.identities, logger); err != nil {
		logger.Fatal("failed to seed identities", zap.Error(err))
	}

	policy, err := cfg.SLA.LoadSLAPolicy()
	if err != nil {
		logger.Fatal("failed to load sla policy", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	if cfg.Realtime.RedisRelayEnabled && redis.Enabled() {
		events.NewRedisRelay(redis.Client, cfg.Realtime.RedisChannel).Attach(dispatcher)
		logger.Info("redis event relay attached", zap.String("channel", cfg.Realtime.RedisChannel))
	}
	hub := events.NewHub(events.NewRegistry(), cfg.Realtime.SubscriberBuffer, logger,
		events.WithDispatcher(dispatcher),
		events.WithRecorder(metrics),
	)

	notifier := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: repos.notifications,
		Publisher:        hub,
		Logger:           logger,
		Config:           cfg.Notification,
	})
	workload := service.NewWorkloadIndex(repos.tickets, repos.identities, nil)
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:        repos.tickets,
		IdentityRepo:      repos.identities,
		Notifier:          notifier,
		Publisher:         hub,
		Policy:            policy,
		OptimisticLocking: cfg.Tickets.OptimisticLocking,
		Logger:            logger,
	})
	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:        repos.tickets,
		IdentityRepo:      repos.identities,
		Workload:          workload,
		Notifier:          notifier,
		Publisher:         hub,
		OptimisticLocking: cfg.Tickets.OptimisticLocking,
		Logger:            logger,
	})
	archive := service.NewArchiveService(service.ArchiveDependencies{
		TicketRepo:  repos.tickets,
		ArchiveRepo: repos.archive,
		Publisher:   hub,
		PurgeDays:   cfg.Tickets.ArchivePurgeDays,
		Logger:      logger,
	})
	stats := service.NewStatsService(repos.tickets, repos.identities, hub.Presence(), nil)
	exports := service.NewExportService(repos.tickets, repos.notifications, nil)

	watcher := worker.NewSLAWatcher(worker.SLAWatcherDependencies{
		TicketRepo: repos.tickets,
		Notifier:   notifier,
		Publisher:  hub,
		Policy:     policy,
		Recorder:   metrics,
		Interval:   cfg.SLA.WatchInterval(),
		Logger:     logger,
	})
	go watcher.Run(ctx)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager, repos.identities)

	// Streams hold connections open; closing this lets them finish before Shutdown.
	streamsDone := make(chan struct{})

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics, hub),
		Tickets:        handlers.NewTicketsHandler(tickets, assignments),
		Archive:        handlers.NewArchiveHandler(archive),
		Notifications:  handlers.NewNotificationsHandler(notifier),
		Agents:         handlers.NewAgentsHandler(workload, stats, exports, hub.Presence()),
		Stream:         handlers.NewStreamHandler(hub, cfg.Realtime.Heartbeat(), streamsDone, logger),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	close(streamsDone)
	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func buildRepositories(pg *persistence.Postgres) repositories {
	if pg.Enabled() {
		return repositories{
			tickets:       repository.NewTicketRepository(pg.Pool),
			archive:       repository.NewArchiveRepository(pg.Pool),
			notifications: repository.NewNotificationRepository(pg.Pool),
			identities:    repository.NewIdentityRepository(pg.Pool),
		}
	}
	store := memory.NewStore()
	return repositories{
		tickets:       store.Tickets(),
		archive:       store.Archive(),
		notifications: store.Notifications(),
		identities:    store.Identities(),
	}
}

func seedIdentities(ctx context.Context, cfg config.SeedConfig, identities repository.IdentityRepository, logger *zap.Logger) error {
	seed, err := cfg.LoadIdentitySeed()
	if err != nil {
		return err
	}
	for i := range seed {
		if err := identities.Upsert(ctx, &seed[i]); err != nil {
			return err
		}
	}
	if len(seed) > 0 {
		logger.Info("identities seeded", zap.Int("count", len(seed)))
	}
	return nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
