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

	httptransport "github.com/spec-kit/sla-engine/internal/api/http"
	"github.com/spec-kit/sla-engine/internal/api/http/handlers"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/monitor"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/persistence"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/rules"
	"github.com/spec-kit/sla-engine/internal/service"
	"github.com/spec-kit/sla-engine/internal/sla"
	"github.com/spec-kit/sla-engine/internal/worker"
)

const scanLockKey = "sla:monitor:scan-lock"

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

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("tickets are stored in postgres; set POSTGRES_DSN")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var source rules.Source
	switch cfg.Rules.Source {
	case config.RulesSourceFile:
		source = rules.NewFileSource(cfg.Rules.Path)
	default:
		source = &rules.PostgresSource{
			SLARules:      repository.NewSLARuleRepository(pool),
			BusinessHours: repository.NewBusinessHoursRepository(pool),
			WorkflowRules: repository.NewWorkflowRuleRepository(pool),
		}
	}
	ruleStore := rules.NewStore(source, logger)
	ruleStore.OnReload(metrics.ObserveRuleReload)
	if err := ruleStore.Reload(ctx); err != nil {
		logger.Fatal("failed to load rules", zap.String("source", cfg.Rules.Source), zap.Error(err))
	}

	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	roleRepo := repository.NewActorRoleRepository(pool)
	finder := sla.NewFinder(ticketRepo, cfg.SLA.InactiveStatuses)

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)

	notifier := events.FanOut{dispatcher}
	if cfg.Notification.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.Notification.NATSURL, cfg.Notification.NATSSubjectPrefix, logger)
		if err != nil {
			logger.Fatal("failed to connect nats", zap.Error(err))
		}
		defer natsPublisher.Close()
		notifier = append(notifier, natsPublisher)
	}

	var markers monitor.MarkerStore = monitor.NewMemoryMarkerStore()
	var locker monitor.Locker
	if redis.Enabled() {
		markers = repository.NewNotificationMarkerRepository(redis.Client)
		if cfg.Monitor.DistributedLock {
			locker = repository.NewScanLock(redis.Client, scanLockKey, cfg.Monitor.LockTTL())
		}
	}

	slaMonitor := monitor.New(monitor.Dependencies{
		Finder:          finder,
		Notifier:        notifier,
		Markers:         markers,
		Metrics:         repository.NewMonitoringMetricsRepository(pool),
		Locker:          locker,
		Recorder:        metrics,
		Logger:          logger,
		WarningWindow:   cfg.SLA.WarningWindow(),
		MarkerRetention: cfg.Monitor.MarkerRetention(),
	})

	var scheduler *monitor.Scheduler
	if cfg.Monitor.Enabled {
		scheduler = monitor.NewScheduler(slaMonitor, cfg.Monitor.Interval(), logger)
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:       ticketRepo,
		HistoryRepo:      historyRepo,
		Rules:            ruleStore,
		Roles:            roleRepo,
		Dispatcher:       dispatcher,
		Location:         cfg.SLA.Location(),
		ResolvedStatuses: cfg.SLA.ResolvedStatuses,
		WarningWindow:    cfg.SLA.WarningWindow(),
		Logger:           logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, 24*time.Hour)
	authMiddleware := auth.NewAuthMiddleware(tokens, roleRepo)

	pingers := map[string]handlers.Pinger{"postgres": pg}
	if redis.Enabled() {
		pingers["redis"] = redis
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pingers),
		Workflow: handlers.NewWorkflowHandler(ruleStore),
		SLA: handlers.NewSLAHandler(handlers.SLAHandlerConfig{
			Rules:    ruleStore,
			Finder:   finder,
			Monitor:  slaMonitor,
			Location: cfg.SLA.Location(),
		}),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Rules:          handlers.NewRulesHandler(ruleStore),
		Metrics:        metrics,
		AuthMiddleware: authMiddleware,
		AdminRole:      cfg.Auth.AdminRole,
	})

	jobs := worker.Start(ctx, worker.Config{
		Notifications: notificationService,
		Scheduler:     scheduler,
		Rules:         ruleStore,
		RulesInterval: cfg.Rules.RefreshInterval(),
		Logger:        logger,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.ShutdownWithTimeout(10 * time.Second)
	jobs.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
